// Package logentry describes captured HTTP requests in the text form the
// analysis endpoint expects, and decides which requests are worth sending.
package logentry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxBodyLen is how much of a non-JSON body is kept before truncation.
const MaxBodyLen = 500

const noBody = "N/A"

// Entry is one observed HTTP request.
type Entry struct {
	Method    string
	URL       string
	Body      string
	Source    string
	Timestamp time.Time
}

// Summary renders the entry on a single line.
func (e Entry) Summary() string {
	return fmt.Sprintf("Method: %s, URL: %s, Body: %s, Timestamp: %s",
		e.method(), e.URL, e.body(), e.timestamp())
}

// Detailed renders the multi-line form, including where the request came from.
func (e Entry) Detailed() string {
	source := e.Source
	if source == "" {
		source = "browser"
	}
	return fmt.Sprintf("Log Entry:\nMethod: %s\nURL: %s\nBody: %s\nTimestamp: %s\nSource: %s",
		e.method(), e.URL, e.body(), e.timestamp(), source)
}

func (e Entry) method() string {
	return strings.ToUpper(e.Method)
}

func (e Entry) body() string {
	if strings.TrimSpace(e.Body) == "" {
		return noBody
	}
	return e.Body
}

func (e Entry) timestamp() string {
	return e.Timestamp.UTC().Format(time.RFC3339)
}

// NormalizeBody turns a raw request body into its log form: N/A when empty,
// compacted when it is JSON, truncated to at most MaxBodyLen bytes on a rune
// boundary otherwise.
func NormalizeBody(raw []byte) string {
	if len(bytes.TrimSpace(raw)) == 0 {
		return noBody
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err == nil {
		return compact.String()
	}

	if len(raw) > MaxBodyLen {
		cut := MaxBodyLen
		for cut > 0 && !utf8.RuneStart(raw[cut]) {
			cut--
		}
		return string(raw[:cut]) + "..."
	}
	return string(raw)
}

var (
	ErrMethodNotAllowed = errors.New("method not monitored")
	ErrSelfTraffic      = errors.New("request targets the analysis endpoint")
	ErrExcludedDomain   = errors.New("domain is excluded")
)

// DefaultMethods are the request methods worth analyzing.
var DefaultMethods = []string{"GET", "POST", "PUT"}

// DefaultExcludedDomains are analytics, ad and social hosts that only add noise.
var DefaultExcludedDomains = []string{
	"mixpanel.com", "doubleclick.net", "statsig", "grok.com", "quantserve.com",
	"amazonadsystem.com", "clients6.google.com", "accounts.google.com",
	"amazon.in/nav/ajax", "unagi.amazon.in", "aax-eu-zaz.amazon.in",
	"adservice.google.com", "fbcdn.net", "facebook.com", "twitter.com",
	"linkedin.com", "bing.com",
}

// Filter decides whether an entry should be sent for analysis.
type Filter struct {
	Endpoint        string
	Methods         []string
	ExcludedDomains []string
}

// Allow returns nil when the entry passes, or the reason it was rejected.
func (f Filter) Allow(e Entry) error {
	method := strings.ToUpper(e.Method)
	if len(f.Methods) > 0 && !slices.ContainsFunc(f.Methods, func(m string) bool {
		return strings.EqualFold(m, method)
	}) {
		return fmt.Errorf("%w: %s", ErrMethodNotAllowed, method)
	}

	if f.Endpoint != "" && e.URL == f.Endpoint {
		return ErrSelfTraffic
	}

	for _, domain := range f.ExcludedDomains {
		if domain != "" && strings.Contains(e.URL, domain) {
			return fmt.Errorf("%w: %s", ErrExcludedDomain, domain)
		}
	}
	return nil
}
