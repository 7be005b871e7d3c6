package cmd

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"threatmon/logentry"

	"github.com/manifoldco/promptui"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Describe an HTTP request and send it for analysis",
	Long: `Describe an HTTP request (method, URL, body) and send it to the analysis endpoint.
Requests to excluded domains, to the endpoint itself, or with unmonitored
methods are skipped. Without --url an interactive prompt is shown.`,
	Args: cobra.NoArgs,
	RunE: runAnalyze,
}

var (
	analyzeMethod    string
	analyzeURL       string
	analyzeBody      string
	analyzeSource    string
	analyzeTimestamp string
	analyzeDetailed  bool
)

func init() {
	rootCmd.AddCommand(analyzeCmd)

	flags := analyzeCmd.Flags()
	flags.StringVarP(&analyzeMethod, "method", "X", "GET", "request method")
	flags.StringVarP(&analyzeURL, "url", "u", "", "request URL")
	flags.StringVarP(&analyzeBody, "body", "d", "", "request body")
	flags.StringVar(&analyzeSource, "source", "", "initiator of the request (detailed form only)")
	flags.StringVar(&analyzeTimestamp, "timestamp", "", "RFC 3339 time of the request (default now)")
	flags.BoolVar(&analyzeDetailed, "detailed", false, "send the multi-line log form")
}

var stdinIsTerminal = func() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	entry := logentry.Entry{
		Method: analyzeMethod,
		URL:    analyzeURL,
		Body:   analyzeBody,
		Source: analyzeSource,
	}

	if entry.URL == "" {
		if !stdinIsTerminal() {
			return errors.New("--url is required when stdin is not a terminal")
		}
		if err := promptEntry(&entry); err != nil {
			return err
		}
	}

	entry.Timestamp = time.Now()
	if analyzeTimestamp != "" {
		ts, err := time.Parse(time.RFC3339, analyzeTimestamp)
		if err != nil {
			return fmt.Errorf("invalid timestamp. Please use RFC 3339, e.g. 2025-10-19T14:00:00Z")
		}
		entry.Timestamp = ts
	}
	entry.Body = logentry.NormalizeBody([]byte(entry.Body))

	if err := settings.LogFilter().Allow(entry); err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Skipped: %v\n", err)
		return nil
	}

	text := entry.Summary()
	if analyzeDetailed {
		text = entry.Detailed()
	}
	return dispatch(cmd.Context(), cmd.OutOrStdout(), text)
}

func promptEntry(entry *logentry.Entry) error {
	methodPrompt := promptui.Select{
		Label: "Method",
		Items: []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
	}
	_, method, err := methodPrompt.Run()
	if err != nil {
		return fmt.Errorf("method prompt failed: %w", err)
	}
	entry.Method = method

	urlPrompt := promptui.Prompt{
		Label:    "URL",
		Validate: validateRequestURL,
	}
	entry.URL, err = urlPrompt.Run()
	if err != nil {
		return fmt.Errorf("URL prompt failed: %w", err)
	}
	entry.URL = strings.TrimSpace(entry.URL)

	bodyPrompt := promptui.Prompt{
		Label: "Body (press enter for none)",
	}
	entry.Body, err = bodyPrompt.Run()
	if err != nil {
		return fmt.Errorf("body prompt failed: %w", err)
	}
	return nil
}

func validateRequestURL(input string) error {
	u, err := url.Parse(strings.TrimSpace(input))
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL must start with http:// or https://")
	}
	if u.Host == "" {
		return fmt.Errorf("URL must include a host")
	}
	return nil
}
