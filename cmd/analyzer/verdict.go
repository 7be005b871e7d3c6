package analyzer

import (
	"encoding/json"
	"fmt"
	"math"
)

// Verdict is the threat assessment the endpoint returns as its JSON body.
type Verdict struct {
	ThreatDetected bool     `json:"threatDetected"`
	Confidence     float64  `json:"confidence"`
	Type           string   `json:"type"`
	Severity       string   `json:"severity"`
	Description    string   `json:"description"`
	Indicators     []string `json:"indicators"`
	Recommendation string   `json:"recommendation"`
}

// ParseVerdict reads a verdict out of a raw response body. It reports false
// when the body is not a JSON object carrying threatDetected.
func ParseVerdict(body string) (*Verdict, bool) {
	var marker struct {
		ThreatDetected *bool `json:"threatDetected"`
	}
	if err := json.Unmarshal([]byte(body), &marker); err != nil || marker.ThreatDetected == nil {
		return nil, false
	}

	var v Verdict
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return nil, false
	}
	return &v, true
}

// Label is the short form used in tables and exports: THREAT or CLEAN.
func (v *Verdict) Label() string {
	if v.ThreatDetected {
		return "THREAT"
	}
	return "CLEAN"
}

// ConfidencePercent rounds the 0-1 confidence to a whole percentage.
func (v *Verdict) ConfidencePercent() int {
	return int(math.Round(v.Confidence * 100))
}

func (v *Verdict) String() string {
	if !v.ThreatDetected {
		return "CLEAN"
	}
	kind := v.Type
	if kind == "" {
		kind = "Unknown"
	}
	return fmt.Sprintf("THREAT: %s (%d%%)", kind, v.ConfidencePercent())
}
