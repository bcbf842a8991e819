package geekwala

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Severity represents the severity tier of a vulnerability.
type Severity int64

// Sevxxx is the list of severity tiers ordered from the least to the most severe.
const (
	SevUnknown Severity = iota
	SevLow
	SevMedium
	SevHigh
	SevCritical
)

func (s Severity) String() string {
	if v, ok := severityToString[s]; ok {
		return v
	}
	return severityToString[SevUnknown]
}

var severityToString = map[Severity]string{
	SevUnknown:  "UNKNOWN",
	SevLow:      "LOW",
	SevMedium:   "MEDIUM",
	SevHigh:     "HIGH",
	SevCritical: "CRITICAL",
}

var stringToSeverity = map[string]Severity{
	"UNKNOWN":  SevUnknown,
	"LOW":      SevLow,
	"MEDIUM":   SevMedium,
	"HIGH":     SevHigh,
	"CRITICAL": SevCritical,
}

// ParseSeverity returns the Severity for the given case-insensitive name.
// Unrecognized names map to SevUnknown.
func ParseSeverity(value string) Severity {
	return stringToSeverity[strings.ToUpper(strings.TrimSpace(value))]
}

// MarshalJSON marshals the Severity enum value as a quoted JSON string.
func (s Severity) MarshalJSON() ([]byte, error) {
	buffer := bytes.NewBufferString(`"`)
	buffer.WriteString(s.String())
	buffer.WriteString(`"`)
	return buffer.Bytes(), nil
}

// UnmarshalJSON unmarshals quoted JSON string to the Severity enum value.
func (s *Severity) UnmarshalJSON(b []byte) error {
	var value string
	err := json.Unmarshal(b, &value)
	if err != nil {
		return err
	}
	*s = ParseSeverity(value)
	return nil
}

// Reference is a link attached to a vulnerability advisory.
type Reference struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// SeverityEntry is a raw severity entry as reported by the advisory source.
// Score holds either a numeric string or a CVSS vector.
type SeverityEntry struct {
	Type  string `json:"type"`
	Score string `json:"score"`
}

type Vulnerability struct {
	ID               string          `json:"id"`
	Summary          string          `json:"summary,omitempty"`
	Details          string          `json:"details,omitempty"`
	Aliases          []string        `json:"aliases,omitempty"`
	Modified         string          `json:"modified,omitempty"`
	Published        string          `json:"published,omitempty"`
	References       []Reference     `json:"references,omitempty"`
	CVSSScore        *float64        `json:"cvss_score,omitempty"`
	Severity         []SeverityEntry `json:"severity,omitempty"`
	EPSSScore        *float64        `json:"epss_score,omitempty"`
	EPSSPercentile   *float64        `json:"epss_percentile,omitempty"`
	IsKnownExploited *bool           `json:"is_known_exploited,omitempty"`
	KEVDateAdded     *string         `json:"kev_date_added,omitempty"`
	KEVDueDate       *string         `json:"kev_due_date,omitempty"`
	KEVRansomwareUse *string         `json:"kev_ransomware_use,omitempty"`
	FixVersion       *string         `json:"fix_version,omitempty"`
	CWEIDs           []string        `json:"cwe_ids,omitempty"`

	Ignored      bool   `json:"_ignored,omitempty"`
	IgnoreReason string `json:"_ignore_reason,omitempty"`
}

// KnownExploited returns true when the vulnerability is listed in the CISA KEV catalog.
func (v Vulnerability) KnownExploited() bool {
	return v.IsKnownExploited != nil && *v.IsKnownExploited
}

// HasFix returns true when the provider reported a version that fixes the vulnerability.
func (v Vulnerability) HasFix() bool {
	return v.FixVersion != nil
}

// Identifiers returns the primary ID followed by all aliases.
func (v Vulnerability) Identifiers() []string {
	ids := make([]string, 0, len(v.Aliases)+1)
	ids = append(ids, v.ID)
	return append(ids, v.Aliases...)
}

type ScanResult struct {
	Ecosystem       string          `json:"ecosystem"`
	Package         string          `json:"package"`
	Version         string          `json:"version"`
	Affected        bool            `json:"affected"`
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`
	Severity        string          `json:"severity,omitempty"`
}

type Summary struct {
	TotalPackages      int `json:"total_packages"`
	VulnerablePackages int `json:"vulnerable_packages"`
	SafePackages       int `json:"safe_packages"`
}

type ScanData struct {
	Results []ScanResult `json:"results"`
	Summary Summary      `json:"summary"`
}

// Response is the payload returned by the vulnerability scan endpoint.
type Response struct {
	Success bool      `json:"success"`
	Data    *ScanData `json:"data,omitempty"`
	Error   string    `json:"error,omitempty"`
	Type    string    `json:"type,omitempty"`
}

// Failed returns true when the response does not carry usable scan data.
func (r Response) Failed() bool {
	return !r.Success || r.Data == nil
}

// Results returns scan results or nil when the response carries no data.
func (r Response) Results() []ScanResult {
	if r.Data == nil {
		return nil
	}
	return r.Data.Results
}

// ScanRequest is the request body accepted by the vulnerability scan endpoint.
type ScanRequest struct {
	FileName string `json:"file_name"`
	Content  string `json:"content"`
}

// Threshold is the minimum severity tier that fails the build.
type Threshold string

const (
	ThresholdNone     Threshold = "none"
	ThresholdLow      Threshold = "low"
	ThresholdMedium   Threshold = "medium"
	ThresholdHigh     Threshold = "high"
	ThresholdCritical Threshold = "critical"
)

var thresholdToSeverity = map[Threshold]Severity{
	ThresholdLow:      SevLow,
	ThresholdMedium:   SevMedium,
	ThresholdHigh:     SevHigh,
	ThresholdCritical: SevCritical,
}

// ParseThreshold returns the Threshold for the given case-insensitive value.
func ParseThreshold(value string) (Threshold, bool) {
	t := Threshold(strings.ToLower(strings.TrimSpace(value)))
	if t == ThresholdNone {
		return t, true
	}
	_, ok := thresholdToSeverity[t]
	return t, ok
}

// Severity returns the lowest severity tier that meets the threshold and
// false for ThresholdNone.
func (t Threshold) Severity() (Severity, bool) {
	s, ok := thresholdToSeverity[t]
	return s, ok
}
