package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/geekwala/security-scan-action/pkg/geekwala"
	"github.com/geekwala/security-scan-action/pkg/risk"
)

const Tool = "geekwala-security-scan-action"

type JSONReport struct {
	Version         string              `json:"version"`
	GeneratedAt     string              `json:"generatedAt"`
	ScanDurationMs  *int64              `json:"scanDurationMs,omitempty"`
	Tool            string              `json:"tool"`
	FileScanned     string              `json:"fileScanned"`
	Summary         geekwala.Summary    `json:"summary"`
	Vulnerabilities []JSONVulnerability `json:"vulnerabilities"`
	IgnoredCount    int                 `json:"ignoredCount"`
}

type JSONVulnerability struct {
	ID               string   `json:"id"`
	Package          string   `json:"package"`
	Version          string   `json:"version"`
	Ecosystem        string   `json:"ecosystem"`
	Severity         string   `json:"severity"`
	Summary          string   `json:"summary,omitempty"`
	CVSSScore        *float64 `json:"cvss_score,omitempty"`
	EPSSScore        *float64 `json:"epss_score,omitempty"`
	IsKnownExploited *bool    `json:"is_known_exploited,omitempty"`
	FixVersion       *string  `json:"fix_version,omitempty"`
	Ignored          bool     `json:"ignored"`
	IgnoreReason     string   `json:"ignoreReason,omitempty"`
}

// JSON builds the machine readable report. Ignored vulnerabilities are listed with their reason.
// A zero duration is left out of the report.
func JSON(resp geekwala.Response, fileName, version string, generatedAt time.Time, duration time.Duration) JSONReport {
	report := JSONReport{
		Version:         version,
		GeneratedAt:     generatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Tool:            Tool,
		FileScanned:     fileName,
		Vulnerabilities: []JSONVulnerability{},
	}
	if duration > 0 {
		ms := duration.Milliseconds()
		report.ScanDurationMs = &ms
	}
	if resp.Data != nil {
		report.Summary = risk.RecomputeSummary(resp.Data.Results)
	}

	for _, f := range Findings(resp, true) {
		v := f.Vulnerability
		if v.Ignored {
			report.IgnoredCount++
		}
		report.Vulnerabilities = append(report.Vulnerabilities, JSONVulnerability{
			ID:               v.ID,
			Package:          f.Package,
			Version:          f.Version,
			Ecosystem:        f.Ecosystem,
			Severity:         risk.Classify(v).String(),
			Summary:          v.Summary,
			CVSSScore:        v.CVSSScore,
			EPSSScore:        v.EPSSScore,
			IsKnownExploited: v.IsKnownExploited,
			FixVersion:       v.FixVersion,
			Ignored:          v.Ignored,
			IgnoreReason:     v.IgnoreReason,
		})
	}
	return report
}

// Encode writes v as indented JSON.
func Encode(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
