package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geekwala/security-scan-action/pkg/geekwala"
)

// fixture holds two active findings, one ignored finding of a vulnerable
// package and a package whose only vulnerability is ignored.
func fixture() geekwala.Response {
	return geekwala.Response{
		Success: true,
		Data: &geekwala.ScanData{
			Summary: geekwala.Summary{TotalPackages: 4, VulnerablePackages: 3, SafePackages: 1},
			Results: []geekwala.ScanResult{
				{
					Ecosystem: "npm",
					Package:   "lodash",
					Version:   "4.17.20",
					Affected:  true,
					Vulnerabilities: []geekwala.Vulnerability{
						{
							ID:      "GHSA-35jh-r3h4-6jhm",
							Summary: "Command Injection in lodash",
							Details: "lodash versions prior to 4.17.21 are vulnerable to Command Injection via the template function.",
							References: []geekwala.Reference{
								{Type: "PACKAGE", URL: "https://github.com/lodash/lodash"},
								{Type: "ADVISORY", URL: "https://github.com/advisories/GHSA-35jh-r3h4-6jhm"},
							},
							CVSSScore:        lo.ToPtr(9.8),
							EPSSScore:        lo.ToPtr(0.02),
							IsKnownExploited: lo.ToPtr(true),
							FixVersion:       lo.ToPtr("4.17.21"),
						},
						{
							ID:           "CVE-2021-23337",
							CVSSScore:    lo.ToPtr(7.2),
							EPSSScore:    lo.ToPtr(0.5),
							Ignored:      true,
							IgnoreReason: "Template function is not used",
						},
					},
				},
				{
					Ecosystem: "npm",
					Package:   "minimist",
					Version:   "1.2.5",
					Affected:  true,
					Vulnerabilities: []geekwala.Vulnerability{
						{
							ID:        "CVE-2021-44906",
							Severity:  []geekwala.SeverityEntry{{Type: "CVSS_V3", Score: "5.6"}},
							EPSSScore: lo.ToPtr(0.9),
						},
					},
				},
				{
					Ecosystem:       "npm",
					Package:         "express",
					Version:         "4.18.2",
					Vulnerabilities: []geekwala.Vulnerability{},
				},
				{
					Ecosystem: "npm",
					Package:   "debug",
					Version:   "2.6.8",
					Affected:  true,
					Vulnerabilities: []geekwala.Vulnerability{
						{ID: "CVE-2017-16137", CVSSScore: lo.ToPtr(5.3), Ignored: true, IgnoreReason: "Dev only"},
					},
				},
			},
		},
	}
}

func TestFindings(t *testing.T) {
	ids := func(findings []Finding) []string {
		return lo.Map(findings, func(f Finding, _ int) string {
			return f.Vulnerability.ID
		})
	}

	assert.Equal(t, []string{"GHSA-35jh-r3h4-6jhm", "CVE-2021-44906"}, ids(Findings(fixture(), false)))
	assert.Equal(t, []string{"GHSA-35jh-r3h4-6jhm", "CVE-2021-23337", "CVE-2021-44906", "CVE-2017-16137"}, ids(Findings(fixture(), true)))
	assert.Empty(t, Findings(geekwala.Response{Success: false}, true))
}

func TestJSON(t *testing.T) {
	generatedAt := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	report := JSON(fixture(), "package-lock.json", "1.4.0", generatedAt, 1500*time.Millisecond)

	assert.Equal(t, "1.4.0", report.Version)
	assert.Equal(t, "2024-06-15T12:00:00.000Z", report.GeneratedAt)
	require.NotNil(t, report.ScanDurationMs)
	assert.Equal(t, int64(1500), *report.ScanDurationMs)
	assert.Equal(t, Tool, report.Tool)
	assert.Equal(t, "package-lock.json", report.FileScanned)
	assert.Equal(t, geekwala.Summary{TotalPackages: 4, VulnerablePackages: 2, SafePackages: 2}, report.Summary)
	assert.Equal(t, 2, report.IgnoredCount)
	require.Len(t, report.Vulnerabilities, 4)

	assert.Equal(t, JSONVulnerability{
		ID:               "GHSA-35jh-r3h4-6jhm",
		Package:          "lodash",
		Version:          "4.17.20",
		Ecosystem:        "npm",
		Severity:         "CRITICAL",
		Summary:          "Command Injection in lodash",
		CVSSScore:        lo.ToPtr(9.8),
		EPSSScore:        lo.ToPtr(0.02),
		IsKnownExploited: lo.ToPtr(true),
		FixVersion:       lo.ToPtr("4.17.21"),
	}, report.Vulnerabilities[0])
	assert.True(t, report.Vulnerabilities[1].Ignored)
	assert.Equal(t, "Template function is not used", report.Vulnerabilities[1].IgnoreReason)
	assert.Equal(t, "MEDIUM", report.Vulnerabilities[2].Severity)

	t.Run("Should encode empty report of failed scan", func(t *testing.T) {
		report := JSON(geekwala.Response{Success: false, Error: "Scan failed"}, "go.sum", "1.4.0", generatedAt, 0)

		var buf bytes.Buffer
		require.NoError(t, Encode(&buf, report))

		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, []interface{}{}, decoded["vulnerabilities"])
		assert.NotContains(t, decoded, "scanDurationMs")
		assert.Equal(t, map[string]interface{}{
			"total_packages":      float64(0),
			"vulnerable_packages": float64(0),
			"safe_packages":       float64(0),
		}, decoded["summary"])
	})
}

func TestSARIF(t *testing.T) {
	log := SARIF(fixture(), "frontend/package-lock.json", "1.4.0")

	assert.Equal(t, SARIFSchema, log.Schema)
	assert.Equal(t, "2.1.0", log.Version)
	require.Len(t, log.Runs, 1)

	driver := log.Runs[0].Tool.Driver
	assert.Equal(t, "GeekWala Security Scan", driver.Name)
	assert.Equal(t, "1.4.0", driver.Version)
	assert.Equal(t, "https://geekwala.com", driver.InformationURI)
	assert.Equal(t, []SARIFRule{
		{
			ID:               "GHSA-35jh-r3h4-6jhm",
			ShortDescription: SARIFMessage{Text: "Command Injection in lodash"},
			FullDescription:  &SARIFMessage{Text: "lodash versions prior to 4.17.21 are vulnerable to Command Injection via the template function."},
			HelpURI:          "https://github.com/advisories/GHSA-35jh-r3h4-6jhm",
			Properties:       SARIFRuleProperties{SecuritySeverity: "9.8", Tags: []string{"security", "vulnerability"}},
		},
		{
			ID:               "CVE-2021-44906",
			ShortDescription: SARIFMessage{Text: "Vulnerability CVE-2021-44906"},
			Properties:       SARIFRuleProperties{SecuritySeverity: "4.0", Tags: []string{"security", "vulnerability"}},
		},
	}, driver.Rules)

	results := log.Runs[0].Results
	require.Len(t, results, 2)

	assert.Equal(t, SARIFResult{
		RuleID:  "GHSA-35jh-r3h4-6jhm",
		Level:   "error",
		Message: SARIFMessage{Text: "lodash@4.17.20 is affected by GHSA-35jh-r3h4-6jhm: Command Injection in lodash"},
		Locations: []SARIFLocation{{
			PhysicalLocation: SARIFPhysicalLocation{
				ArtifactLocation: SARIFArtifactLocation{URI: "frontend/package-lock.json"},
				Region:           &SARIFRegion{StartLine: 1},
			},
		}},
		PartialFingerprints: map[string]string{"primaryLocationLineHash": "60ae47080b9d565848b12759e16a3ed8"},
		Properties: map[string]interface{}{
			"geekwala/epss-score":  0.02,
			"geekwala/is-kev":      true,
			"geekwala/fix-version": "4.17.21",
		},
	}, results[0])

	assert.Equal(t, "warning", results[1].Level)
	assert.Equal(t, "minimist@1.2.5 is affected by CVE-2021-44906: No description available", results[1].Message.Text)
	assert.Equal(t, "111a8831edbf984f70c635ab33142e4b", results[1].PartialFingerprints["primaryLocationLineHash"])
	assert.Equal(t, map[string]interface{}{"geekwala/epss-score": 0.9}, results[1].Properties)

	t.Run("Should emit empty arrays for failed scan", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Encode(&buf, SARIF(geekwala.Response{}, "go.sum", "1.4.0")))
		assert.Contains(t, buf.String(), `"rules": []`)
		assert.Contains(t, buf.String(), `"results": []`)
	})
}

func TestLevelAndSecuritySeverity(t *testing.T) {
	testCases := []struct {
		severity         geekwala.Severity
		expectedLevel    string
		expectedSeverity string
	}{
		{severity: geekwala.SevCritical, expectedLevel: "error", expectedSeverity: "9.0"},
		{severity: geekwala.SevHigh, expectedLevel: "error", expectedSeverity: "7.0"},
		{severity: geekwala.SevMedium, expectedLevel: "warning", expectedSeverity: "4.0"},
		{severity: geekwala.SevLow, expectedLevel: "note", expectedSeverity: "1.0"},
		{severity: geekwala.SevUnknown, expectedLevel: "note", expectedSeverity: "0.0"},
	}
	for _, tc := range testCases {
		t.Run(tc.severity.String(), func(t *testing.T) {
			assert.Equal(t, tc.expectedLevel, Level(tc.severity))
			assert.Equal(t, tc.expectedSeverity, SecuritySeverity(nil, tc.severity))
		})
	}
	assert.Equal(t, "7.5", SecuritySeverity(lo.ToPtr(7.5), geekwala.SevHigh))
}

func TestSortByRisk(t *testing.T) {
	finding := func(id string, kev bool, epss, cvss *float64) Finding {
		return Finding{Vulnerability: geekwala.Vulnerability{
			ID:               id,
			IsKnownExploited: lo.ToPtr(kev),
			EPSSScore:        epss,
			CVSSScore:        cvss,
		}}
	}

	sorted := SortByRisk([]Finding{
		finding("low-epss", false, lo.ToPtr(0.1), lo.ToPtr(9.9)),
		finding("no-scores", false, nil, nil),
		finding("high-cvss", false, lo.ToPtr(0.5), lo.ToPtr(9.0)),
		finding("kev", true, nil, nil),
		finding("low-cvss", false, lo.ToPtr(0.5), lo.ToPtr(4.0)),
	})

	assert.Equal(t, []string{"kev", "high-cvss", "low-cvss", "low-epss", "no-scores"}, lo.Map(sorted, func(f Finding, _ int) string {
		return f.Vulnerability.ID
	}))
}

func TestTable(t *testing.T) {
	t.Run("Should render active vulnerabilities by risk", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Table(&buf, fixture()))

		out := buf.String()
		assert.Contains(t, out, "YES")
		assert.Contains(t, out, "90.0%")
		assert.Contains(t, out, "4.17.21")
		assert.NotContains(t, out, "CVE-2021-23337")
		assert.NotContains(t, out, "CVE-2017-16137")
		assert.Less(t, strings.Index(out, "GHSA-35jh-r3h4-6jhm"), strings.Index(out, "CVE-2021-44906"))
	})

	t.Run("Should report absence of active vulnerabilities", func(t *testing.T) {
		resp := fixture()
		resp.Data.Results = resp.Data.Results[2:]

		var buf bytes.Buffer
		require.NoError(t, Table(&buf, resp))
		assert.Equal(t, NoActiveVulnerabilities+"\n", buf.String())
	})

	t.Run("Should render nothing for failed scan", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Table(&buf, geekwala.Response{}))
		assert.Empty(t, buf.String())
	})
}

func TestMarkdown(t *testing.T) {
	t.Run("Should summarize active vulnerabilities", func(t *testing.T) {
		md := Markdown(fixture(), "package-lock.json")

		assert.True(t, strings.HasPrefix(md, "# 🛡️ GeekWala Security Scan Results\n"))
		assert.Contains(t, md, "**File scanned:** `package-lock.json`")
		assert.Contains(t, md, "⚠️ **2** of **4** packages have known vulnerabilities")
		assert.Contains(t, md, "| 🔴 Critical | 1 |")
		assert.Contains(t, md, "| 🟠 High | 0 |")
		assert.Contains(t, md, "| 🟡 Medium | 1 |")
		assert.Contains(t, md, "### 🔴 lodash@4.17.20")
		assert.Contains(t, md, "### 🟡 minimist@1.2.5")
		assert.Contains(t, md, "*CVSS: 9.8 | EPSS: 2.00% | ⚡ CISA KEV | Fix: 4.17.21*")
		assert.NotContains(t, md, "CVE-2021-23337")
		assert.NotContains(t, md, "debug@2.6.8")
		assert.True(t, strings.HasSuffix(md, footer+"\n"))
	})

	t.Run("Should report clean scan", func(t *testing.T) {
		resp := fixture()
		resp.Data.Results = resp.Data.Results[2:]

		md := Markdown(resp, "package-lock.json")
		assert.Contains(t, md, "✅ **0** of **2** packages have known vulnerabilities")
		assert.Contains(t, md, "✅ No vulnerabilities detected in scanned packages.")
	})

	t.Run("Should render error", func(t *testing.T) {
		md := Markdown(geekwala.Response{Success: false, Error: "Quota exceeded"}, "package-lock.json")
		assert.Equal(t, "# 🛡️ GeekWala Security Scan - Error\n\n**Error:** Quota exceeded\n\nCheck the action logs for more details.\n", md)
	})
}
