package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/geekwala/security-scan-action/pkg/geekwala"
)

func TestRecomputeSummary(t *testing.T) {
	testCases := []struct {
		name     string
		results  []geekwala.ScanResult
		expected geekwala.Summary
	}{
		{
			name:     "Should return zero summary for no results",
			expected: geekwala.Summary{},
		},
		{
			name: "Should count affected packages with active vulnerabilities",
			results: []geekwala.ScanResult{
				{Package: "lodash", Affected: true, Vulnerabilities: []geekwala.Vulnerability{{ID: "CVE-1"}}},
				{Package: "express", Affected: false},
				{Package: "minimist", Affected: true, Vulnerabilities: []geekwala.Vulnerability{{ID: "CVE-2", Ignored: true}, {ID: "CVE-3"}}},
			},
			expected: geekwala.Summary{TotalPackages: 3, VulnerablePackages: 2, SafePackages: 1},
		},
		{
			name: "Should count fully ignored packages as safe",
			results: []geekwala.ScanResult{
				{Package: "lodash", Affected: true, Vulnerabilities: []geekwala.Vulnerability{{ID: "CVE-1", Ignored: true}}},
				{Package: "minimist", Affected: true, Vulnerabilities: []geekwala.Vulnerability{{ID: "CVE-2", Ignored: true}, {ID: "CVE-3", Ignored: true}}},
			},
			expected: geekwala.Summary{TotalPackages: 2, VulnerablePackages: 0, SafePackages: 2},
		},
		{
			name: "Should not trust affected flag without vulnerabilities",
			results: []geekwala.ScanResult{
				{Package: "lodash", Affected: true},
			},
			expected: geekwala.Summary{TotalPackages: 1, VulnerablePackages: 0, SafePackages: 1},
		},
		{
			name: "Should not count unaffected packages that list vulnerabilities",
			results: []geekwala.ScanResult{
				{Package: "lodash", Affected: false, Vulnerabilities: []geekwala.Vulnerability{{ID: "CVE-1"}}},
			},
			expected: geekwala.Summary{TotalPackages: 1, VulnerablePackages: 0, SafePackages: 1},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, RecomputeSummary(tc.results))
		})
	}
}

func TestActiveVulnerabilities(t *testing.T) {
	results := []geekwala.ScanResult{
		{Package: "a", Affected: true, Vulnerabilities: []geekwala.Vulnerability{{ID: "CVE-1"}, {ID: "CVE-2", Ignored: true}}},
		{Package: "b", Affected: false, Vulnerabilities: []geekwala.Vulnerability{{ID: "CVE-3"}}},
		{Package: "c", Affected: true, Vulnerabilities: []geekwala.Vulnerability{{ID: "CVE-4"}}},
	}

	active := ActiveVulnerabilities(results)
	assert.Equal(t, []geekwala.Vulnerability{{ID: "CVE-1"}, {ID: "CVE-4"}}, active)
	assert.Equal(t, 1, IgnoredCount(results))
	assert.Len(t, Vulnerabilities(results), 4)
}
