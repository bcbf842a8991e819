package risk

import (
	"github.com/samber/lo"

	"github.com/geekwala/security-scan-action/pkg/geekwala"
)

// Active returns vulnerabilities that are not suppressed by an ignore rule.
func Active(vulnerabilities []geekwala.Vulnerability) []geekwala.Vulnerability {
	return lo.Filter(vulnerabilities, func(v geekwala.Vulnerability, _ int) bool {
		return !v.Ignored
	})
}

// ActiveVulnerabilities flattens non-ignored vulnerabilities of affected packages.
func ActiveVulnerabilities(results []geekwala.ScanResult) []geekwala.Vulnerability {
	return lo.FlatMap(results, func(r geekwala.ScanResult, _ int) []geekwala.Vulnerability {
		if !r.Affected {
			return nil
		}
		return Active(r.Vulnerabilities)
	})
}

// IgnoredCount returns the number of suppressed vulnerabilities across all results.
func IgnoredCount(results []geekwala.ScanResult) int {
	return lo.SumBy(results, func(r geekwala.ScanResult) int {
		return lo.CountBy(r.Vulnerabilities, func(v geekwala.Vulnerability) bool {
			return v.Ignored
		})
	})
}

// IsVulnerable returns true when the package is affected and at least one of
// its vulnerabilities is not ignored.
func IsVulnerable(r geekwala.ScanResult) bool {
	return r.Affected && lo.ContainsBy(r.Vulnerabilities, func(v geekwala.Vulnerability) bool {
		return !v.Ignored
	})
}

// RecomputeSummary derives package counts from annotated results so that
// fully suppressed packages count as safe.
func RecomputeSummary(results []geekwala.ScanResult) geekwala.Summary {
	vulnerable := lo.CountBy(results, IsVulnerable)
	return geekwala.Summary{
		TotalPackages:      len(results),
		VulnerablePackages: vulnerable,
		SafePackages:       len(results) - vulnerable,
	}
}
