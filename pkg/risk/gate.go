package risk

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/geekwala/security-scan-action/pkg/geekwala"
)

// Status is the overall outcome of a scan.
type Status string

const (
	StatusPass  Status = "PASS"
	StatusFail  Status = "FAIL"
	StatusError Status = "ERROR"
)

// GateConfig holds the failure gates. Gates are independent and every gate that
// trips contributes a reason.
type GateConfig struct {
	SeverityThreshold geekwala.Threshold
	FailOnKEV         bool
	// EPSSThreshold is nil when the EPSS gate is disabled.
	EPSSThreshold *float64
	// OnlyFixed restricts all gates to vulnerabilities with a known fix version.
	OnlyFixed bool
}

type Decision struct {
	ShouldFail bool
	Reasons    []string
	Status     Status
}

// Reason joins all reasons into a single message.
func (d Decision) Reason() string {
	return strings.Join(d.Reasons, "; ")
}

// Vulnerabilities flattens vulnerabilities of all scan results.
func Vulnerabilities(results []geekwala.ScanResult) []geekwala.Vulnerability {
	return lo.FlatMap(results, func(r geekwala.ScanResult, _ int) []geekwala.Vulnerability {
		return r.Vulnerabilities
	})
}

// Evaluate decides whether the build should fail for the given annotated response.
// Gates run in a fixed order: severity threshold, known exploited, EPSS.
func Evaluate(resp geekwala.Response, cfg GateConfig) Decision {
	if resp.Failed() {
		return Decision{ShouldFail: true, Reasons: []string{"Scan failed"}, Status: StatusError}
	}

	gated := Active(Vulnerabilities(resp.Data.Results))
	if cfg.OnlyFixed {
		gated = lo.Filter(gated, func(v geekwala.Vulnerability, _ int) bool {
			return v.HasFix()
		})
	}

	var reasons []string

	if minimum, ok := cfg.SeverityThreshold.Severity(); ok {
		n := lo.CountBy(gated, func(v geekwala.Vulnerability) bool {
			return Classify(v) >= minimum
		})
		if n > 0 {
			reasons = append(reasons, fmt.Sprintf("Found %d %s at or above %s severity",
				n, pluralize(n), cfg.SeverityThreshold))
		}
	}

	if cfg.FailOnKEV {
		n := lo.CountBy(gated, func(v geekwala.Vulnerability) bool {
			return v.KnownExploited()
		})
		if n > 0 {
			reasons = append(reasons, fmt.Sprintf("Found %d CISA Known Exploited %s", n, pluralize(n)))
		}
	}

	if cfg.EPSSThreshold != nil {
		threshold := *cfg.EPSSThreshold
		n := lo.CountBy(gated, func(v geekwala.Vulnerability) bool {
			return v.EPSSScore != nil && *v.EPSSScore >= threshold
		})
		if n > 0 {
			reasons = append(reasons, fmt.Sprintf("Found %d %s with EPSS score at or above %s",
				n, pluralize(n), FormatScore(threshold)))
		}
	}

	if len(reasons) > 0 {
		return Decision{ShouldFail: true, Reasons: reasons, Status: StatusFail}
	}
	return Decision{Status: StatusPass}
}

// FormatScore renders a score with the shortest exact representation, e.g. 0.5 or 1.
func FormatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func pluralize(n int) string {
	if n == 1 {
		return "vulnerability"
	}
	return "vulnerabilities"
}
