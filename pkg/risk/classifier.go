package risk

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/geekwala/security-scan-action/pkg/geekwala"
)

// SeverityCounts holds the number of vulnerabilities per severity tier.
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Unknown  int `json:"unknown"`
}

// Total returns the sum of all tiers.
func (c SeverityCounts) Total() int {
	return c.Critical + c.High + c.Medium + c.Low + c.Unknown
}

// Get returns the count for the given tier.
func (c SeverityCounts) Get(s geekwala.Severity) int {
	switch s {
	case geekwala.SevCritical:
		return c.Critical
	case geekwala.SevHigh:
		return c.High
	case geekwala.SevMedium:
		return c.Medium
	case geekwala.SevLow:
		return c.Low
	default:
		return c.Unknown
	}
}

// FromCVSS maps a CVSS base score onto a severity tier.
func FromCVSS(score float64) geekwala.Severity {
	switch {
	case score >= 9.0:
		return geekwala.SevCritical
	case score >= 7.0:
		return geekwala.SevHigh
	case score >= 4.0:
		return geekwala.SevMedium
	case score > 0:
		return geekwala.SevLow
	default:
		return geekwala.SevUnknown
	}
}

// Classify derives the severity tier of a vulnerability.
//
// The numeric cvss_score wins when present. Otherwise the first severity entry
// whose score starts with a number is used, regardless of its type. CVSS vector
// strings are not scored.
func Classify(v geekwala.Vulnerability) geekwala.Severity {
	if v.CVSSScore != nil {
		return FromCVSS(*v.CVSSScore)
	}
	if score, ok := firstNumericScore(v.Severity); ok {
		return FromCVSS(score)
	}
	return geekwala.SevUnknown
}

// CountBySeverity classifies each vulnerability and tallies the tiers.
func CountBySeverity(vulnerabilities []geekwala.Vulnerability) (counts SeverityCounts) {
	for _, v := range vulnerabilities {
		switch Classify(v) {
		case geekwala.SevCritical:
			counts.Critical++
		case geekwala.SevHigh:
			counts.High++
		case geekwala.SevMedium:
			counts.Medium++
		case geekwala.SevLow:
			counts.Low++
		default:
			counts.Unknown++
		}
	}
	return
}

// HasUnscoredVector returns true when the vulnerability carries only CVSS vector
// strings and therefore classifies as UNKNOWN although the advisory is scored.
func HasUnscoredVector(v geekwala.Vulnerability) bool {
	if v.CVSSScore != nil {
		return false
	}
	if _, ok := firstNumericScore(v.Severity); ok {
		return false
	}
	for _, entry := range v.Severity {
		if strings.HasPrefix(strings.TrimSpace(entry.Score), "CVSS:") {
			return true
		}
	}
	return false
}

var numericPrefix = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

func firstNumericScore(entries []geekwala.SeverityEntry) (float64, bool) {
	for _, entry := range entries {
		if score, ok := parseLeadingFloat(entry.Score); ok {
			return score, true
		}
	}
	return 0, false
}

// parseLeadingFloat parses the longest numeric prefix of s, so "7.5/10" yields 7.5.
func parseLeadingFloat(s string) (float64, bool) {
	prefix := numericPrefix.FindString(strings.TrimLeft(s, " \t\n\r"))
	if prefix == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(prefix, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
