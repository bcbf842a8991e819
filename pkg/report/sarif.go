package report

import (
	_ "crypto/sha256" // registers the hash behind digest.Canonical
	"fmt"

	"github.com/opencontainers/go-digest"
	"github.com/samber/lo"

	"github.com/geekwala/security-scan-action/pkg/geekwala"
	"github.com/geekwala/security-scan-action/pkg/risk"
)

const (
	SARIFSchema  = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/main/sarif-2.1/schema/sarif-schema-2.1.0.json"
	SARIFVersion = "2.1.0"

	driverName = "GeekWala Security Scan"
	driverURI  = "https://geekwala.com"
)

type SARIFLog struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []SARIFRun `json:"runs"`
}

type SARIFRun struct {
	Tool    SARIFTool     `json:"tool"`
	Results []SARIFResult `json:"results"`
}

type SARIFTool struct {
	Driver SARIFDriver `json:"driver"`
}

type SARIFDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version"`
	InformationURI string      `json:"informationUri"`
	Rules          []SARIFRule `json:"rules"`
}

type SARIFMessage struct {
	Text string `json:"text"`
}

type SARIFRule struct {
	ID               string              `json:"id"`
	ShortDescription SARIFMessage        `json:"shortDescription"`
	FullDescription  *SARIFMessage       `json:"fullDescription,omitempty"`
	HelpURI          string              `json:"helpUri,omitempty"`
	Properties       SARIFRuleProperties `json:"properties"`
}

type SARIFRuleProperties struct {
	SecuritySeverity string   `json:"security-severity"`
	Tags             []string `json:"tags,omitempty"`
}

type SARIFResult struct {
	RuleID              string                 `json:"ruleId"`
	Level               string                 `json:"level"`
	Message             SARIFMessage           `json:"message"`
	Locations           []SARIFLocation        `json:"locations"`
	PartialFingerprints map[string]string      `json:"partialFingerprints,omitempty"`
	Properties          map[string]interface{} `json:"properties,omitempty"`
}

type SARIFLocation struct {
	PhysicalLocation SARIFPhysicalLocation `json:"physicalLocation"`
}

type SARIFPhysicalLocation struct {
	ArtifactLocation SARIFArtifactLocation `json:"artifactLocation"`
	Region           *SARIFRegion          `json:"region,omitempty"`
}

type SARIFArtifactLocation struct {
	URI string `json:"uri"`
}

type SARIFRegion struct {
	StartLine int `json:"startLine"`
}

// SARIF converts active vulnerabilities into a SARIF 2.1.0 log for code scanning.
// Each vulnerability ID becomes one rule, described by its first occurrence.
func SARIF(resp geekwala.Response, fileName, version string) SARIFLog {
	rules := []SARIFRule{}
	results := []SARIFResult{}
	seen := map[string]bool{}

	for _, f := range Findings(resp, false) {
		v := f.Vulnerability
		severity := risk.Classify(v)

		if !seen[v.ID] {
			seen[v.ID] = true
			rules = append(rules, newRule(v, severity))
		}

		summary := v.Summary
		if summary == "" {
			summary = "No description available"
		}
		result := SARIFResult{
			RuleID:  v.ID,
			Level:   Level(severity),
			Message: SARIFMessage{Text: fmt.Sprintf("%s@%s is affected by %s: %s", f.Package, f.Version, v.ID, summary)},
			Locations: []SARIFLocation{{
				PhysicalLocation: SARIFPhysicalLocation{
					ArtifactLocation: SARIFArtifactLocation{URI: fileName},
					Region:           &SARIFRegion{StartLine: 1},
				},
			}},
			PartialFingerprints: map[string]string{
				"primaryLocationLineHash": Fingerprint(f.Package, f.Version, v.ID),
			},
		}
		if props := properties(v); len(props) > 0 {
			result.Properties = props
		}
		results = append(results, result)
	}

	return SARIFLog{
		Schema:  SARIFSchema,
		Version: SARIFVersion,
		Runs: []SARIFRun{{
			Tool: SARIFTool{Driver: SARIFDriver{
				Name:           driverName,
				Version:        version,
				InformationURI: driverURI,
				Rules:          rules,
			}},
			Results: results,
		}},
	}
}

func newRule(v geekwala.Vulnerability, severity geekwala.Severity) SARIFRule {
	description := v.Summary
	if description == "" {
		description = "Vulnerability " + v.ID
	}
	rule := SARIFRule{
		ID:               v.ID,
		ShortDescription: SARIFMessage{Text: description},
		Properties: SARIFRuleProperties{
			SecuritySeverity: SecuritySeverity(v.CVSSScore, severity),
			Tags:             []string{"security", "vulnerability"},
		},
	}
	if v.Details != "" {
		rule.FullDescription = &SARIFMessage{Text: v.Details}
	}
	if ref, ok := lo.Find(v.References, func(r geekwala.Reference) bool {
		return r.Type == "WEB" || r.Type == "ADVISORY"
	}); ok {
		rule.HelpURI = ref.URL
	}
	return rule
}

func properties(v geekwala.Vulnerability) map[string]interface{} {
	props := map[string]interface{}{}
	if v.EPSSScore != nil {
		props["geekwala/epss-score"] = *v.EPSSScore
	}
	if v.IsKnownExploited != nil {
		props["geekwala/is-kev"] = *v.IsKnownExploited
	}
	if v.FixVersion != nil {
		props["geekwala/fix-version"] = *v.FixVersion
	}
	return props
}

// Level maps a severity tier to a SARIF result level.
func Level(s geekwala.Severity) string {
	switch s {
	case geekwala.SevCritical, geekwala.SevHigh:
		return "error"
	case geekwala.SevMedium:
		return "warning"
	default:
		return "note"
	}
}

// SecuritySeverity returns the score GitHub uses to rank code scanning alerts.
// The CVSS score wins, otherwise the tier is mapped to a representative score.
func SecuritySeverity(cvss *float64, s geekwala.Severity) string {
	if cvss != nil {
		return fmt.Sprintf("%.1f", *cvss)
	}
	switch s {
	case geekwala.SevCritical:
		return "9.0"
	case geekwala.SevHigh:
		return "7.0"
	case geekwala.SevMedium:
		return "4.0"
	case geekwala.SevLow:
		return "1.0"
	default:
		return "0.0"
	}
}

// Fingerprint identifies a finding across runs.
func Fingerprint(pkg, version, id string) string {
	return digest.FromString(fmt.Sprintf("%s:%s:%s", pkg, version, id)).Encoded()[:32]
}
