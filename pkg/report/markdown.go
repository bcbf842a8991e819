package report

import (
	"fmt"
	"strings"

	"github.com/geekwala/security-scan-action/pkg/geekwala"
	"github.com/geekwala/security-scan-action/pkg/risk"
)

const footer = "Powered by [GeekWala](https://geekwala.com) • Enriched with EPSS & CISA KEV data"

// Markdown renders the workflow step summary of a scan. Counts and package
// listings exclude ignored vulnerabilities.
func Markdown(resp geekwala.Response, fileName string) string {
	if resp.Failed() {
		message := resp.Error
		if message == "" {
			message = "Unknown error occurred"
		}
		return MarkdownError(message)
	}

	results := resp.Data.Results
	summary := risk.RecomputeSummary(results)
	counts := risk.CountBySeverity(risk.ActiveVulnerabilities(results))

	var b strings.Builder
	b.WriteString("# 🛡️ GeekWala Security Scan Results\n\n")
	fmt.Fprintf(&b, "**File scanned:** `%s`\n\n", fileName)

	emoji := "✅"
	if summary.VulnerablePackages > 0 {
		emoji = "⚠️"
	}
	fmt.Fprintf(&b, "%s **%d** of **%d** packages have known vulnerabilities\n\n",
		emoji, summary.VulnerablePackages, summary.TotalPackages)

	b.WriteString("## Severity Breakdown\n\n")
	b.WriteString("| Severity | Count |\n| --- | --- |\n")
	fmt.Fprintf(&b, "| 🔴 Critical | %d |\n", counts.Critical)
	fmt.Fprintf(&b, "| 🟠 High | %d |\n", counts.High)
	fmt.Fprintf(&b, "| 🟡 Medium | %d |\n", counts.Medium)
	fmt.Fprintf(&b, "| 🟢 Low | %d |\n\n", counts.Low)

	if summary.VulnerablePackages == 0 {
		b.WriteString("✅ No vulnerabilities detected in scanned packages.\n\n")
	} else {
		b.WriteString("## Vulnerable Packages\n\n")
		for _, r := range results {
			if !risk.IsVulnerable(r) {
				continue
			}
			writePackage(&b, r)
		}
	}

	b.WriteString("---\n\n")
	b.WriteString(footer + "\n")
	return b.String()
}

func writePackage(b *strings.Builder, r geekwala.ScanResult) {
	active := risk.Active(r.Vulnerabilities)
	fmt.Fprintf(b, "### %s %s@%s\n\n", emojiOf(packageSeverity(r, active)), r.Package, r.Version)
	fmt.Fprintf(b, "**Ecosystem:** %s<br>\n", r.Ecosystem)
	fmt.Fprintf(b, "**Vulnerabilities:** %d\n\n", len(active))

	for _, v := range active {
		fmt.Fprintf(b, "**%s %s**<br>\n", emojiOf(risk.Classify(v)), v.ID)
		if v.Summary != "" {
			b.WriteString(v.Summary + "<br>\n")
		}
		var enrichment []string
		if v.CVSSScore != nil {
			enrichment = append(enrichment, fmt.Sprintf("CVSS: %.1f", *v.CVSSScore))
		}
		if v.EPSSScore != nil {
			enrichment = append(enrichment, fmt.Sprintf("EPSS: %.2f%%", *v.EPSSScore*100))
		}
		if v.KnownExploited() {
			enrichment = append(enrichment, "⚡ CISA KEV")
		}
		if v.FixVersion != nil && *v.FixVersion != "" {
			enrichment = append(enrichment, "Fix: "+*v.FixVersion)
		}
		if len(enrichment) > 0 {
			fmt.Fprintf(b, "*%s*\n", strings.Join(enrichment, " | "))
		}
		b.WriteString("\n")
	}
}

// packageSeverity prefers the tier reported for the package and falls back to its worst active vulnerability.
func packageSeverity(r geekwala.ScanResult, active []geekwala.Vulnerability) geekwala.Severity {
	if s := geekwala.ParseSeverity(r.Severity); s != geekwala.SevUnknown {
		return s
	}
	worst := geekwala.SevUnknown
	for _, v := range active {
		if s := risk.Classify(v); s > worst {
			worst = s
		}
	}
	return worst
}

// MarkdownError renders the step summary of a failed scan.
func MarkdownError(message string) string {
	return fmt.Sprintf("# 🛡️ GeekWala Security Scan - Error\n\n**Error:** %s\n\nCheck the action logs for more details.\n", message)
}

func emojiOf(s geekwala.Severity) string {
	switch s {
	case geekwala.SevCritical:
		return "🔴"
	case geekwala.SevHigh:
		return "🟠"
	case geekwala.SevMedium:
		return "🟡"
	case geekwala.SevLow:
		return "🟢"
	default:
		return "⚪"
	}
}
