package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/olekukonko/tablewriter"
	"golang.org/x/xerrors"

	"github.com/geekwala/security-scan-action/pkg/geekwala"
	"github.com/geekwala/security-scan-action/pkg/risk"
)

const NoActiveVulnerabilities = "No active vulnerabilities found."

// SortByRisk orders findings by KEV listing first, then EPSS and CVSS scores descending.
// Missing scores count as zero.
func SortByRisk(findings []Finding) []Finding {
	sorted := append([]Finding(nil), findings...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Vulnerability, sorted[j].Vulnerability
		if a.KnownExploited() != b.KnownExploited() {
			return a.KnownExploited()
		}
		if ea, eb := valueOf(a.EPSSScore), valueOf(b.EPSSScore); ea != eb {
			return ea > eb
		}
		return valueOf(a.CVSSScore) > valueOf(b.CVSSScore)
	})
	return sorted
}

// Table renders active vulnerabilities as a console table.
func Table(w io.Writer, resp geekwala.Response) error {
	if resp.Failed() {
		return nil
	}
	findings := Findings(resp, false)
	if len(findings) == 0 {
		_, err := fmt.Fprintln(w, NoActiveVulnerabilities)
		return err
	}

	rows := make([][]string, 0, len(findings))
	for _, f := range SortByRisk(findings) {
		v := f.Vulnerability
		epss := "-"
		if v.EPSSScore != nil {
			epss = fmt.Sprintf("%.1f%%", *v.EPSSScore*100)
		}
		kev := "-"
		if v.KnownExploited() {
			kev = "YES"
		}
		fix := "-"
		if v.FixVersion != nil && *v.FixVersion != "" {
			fix = *v.FixVersion
		}
		rows = append(rows, []string{f.Package, f.Version, v.ID, risk.Classify(v).String(), epss, kev, fix})
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Package", "Version", "Vulnerability", "Severity", "EPSS", "KEV", "Fix"})
	if err := table.Bulk(rows); err != nil {
		return xerrors.Errorf("appending table rows: %w", err)
	}
	if err := table.Render(); err != nil {
		return xerrors.Errorf("rendering table: %w", err)
	}
	return nil
}

func valueOf(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
