package report

import (
	"github.com/samber/lo"

	"github.com/geekwala/security-scan-action/pkg/geekwala"
)

// Finding is a vulnerability together with the package it was reported for.
type Finding struct {
	Ecosystem     string
	Package       string
	Version       string
	Vulnerability geekwala.Vulnerability
}

// Findings flattens the vulnerabilities of affected packages. Ignored
// vulnerabilities are skipped unless withIgnored is set.
func Findings(resp geekwala.Response, withIgnored bool) []Finding {
	if resp.Failed() {
		return nil
	}
	return lo.FlatMap(resp.Data.Results, func(r geekwala.ScanResult, _ int) []Finding {
		if !r.Affected {
			return nil
		}
		var findings []Finding
		for _, v := range r.Vulnerabilities {
			if v.Ignored && !withIgnored {
				continue
			}
			findings = append(findings, Finding{
				Ecosystem:     r.Ecosystem,
				Package:       r.Package,
				Version:       r.Version,
				Vulnerability: v,
			})
		}
		return findings
	})
}
