package action

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	"github.com/geekwala/security-scan-action/pkg/ext"
	"github.com/geekwala/security-scan-action/pkg/geekwala"
	"github.com/geekwala/security-scan-action/pkg/risk"
)

// Names of the step outputs.
const (
	OutputScanStatus         = "scan-status"
	OutputTotalPackages      = "total-packages"
	OutputVulnerablePackages = "vulnerable-packages"
	OutputSafePackages       = "safe-packages"
	OutputCriticalCount      = "critical-count"
	OutputHighCount          = "high-count"
	OutputMediumCount        = "medium-count"
	OutputLowCount           = "low-count"
	OutputHasVulnerabilities = "has-vulnerabilities"
	OutputIgnoredCount       = "ignored-count"
	OutputSARIFFile          = "sarif-file"
)

type Output struct {
	Name  string
	Value string
}

// ScanOutputs derives the step outputs of a scan. Counts exclude ignored vulnerabilities.
func ScanOutputs(resp geekwala.Response, status risk.Status) []Output {
	if resp.Failed() {
		return []Output{
			{OutputScanStatus, string(risk.StatusError)},
			{OutputHasVulnerabilities, "false"},
		}
	}
	summary := risk.RecomputeSummary(resp.Data.Results)
	counts := risk.CountBySeverity(risk.ActiveVulnerabilities(resp.Data.Results))
	return []Output{
		{OutputTotalPackages, strconv.Itoa(summary.TotalPackages)},
		{OutputVulnerablePackages, strconv.Itoa(summary.VulnerablePackages)},
		{OutputSafePackages, strconv.Itoa(summary.SafePackages)},
		{OutputCriticalCount, strconv.Itoa(counts.Critical)},
		{OutputHighCount, strconv.Itoa(counts.High)},
		{OutputMediumCount, strconv.Itoa(counts.Medium)},
		{OutputLowCount, strconv.Itoa(counts.Low)},
		{OutputHasVulnerabilities, strconv.FormatBool(summary.VulnerablePackages > 0)},
		{OutputScanStatus, string(status)},
	}
}

// Outputs writes step outputs to the file named by GITHUB_OUTPUT.
type Outputs struct {
	path       string
	ambassador ext.Ambassador
	delimiter  func() string
}

func NewOutputs(path string, ambassador ext.Ambassador) *Outputs {
	return &Outputs{
		path:       path,
		ambassador: ambassador,
		delimiter: func() string {
			return "ghadelimiter_" + uuid.NewString()
		},
	}
}

// Set records a single output. Outputs are dropped with a debug message when
// no output file is configured, e.g. outside of GitHub Actions.
func (o *Outputs) Set(name, value string) error {
	if o.path == "" {
		log.WithFields(log.Fields{
			"name":  name,
			"value": value,
		}).Debug("No output file configured, skipping output")
		return nil
	}
	if err := o.ambassador.AppendFile(o.path, []byte(o.format(name, value))); err != nil {
		return xerrors.Errorf("setting output %s: %w", name, err)
	}
	return nil
}

// SetAll records the outputs in order and stops at the first failure.
func (o *Outputs) SetAll(outputs []Output) error {
	for _, out := range outputs {
		if err := o.Set(out.Name, out.Value); err != nil {
			return err
		}
	}
	return nil
}

func (o *Outputs) format(name, value string) string {
	if !strings.ContainsAny(value, "\r\n") {
		return fmt.Sprintf("%s=%s\n", name, value)
	}
	delimiter := o.delimiter()
	return fmt.Sprintf("%s<<%s\n%s\n%s\n", name, delimiter, value, delimiter)
}
