package etc

import (
	"fmt"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/geekwala/security-scan-action/pkg/geekwala"
	"github.com/geekwala/security-scan-action/pkg/risk"
)

// Output formats printed to the job log.
const (
	OutputSummary = "summary"
	OutputJSON    = "json"
	OutputTable   = "table"
)

var validOutputFormats = map[string]bool{
	OutputSummary: true,
	OutputJSON:    true,
	OutputTable:   true,
}

// ValidationError reports an invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Settings are the validated inputs of a scan run with paths resolved against the workspace.
type Settings struct {
	Workspace string
	// FilePath is empty when the dependency file should be detected.
	FilePath string
	// IgnoreFile is empty when ignore rules are disabled.
	IgnoreFile    string
	Gate          risk.GateConfig
	OutputFormats []string
	SARIFFile     string
	JSONFile      string
}

// HasOutput returns true when the given output format was requested.
func (s Settings) HasOutput(format string) bool {
	for _, f := range s.OutputFormats {
		if f == format {
			return true
		}
	}
	return false
}

// Check checks config values to fail fast in case of any problems
// that we might have due to invalid config.
func Check(config Config) (settings Settings, err error) {
	log.WithFields(log.Fields{
		"pid": os.Getpid(),
	}).Debug("Current process")

	if strings.TrimSpace(config.API.Token) == "" {
		return settings, invalid("api-token is required")
	}

	if !isValidURL(config.API.BaseURL) {
		return settings, invalid("Invalid api-base-url: %s", config.API.BaseURL)
	}

	if config.API.RetryAttempts < 1 || config.API.RetryAttempts > 10 {
		return settings, invalid("retry-attempts must be between 1 and 10")
	}

	if config.API.TimeoutSeconds < 10 || config.API.TimeoutSeconds > 600 {
		return settings, invalid("timeout-seconds must be between 10 and 600")
	}

	if settings.Gate, err = checkGate(config.Gate); err != nil {
		return
	}

	if settings.OutputFormats, err = checkOutputFormats(config.Report.OutputFormat); err != nil {
		return
	}

	workspace := config.Input.Workspace
	if workspace == "" {
		workspace = "."
	}
	if settings.Workspace, err = filepath.Abs(workspace); err != nil {
		return settings, fmt.Errorf("resolving workspace: %w", err)
	}

	paths := []struct {
		input  string
		value  string
		target *string
	}{
		{input: "file-path", value: config.Input.FilePath, target: &settings.FilePath},
		{input: "ignore-file", value: config.Input.IgnoreFile, target: &settings.IgnoreFile},
		{input: "sarif-file", value: config.Report.SARIFFile, target: &settings.SARIFFile},
		{input: "json-file", value: config.Report.JSONFile, target: &settings.JSONFile},
	}
	for _, p := range paths {
		if p.value == "" {
			continue
		}
		if *p.target, err = ResolvePath(settings.Workspace, p.value, p.input); err != nil {
			return
		}
	}

	log.WithFields(log.Fields{
		"severity_threshold": settings.Gate.SeverityThreshold,
		"fail_on_kev":        settings.Gate.FailOnKEV,
		"only_fixed":         settings.Gate.OnlyFixed,
		"output_format":      settings.OutputFormats,
	}).Debug("Validated inputs")

	return settings, nil
}

func checkGate(config Gate) (gate risk.GateConfig, err error) {
	gate.FailOnKEV = config.FailOnKEV.Bool()
	gate.OnlyFixed = config.OnlyFixed.Bool()

	switch {
	case config.SeverityThreshold != "":
		threshold, ok := geekwala.ParseThreshold(config.SeverityThreshold)
		if !ok {
			return gate, invalid("Invalid severity-threshold: %s. Valid values: none, low, medium, high, critical", config.SeverityThreshold)
		}
		gate.SeverityThreshold = threshold
	case config.FailOnHigh.Bool():
		gate.SeverityThreshold = geekwala.ThresholdHigh
	case config.FailOnCritical.Bool():
		gate.SeverityThreshold = geekwala.ThresholdCritical
	default:
		gate.SeverityThreshold = geekwala.ThresholdNone
	}

	if config.EPSSThreshold != "" {
		epss, err := strconv.ParseFloat(strings.TrimSpace(config.EPSSThreshold), 64)
		if err != nil || math.IsNaN(epss) || epss < 0 || epss > 1 {
			return gate, invalid("Invalid epss-threshold: %s. Must be a number between 0.0 and 1.0", config.EPSSThreshold)
		}
		gate.EPSSThreshold = &epss
	}
	return gate, nil
}

func checkOutputFormats(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		raw = OutputSummary
	}
	var formats []string
	for _, f := range strings.Split(raw, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if !validOutputFormats[f] {
			return nil, invalid("Invalid output-format: %s. Valid values: summary, json, table", f)
		}
		formats = append(formats, f)
	}
	return formats, nil
}

// ResolvePath resolves path against the workspace and rejects paths that escape it.
func ResolvePath(workspace, path, input string) (string, error) {
	resolved := path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(workspace, path)
	}
	resolved = filepath.Clean(resolved)
	root := filepath.Clean(workspace)
	if resolved != root && !strings.HasPrefix(resolved, root+string(filepath.Separator)) {
		return "", invalid("%s must be within the workspace directory. Got: %s", input, path)
	}
	return resolved, nil
}

func isValidURL(value string) bool {
	u, err := url.Parse(value)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
