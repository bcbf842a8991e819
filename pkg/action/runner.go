package action

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	"github.com/geekwala/security-scan-action/pkg/client"
	"github.com/geekwala/security-scan-action/pkg/detector"
	"github.com/geekwala/security-scan-action/pkg/etc"
	"github.com/geekwala/security-scan-action/pkg/ext"
	"github.com/geekwala/security-scan-action/pkg/ignore"
	"github.com/geekwala/security-scan-action/pkg/metrics"
	"github.com/geekwala/security-scan-action/pkg/persistence"
	"github.com/geekwala/security-scan-action/pkg/persistence/redis"
	"github.com/geekwala/security-scan-action/pkg/redisx"
	"github.com/geekwala/security-scan-action/pkg/report"
	"github.com/geekwala/security-scan-action/pkg/risk"
	"github.com/geekwala/security-scan-action/pkg/scan"
)

const metricsPushTimeout = 10 * time.Second

type RunnerOption func(*Runner)

// WithClientOptions passes options to the API client, e.g. a retry policy.
func WithClientOptions(opts ...client.Option) RunnerOption {
	return func(r *Runner) {
		r.clientOptions = append(r.clientOptions, opts...)
	}
}

// WithClock replaces the system clock.
func WithClock(clock scan.Clock) RunnerOption {
	return func(r *Runner) {
		r.clock = clock
	}
}

// Runner executes a scan the way the GitHub Action step does: detect, scan,
// suppress, report and gate.
type Runner struct {
	info          etc.BuildInfo
	ambassador    ext.Ambassador
	stdout        io.Writer
	clock         scan.Clock
	clientOptions []client.Option
}

func NewRunner(info etc.BuildInfo, ambassador ext.Ambassador, stdout io.Writer, opts ...RunnerOption) *Runner {
	r := &Runner{
		info:       info,
		ambassador: ambassador,
		stdout:     stdout,
		clock:      &scan.SystemClock{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run returns the status of the scan. A non-nil error always comes with StatusError
// and has already been reported to the workflow.
func (r *Runner) Run(ctx context.Context, config etc.Config) (risk.Status, error) {
	Mask(r.stdout, config.API.Token)
	outputs := NewOutputs(config.Report.GitHubOutput, r.ambassador)

	status, err := r.run(ctx, config, outputs)
	if err != nil {
		r.Fail(err, outputs, config.Report.StepSummary)
		return risk.StatusError, err
	}
	return status, nil
}

// Fail reports an error that ended the run.
func (r *Runner) Fail(err error, outputs *Outputs, stepSummary string) {
	var apiErr *client.APIError
	var validationErr *etc.ValidationError
	var notFoundErr *detector.NotFoundError
	if errors.As(err, &apiErr) || errors.As(err, &validationErr) || errors.As(err, &notFoundErr) {
		log.Error(err.Error())
	} else {
		log.Errorf("Action failed: %v", err)
	}
	if tip := Tip(err); tip != "" {
		log.Error("💡 Tip: " + tip)
	}

	if outErr := outputs.Set(OutputScanStatus, string(risk.StatusError)); outErr != nil {
		log.WithError(outErr).Warn("Cannot set scan status output")
	}
	if sumErr := AppendSummary(r.ambassador, stepSummary, report.MarkdownError(err.Error())); sumErr != nil {
		log.WithError(sumErr).Warn("Cannot write step summary")
	}
}

func (r *Runner) run(ctx context.Context, config etc.Config, outputs *Outputs) (risk.Status, error) {
	log.Info("🛡️ GeekWala Security Scan starting...")
	log.Info("Validating inputs...")
	settings, err := etc.Check(config)
	if err != nil {
		return risk.StatusError, err
	}

	filePath, fileName, content, err := r.readDependencyFile(settings)
	if err != nil {
		return risk.StatusError, err
	}

	var ignores *ignore.Config
	if settings.IgnoreFile != "" {
		if ignores, err = ignore.Load(r.ambassador, settings.IgnoreFile); err != nil {
			return risk.StatusError, err
		}
	}

	recorder := metrics.NewRecorder()
	apiClient := client.New(client.Config{
		BaseURL:       config.API.BaseURL,
		Token:         config.API.Token,
		Timeout:       config.API.Timeout(),
		RetryAttempts: config.API.RetryAttempts,
		UserAgent:     fmt.Sprintf("%s/%s", client.DefaultUserAgent, r.info.Version),
	}, append([]client.Option{client.WithRetryHook(func(_ int, err error, _ time.Duration) {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			recorder.ObserveRetry(string(apiErr.Type))
			return
		}
		recorder.ObserveRetry("")
	})}, r.clientOptions...)...)

	opts := []scan.Option{scan.WithRecorder(recorder)}
	if store, closeStore := r.newStore(ctx, config); store != nil {
		defer closeStore()
		opts = append(opts, scan.WithStore(store))
	}
	controller := scan.NewController(apiClient, scan.NewTransformer(r.clock), r.clock, opts...)

	log.Info("Calling GeekWala API...")
	outcome, err := controller.Scan(ctx, scan.Request{
		FileName: fileName,
		Content:  content,
		Ignores:  ignores,
		Gate:     settings.Gate,
	})
	defer r.pushMetrics(config.Metrics, recorder, fileName)
	if err != nil {
		return risk.StatusError, err
	}
	if outcome.Response.Failed() {
		message := outcome.Response.Error
		if message == "" {
			message = "Scan failed with unknown error"
		}
		return risk.StatusError, xerrors.New(message)
	}

	log.Info("✅ Scan completed successfully")
	log.Infof("Total packages: %d", outcome.Summary.TotalPackages)
	log.Infof("Vulnerable packages: %d", outcome.Summary.VulnerablePackages)
	if outcome.IgnoredCount > 0 {
		log.Infof("Suppressed %d ignored %s", outcome.IgnoredCount, pluralize(outcome.IgnoredCount))
	}
	if previous := outcome.Previous; previous != nil && previous.Result != nil && previous.Result.Status != outcome.Decision.Status {
		log.Warnf("Scan status changed from %s to %s since %s", previous.Result.Status, outcome.Decision.Status,
			previous.StartedAt.Format(time.RFC3339))
	}

	if err = r.report(settings, outputs, config.Report.StepSummary, filePath, fileName, outcome); err != nil {
		return risk.StatusError, err
	}

	if outcome.Decision.ShouldFail {
		log.Error(outcome.Decision.Reason())
	} else {
		log.Infof("✅ Scan passed! Status: %s", outcome.Decision.Status)
	}
	return outcome.Decision.Status, nil
}

func (r *Runner) readDependencyFile(settings etc.Settings) (filePath, fileName, content string, err error) {
	d := detector.New(r.ambassador)
	if settings.FilePath != "" {
		log.Infof("Using specified file: %s", settings.FilePath)
		if err = d.Validate(settings.FilePath); err != nil {
			return
		}
		filePath = settings.FilePath
	} else {
		log.Info("Auto-detecting dependency file...")
		if filePath, err = d.Detect(settings.Workspace); err != nil {
			return
		}
		log.Infof("Detected file: %s", filePath)
	}

	fileName = filePath
	if rel, relErr := filepath.Rel(settings.Workspace, filePath); relErr == nil {
		fileName = filepath.ToSlash(rel)
	}

	log.Infof("Reading file: %s", fileName)
	if content, err = d.Read(filePath); err != nil {
		return
	}
	log.Infof("File size: %.2fKB", float64(len(content))/1024)
	return
}

func (r *Runner) report(settings etc.Settings, outputs *Outputs, stepSummary, filePath, fileName string, outcome scan.Outcome) error {
	if err := outputs.Set(OutputIgnoredCount, strconv.Itoa(outcome.IgnoredCount)); err != nil {
		return err
	}
	if err := outputs.SetAll(ScanOutputs(outcome.Response, outcome.Decision.Status)); err != nil {
		return err
	}

	if settings.SARIFFile != "" {
		log.Infof("Generating SARIF report: %s", settings.SARIFFile)
		if err := r.writeJSON(settings.SARIFFile, report.SARIF(outcome.Response, fileName, r.info.Version)); err != nil {
			return xerrors.Errorf("writing SARIF report: %w", err)
		}
		if err := outputs.Set(OutputSARIFFile, settings.SARIFFile); err != nil {
			return err
		}
	}

	if settings.HasOutput(etc.OutputSummary) {
		if err := AppendSummary(r.ambassador, stepSummary, report.Markdown(outcome.Response, fileName)); err != nil {
			return err
		}
	}

	if settings.HasOutput(etc.OutputTable) {
		if err := report.Table(r.stdout, outcome.Response); err != nil {
			return err
		}
	}

	if settings.HasOutput(etc.OutputJSON) {
		jsonReport := report.JSON(outcome.Response, fileName, r.info.Version, r.clock.Now(), outcome.Duration)
		if settings.JSONFile != "" {
			if err := r.writeJSON(settings.JSONFile, jsonReport); err != nil {
				return xerrors.Errorf("writing JSON report: %w", err)
			}
			log.Infof("JSON report saved to: %s", settings.JSONFile)
		} else if err := report.Encode(r.stdout, jsonReport); err != nil {
			return err
		}
	}

	log.WithFields(log.Fields{
		"file":        filePath,
		"scan_job_id": outcome.ScanJobID,
	}).Debug("Reports generated")
	return nil
}

func (r *Runner) writeJSON(path string, v interface{}) error {
	var buf bytes.Buffer
	if err := report.Encode(&buf, v); err != nil {
		return err
	}
	return r.ambassador.WriteFile(path, buf.Bytes())
}

// newStore connects the optional scan history. Connection problems are logged and disable the history.
func (r *Runner) newStore(ctx context.Context, config etc.Config) (persistence.Store, func()) {
	if !config.RedisPool.Enabled() {
		return nil, nil
	}
	rdb, err := redisx.Connect(ctx, config.RedisPool)
	if err != nil {
		log.WithError(err).Warn("Scan history disabled")
		return nil, nil
	}
	return redis.NewStore(config.RedisStore, rdb), func() {
		_ = rdb.Close()
	}
}

func (r *Runner) pushMetrics(cfg etc.Metrics, recorder *metrics.Recorder, fileName string) {
	if !cfg.Enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), metricsPushTimeout)
	defer cancel()

	grouping := map[string]string{"file": fileName}
	if repository, ok := r.ambassador.LookupEnv("GITHUB_REPOSITORY"); ok && repository != "" {
		grouping["repository"] = repository
	}
	if err := recorder.Push(ctx, cfg, cleanhttp.DefaultClient(), grouping); err != nil {
		log.WithError(err).Warn("Cannot push metrics")
	}
}

func pluralize(n int) string {
	if n == 1 {
		return "vulnerability"
	}
	return "vulnerabilities"
}
