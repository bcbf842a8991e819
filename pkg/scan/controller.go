package scan

import (
	"context"
	_ "crypto/sha256" // registers the hash behind digest.Canonical
	"time"

	"github.com/google/uuid"
	"github.com/opencontainers/go-digest"
	log "github.com/sirupsen/logrus"

	"github.com/geekwala/security-scan-action/pkg/client"
	"github.com/geekwala/security-scan-action/pkg/ignore"
	"github.com/geekwala/security-scan-action/pkg/job"
	"github.com/geekwala/security-scan-action/pkg/metrics"
	"github.com/geekwala/security-scan-action/pkg/persistence"
	"github.com/geekwala/security-scan-action/pkg/risk"
)

type Request struct {
	// FileName is the path of the dependency file relative to the workspace.
	FileName string
	Content  string
	// Ignores is nil when no ignore file is in use.
	Ignores *ignore.Config
	Gate    risk.GateConfig
}

type Outcome struct {
	Annotated
	ScanJobID string
	Decision  risk.Decision
	Duration  time.Duration
	// Previous is the last recorded scan of the same file, if any.
	Previous *job.ScanJob
}

type Controller interface {
	Scan(ctx context.Context, req Request) (Outcome, error)
}

type Option func(*controller)

// WithStore records the history of scans. Store failures are logged and never fail a scan.
func WithStore(store persistence.Store) Option {
	return func(c *controller) {
		c.store = store
	}
}

// WithRecorder records scan metrics.
func WithRecorder(recorder *metrics.Recorder) Option {
	return func(c *controller) {
		c.recorder = recorder
	}
}

type controller struct {
	client      client.Client
	transformer Transformer
	clock       Clock
	store       persistence.Store
	recorder    *metrics.Recorder
	newID       func() string
}

func NewController(client client.Client, transformer Transformer, clock Clock, opts ...Option) Controller {
	c := &controller{
		client:      client,
		transformer: transformer,
		clock:       clock,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Scan submits the dependency file, applies the ignore rules and evaluates the gate.
// An error is returned only when no response could be obtained from the API.
func (c *controller) Scan(ctx context.Context, req Request) (Outcome, error) {
	startedAt := c.clock.Now()
	scanJob := job.ScanJob{
		Key: job.ScanJobKey{
			ID:       c.newID(),
			FileName: req.FileName,
			Digest:   digest.FromString(req.Content),
		},
		Status:    job.Pending,
		StartedAt: startedAt.UTC(),
	}
	previous := c.previousJob(ctx, scanJob.Key)
	history := c.createJob(ctx, scanJob)

	resp, err := c.client.RunScan(ctx, req.FileName, req.Content)
	duration := c.clock.Now().Sub(startedAt)
	if err != nil {
		history.fail(ctx, err.Error())
		c.observe(risk.StatusError, duration, nil)
		return Outcome{
			ScanJobID: scanJob.ID(),
			Decision:  risk.Decision{ShouldFail: true, Reasons: []string{err.Error()}, Status: risk.StatusError},
			Duration:  duration,
			Previous:  previous,
		}, err
	}

	outcome := Outcome{
		Annotated: c.transformer.Transform(resp, req.Ignores),
		ScanJobID: scanJob.ID(),
		Duration:  duration,
		Previous:  previous,
	}
	outcome.Decision = risk.Evaluate(outcome.Response, req.Gate)

	log.WithFields(log.Fields{
		"scan_job_id": outcome.ScanJobID,
		"status":      outcome.Decision.Status,
		"duration":    duration.String(),
	}).Debug("Scan evaluated")

	if outcome.Response.Failed() {
		message := resp.Error
		if message == "" {
			message = "Scan failed with unknown error"
		}
		history.fail(ctx, message)
		c.observe(risk.StatusError, duration, nil)
		return outcome, nil
	}

	history.finish(ctx, job.Result{
		Status:         outcome.Decision.Status,
		Reasons:        outcome.Decision.Reasons,
		Summary:        outcome.Summary,
		SeverityCounts: outcome.SeverityCounts,
		IgnoredCount:   outcome.IgnoredCount,
	})
	c.observe(outcome.Decision.Status, duration, &outcome.Annotated)
	return outcome, nil
}

func (c *controller) observe(status risk.Status, duration time.Duration, annotated *Annotated) {
	if c.recorder == nil {
		return
	}
	c.recorder.ObserveScan(status, duration)
	if annotated != nil {
		c.recorder.SetResult(annotated.Summary, annotated.SeverityCounts, annotated.IgnoredCount)
	}
}

// jobHistory updates a scan job that was successfully created in the store.
type jobHistory struct {
	store persistence.Store
	id    string
}

// previousJob looks up the last scan of the file before the new job replaces it as latest.
func (c *controller) previousJob(ctx context.Context, key job.ScanJobKey) *job.ScanJob {
	if c.store == nil {
		return nil
	}
	previous, err := c.store.Latest(ctx, key.FileName)
	if err != nil {
		log.WithError(err).WithField("file", key.FileName).Warn("Cannot read scan history")
		return nil
	}
	if previous == nil {
		return nil
	}

	fields := log.Fields{
		"scan_job_id": previous.ID(),
		"status":      previous.Status.String(),
		"started_at":  previous.StartedAt,
		"unchanged":   previous.Key.Digest == key.Digest,
	}
	if previous.Result != nil {
		fields["result"] = previous.Result.Status
		fields["vulnerable_packages"] = previous.Result.Summary.VulnerablePackages
	}
	log.WithFields(fields).Infof("Previous scan of %s found", key.FileName)
	return previous
}

func (c *controller) createJob(ctx context.Context, scanJob job.ScanJob) *jobHistory {
	if c.store == nil {
		return nil
	}
	if err := c.store.Create(ctx, scanJob); err != nil {
		log.WithError(err).WithField("scan_job_id", scanJob.ID()).Warn("Cannot record scan history")
		return nil
	}
	return &jobHistory{store: c.store, id: scanJob.ID()}
}

func (h *jobHistory) fail(ctx context.Context, message string) {
	if h == nil {
		return
	}
	if err := h.store.UpdateStatus(ctx, h.id, job.Failed, message); err != nil {
		log.WithError(err).WithField("scan_job_id", h.id).Warn("Cannot record failed scan")
	}
}

func (h *jobHistory) finish(ctx context.Context, result job.Result) {
	if h == nil {
		return
	}
	if err := h.store.UpdateResult(ctx, h.id, result); err != nil {
		log.WithError(err).WithField("scan_job_id", h.id).Warn("Cannot record scan result")
		return
	}
	if err := h.store.UpdateStatus(ctx, h.id, job.Finished); err != nil {
		log.WithError(err).WithField("scan_job_id", h.id).Warn("Cannot record finished scan")
	}
}
