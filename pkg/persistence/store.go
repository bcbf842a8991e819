package persistence

import (
	"context"

	"github.com/geekwala/security-scan-action/pkg/job"
)

// Store keeps the history of scan jobs.
type Store interface {
	Create(ctx context.Context, scanJob job.ScanJob) error
	Get(ctx context.Context, scanJobID string) (*job.ScanJob, error)
	// Latest returns the most recent scan job of the given dependency file.
	Latest(ctx context.Context, fileName string) (*job.ScanJob, error)
	UpdateStatus(ctx context.Context, scanJobID string, newStatus job.ScanJobStatus, error ...string) error
	UpdateResult(ctx context.Context, scanJobID string, result job.Result) error
}
