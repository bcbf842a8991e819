package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	"github.com/geekwala/security-scan-action/pkg/etc"
	"github.com/geekwala/security-scan-action/pkg/job"
	"github.com/geekwala/security-scan-action/pkg/persistence"
)

type store struct {
	cfg etc.RedisStore
	rdb *redis.Client
	now func() time.Time
}

func NewStore(cfg etc.RedisStore, rdb *redis.Client) persistence.Store {
	return &store{
		cfg: cfg,
		rdb: rdb,
		now: time.Now,
	}
}

func (s *store) Create(ctx context.Context, scanJob job.ScanJob) error {
	bytes, err := json.Marshal(scanJob)
	if err != nil {
		return xerrors.Errorf("marshalling scan job: %w", err)
	}

	key := s.getKeyForScanJob(scanJob.ID())

	log.WithFields(log.Fields{
		"scan_job_id":     scanJob.ID(),
		"scan_job_status": scanJob.Status.String(),
		"redis_key":       key,
		"expire":          s.cfg.ScanJobTTL.Seconds(),
	}).Debug("Saving scan job")

	created, err := s.rdb.SetNX(ctx, key, bytes, s.cfg.ScanJobTTL).Result()
	if err != nil {
		return xerrors.Errorf("creating scan job: %w", err)
	}
	if !created {
		return xerrors.Errorf("creating scan job: duplicate key: %s", key)
	}

	latestKey := s.getKeyForLatest(scanJob.Key.FileName)
	if err = s.rdb.Set(ctx, latestKey, scanJob.ID(), s.cfg.ScanJobTTL).Err(); err != nil {
		return xerrors.Errorf("indexing scan job: %w", err)
	}

	return nil
}

func (s *store) update(ctx context.Context, scanJob job.ScanJob) error {
	bytes, err := json.Marshal(scanJob)
	if err != nil {
		return xerrors.Errorf("marshalling scan job: %w", err)
	}

	key := s.getKeyForScanJob(scanJob.ID())

	log.WithFields(log.Fields{
		"scan_job_id":     scanJob.ID(),
		"scan_job_status": scanJob.Status.String(),
		"redis_key":       key,
		"expire":          s.cfg.ScanJobTTL.Seconds(),
	}).Debug("Updating scan job")

	updated, err := s.rdb.SetXX(ctx, key, bytes, s.cfg.ScanJobTTL).Result()
	if err != nil {
		return xerrors.Errorf("updating scan job: %w", err)
	}
	if !updated {
		return xerrors.Errorf("updating scan job: key not found: %s", key)
	}

	return nil
}

func (s *store) Get(ctx context.Context, scanJobID string) (*job.ScanJob, error) {
	key := s.getKeyForScanJob(scanJobID)
	value, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, xerrors.Errorf("getting scan job: %w", err)
	}

	var scanJob job.ScanJob
	if err = json.Unmarshal(value, &scanJob); err != nil {
		return nil, xerrors.Errorf("unmarshalling scan job: %w", err)
	}

	return &scanJob, nil
}

func (s *store) Latest(ctx context.Context, fileName string) (*job.ScanJob, error) {
	scanJobID, err := s.rdb.Get(ctx, s.getKeyForLatest(fileName)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, xerrors.Errorf("getting latest scan job: %w", err)
	}
	return s.Get(ctx, scanJobID)
}

func (s *store) UpdateStatus(ctx context.Context, scanJobID string, newStatus job.ScanJobStatus, error ...string) error {
	log.WithFields(log.Fields{
		"scan_job_id": scanJobID,
		"new_status":  newStatus.String(),
	}).Debug("Updating status for scan job")

	scanJob, err := s.Get(ctx, scanJobID)
	if err != nil {
		return err
	}
	if scanJob == nil {
		return xerrors.Errorf("scan job not found: %s", scanJobID)
	}

	scanJob.Status = newStatus
	if len(error) > 0 {
		scanJob.Error = error[0]
	}
	if newStatus != job.Pending {
		finishedAt := s.now().UTC()
		scanJob.FinishedAt = &finishedAt
	}

	return s.update(ctx, *scanJob)
}

func (s *store) UpdateResult(ctx context.Context, scanJobID string, result job.Result) error {
	log.WithFields(log.Fields{
		"scan_job_id": scanJobID,
		"status":      result.Status,
	}).Debug("Updating result for scan job")

	scanJob, err := s.Get(ctx, scanJobID)
	if err != nil {
		return err
	}
	if scanJob == nil {
		return xerrors.Errorf("scan job not found: %s", scanJobID)
	}

	scanJob.Result = &result
	return s.update(ctx, *scanJob)
}

func (s *store) getKeyForScanJob(scanJobID string) string {
	return fmt.Sprintf("%s:scan-job:%s", s.cfg.Namespace, scanJobID)
}

func (s *store) getKeyForLatest(fileName string) string {
	return fmt.Sprintf("%s:latest:%s", s.cfg.Namespace, fileName)
}
