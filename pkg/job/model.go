package job

import (
	"fmt"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/geekwala/security-scan-action/pkg/geekwala"
	"github.com/geekwala/security-scan-action/pkg/risk"
)

type ScanJobStatus int

const (
	Pending ScanJobStatus = iota
	Finished
	Failed
)

func (s ScanJobStatus) String() string {
	if s < 0 || s > 2 {
		return "Unknown"
	}
	return [...]string{
		"Pending",
		"Finished",
		"Failed",
	}[s]
}

// ScanJobKey uniquely identifies a scan of a dependency file.
type ScanJobKey struct {
	ID       string        `json:"id"`
	FileName string        `json:"file_name"`
	Digest   digest.Digest `json:"digest"`
}

func (k ScanJobKey) String() string {
	return fmt.Sprintf("%s:%s", k.ID, k.FileName)
}

// Result is what a finished scan job reports.
type Result struct {
	Status         risk.Status         `json:"status"`
	Reasons        []string            `json:"reasons,omitempty"`
	Summary        geekwala.Summary    `json:"summary"`
	SeverityCounts risk.SeverityCounts `json:"severity_counts"`
	IgnoredCount   int                 `json:"ignored_count"`
}

type ScanJob struct {
	Key        ScanJobKey    `json:"key"`
	Status     ScanJobStatus `json:"status"`
	Error      string        `json:"error,omitempty"`
	Result     *Result       `json:"result,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
}

func (s *ScanJob) ID() string {
	return s.Key.ID
}
