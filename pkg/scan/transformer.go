package scan

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/geekwala/security-scan-action/pkg/geekwala"
	"github.com/geekwala/security-scan-action/pkg/ignore"
	"github.com/geekwala/security-scan-action/pkg/risk"
)

// Clock wraps the Now method. Introduced to allow replacing the global state with fixed clocks to facilitate testing.
// Now returns the current time.
type Clock interface {
	Now() time.Time
}

type SystemClock struct {
}

func (c *SystemClock) Now() time.Time {
	return time.Now()
}

// Annotated is a scan response after ignore rules were applied.
type Annotated struct {
	Response       geekwala.Response
	Summary        geekwala.Summary
	SeverityCounts risk.SeverityCounts
	IgnoredCount   int
}

// Transformer wraps the Transform method.
// Transform marks ignored vulnerabilities of the API response and recomputes its summary.
type Transformer interface {
	Transform(resp geekwala.Response, ignores *ignore.Config) Annotated
}

type transformer struct {
	clock Clock
}

// NewTransformer constructs a Transformer with the given Clock. The clock decides which ignore rules expired.
func NewTransformer(clock Clock) Transformer {
	return &transformer{
		clock: clock,
	}
}

func (t *transformer) Transform(resp geekwala.Response, ignores *ignore.Config) Annotated {
	if resp.Failed() {
		return Annotated{Response: resp}
	}

	data := *resp.Data
	ignoredCount := 0
	if ignores != nil {
		data.Results, ignoredCount = ignore.Suppress(data.Results, *ignores, t.clock.Now())
	}
	data.Summary = risk.RecomputeSummary(data.Results)
	resp.Data = &data

	active := risk.ActiveVulnerabilities(data.Results)
	for _, v := range active {
		if risk.HasUnscoredVector(v) {
			log.WithField("id", v.ID).Warn("Vulnerability carries only a CVSS vector and is classified as UNKNOWN")
		}
	}

	return Annotated{
		Response:       resp,
		Summary:        data.Summary,
		SeverityCounts: risk.CountBySeverity(active),
		IgnoredCount:   ignoredCount,
	}
}
