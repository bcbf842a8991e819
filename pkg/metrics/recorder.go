package metrics

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	"github.com/geekwala/security-scan-action/pkg/etc"
	"github.com/geekwala/security-scan-action/pkg/geekwala"
	"github.com/geekwala/security-scan-action/pkg/risk"
)

const namespace = "geekwala_scan"

// Recorder collects the metrics of a single run on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	scans           *prometheus.CounterVec
	duration        prometheus.Histogram
	retries         *prometheus.CounterVec
	packages        *prometheus.GaugeVec
	vulnerabilities *prometheus.GaugeVec
	ignored         prometheus.Gauge
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Number of scans by gate status.",
		}, []string{"status"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Duration of scans including retries.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_retries_total",
			Help:      "Number of retried scan requests by error type.",
		}, []string{"type"}),
		packages: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "packages",
			Help:      "Number of scanned packages by state.",
		}, []string{"state"}),
		vulnerabilities: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "vulnerabilities",
			Help:      "Number of active vulnerabilities by severity.",
		}, []string{"severity"}),
		ignored: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ignored_vulnerabilities",
			Help:      "Number of vulnerabilities suppressed by ignore rules.",
		}),
	}
	r.registry.MustRegister(r.scans, r.duration, r.retries, r.packages, r.vulnerabilities, r.ignored)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) ObserveScan(status risk.Status, duration time.Duration) {
	r.scans.WithLabelValues(string(status)).Inc()
	r.duration.Observe(duration.Seconds())
}

func (r *Recorder) ObserveRetry(errorType string) {
	if errorType == "" {
		errorType = "unknown"
	}
	r.retries.WithLabelValues(errorType).Inc()
}

func (r *Recorder) SetResult(summary geekwala.Summary, counts risk.SeverityCounts, ignored int) {
	r.packages.WithLabelValues("total").Set(float64(summary.TotalPackages))
	r.packages.WithLabelValues("vulnerable").Set(float64(summary.VulnerablePackages))
	r.packages.WithLabelValues("safe").Set(float64(summary.SafePackages))

	for _, s := range []geekwala.Severity{geekwala.SevCritical, geekwala.SevHigh, geekwala.SevMedium, geekwala.SevLow, geekwala.SevUnknown} {
		r.vulnerabilities.WithLabelValues(strings.ToLower(s.String())).Set(float64(counts.Get(s)))
	}
	r.ignored.Set(float64(ignored))
}

// Push sends the collected metrics to the Pushgateway, replacing the group
// identified by the job and the grouping labels.
func (r *Recorder) Push(ctx context.Context, cfg etc.Metrics, client *http.Client, grouping map[string]string) error {
	pusher := push.New(cfg.PushgatewayURL, cfg.Job).
		Gatherer(r.registry).
		Client(client)
	for name, value := range grouping {
		pusher = pusher.Grouping(name, value)
	}

	log.WithFields(log.Fields{
		"url": cfg.PushgatewayURL,
		"job": cfg.Job,
	}).Debug("Pushing metrics")

	if err := pusher.PushContext(ctx); err != nil {
		return xerrors.Errorf("pushing metrics: %w", err)
	}
	return nil
}
