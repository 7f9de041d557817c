package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"DailyBriefing/internal/domain"
	"DailyBriefing/internal/ports"
)

const namespace = "dailybriefing"

// Run collects pipeline counters on its own registry so a batch can be
// pushed to a Pushgateway without process-wide collectors.
type Run struct {
	registry *prometheus.Registry

	candidates  prometheus.Counter
	fallbacks   prometheus.Counter
	enriched    prometheus.Counter
	skipped     prometheus.Counter
	degraded    prometheus.Counter
	deliveries  *prometheus.CounterVec
	userRuns    *prometheus.CounterVec
	lastSuccess prometheus.Gauge
	duration    prometheus.Gauge
}

var _ ports.RunObserver = (*Run)(nil)

// NewRun registers every collector on a fresh registry.
func NewRun() *Run {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Run{
		registry: reg,
		candidates: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_collected_total",
			Help:      "Candidates left after history filtering.",
		}),
		fallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selection_fallbacks_total",
			Help:      "Selections that fell back to the first candidates.",
		}),
		enriched: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_enriched_total",
			Help:      "Articles whose content was extracted.",
		}),
		skipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_skipped_total",
			Help:      "Selected articles dropped because extraction failed.",
		}),
		degraded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_degraded_total",
			Help:      "Summaries or briefings replaced by a placeholder.",
		}),
		deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Document deliveries by outcome.",
		}, []string{"outcome"}),
		userRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "user_runs_total",
			Help:      "Per-user runs by terminal stage.",
		}, []string{"stage"}),
		lastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last batch that finished without error.",
		}),
		duration: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Wall time of the last batch.",
		}),
	}
}

// Registry exposes the underlying registry, mostly for tests.
func (r *Run) Registry() *prometheus.Registry { return r.registry }

func (r *Run) CandidatesCollected(n int) { r.candidates.Add(float64(n)) }
func (r *Run) SelectionFallback() { r.fallbacks.Inc() }
func (r *Run) ArticleEnriched() { r.enriched.Inc() }
func (r *Run) ArticleSkipped() { r.skipped.Inc() }
func (r *Run) SummaryDegraded() { r.degraded.Inc() }

func (r *Run) Delivery(ok bool) {
	outcome := "failed"
	if ok {
		outcome = "sent"
	}
	r.deliveries.WithLabelValues(outcome).Inc()
}

func (r *Run) UserRun(stage domain.Stage) {
	r.userRuns.WithLabelValues(string(stage)).Inc()
}

// BatchFinished records the batch wall time and, on success, its end time.
func (r *Run) BatchFinished(started, finished time.Time, err error) {
	r.duration.Set(finished.Sub(started).Seconds())
	if err == nil {
		r.lastSuccess.Set(float64(finished.Unix()))
	}
}

// Pusher sends the registry to a Pushgateway.
type Pusher struct {
	pusher *push.Pusher
}

// NewPusher returns nil when url is empty.
func NewPusher(url, job string, run *Run) *Pusher {
	if url == "" || run == nil {
		return nil
	}
	return &Pusher{pusher: push.New(url, job).Gatherer(run.registry)}
}

// Push replaces the job's metrics on the gateway.
func (p *Pusher) Push(ctx context.Context) error {
	if p == nil {
		return nil
	}
	if err := p.pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
