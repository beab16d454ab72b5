package poller

import (
	"time"

	"github.com/fiffu/livewatch/lib/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livewatch_poll_cycles_total",
		Help: "Poll cycles by result (completed, dropped)",
	}, []string{"result"})
	checksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livewatch_status_checks_total",
		Help: "Status checks by result (online, offline, error)",
	}, []string{"result"})
	alertsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livewatch_alerts_total",
		Help: "Alerts dispatched on offline to online transitions",
	})
	cycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "livewatch_poll_cycle_duration_seconds",
		Help:    "Wall time of a complete poll cycle",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})
)

// CycleReport summarises one poll cycle.
type CycleReport struct {
	ID        string        `json:"id"`
	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed_ns"`
	Total     int           `json:"total"`
	Online    int           `json:"online"`
	Offline   int           `json:"offline"`
	Errored   int           `json:"errored"`
	Alerted   int           `json:"alerted"`
}

func (r *CycleReport) add(o models.PollOutcome, alerted bool) {
	switch {
	case !o.Ok():
		r.Errored += 1
		checksTotal.WithLabelValues("error").Inc()
	case o.Status.Online:
		r.Online += 1
		checksTotal.WithLabelValues("online").Inc()
	default:
		r.Offline += 1
		checksTotal.WithLabelValues("offline").Inc()
	}
	if alerted {
		r.Alerted += 1
		alertsTotal.Inc()
	}
}

func (r *CycleReport) logArgs() []any {
	args := []any{"cycle_id", r.ID}
	if r.Errored != 0 {
		args = append(args, "errored", r.Errored)
	}
	if r.Online != 0 {
		args = append(args, "online", r.Online)
	}
	if r.Offline != 0 {
		args = append(args, "offline", r.Offline)
	}
	if r.Alerted != 0 {
		args = append(args, "alerted", r.Alerted)
	}
	return append(args, "elapsed_msecs", int(r.Elapsed.Milliseconds()))
}
