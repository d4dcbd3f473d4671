package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	Checkouts        prometheus.Counter
	Revenue          prometheus.Counter
	KitchenCompleted prometheus.Counter
	TablesClosed     prometheus.Counter
	MalformedRecords prometheus.Counter
	IDCollisions     prometheus.Counter
	EventsAppended   prometheus.Counter

	// recovery metrics
	ReplayApplied      prometheus.Counter
	ReplaySkipped      prometheus.Counter
	TTRSec             prometheus.Gauge
	LastManifestAgeSec prometheus.Gauge
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	checkouts := prometheus.NewCounter(prometheus.CounterOpts{Name: "pos_checkouts_total"})
	revenue := prometheus.NewCounter(prometheus.CounterOpts{Name: "pos_revenue_total"})
	kitchen := prometheus.NewCounter(prometheus.CounterOpts{Name: "pos_kitchen_completed_total"})
	closed := prometheus.NewCounter(prometheus.CounterOpts{Name: "pos_tables_closed_total"})
	malformed := prometheus.NewCounter(prometheus.CounterOpts{Name: "pos_malformed_records_total"})
	collisions := prometheus.NewCounter(prometheus.CounterOpts{Name: "pos_order_id_collisions_total"})
	appended := prometheus.NewCounter(prometheus.CounterOpts{Name: "pos_changelog_appended_total"})

	applied := prometheus.NewCounter(prometheus.CounterOpts{Name: "pos_replay_applied_total"})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{Name: "pos_replay_skipped_total"})
	ttr := prometheus.NewGauge(prometheus.GaugeOpts{Name: "pos_recovery_ttr_seconds"})
	lastAge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "pos_last_manifest_age_seconds"})

	r.MustRegister(checkouts, revenue, kitchen, closed, malformed, collisions, appended, applied, skipped, ttr, lastAge)
	return &Registry{
		reg:                r,
		Checkouts:          checkouts,
		Revenue:            revenue,
		KitchenCompleted:   kitchen,
		TablesClosed:       closed,
		MalformedRecords:   malformed,
		IDCollisions:       collisions,
		EventsAppended:     appended,
		ReplayApplied:      applied,
		ReplaySkipped:      skipped,
		TTRSec:             ttr,
		LastManifestAgeSec: lastAge,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
