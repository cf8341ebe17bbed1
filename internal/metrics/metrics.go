package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/fx"
)

// Metrics holds the service-level prometheus collectors. The gorm pool
// collectors are registered separately by the db module.
type Metrics struct {
	AcquisitionRuns     *prometheus.CounterVec
	AcquisitionOutcomes *prometheus.CounterVec
	Calculations        *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		AcquisitionRuns: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "veldtax",
			Subsystem: "acquisition",
			Name:      "runs_total",
			Help:      "Acquisition pipeline runs, by trigger.",
		}, []string{"trigger"}),
		AcquisitionOutcomes: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "veldtax",
			Subsystem: "acquisition",
			Name:      "outcomes_total",
			Help:      "Terminal acquisition outcomes, by tier.",
		}, []string{"tier"}),
		Calculations: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "veldtax",
			Subsystem: "taxcalc",
			Name:      "calculations_total",
			Help:      "Tax calculations served, by kind.",
		}, []string{"kind"}),
	}
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

var Module = fx.Module("metrics",
	fx.Provide(newRegistry),
	fx.Provide(func(reg *prometheus.Registry) prometheus.Registerer { return reg }),
	fx.Provide(func(reg *prometheus.Registry) prometheus.Gatherer { return reg }),
	fx.Provide(New),
)
