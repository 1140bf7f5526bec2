// internal/infra/metrics/metrics.go
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "narratives_mint"

// OutcomeLabel is the label carrying the issuance result ("ok" or an error kind).
const OutcomeLabel = "outcome"

const OutcomeOK = "ok"

// Issuance groups the collectors of the issuance pipeline.
// All methods are safe on a nil receiver so components can run without metrics.
type Issuance struct {
	Issued    *prometheus.CounterVec
	Duration  *prometheus.HistogramVec
	RentCache *prometheus.CounterVec
}

// NewIssuance creates the collectors and registers them on reg.
// A collector that is already registered is reused.
func NewIssuance(reg prometheus.Registerer) (*Issuance, error) {
	m := &Issuance{
		Issued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "issuances_total",
			Help:      "Issuance attempts by outcome.",
		}, []string{OutcomeLabel}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "issuance_duration_seconds",
			Help:      "Wall time from request to confirmation or failure.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 90},
		}, []string{OutcomeLabel}),
		RentCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rent_cache_lookups_total",
			Help:      "Exempt balance lookups by cache result.",
		}, []string{"result"}),
	}
	if reg == nil {
		return m, nil
	}

	var err error
	if m.Issued, err = register(reg, m.Issued); err != nil {
		return nil, err
	}
	if m.Duration, err = register(reg, m.Duration); err != nil {
		return nil, err
	}
	if m.RentCache, err = register(reg, m.RentCache); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// ObserveIssuance records one finished issuance.
func (m *Issuance) ObserveIssuance(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "error"
	}
	m.Issued.WithLabelValues(outcome).Inc()
	m.Duration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (m *Issuance) RentCacheHit() {
	if m != nil {
		m.RentCache.WithLabelValues("hit").Inc()
	}
}

func (m *Issuance) RentCacheMiss() {
	if m != nil {
		m.RentCache.WithLabelValues("miss").Inc()
	}
}
