package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssuance_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewIssuance(reg)
	require.NoError(t, err)

	m.ObserveIssuance(OutcomeOK, 2*time.Second)
	m.ObserveIssuance(OutcomeOK, time.Second)
	m.ObserveIssuance("AnchorExpired", time.Second)
	m.RentCacheHit()
	m.RentCacheMiss()
	m.RentCacheMiss()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Issued.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Issued.WithLabelValues("AnchorExpired")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RentCache.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RentCache.WithLabelValues("miss")))
}

func TestIssuance_RegisterTwiceReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewIssuance(reg)
	require.NoError(t, err)
	second, err := NewIssuance(reg)
	require.NoError(t, err)

	second.ObserveIssuance(OutcomeOK, time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(first.Issued.WithLabelValues(OutcomeOK)))
}

func TestIssuance_NilSafe(t *testing.T) {
	var m *Issuance
	assert.NotPanics(t, func() {
		m.ObserveIssuance(OutcomeOK, time.Second)
		m.RentCacheHit()
		m.RentCacheMiss()
	})
}
