// Package raptometrics registers the process-internal counters and
// gauges backing the MEM command family. These are read directly by
// the resolver's MEM handler (DB reads the configured capacity and the
// Store instead); there is no HTTP
// metrics endpoint in this server (observability instrumentation is
// in scope, observability endpoints are not).
package raptometrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every counter/gauge the MEM command exposes.
// The authoritative values live in the atomic fields below; the
// prometheus collectors mirror them for anything that later wants to
// scrape this process, the same way the storage engine's own
// instrumentation registers gauges and counters against a registry.
type Metrics struct {
	registry *prometheus.Registry

	live  atomic.Int64
	peak  atomic.Int64
	total atomic.Int64
	free  atomic.Int64
	alloc atomic.Int64

	liveGauge  prometheus.Gauge
	peakGauge  prometheus.Gauge
	totalGauge prometheus.Gauge
	freeGauge  prometheus.Gauge
	allocGauge prometheus.Gauge
}

// New creates a Metrics set and registers its collectors against a
// fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		liveGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "raptodb", Name: "live_bytes",
			Help: "Bytes currently occupied by live objects.",
		}),
		peakGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "raptodb", Name: "peak_bytes",
			Help: "Highest live_bytes observed since the last RESET-PEAK.",
		}),
		totalGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "raptodb", Name: "total_bytes_allocated",
			Help: "Cumulative bytes ever allocated, since the last RESET-TOTAL.",
		}),
		freeGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "raptodb", Name: "free_count",
			Help: "Cumulative object frees.",
		}),
		allocGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "raptodb", Name: "alloc_count",
			Help: "Cumulative object allocations, since the last RESET-COUNT.",
		}),
	}
	m.RegisterMetrics(m.registry)
	return m
}

// RegisterMetrics registers every collector against registry.
func (m *Metrics) RegisterMetrics(registry *prometheus.Registry) {
	registry.MustRegister(m.liveGauge, m.peakGauge, m.totalGauge, m.freeGauge, m.allocGauge)
}

// ObserveLive records the live-byte total after a mutation, updating
// the running peak if this is a new high.
func (m *Metrics) ObserveLive(liveBytes int64) {
	m.live.Store(liveBytes)
	m.liveGauge.Set(float64(liveBytes))
	for {
		cur := m.peak.Load()
		if liveBytes <= cur {
			break
		}
		if m.peak.CompareAndSwap(cur, liveBytes) {
			m.peakGauge.Set(float64(liveBytes))
			break
		}
	}
}

// AllocatedBytes records one allocation event of n bytes.
func (m *Metrics) AllocatedBytes(n int64) {
	m.total.Add(n)
	m.alloc.Add(1)
	m.totalGauge.Set(float64(m.total.Load()))
	m.allocGauge.Set(float64(m.alloc.Load()))
}

// Freed records one free event.
func (m *Metrics) Freed() {
	m.free.Add(1)
	m.freeGauge.Set(float64(m.free.Load()))
}

// Live returns the current live byte count.
func (m *Metrics) Live() int64 { return m.live.Load() }

// Peak returns the highest live byte count since the last ResetPeak.
func (m *Metrics) Peak() int64 { return m.peak.Load() }

// Total returns the cumulative bytes allocated since the last ResetTotal.
func (m *Metrics) Total() int64 { return m.total.Load() }

// Free returns the cumulative free count.
func (m *Metrics) Free() int64 { return m.free.Load() }

// Alloc returns the cumulative allocation count since the last ResetCount.
func (m *Metrics) Alloc() int64 { return m.alloc.Load() }

// ResetPeak zeroes the peak counter, the MEM RESET-PEAK command.
func (m *Metrics) ResetPeak() { m.peak.Store(0); m.peakGauge.Set(0) }

// ResetTotal zeroes the cumulative allocation byte counter, the MEM
// RESET-TOTAL command.
func (m *Metrics) ResetTotal() { m.total.Store(0); m.totalGauge.Set(0) }

// ResetCount zeroes the cumulative allocation count, the MEM
// RESET-COUNT command.
func (m *Metrics) ResetCount() { m.alloc.Store(0); m.allocGauge.Set(0) }
