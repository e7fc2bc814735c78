package raptometrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNew(t *testing.T) {
	m := New()
	if m == nil {
		t.Fatal("New returned nil")
	}
	if m.Live() != 0 || m.Peak() != 0 || m.Total() != 0 || m.Free() != 0 || m.Alloc() != 0 {
		t.Error("a fresh Metrics should start at all zeroes")
	}
}

func TestObserveLive_TracksPeak(t *testing.T) {
	m := New()

	m.ObserveLive(100)
	if m.Live() != 100 || m.Peak() != 100 {
		t.Fatalf("Live/Peak = %d/%d, want 100/100", m.Live(), m.Peak())
	}

	m.ObserveLive(40)
	if m.Live() != 40 {
		t.Errorf("Live = %d, want 40", m.Live())
	}
	if m.Peak() != 100 {
		t.Errorf("Peak = %d, want 100 (peak must not drop)", m.Peak())
	}

	m.ObserveLive(250)
	if m.Peak() != 250 {
		t.Errorf("Peak = %d, want 250 (new high)", m.Peak())
	}
}

func TestAllocatedBytesAndFreed(t *testing.T) {
	m := New()

	m.AllocatedBytes(64)
	m.AllocatedBytes(16)
	if m.Total() != 80 {
		t.Errorf("Total = %d, want 80", m.Total())
	}
	if m.Alloc() != 2 {
		t.Errorf("Alloc = %d, want 2", m.Alloc())
	}

	m.Freed()
	if m.Free() != 1 {
		t.Errorf("Free = %d, want 1", m.Free())
	}
}

func TestResets(t *testing.T) {
	m := New()
	m.ObserveLive(500)
	m.AllocatedBytes(500)
	m.Freed()

	m.ResetPeak()
	if m.Peak() != 0 {
		t.Errorf("Peak after ResetPeak = %d, want 0", m.Peak())
	}

	m.ResetTotal()
	if m.Total() != 0 {
		t.Errorf("Total after ResetTotal = %d, want 0", m.Total())
	}

	m.ResetCount()
	if m.Alloc() != 0 {
		t.Errorf("Alloc after ResetCount = %d, want 0", m.Alloc())
	}

	// RESET-PEAK/TOTAL/COUNT never touch live or free bookkeeping.
	if m.Live() != 500 {
		t.Errorf("Live = %d, want 500 (untouched by resets)", m.Live())
	}
	if m.Free() != 1 {
		t.Errorf("Free = %d, want 1 (untouched by resets)", m.Free())
	}
}

func TestRegisterMetrics_NoPanicOnFreshRegistry(t *testing.T) {
	m := New()
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("RegisterMetrics against a fresh registry panicked: %v", r)
		}
	}()
	m.RegisterMetrics(prometheus.NewRegistry())
}
