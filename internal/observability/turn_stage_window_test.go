package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTurnStageWindowSnapshot(t *testing.T) {
	w := newTurnStageWindow(8)
	w.Observe(StageTranscribe, 500)
	w.Observe(StageTranscribe, 700)
	w.Observe(StageTranscribe, 900)
	w.Observe("", 100)
	w.Observe(StageComplete, -1)
	w.ObserveIndicator("barge_in")
	w.ObserveIndicator("barge_in")

	snap := w.Snapshot()
	if snap.WindowSize != 8 {
		t.Fatalf("WindowSize = %d, want 8", snap.WindowSize)
	}
	if len(snap.Stages) != 1 {
		t.Fatalf("len(Stages) = %d, want 1", len(snap.Stages))
	}
	s := snap.Stages[0]
	if s.Stage != StageTranscribe {
		t.Fatalf("Stage = %q, want %q", s.Stage, StageTranscribe)
	}
	if s.Samples != 3 {
		t.Fatalf("Samples = %d, want 3", s.Samples)
	}
	if s.LastMS != 900 || s.MaxMS != 900 {
		t.Fatalf("LastMS/MaxMS = %.2f/%.2f, want 900/900", s.LastMS, s.MaxMS)
	}
	if s.P50MS != 700 {
		t.Fatalf("P50MS = %.2f, want 700", s.P50MS)
	}
	if s.P95MS <= 700 || s.P95MS > 900 {
		t.Fatalf("P95MS = %.2f, want (700,900]", s.P95MS)
	}
	if s.TargetP95MS != 1200 {
		t.Fatalf("TargetP95MS = %.2f, want 1200", s.TargetP95MS)
	}
	if len(snap.Indicators) != 1 || snap.Indicators[0].Count != 2 {
		t.Fatalf("Indicators = %+v, want one barge_in x2", snap.Indicators)
	}
}

func TestTurnStageWindowWrapsAround(t *testing.T) {
	w := newTurnStageWindow(3)
	for _, v := range []float64{10, 20, 30, 40, 50} {
		w.Observe(StageSynthesize, v)
	}

	snap := w.Snapshot()
	require.Len(t, snap.Stages, 1)
	assert.Equal(t, 3, snap.Stages[0].Samples)
	assert.Equal(t, 40.0, snap.Stages[0].AvgMS)
	assert.Equal(t, 50.0, snap.Stages[0].LastMS)
}

func TestMetricsObserveTurnStageFeedsWindow(t *testing.T) {
	reg := prometheus.NewRegistry()
	prev := prometheus.DefaultRegisterer
	prometheus.DefaultRegisterer = reg
	t.Cleanup(func() { prometheus.DefaultRegisterer = prev })

	m := NewMetrics("window_test")
	m.ObserveTurnStage(StageComplete, 1500*time.Millisecond)
	m.ObserveTurnIndicator("empty_capture")

	snap := m.SnapshotTurnStages()
	require.Len(t, snap.Stages, 1)
	assert.Equal(t, StageComplete, snap.Stages[0].Stage)
	assert.Equal(t, 1500.0, snap.Stages[0].LastMS)
	require.Len(t, snap.Indicators, 1)
	assert.Equal(t, "empty_capture", snap.Indicators[0].Name)

	var nilMetrics *Metrics
	nilMetrics.ObserveTurnStage(StageComplete, time.Second)
	nilMetrics.ObserveBargeIn()
}
