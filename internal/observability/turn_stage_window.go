package observability

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

// Pipeline stage names recorded by the orchestrator.
const (
	StageTranscribe        = "transcribe"
	StageComplete          = "complete"
	StageSynthesize        = "synthesize"
	StageReleaseToSpeaking = "release_to_speaking"
	StageCapture           = "capture"
)

type TurnStageStats struct {
	Stage       string  `json:"stage"`
	Samples     int     `json:"samples"`
	LastMS      float64 `json:"last_ms"`
	AvgMS       float64 `json:"avg_ms"`
	P50MS       float64 `json:"p50_ms"`
	P95MS       float64 `json:"p95_ms"`
	MaxMS       float64 `json:"max_ms"`
	TargetP95MS float64 `json:"target_p95_ms,omitempty"`
}

type TurnIndicator struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type TurnStageSnapshot struct {
	GeneratedAt time.Time        `json:"generated_at"`
	WindowSize  int              `json:"window_size"`
	Stages      []TurnStageStats `json:"stages"`
	Indicators  []TurnIndicator  `json:"indicators,omitempty"`
}

// turnStageWindow keeps the most recent samples per stage in fixed ring buffers.
type turnStageWindow struct {
	mu         sync.RWMutex
	size       int
	rings      map[string]*stageRing
	indicators map[string]int
}

type stageRing struct {
	values []float64
	pos    int
	full   bool
	last   float64
}

func (r *stageRing) push(v float64) {
	r.values[r.pos] = v
	r.last = v
	r.pos = (r.pos + 1) % len(r.values)
	if r.pos == 0 {
		r.full = true
	}
}

func (r *stageRing) sorted() []float64 {
	n := r.pos
	if r.full {
		n = len(r.values)
	}
	out := make([]float64, n)
	copy(out, r.values[:n])
	sort.Float64s(out)
	return out
}

func newTurnStageWindow(size int) *turnStageWindow {
	if size <= 0 {
		size = 256
	}
	return &turnStageWindow{
		size:       size,
		rings:      make(map[string]*stageRing),
		indicators: make(map[string]int),
	}
}

func (w *turnStageWindow) Observe(stage string, ms float64) {
	stage = strings.TrimSpace(stage)
	if stage == "" || ms < 0 || math.IsNaN(ms) {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	r, ok := w.rings[stage]
	if !ok {
		r = &stageRing{values: make([]float64, w.size)}
		w.rings[stage] = r
	}
	r.push(ms)
}

func (w *turnStageWindow) ObserveIndicator(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.indicators[name]++
}

func (w *turnStageWindow) Snapshot() TurnStageSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	snap := TurnStageSnapshot{
		GeneratedAt: time.Now().UTC(),
		WindowSize:  w.size,
		Stages:      make([]TurnStageStats, 0, len(w.rings)),
	}

	for _, stage := range sortedKeys(w.rings) {
		samples := w.rings[stage].sorted()
		if len(samples) == 0 {
			continue
		}
		sum := 0.0
		for _, v := range samples {
			sum += v
		}
		snap.Stages = append(snap.Stages, TurnStageStats{
			Stage:       stage,
			Samples:     len(samples),
			LastMS:      round2(w.rings[stage].last),
			AvgMS:       round2(sum / float64(len(samples))),
			P50MS:       round2(quantile(samples, 0.50)),
			P95MS:       round2(quantile(samples, 0.95)),
			MaxMS:       round2(samples[len(samples)-1]),
			TargetP95MS: stageTargetP95MS(stage),
		})
	}

	for _, name := range sortedKeys(w.indicators) {
		if count := w.indicators[name]; count > 0 {
			snap.Indicators = append(snap.Indicators, TurnIndicator{Name: name, Count: count})
		}
	}
	return snap
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// quantile interpolates linearly between the closest ranks of a sorted slice.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := q * float64(len(sorted)-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func stageTargetP95MS(stage string) float64 {
	switch stage {
	case StageTranscribe:
		return 1200
	case StageComplete:
		return 2500
	case StageSynthesize:
		return 1500
	case StageReleaseToSpeaking:
		return 5000
	default:
		return 0
	}
}
