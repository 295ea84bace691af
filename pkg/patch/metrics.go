package patch

import (
	"sync"
	"time"
)

// Metrics collects statistics about patch batches.
type Metrics interface {
	// RecordStripGuess records the strip level chosen for a patch and whether
	// it came from the default fallback.
	RecordStripGuess(patchFile string, level int, fallback bool)
	// RecordPatch records one tool run.
	RecordPatch(patchFile string, duration time.Duration, success bool)
	// Snapshot returns the current metrics.
	Snapshot() MetricsSnapshot
	// Reset clears all metrics.
	Reset()
}

// MetricsSnapshot is a point-in-time view of collected metrics.
type MetricsSnapshot struct {
	Patches       PatchMetrics
	StripLevels   map[int]int64 // level -> count
	Fallbacks     int64
	LastPatch     string
	LastPatchTime time.Time
}

// PatchMetrics tracks tool run statistics.
type PatchMetrics struct {
	Total     int64
	Success   int64
	Failed    int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
}

// NoOpMetrics discards all metrics.
type NoOpMetrics struct{}

func (n *NoOpMetrics) RecordStripGuess(_ string, _ int, _ bool)      {}
func (n *NoOpMetrics) RecordPatch(_ string, _ time.Duration, _ bool) {}
func (n *NoOpMetrics) Snapshot() MetricsSnapshot                     { return MetricsSnapshot{} }
func (n *NoOpMetrics) Reset()                                        {}

// InMemoryMetrics is a thread-safe in-memory metrics collector.
type InMemoryMetrics struct {
	mu            sync.RWMutex
	patches       PatchMetrics
	stripLevels   map[int]int64
	fallbacks     int64
	lastPatch     string
	lastPatchTime time.Time
}

// NewInMemoryMetrics creates an empty collector.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{stripLevels: make(map[int]int64)}
}

func (m *InMemoryMetrics) RecordStripGuess(_ string, level int, fallback bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stripLevels[level]++
	if fallback {
		m.fallbacks++
	}
}

func (m *InMemoryMetrics) RecordPatch(patchFile string, duration time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.patches.Total == 0 || duration < m.patches.MinTime {
		m.patches.MinTime = duration
	}
	if duration > m.patches.MaxTime {
		m.patches.MaxTime = duration
	}
	m.patches.Total++
	if success {
		m.patches.Success++
	} else {
		m.patches.Failed++
	}
	m.patches.TotalTime += duration
	m.lastPatch = patchFile
	m.lastPatchTime = time.Now()
}

func (m *InMemoryMetrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	levels := make(map[int]int64, len(m.stripLevels))
	for level, count := range m.stripLevels {
		levels[level] = count
	}
	return MetricsSnapshot{
		Patches:       m.patches,
		StripLevels:   levels,
		Fallbacks:     m.fallbacks,
		LastPatch:     m.lastPatch,
		LastPatchTime: m.lastPatchTime,
	}
}

func (m *InMemoryMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.patches = PatchMetrics{}
	m.stripLevels = make(map[int]int64)
	m.fallbacks = 0
	m.lastPatch = ""
	m.lastPatchTime = time.Time{}
}

// AverageTime returns the mean tool run duration.
func (p PatchMetrics) AverageTime() time.Duration {
	if p.Total == 0 {
		return 0
	}
	return p.TotalTime / time.Duration(p.Total)
}
