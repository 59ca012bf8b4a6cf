package profiling

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Tracker is a lightweight per-step CPU profiler. The zero value is not
// usable; call New. A nil *Tracker ignores every call.
type Tracker struct {
	mu     sync.Mutex
	totals map[string]time.Duration
	counts map[string]int
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{
		totals: make(map[string]time.Duration),
		counts: make(map[string]int),
	}
}

// Track returns a stop function that records the elapsed time under the given name.
// Usage: defer tracker.Track("world.Step")()
func (t *Tracker) Track(name string) func() {
	if t == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		d := time.Since(start)
		t.mu.Lock()
		t.totals[name] += d
		t.counts[name]++
		t.mu.Unlock()
	}
}

// Reset clears current totals. Call at the start of each step.
func (t *Tracker) Reset() {
	if t == nil {
		return
	}
	t.mu.Lock()
	clear(t.totals)
	clear(t.counts)
	t.mu.Unlock()
}

// Snapshot returns a copy of current totals.
func (t *Tracker) Snapshot() map[string]time.Duration {
	out := make(map[string]time.Duration)
	if t == nil {
		return out
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, v := range t.totals {
		out[k] = v
	}
	return out
}

// Count returns how many times name was tracked since the last Reset.
func (t *Tracker) Count(name string) int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[name]
}

// TopN formats top N durations from the current totals.
// Example: "world.Step:4.2ms, world.Resolve:2.1ms"
func (t *Tracker) TopN(n int) string {
	ss := t.Snapshot()
	type pair struct {
		name string
		dur  time.Duration
	}
	list := make([]pair, 0, len(ss))
	for k, v := range ss {
		list = append(list, pair{name: k, dur: v})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].dur == list[j].dur {
			return list[i].name < list[j].name
		}
		return list[i].dur > list[j].dur
	})
	if n > len(list) {
		n = len(list)
	}
	parts := make([]string, 0, n)
	for i := 0; i < n; i++ {
		ms := float64(list[i].dur.Microseconds()) / 1000.0
		parts = append(parts, list[i].name+":"+formatMs(ms))
	}
	return strings.Join(parts, ", ")
}

// formatMs keeps one decimal and drops ".0".
func formatMs(ms float64) string {
	s := strconv.FormatFloat(ms, 'f', 1, 64)
	s = strings.TrimSuffix(s, ".0")
	return s + "ms"
}
