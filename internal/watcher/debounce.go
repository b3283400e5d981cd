package watcher

import (
	"slices"
	"sync"
	"time"
)

// Debouncer groups rapid changes to the same paths into a single flush.
type Debouncer struct {
	delay time.Duration
	flush func(paths []string)
	// flushing serializes flush calls; each timer fires on its own goroutine.
	flushing sync.Mutex
	mu       sync.Mutex
	timer    *time.Timer
	pending  map[string]struct{}
}

// NewDebouncer calls flush with the deduplicated, sorted paths once no new
// path has been added for delay. Flushes never overlap.
func NewDebouncer(delay time.Duration, flush func(paths []string)) *Debouncer {
	return &Debouncer{
		delay:   delay,
		flush:   flush,
		pending: make(map[string]struct{}),
	}
}

// Add records a changed path and restarts the quiet period.
func (d *Debouncer) Add(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending[path] = struct{}{}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fire)
}

// Stop discards pending paths.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	clear(d.pending)
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	if len(d.pending) == 0 {
		d.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(d.pending))
	for p := range d.pending {
		paths = append(paths, p)
	}
	clear(d.pending)
	d.mu.Unlock()

	slices.Sort(paths)

	d.flushing.Lock()
	defer d.flushing.Unlock()
	d.flush(paths)
}
