package reembed

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressTracker writes a single, carriage-return refreshed progress line
// for a run over a known number of documents.
type ProgressTracker struct {
	mu       sync.Mutex
	w        io.Writer
	total    int
	done     int
	every    int
	reported int
	start    time.Time
	now      func() time.Time
}

// NewProgressTracker reports to w every `every` documents out of total.
// An interval below one reports on every update.
func NewProgressTracker(w io.Writer, total, every int) *ProgressTracker {
	return &ProgressTracker{
		w:     w,
		total: total,
		every: max(every, 1),
		now:   time.Now,
	}
}

// Start resets the counters and the clock.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.start = p.now()
	p.done = 0
	p.reported = 0
}

func (p *ProgressTracker) running() bool {
	return !p.start.IsZero()
}

// Update sets the number of documents processed so far.
func (p *ProgressTracker) Update(done int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running() {
		return
	}
	p.advance(done)
}

// Increment adds delta processed documents.
func (p *ProgressTracker) Increment(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running() {
		return
	}
	p.advance(p.done + delta)
}

func (p *ProgressTracker) advance(done int) {
	p.done = min(done, p.total)
	if p.done-p.reported >= p.every {
		p.print()
		p.reported = p.done
	}
}

// Finish prints the completed line followed by a newline.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running() {
		return
	}
	p.done = p.total
	p.print()
	fmt.Fprintln(p.w)
}

// Elapsed is the time since Start, or zero before it.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running() {
		return 0
	}
	return p.now().Sub(p.start)
}

// print must be called with the lock held.
func (p *ProgressTracker) print() {
	elapsed := p.now().Sub(p.start).Seconds()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(p.done) / elapsed
	}
	pct := 100.0
	if p.total > 0 {
		pct = float64(p.done) * 100 / float64(p.total)
	}

	line := fmt.Sprintf("\rProgress: %d/%d (%.1f%%) - %.1f docs/s", p.done, p.total, pct, rate)
	if remaining := p.total - p.done; remaining > 0 && rate > 0 {
		eta := time.Duration(float64(remaining) / rate * float64(time.Second))
		line += fmt.Sprintf(", eta %v", eta.Round(time.Second))
	}
	io.WriteString(p.w, line)
}
