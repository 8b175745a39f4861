package reembed

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock advances by step on every reading.
func fakeClock(step time.Duration) func() time.Time {
	t := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(step)
		return t
	}
}

func newTestTracker(buf *bytes.Buffer, total, every int) *ProgressTracker {
	p := NewProgressTracker(buf, total, every)
	p.now = fakeClock(time.Second)
	return p
}

func TestProgressTracker_ReportsOnInterval(t *testing.T) {
	var buf bytes.Buffer
	p := newTestTracker(&buf, 100, 25)
	p.Start()

	p.Update(10)
	assert.Empty(t, buf.String())

	p.Update(30)
	assert.Contains(t, buf.String(), "\rProgress: 30/100 (30.0%)")

	buf.Reset()
	p.Increment(10)
	assert.Empty(t, buf.String(), "40 is within the interval of the last report")

	p.Increment(20)
	assert.Contains(t, buf.String(), "60/100 (60.0%)")
}

func TestProgressTracker_RateAndETA(t *testing.T) {
	var buf bytes.Buffer
	p := newTestTracker(&buf, 10, 1)
	p.Start() // t=1s

	p.Update(5) // t=2s, 5 docs in 1s
	assert.Contains(t, buf.String(), "5.0 docs/s, eta 1s")
}

func TestProgressTracker_Finish(t *testing.T) {
	var buf bytes.Buffer
	p := newTestTracker(&buf, 40, 100)
	p.Start()
	p.Update(20)
	p.Finish()

	out := buf.String()
	assert.Contains(t, out, "40/40 (100.0%)")
	assert.NotContains(t, out, "eta")
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestProgressTracker_CapsAtTotal(t *testing.T) {
	var buf bytes.Buffer
	p := newTestTracker(&buf, 10, 1)
	p.Start()
	p.Increment(25)
	assert.Contains(t, buf.String(), "10/10")
}

func TestProgressTracker_ZeroTotal(t *testing.T) {
	var buf bytes.Buffer
	p := newTestTracker(&buf, 0, 10)
	p.Start()
	p.Finish()
	assert.Contains(t, buf.String(), "0/0 (100.0%)")
}

func TestProgressTracker_IgnoredBeforeStart(t *testing.T) {
	var buf bytes.Buffer
	p := newTestTracker(&buf, 10, 1)

	p.Increment(5)
	p.Update(7)
	p.Finish()

	assert.Empty(t, buf.String())
	assert.Zero(t, p.Elapsed())
}

func TestProgressTracker_Elapsed(t *testing.T) {
	var buf bytes.Buffer
	p := newTestTracker(&buf, 10, 1)
	p.Start()
	assert.Equal(t, time.Second, p.Elapsed())
}

func TestProgressTracker_IntervalFloor(t *testing.T) {
	var buf bytes.Buffer
	p := newTestTracker(&buf, 3, 0)
	p.Start()
	p.Increment(1)
	p.Increment(1)
	assert.Equal(t, 2, strings.Count(buf.String(), "\rProgress"))
}
