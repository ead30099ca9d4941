// Package tween hides irregular frame arrival by interpolating between the
// last two published point sets. OnFrame runs on the decode goroutine,
// Sample on the render tick; the two meet only at a reference swap.
package tween

import (
	"sync"

	"github.com/livedepth/livedepth/depth"
)

// ewmaAlpha weights the inter-arrival estimate toward recent gaps, matching
// the producer's own temporal smoothing factor.
const ewmaAlpha = 0.2

// RenderState is the interpolated output of one Sample call. The buffers
// are owned by the Buffer and reused every tick; consume before the next
// Sample.
type RenderState struct {
	Width     int
	Height    int
	Positions []float32
	Colors    []float32
	Valid     []bool
}

// Buffer holds the last/next point set pair plus the arrival-interval
// estimate that sizes the tween window.
type Buffer struct {
	mu sync.Mutex

	last *depth.PointSet
	next *depth.PointSet

	lastUpdateMs float64
	intervalMs   float64 // EWMA of inter-arrival gaps
	minWindowMs  float64
	maxWindowMs  float64

	out RenderState
}

// NewBuffer returns a tween buffer with the given window clamp bounds in
// milliseconds.
func NewBuffer(minWindowMs, maxWindowMs float64) *Buffer {
	return &Buffer{
		minWindowMs: minWindowMs,
		maxWindowMs: maxWindowMs,
	}
}

// SetWindowBounds updates the clamp applied to the arrival estimate. Safe
// to call from the config-reload path.
func (b *Buffer) SetWindowBounds(minMs, maxMs float64) {
	b.mu.Lock()
	b.minWindowMs = minMs
	b.maxWindowMs = maxMs
	b.mu.Unlock()
}

// OnFrame publishes a freshly unprojected point set: last <- next,
// next <- ps. The set must not be mutated by the caller afterwards.
func (b *Buffer) OnFrame(ps *depth.PointSet, nowMs float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.next != nil && b.lastUpdateMs > 0 {
		gap := nowMs - b.lastUpdateMs
		if gap > 0 {
			if b.intervalMs == 0 {
				b.intervalMs = gap
			} else {
				b.intervalMs = ewmaAlpha*gap + (1-ewmaAlpha)*b.intervalMs
			}
		}
	}

	// A resolution change invalidates the pair; the old last cannot be
	// lerped against the new next.
	if b.next != nil && (b.next.Width != ps.Width || b.next.Height != ps.Height) {
		b.last = nil
	} else {
		b.last = b.next
	}
	b.next = ps
	b.lastUpdateMs = nowMs
}

// WindowMs returns the current tween window: the arrival estimate clamped
// to the configured bounds.
func (b *Buffer) WindowMs() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.windowMsLocked()
}

func (b *Buffer) windowMsLocked() float64 {
	w := b.intervalMs
	if w < b.minWindowMs {
		w = b.minWindowMs
	}
	if w > b.maxWindowMs {
		w = b.maxWindowMs
	}
	return w
}

// Next returns the most recently published point set, or nil before the
// first frame. The rain simulator collides against this set.
func (b *Buffer) Next() *depth.PointSet {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.next
}

// Sample interpolates last and next at the given time. Before the first
// frame it returns nil; with only one frame it returns that frame
// unblended (t forced to 1). The returned state aliases buffers reused on
// the next call. Linear scan, no allocation in the steady state.
func (b *Buffer) Sample(nowMs float64) *RenderState {
	b.mu.Lock()
	last, next := b.last, b.next
	t := float32(1)
	if last != nil {
		w := b.windowMsLocked()
		raw := (nowMs - b.lastUpdateMs) / w
		if raw < 0 {
			raw = 0
		}
		if raw > 1 {
			raw = 1
		}
		t = float32(raw)
	}
	b.mu.Unlock()

	if next == nil {
		return nil
	}

	n := next.Len()
	if len(b.out.Valid) != n {
		b.out.Positions = make([]float32, 3*n)
		b.out.Colors = make([]float32, 3*n)
		b.out.Valid = make([]bool, n)
	}
	b.out.Width = next.Width
	b.out.Height = next.Height

	// Validity follows next: holes open immediately instead of blending
	// against stale geometry.
	copy(b.out.Valid, next.Valid)

	if last == nil || t >= 1 {
		copy(b.out.Positions, next.Positions)
		copy(b.out.Colors, next.Colors)
		return &b.out
	}

	for i := 0; i < 3*n; i++ {
		b.out.Positions[i] = last.Positions[i] + (next.Positions[i]-last.Positions[i])*t
		b.out.Colors[i] = last.Colors[i] + (next.Colors[i]-last.Colors[i])*t
	}
	return &b.out
}
