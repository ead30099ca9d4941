package tween

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/livedepth/livedepth/depth"
)

func flatSet(w, h int, x float32) *depth.PointSet {
	ps := depth.NewPointSet(w, h)
	for i := 0; i < ps.Len(); i++ {
		ps.Positions[3*i] = x
		ps.Colors[3*i] = x
		ps.Valid[i] = true
	}
	return ps
}

func TestBuffer_NilBeforeFirstFrame(t *testing.T) {
	b := NewBuffer(80, 240)
	require.Nil(t, b.Sample(1000))
	require.Nil(t, b.Next())
}

func TestBuffer_SingleFrameUnblended(t *testing.T) {
	b := NewBuffer(80, 240)
	b.OnFrame(flatSet(2, 2, 5), 1000)

	// with no last frame t is forced to 1 regardless of elapsed time
	st := b.Sample(1000)
	require.NotNil(t, st)
	require.Equal(t, float32(5), st.Positions[0])

	st = b.Sample(1001)
	require.Equal(t, float32(5), st.Positions[0])
}

func TestBuffer_InterpolationEndpoints(t *testing.T) {
	b := NewBuffer(100, 100) // window pinned to 100ms
	b.OnFrame(flatSet(2, 2, 0), 1000)
	b.OnFrame(flatSet(2, 2, 10), 1100)

	st := b.Sample(1100) // t = 0
	require.Equal(t, float32(0), st.Positions[0])
	require.Equal(t, float32(0), st.Colors[0])

	st = b.Sample(1150) // t = 0.5
	require.InDelta(t, 5, st.Positions[0], 1e-5)
	require.InDelta(t, 5, st.Colors[0], 1e-5)

	st = b.Sample(1200) // t = 1
	require.Equal(t, float32(10), st.Positions[0])

	st = b.Sample(1500) // past the window, clamped
	require.Equal(t, float32(10), st.Positions[0])
}

func TestBuffer_MonotonicBetweenEndpoints(t *testing.T) {
	b := NewBuffer(100, 100)
	b.OnFrame(flatSet(2, 2, 0), 1000)
	b.OnFrame(flatSet(2, 2, 1), 1100)

	prev := float32(-1)
	for ms := 1100.0; ms <= 1200; ms += 10 {
		st := b.Sample(ms)
		require.GreaterOrEqual(t, st.Positions[0], prev, "at %gms", ms)
		prev = st.Positions[0]
	}
}

func TestBuffer_WindowClampsArrivalEstimate(t *testing.T) {
	b := NewBuffer(80, 240)
	require.Equal(t, 80.0, b.WindowMs()) // no estimate yet

	b.OnFrame(flatSet(1, 1, 0), 1000)
	b.OnFrame(flatSet(1, 1, 0), 1010) // 10ms gap, below the floor
	require.Equal(t, 80.0, b.WindowMs())

	b2 := NewBuffer(80, 240)
	b2.OnFrame(flatSet(1, 1, 0), 1000)
	b2.OnFrame(flatSet(1, 1, 0), 6000) // way above the ceiling
	require.Equal(t, 240.0, b2.WindowMs())
}

func TestBuffer_EWMATracksGaps(t *testing.T) {
	b := NewBuffer(1, 10000)
	b.OnFrame(flatSet(1, 1, 0), 1000)
	b.OnFrame(flatSet(1, 1, 0), 1100)
	require.InDelta(t, 100, b.WindowMs(), 1e-9)

	b.OnFrame(flatSet(1, 1, 0), 1300) // gap 200: 0.2*200 + 0.8*100
	require.InDelta(t, 120, b.WindowMs(), 1e-9)
}

func TestBuffer_ValidityFollowsNext(t *testing.T) {
	b := NewBuffer(100, 100)
	b.OnFrame(flatSet(2, 2, 0), 1000)

	next := flatSet(2, 2, 1)
	next.Valid[3] = false // hole opens in the newest frame
	b.OnFrame(next, 1100)

	st := b.Sample(1150) // mid-blend
	require.True(t, st.Valid[0])
	require.False(t, st.Valid[3])
}

func TestBuffer_ResolutionChangeDropsLast(t *testing.T) {
	b := NewBuffer(100, 100)
	b.OnFrame(flatSet(2, 2, 0), 1000)
	b.OnFrame(flatSet(4, 4, 9), 1100)

	// no blend against the old resolution: t forced to 1
	st := b.Sample(1100)
	require.Equal(t, 4, st.Width)
	require.Equal(t, float32(9), st.Positions[0])
	require.Len(t, st.Valid, 16)
}
