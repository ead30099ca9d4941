package depth

import "github.com/go-gl/mathgl/mgl32"

// PointSet is the unprojected form of one frame. Positions and colors are
// packed xyz/rgb triples; Valid marks pixels whose depth was finite and
// positive. Invalid samples keep their array slot so the grid topology
// (Width x Height) stays intact for mesh reconstruction.
type PointSet struct {
	Width  int
	Height int

	Positions []float32 // 3 * Width * Height
	Colors    []float32 // 3 * Width * Height, normalized [0,1]
	Valid     []bool    // Width * Height
}

// NewPointSet allocates a point set for a w x h grid.
func NewPointSet(w, h int) *PointSet {
	n := w * h
	return &PointSet{
		Width:     w,
		Height:    h,
		Positions: make([]float32, 3*n),
		Colors:    make([]float32, 3*n),
		Valid:     make([]bool, n),
	}
}

// Len returns the number of grid slots, valid or not.
func (ps *PointSet) Len() int {
	return ps.Width * ps.Height
}

// Position returns the point at index i.
func (ps *PointSet) Position(i int) mgl32.Vec3 {
	return mgl32.Vec3{ps.Positions[3*i], ps.Positions[3*i+1], ps.Positions[3*i+2]}
}

// Color returns the normalized color at index i.
func (ps *PointSet) Color(i int) mgl32.Vec3 {
	return mgl32.Vec3{ps.Colors[3*i], ps.Colors[3*i+1], ps.Colors[3*i+2]}
}

func (ps *PointSet) setPosition(i int, p mgl32.Vec3) {
	ps.Positions[3*i] = p[0]
	ps.Positions[3*i+1] = p[1]
	ps.Positions[3*i+2] = p[2]
}

// ValidCount returns the number of valid points.
func (ps *PointSet) ValidCount() int {
	n := 0
	for _, v := range ps.Valid {
		if v {
			n++
		}
	}
	return n
}

// Centroid returns the mean of all valid positions. The second return is
// false when the set has no valid points.
func (ps *PointSet) Centroid() (mgl32.Vec3, bool) {
	var sum mgl32.Vec3
	n := 0
	for i, v := range ps.Valid {
		if !v {
			continue
		}
		sum = sum.Add(ps.Position(i))
		n++
	}
	if n == 0 {
		return mgl32.Vec3{}, false
	}
	return sum.Mul(1.0 / float32(n)), true
}
