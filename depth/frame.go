package depth

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Wire layout, fixed by the producer:
//
//	[uint32 LE headerLen]
//	[headerLen bytes UTF-8 JSON: w,h,fx,fy,cx,cy required; stride,ts optional]
//	[zero padding so the payload starts on a 4-byte boundary]
//	[w*h float32 LE depth, meters, row-major]
//	[3*w*h uint8 RGB interleaved]
var (
	// ErrMalformedFrame marks any decode failure. The frame is dropped and
	// the previous render state stays untouched.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrHelloFrame marks the producer's connection hello, a message whose
	// headerLen is zero. Not an error condition; callers skip it.
	ErrHelloFrame = errors.New("hello frame")
)

// Intrinsics are the camera parameters mapping pixels to rays.
type Intrinsics struct {
	Fx float32
	Fy float32
	Cx float32
	Cy float32
}

// Frame is one decoded network message: a depth grid plus its RGB image.
// Immutable after decode; consumed once by the unprojector.
type Frame struct {
	Width  int
	Height int
	Intrinsics

	Depth []float32 // Width * Height, meters; NaN/Inf preserved
	RGB   []uint8   // 3 * Width * Height

	Stride    int     // producer-side subsampling, informational
	Timestamp float64 // producer clock, seconds; 0 when absent
}

type frameHeader struct {
	W      *int     `json:"w"`
	H      *int     `json:"h"`
	Fx     *float64 `json:"fx"`
	Fy     *float64 `json:"fy"`
	Cx     *float64 `json:"cx"`
	Cy     *float64 `json:"cy"`
	Stride int      `json:"stride"`
	Ts     float64  `json:"ts"`
}

func pad4(n int) int {
	return (4 - n%4) % 4
}

// Decode parses one wire message into a Frame. Returns ErrHelloFrame for
// the zero-length-header hello; every other failure wraps
// ErrMalformedFrame.
func Decode(buf []byte) (*Frame, error) {
	if len(buf) < 4 {
		return nil, fmt.Errorf("%w: %d bytes, want at least 4", ErrMalformedFrame, len(buf))
	}
	headerLen := int(binary.LittleEndian.Uint32(buf))
	if headerLen == 0 {
		return nil, ErrHelloFrame
	}
	if headerLen > len(buf)-4 {
		return nil, fmt.Errorf("%w: header length %d exceeds remaining %d bytes", ErrMalformedFrame, headerLen, len(buf)-4)
	}

	var hdr frameHeader
	if err := json.Unmarshal(buf[4:4+headerLen], &hdr); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrMalformedFrame, err)
	}
	if hdr.W == nil || hdr.H == nil || hdr.Fx == nil || hdr.Fy == nil || hdr.Cx == nil || hdr.Cy == nil {
		return nil, fmt.Errorf("%w: header missing required field", ErrMalformedFrame)
	}
	w, h := *hdr.W, *hdr.H
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: grid size %dx%d", ErrMalformedFrame, w, h)
	}

	payload := buf[4+headerLen:]
	if skip := pad4(4 + headerLen); skip > 0 {
		if len(payload) < skip {
			return nil, fmt.Errorf("%w: truncated padding", ErrMalformedFrame)
		}
		payload = payload[skip:]
	}

	n := w * h
	depthBytes := n * 4
	rgbBytes := 3 * n
	if len(payload) < depthBytes+rgbBytes {
		return nil, fmt.Errorf("%w: payload %d bytes, want %d", ErrMalformedFrame, len(payload), depthBytes+rgbBytes)
	}

	f := &Frame{
		Width:  w,
		Height: h,
		Intrinsics: Intrinsics{
			Fx: float32(*hdr.Fx),
			Fy: float32(*hdr.Fy),
			Cx: float32(*hdr.Cx),
			Cy: float32(*hdr.Cy),
		},
		Depth:     make([]float32, n),
		RGB:       make([]uint8, rgbBytes),
		Stride:    hdr.Stride,
		Timestamp: hdr.Ts,
	}
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(payload[i*4:])
		f.Depth[i] = math.Float32frombits(bits)
	}
	copy(f.RGB, payload[depthBytes:depthBytes+rgbBytes])
	return f, nil
}

// Encode serializes a Frame back into the wire layout, the counterpart of
// Decode for synthetic producers.
func Encode(f *Frame) ([]byte, error) {
	hdr := map[string]any{
		"w":  f.Width,
		"h":  f.Height,
		"fx": f.Fx,
		"fy": f.Fy,
		"cx": f.Cx,
		"cy": f.Cy,
	}
	if f.Stride != 0 {
		hdr["stride"] = f.Stride
	}
	if f.Timestamp != 0 {
		hdr["ts"] = f.Timestamp
	}
	hdrBytes, err := json.Marshal(hdr)
	if err != nil {
		return nil, err
	}

	n := f.Width * f.Height
	if len(f.Depth) != n || len(f.RGB) != 3*n {
		return nil, fmt.Errorf("frame buffers do not match %dx%d grid", f.Width, f.Height)
	}

	pad := pad4(4 + len(hdrBytes))
	out := make([]byte, 0, 4+len(hdrBytes)+pad+n*4+3*n)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(hdrBytes)))
	out = append(out, lenBuf[:]...)
	out = append(out, hdrBytes...)
	out = append(out, make([]byte, pad)...)

	var f32 [4]byte
	for _, d := range f.Depth {
		binary.LittleEndian.PutUint32(f32[:], math.Float32bits(d))
		out = append(out, f32[:]...)
	}
	out = append(out, f.RGB...)
	return out, nil
}

// EncodeHello returns the producer's connection hello message.
func EncodeHello() []byte {
	return []byte{0, 0, 0, 0}
}
