package imaging

// mask.go converts a freehand brush stroke layer into a strict binary mask at
// the source image's native resolution. Stroke coordinates arrive in display
// (on-screen) pixel space; both coordinates and brush radius are rescaled by
// the native-to-displayed ratio so mask precision is independent of viewport
// zoom. White marks the region eligible for replacement, black everything else.

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/rs/zerolog/log"
)

// MaskMIMEType is the media type of encoded masks. PNG keeps the mask strictly
// two-valued; a lossy encoding would smear the edit boundary.
const MaskMIMEType = "image/png"

// Point is a stroke vertex in display pixel space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke is one continuous brush drag: an ordered polyline plus the logical
// brush size the user painted with.
type Stroke struct {
	Points    []Point `json:"points"`
	BrushSize float64 `json:"brushSize"`
}

// StrokeLayer is everything the user painted over the displayed source image.
type StrokeLayer struct {
	DisplayWidth  float64  `json:"displayWidth"`
	DisplayHeight float64  `json:"displayHeight"`
	Strokes       []Stroke `json:"strokes"`
}

// IsEmpty reports whether no stroke with at least one point was painted.
// Edit submissions require a non-empty layer; an empty layer composes to an
// all-black "no region selected" mask.
func (l StrokeLayer) IsEmpty() bool {
	for _, s := range l.Strokes {
		if len(s.Points) > 0 {
			return false
		}
	}
	return true
}

// ComposeMask rasterizes the stroke layer into a binary mask sized to the
// source image's native width and height. Any pixel touched by a stroke
// becomes pure white; all others remain pure black.
func ComposeMask(layer StrokeLayer, nativeWidth, nativeHeight int) (*image.Gray, error) {
	if nativeWidth <= 0 || nativeHeight <= 0 {
		return nil, fmt.Errorf("invalid native dimensions %dx%d", nativeWidth, nativeHeight)
	}
	if layer.DisplayWidth <= 0 || layer.DisplayHeight <= 0 {
		return nil, fmt.Errorf("invalid display dimensions %.0fx%.0f", layer.DisplayWidth, layer.DisplayHeight)
	}

	mask := image.NewGray(image.Rect(0, 0, nativeWidth, nativeHeight))
	// Gray zero value is already all-black; an empty layer composes to
	// "no region selected" without special-casing.

	scaleX := float64(nativeWidth) / layer.DisplayWidth
	scaleY := float64(nativeHeight) / layer.DisplayHeight

	for _, stroke := range layer.Strokes {
		if len(stroke.Points) == 0 {
			continue
		}

		// Brush radius follows the width ratio so a fixed logical size paints
		// a consistent physical radius at any zoom.
		radius := stroke.BrushSize * scaleX / 2
		if radius < 0.5 {
			radius = 0.5
		}

		prev := scalePoint(stroke.Points[0], scaleX, scaleY)
		stampDisc(mask, prev, radius)

		for _, p := range stroke.Points[1:] {
			cur := scalePoint(p, scaleX, scaleY)
			stampSegment(mask, prev, cur, radius)
			prev = cur
		}
	}

	log.Debug().
		Int("native_width", nativeWidth).
		Int("native_height", nativeHeight).
		Int("strokes", len(layer.Strokes)).
		Msg("Composed binary mask from stroke layer")

	return mask, nil
}

// EncodeMaskPNG encodes a composed mask as a PNG byte slice.
func EncodeMaskPNG(mask *image.Gray) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, mask); err != nil {
		return nil, fmt.Errorf("failed to encode mask: %w", err)
	}
	return buf.Bytes(), nil
}

// scalePoint maps a display-space point into native pixel space.
func scalePoint(p Point, scaleX, scaleY float64) Point {
	return Point{X: p.X * scaleX, Y: p.Y * scaleY}
}

// stampSegment paints the capsule between two native-space points by stamping
// discs at sub-radius intervals along the segment.
func stampSegment(mask *image.Gray, a, b Point, radius float64) {
	dx := b.X - a.X
	dy := b.Y - a.Y
	dist := math.Hypot(dx, dy)

	step := radius / 2
	if step < 1 {
		step = 1
	}

	steps := int(math.Ceil(dist / step))
	for i := 0; i <= steps; i++ {
		t := 0.0
		if steps > 0 {
			t = float64(i) / float64(steps)
		}
		stampDisc(mask, Point{X: a.X + dx*t, Y: a.Y + dy*t}, radius)
	}
}

// stampDisc sets every pixel within radius of the center to pure white,
// clipped to the mask bounds.
func stampDisc(mask *image.Gray, center Point, radius float64) {
	bounds := mask.Bounds()
	minX := int(math.Floor(center.X - radius))
	maxX := int(math.Ceil(center.X + radius))
	minY := int(math.Floor(center.Y - radius))
	maxY := int(math.Ceil(center.Y + radius))

	if minX < bounds.Min.X {
		minX = bounds.Min.X
	}
	if minY < bounds.Min.Y {
		minY = bounds.Min.Y
	}
	if maxX > bounds.Max.X-1 {
		maxX = bounds.Max.X - 1
	}
	if maxY > bounds.Max.Y-1 {
		maxY = bounds.Max.Y - 1
	}

	r2 := radius * radius
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			ddx := float64(x) + 0.5 - center.X
			ddy := float64(y) + 0.5 - center.Y
			if ddx*ddx+ddy*ddy <= r2 {
				mask.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
}
