package models

import "math"

// ========================================
// 좌표 / 뷰포트 기본 타입
// ========================================

// Point is a planar coordinate. Whether it is world or pixel space depends on
// where it is used.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the Euclidean distance between p and q.
func (p Point) Distance(q Point) float64 {
	return math.Hypot(q.X-p.X, q.Y-p.Y)
}

// Viewport is the pan/zoom transform applied on top of the canvas.
// Scale is always > 0.
type Viewport struct {
	Scale   float64 `json:"scale"`
	OffsetX float64 `json:"offset_x"`
	OffsetY float64 `json:"offset_y"`
}

// IdentityViewport has scale 1 and no offset.
var IdentityViewport = Viewport{Scale: 1}

// ========================================
// 경계 (Boundary)
// ========================================

// Corner names a draggable corner of the boundary rectangle.
type Corner string

const (
	CornerTopLeft     Corner = "topLeft"
	CornerTopRight    Corner = "topRight"
	CornerBottomLeft  Corner = "bottomLeft"
	CornerBottomRight Corner = "bottomRight"
)

// Boundary is the operator-defined site rectangle in canvas pixel space.
// Width and Height may be negative while a corner drag is in progress.
type Boundary struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DefaultBoundary matches the initial rectangle of the floor-plan editor.
var DefaultBoundary = Boundary{X: 100, Y: 100, Width: 600, Height: 400}

// Normalized returns the same rectangle with non-negative extents.
func (b Boundary) Normalized() Boundary {
	if b.Width < 0 {
		b.X += b.Width
		b.Width = -b.Width
	}
	if b.Height < 0 {
		b.Y += b.Height
		b.Height = -b.Height
	}
	return b
}

// Contains reports whether p lies within the rectangle, edges included.
// Negative extents are normalized first.
func (b Boundary) Contains(p Point) bool {
	n := b.Normalized()
	return p.X >= n.X && p.X <= n.X+n.Width && p.Y >= n.Y && p.Y <= n.Y+n.Height
}

// ========================================
// 도면 이미지 배치
// ========================================

// BlueprintImage describes the loaded floor-plan image. The pixel data itself
// is held by the floor repository; the store only keeps a reference.
type BlueprintImage struct {
	ImageID string `json:"image_id"`
	Floor   int    `json:"floor,omitempty"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

// BlueprintPlacement is the image position in canvas space. Moving it never
// moves devices.
type BlueprintPlacement struct {
	Image    *BlueprintImage `json:"image"`
	Position Point           `json:"position"`
}

// ========================================
// 애니메이션 목적지
// ========================================

// Destination is an end location whose coordinates may be missing.
type Destination struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

// NewDestination builds a Destination with both coordinates set.
func NewDestination(x, y float64) Destination {
	return Destination{X: &x, Y: &y}
}

// Point returns the destination as a Point and whether both coordinates are
// present and finite.
func (d Destination) Point() (Point, bool) {
	if d.X == nil || d.Y == nil || !IsFinite(*d.X) || !IsFinite(*d.Y) {
		return Point{}, false
	}
	return Point{X: *d.X, Y: *d.Y}, true
}

// ========================================
// 장면 스냅샷
// ========================================

// Scene is a consistent copy of the whole spatial state.
type Scene struct {
	Devices          []Device            `json:"devices"`
	Boundary         Boundary            `json:"boundary"`
	Viewport         Viewport            `json:"viewport"`
	Blueprint        BlueprintPlacement  `json:"blueprint"`
	SelectedDeviceID string              `json:"selected_device_id,omitempty"`
	Visibility       map[DeviceType]bool `json:"visibility"`
	EndLocation      *Point              `json:"end_location"`
}
