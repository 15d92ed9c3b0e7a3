package algorithms

import (
	"math"

	"blueprint-backend/models"
)

// GridUnit is the number of canvas pixels per world unit.
const GridUnit = 50.0

// 줌 기본 범위 (컨트롤 슬라이더와 동일)
const (
	DefaultMinScale = 0.5
	DefaultMaxScale = 2.0
)

// CanvasPosition maps a world point onto the canvas before any pan or zoom.
// The boundary rectangle lives in this space.
func CanvasPosition(p models.Point) models.Point {
	return models.Point{X: p.X * GridUnit, Y: p.Y * GridUnit}
}

// WorldToPixel maps a world point to screen pixels under viewport v.
func WorldToPixel(v models.Viewport, p models.Point) models.Point {
	return models.Point{
		X: p.X*GridUnit*v.Scale + v.OffsetX,
		Y: p.Y*GridUnit*v.Scale + v.OffsetY,
	}
}

// PixelToWorld is the inverse of WorldToPixel. v.Scale must be > 0.
func PixelToWorld(v models.Viewport, p models.Point) models.Point {
	k := GridUnit * v.Scale
	return models.Point{
		X: (p.X - v.OffsetX) / k,
		Y: (p.Y - v.OffsetY) / k,
	}
}

// ZoomAt rescales v to newScale while keeping the world point under pointer
// fixed on screen.
func ZoomAt(v models.Viewport, pointer models.Point, newScale float64) models.Viewport {
	anchor := PixelToWorld(v, pointer)
	k := GridUnit * newScale
	return models.Viewport{
		Scale:   newScale,
		OffsetX: pointer.X - anchor.X*k,
		OffsetY: pointer.Y - anchor.Y*k,
	}
}

// ClampScale limits scale to [min, max]. It does not accept non-positive
// scales; callers reject those first.
func ClampScale(scale, min, max float64) float64 {
	return math.Max(min, math.Min(max, scale))
}
