package algorithms

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"blueprint-backend/models"
)

func TestWorldPixelRoundTrip(t *testing.T) {
	viewports := []models.Viewport{
		models.IdentityViewport,
		{Scale: 0.5, OffsetX: -120, OffsetY: 33.3},
		{Scale: 1.7, OffsetX: 900, OffsetY: -15},
		{Scale: 1e-3, OffsetX: 1, OffsetY: 1},
	}
	points := []models.Point{
		{X: 0, Y: 0}, {X: 1.25, Y: -3.5}, {X: 1234.5678, Y: 0.0001}, {X: -77, Y: 42},
	}

	for _, v := range viewports {
		for _, p := range points {
			got := PixelToWorld(v, WorldToPixel(v, p))
			assert.InDelta(t, p.X, got.X, 1e-6)
			assert.InDelta(t, p.Y, got.Y, 1e-6)
		}
	}
}

func TestWorldToPixel(t *testing.T) {
	v := models.Viewport{Scale: 2, OffsetX: 10, OffsetY: -5}
	assert.Equal(t, models.Point{X: 110, Y: 195}, WorldToPixel(v, models.Point{X: 1, Y: 2}))
	assert.Equal(t, models.Point{X: 50, Y: 100}, CanvasPosition(models.Point{X: 1, Y: 2}))
}

func TestZoomAtKeepsPointerAnchored(t *testing.T) {
	v := models.IdentityViewport
	pointer := models.Point{X: 100, Y: 100}
	before := PixelToWorld(v, pointer)

	zoomed := ZoomAt(v, pointer, 1.1)
	assert.Equal(t, 1.1, zoomed.Scale)

	after := WorldToPixel(zoomed, before)
	assert.InDelta(t, pointer.X, after.X, 1e-9)
	assert.InDelta(t, pointer.Y, after.Y, 1e-9)

	// 여러 번 연속 줌 아웃
	for i := 0; i < 5; i++ {
		zoomed = ZoomAt(zoomed, models.Point{X: 340, Y: 12}, zoomed.Scale/1.1)
	}
	anchor := PixelToWorld(zoomed, models.Point{X: 340, Y: 12})
	again := ZoomAt(zoomed, models.Point{X: 340, Y: 12}, 3)
	assert.InDelta(t, 340, WorldToPixel(again, anchor).X, 1e-9)
	assert.InDelta(t, 12, WorldToPixel(again, anchor).Y, 1e-9)
}

func TestClampScale(t *testing.T) {
	assert.Equal(t, DefaultMinScale, ClampScale(0.1, DefaultMinScale, DefaultMaxScale))
	assert.Equal(t, DefaultMaxScale, ClampScale(9, DefaultMinScale, DefaultMaxScale))
	assert.Equal(t, 1.3, ClampScale(1.3, DefaultMinScale, DefaultMaxScale))
}
