package algorithms

import (
	"math"

	"blueprint-backend/models"
)

// PointInPolygon reports whether p lies inside the polygon using the even-odd
// ray-casting rule: a ray cast from p in the +x direction is tested against
// every edge whose y-span straddles p.Y.
//
// Polygons with fewer than three vertices contain nothing. Points exactly on
// an edge follow the half-open convention of the crossing test: for an
// axis-aligned rectangle, points on the min-x and min-y edges are inside and
// points on the max-x and max-y edges are outside.
func PointInPolygon(p models.Point, vertices []models.Point) bool {
	if len(vertices) < 3 {
		return false
	}

	inside := false
	for i, j := 0, len(vertices)-1; i < len(vertices); j, i = i, i+1 {
		vi, vj := vertices[i], vertices[j]
		if (vi.Y > p.Y) != (vj.Y > p.Y) {
			xCross := (vj.X-vi.X)*(p.Y-vi.Y)/(vj.Y-vi.Y) + vi.X
			if p.X < xCross {
				inside = !inside
			}
		}
	}
	return inside
}

// ValidatePolygon returns a DegeneratePolygon error when vertices cannot form
// an area, and an InvalidInput error for non-finite coordinates.
func ValidatePolygon(vertices []models.Point) error {
	if len(vertices) < 3 {
		return models.NewError(models.ErrCodeDegeneratePolygon,
			"polygon needs at least 3 vertices, got %d", len(vertices))
	}
	for i, v := range vertices {
		if !models.IsFinite(v.X) || !models.IsFinite(v.Y) {
			return models.NewError(models.ErrCodeInvalidInput, "vertex %d is not finite", i)
		}
	}
	return nil
}

// bounds - 최소/최대 좌표 계산
func bounds(polygon []models.Point) (minX, minY, maxX, maxY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, v := range polygon {
		minX = math.Min(minX, v.X)
		maxX = math.Max(maxX, v.X)
		minY = math.Min(minY, v.Y)
		maxY = math.Max(maxY, v.Y)
	}
	return
}

// BoundingBox returns the axis-aligned bounding rectangle of polygon as four
// corners: (minX,minY), (minX,maxY), (maxX,maxY), (maxX,minY).
// Degenerate polygons (fewer than three vertices) yield nil.
func BoundingBox(polygon []models.Point) []models.Point {
	if len(polygon) < 3 {
		return nil
	}
	minX, minY, maxX, maxY := bounds(polygon)
	return []models.Point{
		{X: minX, Y: minY},
		{X: minX, Y: maxY},
		{X: maxX, Y: maxY},
		{X: maxX, Y: minY},
	}
}

// BoundingSquare returns a true square enclosing polygon: its side is the
// larger of the bounding box's width and height and it shares the box's
// center. Corner order matches BoundingBox. Degenerate polygons yield nil.
func BoundingSquare(polygon []models.Point) []models.Point {
	if len(polygon) < 3 {
		return nil
	}
	minX, minY, maxX, maxY := bounds(polygon)
	side := math.Max(maxX-minX, maxY-minY)
	cx, cy := (minX+maxX)/2, (minY+maxY)/2
	half := side / 2
	return []models.Point{
		{X: cx - half, Y: cy - half},
		{X: cx - half, Y: cy + half},
		{X: cx + half, Y: cy + half},
		{X: cx + half, Y: cy - half},
	}
}

// BoundaryFromPolygon converts a world-space polygon into a canvas-space
// boundary rectangle covering its bounding box. It reports false for
// degenerate polygons.
func BoundaryFromPolygon(polygon []models.Point) (models.Boundary, bool) {
	box := BoundingBox(polygon)
	if box == nil {
		return models.Boundary{}, false
	}
	topLeft := CanvasPosition(box[0])
	bottomRight := CanvasPosition(box[2])
	return models.Boundary{
		X:      topLeft.X,
		Y:      topLeft.Y,
		Width:  bottomRight.X - topLeft.X,
		Height: bottomRight.Y - topLeft.Y,
	}, true
}
