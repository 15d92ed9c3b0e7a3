package services

import (
	"blueprint-backend/algorithms"
	"blueprint-backend/models"
)

// Region is an area devices can be tested against.
type Region interface {
	Contains(p models.Point) bool
}

// RectRegion is the operator boundary in canvas space. Negative extents are
// normalized and edges count as inside.
type RectRegion struct {
	Boundary models.Boundary
}

func (r RectRegion) Contains(p models.Point) bool {
	return r.Boundary.Contains(p)
}

// PolygonRegion is an arbitrary polygon in world space, tested with the
// even-odd rule. Fewer than three vertices contain nothing.
type PolygonRegion struct {
	Vertices []models.Point
}

func (r PolygonRegion) Contains(p models.Point) bool {
	return algorithms.PointInPolygon(p, r.Vertices)
}

// Space selects the coordinates a region is expressed in.
type Space int

const (
	SpaceWorld  Space = iota // 디바이스 원본 좌표
	SpaceCanvas              // GridUnit 적용, 팬/줌 적용 전
)

// Containment - 디바이스별 경계 포함 여부
type Containment struct {
	DeviceID string       `json:"device_id"`
	Type     string       `json:"type"`
	Canvas   models.Point `json:"canvas"`
	Screen   models.Point `json:"screen"`
	Inside   bool         `json:"inside"`
}

// ContainmentReport - 평가 결과 요약
type ContainmentReport struct {
	Boundary models.Boundary `json:"boundary"`
	Results  []Containment   `json:"results"`
	Outside  int             `json:"outside"`
}

// Evaluator flags devices outside a region. It never mutates state; the
// result only drives rendering emphasis.
type Evaluator struct{}

// NewEvaluator - 평가기 생성
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate tests every visible device of the scene against the scene's
// boundary rectangle. The boundary and the devices' canvas positions share
// the stage space that pan and zoom are applied on top of, so the result
// does not change with the viewport.
func (e *Evaluator) Evaluate(scene models.Scene) ContainmentReport {
	visible := make([]models.Device, 0, len(scene.Devices))
	for _, d := range scene.Devices {
		if scene.Visibility[d.Type] {
			visible = append(visible, d)
		}
	}

	results := e.EvaluateRegion(visible, RectRegion{Boundary: scene.Boundary}, SpaceCanvas, scene.Viewport)
	report := ContainmentReport{
		Boundary: scene.Boundary.Normalized(),
		Results:  results,
	}
	for _, r := range results {
		if !r.Inside {
			report.Outside++
		}
	}
	return report
}

// EvaluateRegion tests devices against region expressed in space.
func (e *Evaluator) EvaluateRegion(devices []models.Device, region Region, space Space, viewport models.Viewport) []Containment {
	out := make([]Containment, 0, len(devices))
	for _, d := range devices {
		world := d.Position()
		canvas := algorithms.CanvasPosition(world)

		probe := world
		if space == SpaceCanvas {
			probe = canvas
		}
		out = append(out, Containment{
			DeviceID: d.ID,
			Type:     string(d.Type),
			Canvas:   canvas,
			Screen:   algorithms.WorldToPixel(viewport, world),
			Inside:   region.Contains(probe),
		})
	}
	return out
}

// Inside reports whether a single device lies inside the boundary.
func (e *Evaluator) Inside(d models.Device, b models.Boundary) bool {
	return b.Contains(algorithms.CanvasPosition(d.Position()))
}
