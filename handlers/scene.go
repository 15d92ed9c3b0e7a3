package handlers

import (
	"github.com/gofiber/fiber/v2"

	"blueprint-backend/algorithms"
	"blueprint-backend/models"
)

// ========================================
// 요청 형식
// ========================================

type deviceRequest struct {
	ID      string  `json:"id" validate:"required"`
	Name    string  `json:"name"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Z       float64 `json:"z"`
	Type    string  `json:"type"`
	Quality float64 `json:"quality"`
	Zone    *string `json:"zone"`
	Topic   string  `json:"topic"`
}

type replaceDevicesRequest struct {
	Devices []deviceRequest `json:"devices" validate:"dive"`
}

type pointRequest struct {
	X *float64 `json:"x" validate:"required"`
	Y *float64 `json:"y" validate:"required"`
}

func (p pointRequest) point() models.Point {
	return models.Point{X: *p.X, Y: *p.Y}
}

type boundaryRequest struct {
	X      *float64 `json:"x" validate:"required"`
	Y      *float64 `json:"y" validate:"required"`
	Width  *float64 `json:"width" validate:"required"`
	Height *float64 `json:"height" validate:"required"`
}

type resizeRequest struct {
	Corner string   `json:"corner" validate:"required,oneof=topLeft topRight bottomLeft bottomRight"`
	X      *float64 `json:"x" validate:"required"`
	Y      *float64 `json:"y" validate:"required"`
	End    bool     `json:"end"` // 드래그 종료 시 정규화
}

type selectionRequest struct {
	ID string `json:"id"`
}

type zoomRequest struct {
	Scale *float64 `json:"scale" validate:"required"`
}

type wheelRequest struct {
	X      *float64 `json:"x" validate:"required"`
	Y      *float64 `json:"y" validate:"required"`
	DeltaY float64  `json:"delta_y"`
}

type panRequest struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

// ========================================
// 장면
// ========================================

func (a *API) getScene(c *fiber.Ctx) error {
	scene := a.Store.Snapshot()
	return ok(c, fiber.Map{
		"scene":       scene,
		"containment": a.Evaluator.Evaluate(scene),
	})
}

// ========================================
// 디바이스
// ========================================

func (a *API) listDevices(c *fiber.Ctx) error {
	devices := a.Store.Devices()
	if c.QueryBool("visible") {
		devices = a.Store.VisibleDevices()
	}
	return ok(c, fiber.Map{"count": len(devices), "devices": devices})
}

func (a *API) getDevice(c *fiber.Ctx) error {
	d, found := a.Store.Device(c.Params("id"))
	if !found {
		return models.NewError(models.ErrCodeDeviceNotFound, "device not found: %s", c.Params("id"))
	}
	return ok(c, fiber.Map{"device": d})
}

func (a *API) replaceDevices(c *fiber.Ctx) error {
	var req replaceDevicesRequest
	if err := a.parse(c, &req); err != nil {
		return err
	}

	devices := make([]models.Device, len(req.Devices))
	for i, d := range req.Devices {
		devices[i] = models.Device{
			ID: d.ID, Name: d.Name, X: d.X, Y: d.Y, Z: d.Z,
			Type: models.DeviceType(d.Type), Quality: d.Quality, Zone: d.Zone, Topic: d.Topic,
		}
	}
	if err := a.Store.SetDevices(devices); err != nil {
		return err
	}
	return ok(c, fiber.Map{"count": len(devices)})
}

func (a *API) refreshDevices(c *fiber.Ctx) error {
	if a.Loader == nil {
		return models.NewError(models.ErrCodeInvalidInput, "device loader is not configured")
	}
	devices, err := a.Loader.Fetch()
	if err != nil {
		return err
	}
	if err := a.Store.SetDevices(devices); err != nil {
		return err
	}
	return ok(c, fiber.Map{"count": len(devices)})
}

func (a *API) moveDevice(c *fiber.Ctx) error {
	var req pointRequest
	if err := a.parse(c, &req); err != nil {
		return err
	}
	d, err := a.Store.UpdateDevicePosition(c.Params("id"), *req.X, *req.Y)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"device": d})
}

func (a *API) setOrigin(c *fiber.Ctx) error {
	ref, moved := a.Store.SetOrigin()
	if !moved {
		return models.NewError(models.ErrCodeInvalidInput, "no devices to re-origin")
	}
	return ok(c, fiber.Map{"previous_origin": ref})
}

// ========================================
// 경계
// ========================================

func (a *API) getBoundary(c *fiber.Ctx) error {
	b := a.Store.Boundary()
	return ok(c, fiber.Map{"boundary": b, "normalized": b.Normalized()})
}

func (a *API) setBoundary(c *fiber.Ctx) error {
	var req boundaryRequest
	if err := a.parse(c, &req); err != nil {
		return err
	}
	b := models.Boundary{X: *req.X, Y: *req.Y, Width: *req.Width, Height: *req.Height}
	if !models.IsFinite(b.X) || !models.IsFinite(b.Y) || !models.IsFinite(b.Width) || !models.IsFinite(b.Height) {
		return models.NewError(models.ErrCodeInvalidInput, "boundary must be finite")
	}
	a.Store.SetBoundary(b)
	return ok(c, fiber.Map{"boundary": b})
}

func (a *API) moveBoundary(c *fiber.Ctx) error {
	var req pointRequest
	if err := a.parse(c, &req); err != nil {
		return err
	}
	return ok(c, fiber.Map{"boundary": a.Store.MoveBoundary(*req.X, *req.Y)})
}

func (a *API) resizeBoundary(c *fiber.Ctx) error {
	var req resizeRequest
	if err := a.parse(c, &req); err != nil {
		return err
	}
	b, err := a.Store.ResizeBoundaryCorner(models.Corner(req.Corner), *req.X, *req.Y)
	if err != nil {
		return err
	}
	if req.End {
		b = a.Store.NormalizeBoundary()
	}
	return ok(c, fiber.Map{"boundary": b})
}

func (a *API) normalizeBoundary(c *fiber.Ctx) error {
	return ok(c, fiber.Map{"boundary": a.Store.NormalizeBoundary()})
}

// ========================================
// 선택 / 표시
// ========================================

func (a *API) setSelection(c *fiber.Ctx) error {
	var req selectionRequest
	if err := a.parse(c, &req); err != nil {
		return err
	}
	if err := a.Store.SetSelectedDevice(req.ID); err != nil {
		return err
	}
	return ok(c, fiber.Map{"selected_device_id": req.ID})
}

func (a *API) toggleVisibility(c *fiber.Ctx) error {
	t := models.DeviceType(c.Params("type"))
	visible, err := a.Store.ToggleVisibility(t)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"type": t, "visible": visible})
}

// ========================================
// 뷰포트
// ========================================

func (a *API) getViewport(c *fiber.Ctx) error {
	return ok(c, fiber.Map{"viewport": a.Store.Viewport()})
}

func (a *API) setZoom(c *fiber.Ctx) error {
	var req zoomRequest
	if err := a.parse(c, &req); err != nil {
		return err
	}
	v, err := a.Store.SetZoom(*req.Scale)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"viewport": v})
}

func (a *API) resetZoom(c *fiber.Ctx) error {
	return ok(c, fiber.Map{"viewport": a.Store.ResetZoom()})
}

// wheelZoom - 휠 위로(음수 delta) 확대, 아래로 축소. 포인터 아래 지점 고정.
func (a *API) wheelZoom(c *fiber.Ctx) error {
	var req wheelRequest
	if err := a.parse(c, &req); err != nil {
		return err
	}
	factor := 1.0
	switch {
	case req.DeltaY < 0:
		factor = a.WheelFactor
	case req.DeltaY > 0:
		factor = 1 / a.WheelFactor
	}
	v, err := a.Store.ZoomAt(*req.X, *req.Y, factor)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"viewport": v})
}

func (a *API) pan(c *fiber.Ctx) error {
	var req panRequest
	if err := a.parse(c, &req); err != nil {
		return err
	}
	v, err := a.Store.Pan(req.DX, req.DY)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"viewport": v})
}

// transformPoint converts ?x=&y= between world and pixel space under the
// current viewport. from=world (default) or from=pixel.
func (a *API) transformPoint(c *fiber.Ctx) error {
	x, err := queryFloat(c, "x")
	if err != nil {
		return err
	}
	y, err := queryFloat(c, "y")
	if err != nil {
		return err
	}
	p := models.Point{X: x, Y: y}
	v := a.Store.Viewport()

	switch c.Query("from", "world") {
	case "world":
		return ok(c, fiber.Map{"world": p, "pixel": algorithms.WorldToPixel(v, p), "viewport": v})
	case "pixel":
		return ok(c, fiber.Map{"pixel": p, "world": algorithms.PixelToWorld(v, p), "viewport": v})
	default:
		return models.NewError(models.ErrCodeInvalidInput, "from must be world or pixel")
	}
}

// ========================================
// 포함 여부 / 피드
// ========================================

func (a *API) containment(c *fiber.Ctx) error {
	return ok(c, fiber.Map{"report": a.Evaluator.Evaluate(a.Store.Snapshot())})
}

func (a *API) feedStatus(c *fiber.Ctx) error {
	if a.Feeds == nil {
		return ok(c, fiber.Map{"devices": []FeedInfo{}})
	}
	return ok(c, fiber.Map{"devices": a.Feeds.All(), "stats": a.Feeds.Statistics()})
}
