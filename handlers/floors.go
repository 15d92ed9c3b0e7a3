package handlers

import (
	"io"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"blueprint-backend/algorithms"
	"blueprint-backend/models"
	"blueprint-backend/services"
)

type floorCountRequest struct {
	NumberOfFloors int `json:"number_of_floors" validate:"required,min=1,max=200"`
}

type zAxisRequest struct {
	MinZ *float64 `json:"min_z" validate:"required"`
	MaxZ *float64 `json:"max_z" validate:"required"`
}

type floorBoundariesRequest struct {
	Boundaries []models.Point `json:"boundaries" validate:"required"`
}

type startingPointRequest struct {
	X *float64 `json:"x" validate:"required"`
	Y *float64 `json:"y" validate:"required"`
	Z *float64 `json:"z" validate:"required"`
}

func (a *API) listFloors(c *fiber.Ctx) error {
	floors, err := a.Floors.ListFloors()
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"count": len(floors), "floors": floors})
}

func (a *API) setFloorCount(c *fiber.Ctx) error {
	var req floorCountRequest
	if err := a.parse(c, &req); err != nil {
		return err
	}
	floors, err := a.Floors.SetFloorCount(req.NumberOfFloors)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"count": len(floors), "floors": floors})
}

func (a *API) getFloor(c *fiber.Ctx) error {
	n, err := paramInt(c, "number")
	if err != nil {
		return err
	}
	f, err := a.Floors.Floor(n)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"floor": f})
}

// floorAt - 높이 z가 속한 층
func (a *API) floorAt(c *fiber.Ctx) error {
	z, err := queryFloat(c, "z")
	if err != nil {
		return err
	}
	f, err := a.Floors.FloorFor(z)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"floor": f})
}

// readUpload returns the bytes of the multipart "file" field.
func readUpload(c *fiber.Ctx) ([]byte, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, models.WrapError(models.ErrCodeInvalidInput, err, "multipart field \"file\" is required")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, models.WrapError(models.ErrCodeInvalidInput, err, "open upload")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, models.WrapError(models.ErrCodeInvalidInput, err, "read upload")
	}
	return data, nil
}

func (a *API) uploadFloorImage(c *fiber.Ctx) error {
	n, err := paramInt(c, "number")
	if err != nil {
		return err
	}
	data, err := readUpload(c)
	if err != nil {
		return err
	}
	f, err := a.Floors.UploadImage(n, data)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"floor": f})
}

func (a *API) floorImage(c *fiber.Ctx) error {
	n, err := paramInt(c, "number")
	if err != nil {
		return err
	}
	png, _, err := a.Floors.Image(n)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(png)
}

func (a *API) removeFloorImage(c *fiber.Ctx) error {
	n, err := paramInt(c, "number")
	if err != nil {
		return err
	}
	f, err := a.Floors.RemoveImage(n)
	if err != nil {
		return err
	}

	// 현재 표시 중인 도면이면 내린다
	if cur := a.Store.Snapshot().Blueprint.Image; cur != nil && cur.Floor == n {
		a.Store.SetBlueprint(nil)
	}
	return ok(c, fiber.Map{"floor": f})
}

func (a *API) setFloorZAxis(c *fiber.Ctx) error {
	n, err := paramInt(c, "number")
	if err != nil {
		return err
	}
	var req zAxisRequest
	if err := a.parse(c, &req); err != nil {
		return err
	}
	f, err := a.Floors.SetZAxis(n, *req.MinZ, *req.MaxZ)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"floor": f})
}

func (a *API) setFloorBoundaries(c *fiber.Ctx) error {
	n, err := paramInt(c, "number")
	if err != nil {
		return err
	}
	var req floorBoundariesRequest
	if err := a.parse(c, &req); err != nil {
		return err
	}
	f, err := a.Floors.SetBoundaries(n, req.Boundaries)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"floor": f, "bounding_square": algorithms.BoundingSquare(f.Boundaries)})
}

func (a *API) setFloorStartingPoint(c *fiber.Ctx) error {
	n, err := paramInt(c, "number")
	if err != nil {
		return err
	}
	var req startingPointRequest
	if err := a.parse(c, &req); err != nil {
		return err
	}
	f, err := a.Floors.SetStartingPoint(n, *req.X, *req.Y, *req.Z)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"floor": f})
}

// applyFloor shows the floor's blueprint and, when the floor has a boundary
// polygon, replaces the boundary rectangle with the polygon's bounding box.
func (a *API) applyFloor(c *fiber.Ctx) error {
	n, err := paramInt(c, "number")
	if err != nil {
		return err
	}
	f, err := a.Floors.Floor(n)
	if err != nil {
		return err
	}

	if f.HasImage() {
		a.Store.SetBlueprint(&models.BlueprintImage{
			ImageID: f.ImageID,
			Floor:   f.Number,
			Width:   f.ImageWidth,
			Height:  f.ImageHeight,
		})
	}
	if b, ok := algorithms.BoundaryFromPolygon(f.Boundaries); ok {
		a.Store.SetBoundary(b)
	}
	return ok(c, fiber.Map{"floor": f, "scene": a.Store.Snapshot()})
}

// uploadBlueprint stores an uploaded plan on a floor (form field "floor",
// default 1) and shows it.
func (a *API) uploadBlueprint(c *fiber.Ctx) error {
	if a.Floors == nil {
		return models.NewError(models.ErrCodeInvalidInput, "blueprint storage is not configured")
	}
	floor := 1
	if v := c.FormValue("floor"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return models.NewError(models.ErrCodeInvalidInput, "floor must be an integer")
		}
		floor = n
	}
	data, err := readUpload(c)
	if err != nil {
		return err
	}
	f, err := a.Floors.UploadImage(floor, data)
	if err != nil {
		return err
	}

	img := &models.BlueprintImage{ImageID: f.ImageID, Floor: f.Number, Width: f.ImageWidth, Height: f.ImageHeight}
	a.Store.SetBlueprint(img)
	return ok(c, fiber.Map{"blueprint": img})
}

func (a *API) blueprintImage(c *fiber.Ctx) error {
	cur := a.Store.Snapshot().Blueprint.Image
	if cur == nil || a.Floors == nil {
		return models.NewError(models.ErrCodeFloorNotFound, "no blueprint loaded")
	}
	png, _, err := a.Floors.Image(cur.Floor)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(png)
}

func (a *API) setBlueprintPosition(c *fiber.Ctx) error {
	var req pointRequest
	if err := a.parse(c, &req); err != nil {
		return err
	}
	p := req.point()
	if !models.IsFinite(p.X) || !models.IsFinite(p.Y) {
		return models.NewError(models.ErrCodeInvalidInput, "position must be finite")
	}
	a.Store.SetBlueprintPosition(p)
	return ok(c, fiber.Map{"position": p})
}

// floorContainment reports which visible devices lie inside the floor's
// boundary polygon (world space).
func (a *API) floorContainment(c *fiber.Ctx) error {
	if a.Floors == nil {
		return models.NewError(models.ErrCodeFloorNotFound, "floors are not configured")
	}
	n, err := paramInt(c, "number")
	if err != nil {
		return err
	}
	f, err := a.Floors.Floor(n)
	if err != nil {
		return err
	}
	if err := algorithms.ValidatePolygon(f.Boundaries); err != nil {
		return err
	}

	scene := a.Store.Snapshot()
	results := a.Evaluator.EvaluateRegion(a.Store.VisibleDevices(),
		services.PolygonRegion{Vertices: f.Boundaries}, services.SpaceWorld, scene.Viewport)
	return ok(c, fiber.Map{"floor": f.Number, "results": results})
}
