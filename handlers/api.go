package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"blueprint-backend/models"
	"blueprint-backend/services"
)

// Deps - API가 사용하는 서비스 묶음
type Deps struct {
	Store     *services.SpatialStore
	Animator  *services.Animator
	Evaluator *services.Evaluator
	Floors    *services.FloorRepository // nil이면 층/도면 라우트 비활성
	Events    *services.EventLog        // nil이면 로그 라우트 비활성
	Loader    *services.DeviceLoader
	Hub       *Hub
	Feeds     *FeedTracker

	WheelFactor float64 // 휠 한 칸당 줌 배율
	Logger      *log.Logger
}

// API - REST 핸들러
type API struct {
	Deps
	validate *validator.Validate
	logger   *log.Logger
}

// NewAPI - 핸들러 생성
func NewAPI(deps Deps) *API {
	if deps.Evaluator == nil {
		deps.Evaluator = services.NewEvaluator()
	}
	if deps.WheelFactor <= 1 {
		deps.WheelFactor = 1.1
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &API{
		Deps:     deps,
		validate: validator.New(),
		logger:   logger.WithPrefix("api"),
	}
}

// Routes registers every REST route under /api. Extra middleware (rate
// limiting) applies to the /api group only.
func (a *API) Routes(app *fiber.App, middleware ...fiber.Handler) {
	api := app.Group("/api", middleware...)

	api.Get("/health", a.health)
	api.Get("/scene", a.getScene)

	// 디바이스
	devices := api.Group("/devices")
	devices.Get("/", a.listDevices)
	devices.Put("/", a.replaceDevices)
	devices.Post("/refresh", a.refreshDevices)
	devices.Post("/origin", a.setOrigin)
	devices.Get("/:id", a.getDevice)
	devices.Patch("/:id/position", a.moveDevice)

	// 경계
	boundary := api.Group("/boundary")
	boundary.Get("/", a.getBoundary)
	boundary.Put("/", a.setBoundary)
	boundary.Patch("/move", a.moveBoundary)
	boundary.Post("/resize", a.resizeBoundary)
	boundary.Post("/normalize", a.normalizeBoundary)

	api.Put("/selection", a.setSelection)
	api.Post("/visibility/:type/toggle", a.toggleVisibility)

	// 뷰포트
	viewport := api.Group("/viewport")
	viewport.Get("/", a.getViewport)
	viewport.Put("/zoom", a.setZoom)
	viewport.Post("/reset", a.resetZoom)
	viewport.Post("/wheel", a.wheelZoom)
	viewport.Post("/pan", a.pan)
	viewport.Get("/transform", a.transformPoint)

	// 도면
	api.Post("/blueprint", a.uploadBlueprint)
	api.Get("/blueprint/image", a.blueprintImage)
	api.Put("/blueprint/position", a.setBlueprintPosition)

	// 애니메이션
	api.Put("/end-location", a.setEndLocation)
	api.Post("/animation/start", a.startAnimation)
	api.Post("/animation/cancel", a.cancelAnimation)
	api.Get("/animation", a.animationStatus)

	api.Get("/containment", a.containment)
	api.Get("/containment/floor/:number", a.floorContainment)

	api.Get("/feed", a.feedStatus)

	if a.Floors != nil {
		floors := api.Group("/floors")
		floors.Get("/", a.listFloors)
		floors.Post("/count", a.setFloorCount)
		floors.Get("/at", a.floorAt)
		floors.Get("/:number", a.getFloor)
		floors.Post("/:number/image", a.uploadFloorImage)
		floors.Get("/:number/image", a.floorImage)
		floors.Delete("/:number/image", a.removeFloorImage)
		floors.Patch("/:number/z-axis", a.setFloorZAxis)
		floors.Patch("/:number/boundaries", a.setFloorBoundaries)
		floors.Patch("/:number/starting-point", a.setFloorStartingPoint)
		floors.Post("/:number/apply", a.applyFloor)
	}

	if a.Events != nil {
		logs := api.Group("/logs")
		logs.Get("/recent", a.recentLogs)
		logs.Get("/range", a.logsByTimeRange)
		logs.Get("/type", a.logsByEventType)
		logs.Get("/stats", a.logStats)
	}
}

func (a *API) health(c *fiber.Ctx) error {
	clients := map[string]int{}
	if a.Hub != nil {
		clients = a.Hub.ClientCount()
	}
	return c.JSON(fiber.Map{
		"status":  "OK",
		"clients": clients,
		"devices": len(a.Store.Devices()),
		"time":    time.Now().Format(time.RFC3339),
	})
}

// ========================================
// 요청 파싱 헬퍼
// ========================================

// parse decodes the JSON body into req and validates it.
func (a *API) parse(c *fiber.Ctx, req interface{}) error {
	if err := c.BodyParser(req); err != nil {
		return models.WrapError(models.ErrCodeInvalidInput, err, "invalid request body")
	}
	if err := a.validate.Struct(req); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return models.WrapError(models.ErrCodeInvalidInput, err, "invalid request")
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			fields = append(fields, fmt.Sprintf("%s (%s=%s)", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
		}
	}
	return models.NewError(models.ErrCodeInvalidInput, "invalid fields: %s", strings.Join(fields, ", "))
}

func paramInt(c *fiber.Ctx, name string) (int, error) {
	n, err := strconv.Atoi(c.Params(name))
	if err != nil {
		return 0, models.NewError(models.ErrCodeInvalidInput, "%s must be an integer", name)
	}
	return n, nil
}

func queryFloat(c *fiber.Ctx, name string) (float64, error) {
	v, err := strconv.ParseFloat(c.Query(name), 64)
	if err != nil || !models.IsFinite(v) {
		return 0, models.NewError(models.ErrCodeInvalidInput, "query %s must be a finite number", name)
	}
	return v, nil
}

func queryLimit(c *fiber.Ctx) int {
	limit, err := strconv.Atoi(c.Query("limit", "100"))
	if err != nil || limit <= 0 {
		return 100
	}
	return limit
}

func ok(c *fiber.Ctx, data fiber.Map) error {
	data["success"] = true
	return c.JSON(data)
}
