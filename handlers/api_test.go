package handlers

import (
	"bytes"
	"encoding/json"
	"image/color"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blueprint-backend/models"
	"blueprint-backend/services"
)

type idleTicker struct{ c chan time.Time }

func (t idleTicker) C() <-chan time.Time { return t.c }
func (t idleTicker) Stop()               {}

type testServer struct {
	app      *fiber.App
	store    *services.SpatialStore
	animator *services.Animator
	floors   *services.FloorRepository
	events   *services.EventLog
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := services.NewSpatialStore(services.DefaultStoreOptions(), nil)
	require.NoError(t, store.SetDevices([]models.Device{
		{ID: "a1", X: 2, Y: 2, Type: models.DeviceTypeAnchor},
		{ID: "t1", X: 5, Y: 5, Type: models.DeviceTypeTag},
		{ID: "far", X: 40, Y: 40, Type: models.DeviceTypeDevice},
	}))
	animator := services.NewAnimator(store, services.AnimatorOptions{
		Speed:     1,
		Tolerance: 1,
		NewTicker: func(time.Duration) services.Ticker { return idleTicker{c: make(chan time.Time)} },
	}, nil)

	db, err := services.OpenDatabase(services.DatabaseOptions{Driver: "sqlite", SQLitePath: ":memory:"}, nil)
	require.NoError(t, err)
	floors := services.NewFloorRepository(db, 0, nil)
	events := services.NewEventLog(db, 1000, time.Hour, nil)
	events.Attach(store, animator)

	api := NewAPI(Deps{
		Store:    store,
		Animator: animator,
		Floors:   floors,
		Events:   events,
		Feeds:    NewFeedTracker(time.Minute),
	})
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	api.Routes(app)

	return &testServer{app: app, store: store, animator: animator, floors: floors, events: events}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.send(t, req)
}

func (s *testServer) send(t *testing.T, req *http.Request) (int, map[string]interface{}) {
	t.Helper()

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := map[string]interface{}{}
	if len(raw) > 0 && resp.Header.Get("Content-Type") != "image/png" {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	status, body := s.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", body["status"])
	assert.Equal(t, float64(3), body["devices"])
}

func TestGetSceneIncludesContainment(t *testing.T) {
	s := newTestServer(t)
	status, body := s.do(t, http.MethodGet, "/api/scene", nil)
	require.Equal(t, http.StatusOK, status)

	report := body["containment"].(map[string]interface{})
	assert.Equal(t, float64(1), report["outside"])
}

func TestReplaceDevices(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.store.SetSelectedDevice("t1"))

	status, _ := s.do(t, http.MethodPut, "/api/devices", fiber.Map{
		"devices": []fiber.Map{{"id": "n1", "x": 1, "y": 1, "type": "tag"}},
	})
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, s.store.Devices(), 1)
	assert.Empty(t, s.store.Snapshot().SelectedDeviceID)

	status, body := s.do(t, http.MethodPut, "/api/devices", fiber.Map{
		"devices": []fiber.Map{{"x": 1}},
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, string(models.ErrCodeInvalidInput), body["code"])
	assert.Equal(t, false, body["success"])
}

func TestMoveDevice(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(t, http.MethodPatch, "/api/devices/t1/position", fiber.Map{"x": 7, "y": 8})
	require.Equal(t, http.StatusOK, status)
	d, _ := s.store.Device("t1")
	assert.Equal(t, models.Point{X: 7, Y: 8}, d.Position())

	status, body := s.do(t, http.MethodPatch, "/api/devices/ghost/position", fiber.Map{"x": 1, "y": 1})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, string(models.ErrCodeDeviceNotFound), body["code"])

	status, _ = s.do(t, http.MethodPatch, "/api/devices/t1/position", fiber.Map{"x": 1})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSetOriginRoute(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(t, http.MethodPost, "/api/devices/origin", nil)
	require.Equal(t, http.StatusOK, status)
	a, _ := s.store.Device("a1")
	assert.Equal(t, models.Point{}, a.Position())
}

func TestBoundaryResizeAndNormalize(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(t, http.MethodPut, "/api/boundary", fiber.Map{"x": 0, "y": 0, "width": 100, "height": 100})
	require.Equal(t, http.StatusOK, status)

	status, _ = s.do(t, http.MethodPost, "/api/boundary/resize", fiber.Map{"corner": "bottomRight", "x": 150, "y": 80})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.Boundary{Width: 150, Height: 80}, s.store.Boundary())

	status, _ = s.do(t, http.MethodPost, "/api/boundary/resize", fiber.Map{"corner": "bottomRight", "x": -50, "y": -20, "end": true})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.Boundary{X: -50, Y: -20, Width: 50, Height: 20}, s.store.Boundary())

	status, _ = s.do(t, http.MethodPost, "/api/boundary/resize", fiber.Map{"corner": "center", "x": 1, "y": 1})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSelectionStaleReference(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPut, "/api/selection", fiber.Map{"id": "ghost"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, string(models.ErrCodeStaleReference), body["code"])

	status, _ = s.do(t, http.MethodPut, "/api/selection", fiber.Map{"id": "t1"})
	assert.Equal(t, http.StatusOK, status)
}

func TestToggleVisibilityRoute(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/api/visibility/anchor/toggle", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["visible"])

	status, _ = s.do(t, http.MethodPost, "/api/visibility/robot/toggle", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestViewportRoutes(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(t, http.MethodPut, "/api/viewport/zoom", fiber.Map{"scale": 0})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(t, http.MethodPut, "/api/viewport/zoom", fiber.Map{"scale": 10})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2.0, s.store.Viewport().Scale)

	status, _ = s.do(t, http.MethodPost, "/api/viewport/reset", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.IdentityViewport, s.store.Viewport())

	status, _ = s.do(t, http.MethodPost, "/api/viewport/wheel", fiber.Map{"x": 100, "y": 100, "delta_y": -1})
	require.Equal(t, http.StatusOK, status)
	v := s.store.Viewport()
	assert.InDelta(t, 1.1, v.Scale, 1e-9)
	// 포인터 아래 월드 좌표 (2,2)는 그대로 (100,100)에 남는다
	assert.InDelta(t, 100, 2*50*v.Scale+v.OffsetX, 1e-6)
	assert.InDelta(t, 100, 2*50*v.Scale+v.OffsetY, 1e-6)

	status, body := s.do(t, http.MethodGet, "/api/viewport/transform?x=2&y=2", nil)
	require.Equal(t, http.StatusOK, status)
	pixel := body["pixel"].(map[string]interface{})
	assert.InDelta(t, 2*50*v.Scale+v.OffsetX, pixel["x"], 1e-9)

	status, _ = s.do(t, http.MethodGet, "/api/viewport/transform?x=abc&y=2", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAnimationRoutes(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/api/animation/start", fiber.Map{"device_id": "a1", "x": 1, "y": 1})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, string(models.ErrCodeInvalidTarget), body["code"])

	status, body = s.do(t, http.MethodPost, "/api/animation/start", fiber.Map{"device_id": "t1", "x": 9})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, string(models.ErrCodeInvalidDestination), body["code"])

	status, _ = s.do(t, http.MethodPost, "/api/animation/start", nil)
	assert.Equal(t, http.StatusBadRequest, status, "no stored end location")

	status, _ = s.do(t, http.MethodPut, "/api/end-location", fiber.Map{"x": 5, "y": 10})
	require.Equal(t, http.StatusOK, status)

	status, body = s.do(t, http.MethodPost, "/api/animation/start", nil)
	require.Equal(t, http.StatusOK, status)
	anim := body["animation"].(map[string]interface{})
	assert.Equal(t, "running", anim["state"])
	assert.Equal(t, "t1", anim["device_id"])

	s.animator.Advance()
	status, body = s.do(t, http.MethodPost, "/api/animation/cancel", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["cancelled"])

	status, body = s.do(t, http.MethodGet, "/api/animation", nil)
	require.Equal(t, http.StatusOK, status)
	anim = body["animation"].(map[string]interface{})
	assert.Equal(t, "cancelled", anim["state"])
	assert.Equal(t, float64(1), anim["steps"])
}

func planUpload(t *testing.T, floor string) *http.Request {
	t.Helper()

	var img bytes.Buffer
	require.NoError(t, imaging.Encode(&img, imaging.New(30, 20, color.NRGBA{R: 255, G: 255, B: 255, A: 255}), imaging.PNG))

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if floor != "" {
		require.NoError(t, w.WriteField("floor", floor))
	}
	part, err := w.CreateFormFile("file", "plan.png")
	require.NoError(t, err)
	_, err = part.Write(img.Bytes())
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/blueprint", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestFloorAndBlueprintRoutes(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/api/floors/count", fiber.Map{"number_of_floors": 2})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(2), body["count"])

	status, _ = s.do(t, http.MethodPost, "/api/floors/count", fiber.Map{"number_of_floors": 0})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = s.send(t, planUpload(t, "2"))
	require.Equal(t, http.StatusOK, status, body)
	bp := s.store.Snapshot().Blueprint.Image
	require.NotNil(t, bp)
	assert.Equal(t, 2, bp.Floor)
	assert.Equal(t, 30, bp.Width)

	req := httptest.NewRequest(http.MethodGet, "/api/blueprint/image", nil)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	_ = resp.Body.Close()

	status, body = s.do(t, http.MethodPatch, "/api/floors/2/boundaries", fiber.Map{
		"boundaries": []fiber.Map{{"x": 2, "y": 2}, {"x": 14, "y": 2}, {"x": 14, "y": 10}, {"x": 2, "y": 10}},
	})
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["bounding_square"], 4)

	status, body = s.do(t, http.MethodPatch, "/api/floors/2/boundaries", fiber.Map{
		"boundaries": []fiber.Map{{"x": 2, "y": 2}},
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, string(models.ErrCodeDegeneratePolygon), body["code"])

	status, _ = s.do(t, http.MethodPost, "/api/floors/2/apply", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.Boundary{X: 100, Y: 100, Width: 600, Height: 400}, s.store.Boundary())

	// 경계 다각형이 없는 층은 경계를 바꾸지 않는다
	s.store.MoveBoundary(10, 10)
	status, _ = s.do(t, http.MethodPost, "/api/floors/1/apply", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.Boundary{X: 10, Y: 10, Width: 600, Height: 400}, s.store.Boundary())

	status, body = s.do(t, http.MethodGet, "/api/containment/floor/2", nil)
	require.Equal(t, http.StatusOK, status)
	results := body["results"].([]interface{})
	assert.Len(t, results, 3)

	status, _ = s.do(t, http.MethodPatch, "/api/floors/1/z-axis", fiber.Map{"min_z": 3, "max_z": 1})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(t, http.MethodPatch, "/api/floors/1/z-axis", fiber.Map{"min_z": 0, "max_z": 3})
	require.Equal(t, http.StatusOK, status)
	status, body = s.do(t, http.MethodGet, "/api/floors/at?z=1.5", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["floor"].(map[string]interface{})["number"])
	status, _ = s.do(t, http.MethodGet, "/api/floors/at?z=7", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = s.do(t, http.MethodGet, "/api/floors/9", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = s.do(t, http.MethodDelete, "/api/floors/2/image", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Nil(t, s.store.Snapshot().Blueprint.Image)
}

func TestLogRoutes(t *testing.T) {
	s := newTestServer(t)

	_, err := s.store.UpdateDevicePosition("t1", 1, 1)
	require.NoError(t, err)

	status, body := s.do(t, http.MethodGet, "/api/logs/stats", nil)
	require.Equal(t, http.StatusOK, status)
	stats := body["stats"].(map[string]interface{})
	assert.Equal(t, float64(1), stats["total_logs"])

	status, body = s.do(t, http.MethodGet, "/api/logs/recent?device_id=t1", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["count"])

	status, _ = s.do(t, http.MethodGet, "/api/logs/type", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(t, http.MethodGet, "/api/logs/range?start=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestRefreshWithoutLoader(t *testing.T) {
	s := newTestServer(t)
	status, _ := s.do(t, http.MethodPost, "/api/devices/refresh", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}
