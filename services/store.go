package services

import (
	"maps"
	"slices"
	"sync"

	"github.com/charmbracelet/log"

	"blueprint-backend/algorithms"
	"blueprint-backend/models"
)

// StoreEventKind - 저장소 변경 종류
type StoreEventKind string

const (
	StoreEventDevices     StoreEventKind = "devices"
	StoreEventPosition    StoreEventKind = "position"
	StoreEventBoundary    StoreEventKind = "boundary"
	StoreEventViewport    StoreEventKind = "viewport"
	StoreEventSelection   StoreEventKind = "selection"
	StoreEventVisibility  StoreEventKind = "visibility"
	StoreEventBlueprint   StoreEventKind = "blueprint"
	StoreEventEndLocation StoreEventKind = "end_location"
)

// StoreEvent is delivered to subscribers after a mutation has been applied.
// Device is set for position events.
type StoreEvent struct {
	Kind   StoreEventKind
	Device *models.Device
}

// StoreOptions - 저장소 초기 설정
type StoreOptions struct {
	MinScale float64
	MaxScale float64
	Boundary models.Boundary
}

// DefaultStoreOptions returns the zoom limits of the control slider and the
// editor's initial boundary.
func DefaultStoreOptions() StoreOptions {
	return StoreOptions{
		MinScale: algorithms.DefaultMinScale,
		MaxScale: algorithms.DefaultMaxScale,
		Boundary: models.DefaultBoundary,
	}
}

// SpatialStore - 디바이스/뷰포트/경계/선택/표시 상태의 단일 소유자
//
// 모든 변경은 이 구조체의 메서드를 통해서만 이루어진다.
// 디바이스 목록은 변경 시마다 새 슬라이스로 교체된다 (copy-on-write).
type SpatialStore struct {
	mu          sync.RWMutex
	devices     []models.Device
	index       map[string]int // device id -> devices 인덱스
	boundary    models.Boundary
	viewport    models.Viewport
	blueprint   models.BlueprintPlacement
	selectedID  string
	visibility  map[models.DeviceType]bool
	endLocation *models.Point
	opts        StoreOptions

	subMu   sync.RWMutex
	subs    map[int]func(StoreEvent)
	nextSub int

	logger *log.Logger
}

// NewSpatialStore - 저장소 생성
func NewSpatialStore(opts StoreOptions, logger *log.Logger) *SpatialStore {
	if opts.MinScale <= 0 || opts.MaxScale < opts.MinScale {
		def := DefaultStoreOptions()
		opts.MinScale, opts.MaxScale = def.MinScale, def.MaxScale
	}

	visibility := make(map[models.DeviceType]bool, len(models.DeviceTypes))
	for _, t := range models.DeviceTypes {
		visibility[t] = true
	}

	return &SpatialStore{
		devices:    []models.Device{},
		index:      map[string]int{},
		boundary:   opts.Boundary,
		viewport:   models.IdentityViewport,
		visibility: visibility,
		opts:       opts,
		subs:       map[int]func(StoreEvent){},
		logger:     orDiscard(logger).WithPrefix("store"),
	}
}

// Subscribe registers fn for change events and returns a function that
// removes it. fn runs on the mutating goroutine, outside the store lock.
// Animation steps write through this store, so fn must not start or cancel
// an animation.
func (s *SpatialStore) Subscribe(fn func(StoreEvent)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *SpatialStore) emit(events ...StoreEvent) {
	s.subMu.RLock()
	subs := slices.Collect(maps.Values(s.subs))
	s.subMu.RUnlock()

	for _, ev := range events {
		for _, fn := range subs {
			fn(ev)
		}
	}
}

// ========================================
// 디바이스
// ========================================

// SetDevices atomically replaces the device collection. Devices are
// normalized on the way in; empty or duplicate ids reject the whole batch.
// A selection whose id is missing from the new collection is cleared.
func (s *SpatialStore) SetDevices(devices []models.Device) error {
	next := make([]models.Device, len(devices))
	index := make(map[string]int, len(devices))
	for i, d := range devices {
		d = d.Normalized()
		if d.ID == "" {
			return models.NewError(models.ErrCodeInvalidInput, "device at index %d has no id", i)
		}
		if _, dup := index[d.ID]; dup {
			return models.NewError(models.ErrCodeInvalidInput, "duplicate device id %q", d.ID)
		}
		next[i] = d
		index[d.ID] = i
	}

	s.mu.Lock()
	s.devices = next
	s.index = index
	cleared := ""
	if s.selectedID != "" {
		if _, ok := index[s.selectedID]; !ok {
			cleared = s.selectedID
			s.selectedID = ""
		}
	}
	s.mu.Unlock()

	s.logger.Debug("devices replaced", "count", len(next))
	events := []StoreEvent{{Kind: StoreEventDevices}}
	if cleared != "" {
		s.logger.Debug("selection cleared", "id", cleared)
		events = append(events, StoreEvent{Kind: StoreEventSelection})
	}
	s.emit(events...)
	return nil
}

// UpdateDevicePosition replaces the coordinates of one device.
func (s *SpatialStore) UpdateDevicePosition(id string, x, y float64) (models.Device, error) {
	if !models.IsFinite(x) || !models.IsFinite(y) {
		return models.Device{}, models.NewError(models.ErrCodeInvalidInput,
			"position (%v, %v) is not finite", x, y)
	}

	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return models.Device{}, models.NewError(models.ErrCodeDeviceNotFound, "device not found: %s", id)
	}
	next := slices.Clone(s.devices)
	next[i].X = x
	next[i].Y = y
	s.devices = next
	updated := next[i]
	s.mu.Unlock()

	s.emit(StoreEvent{Kind: StoreEventPosition, Device: &updated})
	return updated, nil
}

// SetOrigin translates every device so that the first anchor (or the first
// device when there is no anchor) sits at (0,0). It returns the previous
// position of that reference device and false when there are no devices.
func (s *SpatialStore) SetOrigin() (models.Point, bool) {
	s.mu.Lock()
	if len(s.devices) == 0 {
		s.mu.Unlock()
		return models.Point{}, false
	}

	ref := s.devices[0]
	for _, d := range s.devices {
		if d.Type == models.DeviceTypeAnchor {
			ref = d
			break
		}
	}

	next := make([]models.Device, len(s.devices))
	for i, d := range s.devices {
		d.X -= ref.X
		d.Y -= ref.Y
		next[i] = d
	}
	s.devices = next
	s.mu.Unlock()

	s.logger.Info("origin moved", "reference", ref.ID, "x", ref.X, "y", ref.Y)
	s.emit(StoreEvent{Kind: StoreEventDevices})
	return ref.Position(), true
}

// Device returns a copy of the device with the given id.
func (s *SpatialStore) Device(id string) (models.Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return models.Device{}, false
	}
	return s.devices[i], true
}

// FirstOfType returns the first device of type t in collection order.
func (s *SpatialStore) FirstOfType(t models.DeviceType) (models.Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, d := range s.devices {
		if d.Type == t {
			return d, true
		}
	}
	return models.Device{}, false
}

// Devices returns a copy of the whole collection.
func (s *SpatialStore) Devices() []models.Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.devices)
}

// VisibleDevices returns the devices whose type is currently visible.
func (s *SpatialStore) VisibleDevices() []models.Device {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Device, 0, len(s.devices))
	for _, d := range s.devices {
		if s.visibility[d.Type] {
			out = append(out, d)
		}
	}
	return out
}

// ========================================
// 경계
// ========================================

// SetBoundary replaces the boundary as given. No normalization happens here;
// negative extents are allowed while a drag is in progress.
func (s *SpatialStore) SetBoundary(b models.Boundary) {
	s.mu.Lock()
	s.boundary = b
	s.mu.Unlock()
	s.emit(StoreEvent{Kind: StoreEventBoundary})
}

// MoveBoundary moves the boundary's origin keeping its extents.
func (s *SpatialStore) MoveBoundary(x, y float64) models.Boundary {
	s.mu.Lock()
	s.boundary.X = x
	s.boundary.Y = y
	b := s.boundary
	s.mu.Unlock()

	s.emit(StoreEvent{Kind: StoreEventBoundary})
	return b
}

// ResizeBoundaryCorner moves the given corner to the pointer while the
// opposite corner stays fixed. Width and height are signed and go negative
// when the pointer crosses the fixed corner.
func (s *SpatialStore) ResizeBoundaryCorner(corner models.Corner, px, py float64) (models.Boundary, error) {
	s.mu.Lock()
	b := s.boundary
	left, top := b.X, b.Y
	right, bottom := b.X+b.Width, b.Y+b.Height

	switch corner {
	case models.CornerTopLeft:
		b = models.Boundary{X: px, Y: py, Width: right - px, Height: bottom - py}
	case models.CornerTopRight:
		b = models.Boundary{X: left, Y: py, Width: px - left, Height: bottom - py}
	case models.CornerBottomLeft:
		b = models.Boundary{X: px, Y: top, Width: right - px, Height: py - top}
	case models.CornerBottomRight:
		b = models.Boundary{X: left, Y: top, Width: px - left, Height: py - top}
	default:
		s.mu.Unlock()
		return models.Boundary{}, models.NewError(models.ErrCodeInvalidInput, "unknown corner %q", corner)
	}
	s.boundary = b
	s.mu.Unlock()

	s.emit(StoreEvent{Kind: StoreEventBoundary})
	return b, nil
}

// NormalizeBoundary rewrites the boundary with non-negative extents. Called
// when a resize gesture ends.
func (s *SpatialStore) NormalizeBoundary() models.Boundary {
	s.mu.Lock()
	s.boundary = s.boundary.Normalized()
	b := s.boundary
	s.mu.Unlock()

	s.emit(StoreEvent{Kind: StoreEventBoundary})
	return b
}

// Boundary returns the boundary as stored (possibly with negative extents).
func (s *SpatialStore) Boundary() models.Boundary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.boundary
}

// ========================================
// 선택 / 표시
// ========================================

// SetSelectedDevice selects a device by id. An empty id clears the selection;
// an id that is not in the collection is rejected with StaleReference.
func (s *SpatialStore) SetSelectedDevice(id string) error {
	s.mu.Lock()
	if id != "" {
		if _, ok := s.index[id]; !ok {
			s.mu.Unlock()
			return models.NewError(models.ErrCodeStaleReference, "device %s is not in the current collection", id)
		}
	}
	s.selectedID = id
	s.mu.Unlock()

	s.emit(StoreEvent{Kind: StoreEventSelection})
	return nil
}

// SelectedDevice resolves the current selection against the collection.
func (s *SpatialStore) SelectedDevice() (models.Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.selectedID == "" {
		return models.Device{}, false
	}
	i, ok := s.index[s.selectedID]
	if !ok {
		return models.Device{}, false
	}
	return s.devices[i], true
}

// ToggleVisibility flips the visibility of a device type and returns the new
// value.
func (s *SpatialStore) ToggleVisibility(t models.DeviceType) (bool, error) {
	if !t.Valid() {
		return false, models.NewError(models.ErrCodeInvalidInput, "unknown device type %q", t)
	}

	s.mu.Lock()
	s.visibility[t] = !s.visibility[t]
	v := s.visibility[t]
	s.mu.Unlock()

	s.emit(StoreEvent{Kind: StoreEventVisibility})
	return v, nil
}

// ========================================
// 뷰포트
// ========================================

// SetZoom sets the zoom level, clamped to the configured limits. Offsets are
// kept. Non-positive or non-finite scales are rejected.
func (s *SpatialStore) SetZoom(scale float64) (models.Viewport, error) {
	if !models.IsFinite(scale) || scale <= 0 {
		return models.Viewport{}, models.NewError(models.ErrCodeInvalidInput, "zoom scale must be > 0, got %v", scale)
	}

	s.mu.Lock()
	s.viewport.Scale = algorithms.ClampScale(scale, s.opts.MinScale, s.opts.MaxScale)
	v := s.viewport
	s.mu.Unlock()

	s.emit(StoreEvent{Kind: StoreEventViewport})
	return v, nil
}

// ResetZoom restores the identity viewport.
func (s *SpatialStore) ResetZoom() models.Viewport {
	s.mu.Lock()
	s.viewport = models.IdentityViewport
	v := s.viewport
	s.mu.Unlock()

	s.emit(StoreEvent{Kind: StoreEventViewport})
	return v
}

// ZoomAt multiplies the scale by factor around the pointer so the world point
// under the pointer stays put.
func (s *SpatialStore) ZoomAt(px, py, factor float64) (models.Viewport, error) {
	if !models.IsFinite(factor) || factor <= 0 || !models.IsFinite(px) || !models.IsFinite(py) {
		return models.Viewport{}, models.NewError(models.ErrCodeInvalidInput, "invalid zoom factor %v at (%v, %v)", factor, px, py)
	}

	s.mu.Lock()
	scale := algorithms.ClampScale(s.viewport.Scale*factor, s.opts.MinScale, s.opts.MaxScale)
	s.viewport = algorithms.ZoomAt(s.viewport, models.Point{X: px, Y: py}, scale)
	v := s.viewport
	s.mu.Unlock()

	s.emit(StoreEvent{Kind: StoreEventViewport})
	return v, nil
}

// Pan shifts the viewport offsets by (dx, dy) pixels.
func (s *SpatialStore) Pan(dx, dy float64) (models.Viewport, error) {
	if !models.IsFinite(dx) || !models.IsFinite(dy) {
		return models.Viewport{}, models.NewError(models.ErrCodeInvalidInput, "invalid pan (%v, %v)", dx, dy)
	}

	s.mu.Lock()
	s.viewport.OffsetX += dx
	s.viewport.OffsetY += dy
	v := s.viewport
	s.mu.Unlock()

	s.emit(StoreEvent{Kind: StoreEventViewport})
	return v, nil
}

// Viewport returns the current pan/zoom transform.
func (s *SpatialStore) Viewport() models.Viewport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewport
}

// ========================================
// 도면 / 목적지
// ========================================

// SetBlueprint sets the loaded image reference; nil unloads it.
func (s *SpatialStore) SetBlueprint(img *models.BlueprintImage) {
	s.mu.Lock()
	if img != nil {
		cp := *img
		img = &cp
	}
	s.blueprint.Image = img
	s.mu.Unlock()
	s.emit(StoreEvent{Kind: StoreEventBlueprint})
}

// SetBlueprintPosition moves the image. Devices are not re-anchored.
func (s *SpatialStore) SetBlueprintPosition(p models.Point) {
	s.mu.Lock()
	s.blueprint.Position = p
	s.mu.Unlock()
	s.emit(StoreEvent{Kind: StoreEventBlueprint})
}

// SetEndLocation stores the operator's target point for the next animation.
func (s *SpatialStore) SetEndLocation(p models.Point) {
	s.mu.Lock()
	s.endLocation = &p
	s.mu.Unlock()
	s.emit(StoreEvent{Kind: StoreEventEndLocation})
}

// TakeEndLocation returns and clears the stored end location.
func (s *SpatialStore) TakeEndLocation() (models.Point, bool) {
	s.mu.Lock()
	p := s.endLocation
	s.endLocation = nil
	s.mu.Unlock()

	if p == nil {
		return models.Point{}, false
	}
	s.emit(StoreEvent{Kind: StoreEventEndLocation})
	return *p, true
}

// Snapshot returns a deep copy of the whole state.
func (s *SpatialStore) Snapshot() models.Scene {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scene := models.Scene{
		Devices:          slices.Clone(s.devices),
		Boundary:         s.boundary,
		Viewport:         s.viewport,
		Blueprint:        s.blueprint,
		SelectedDeviceID: s.selectedID,
		Visibility:       maps.Clone(s.visibility),
	}
	if s.blueprint.Image != nil {
		img := *s.blueprint.Image
		scene.Blueprint.Image = &img
	}
	if s.endLocation != nil {
		p := *s.endLocation
		scene.EndLocation = &p
	}
	return scene
}
