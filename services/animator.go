package services

import (
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"blueprint-backend/models"
)

// AnimationState - 애니메이션 상태
type AnimationState string

const (
	AnimationIdle      AnimationState = "idle"
	AnimationRunning   AnimationState = "running"
	AnimationConverged AnimationState = "converged"
	AnimationCancelled AnimationState = "cancelled"
	AnimationAborted   AnimationState = "aborted" // 대상 디바이스가 사라짐
)

// Ticker is the part of time.Ticker the animator needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a Ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker is the wall-clock TickerFunc.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// AnimatorOptions - 애니메이션 설정
type AnimatorOptions struct {
	Interval  time.Duration // 스텝 간격
	Speed     float64       // 스텝당 이동 거리 (월드 단위)
	Tolerance float64       // 도착 판정 거리
	NewTicker TickerFunc
}

// DefaultAnimatorOptions - 140ms 간격, 0.1 단위/스텝, 허용 오차 1.0
func DefaultAnimatorOptions() AnimatorOptions {
	return AnimatorOptions{
		Interval:  140 * time.Millisecond,
		Speed:     0.1,
		Tolerance: 1.0,
		NewTicker: NewTimeTicker,
	}
}

// AnimationRun is one movement of a tag toward a target. Its mutable fields
// are guarded by the owning Animator.
type AnimationRun struct {
	ID        string
	DeviceID  string
	Target    models.Point
	StartedAt time.Time

	state AnimationState
	steps int

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// Done is closed once the run has converged, been cancelled or aborted.
func (r *AnimationRun) Done() <-chan struct{} {
	return r.done
}

func (r *AnimationRun) finish(state AnimationState) {
	r.stopOnce.Do(func() {
		r.state = state
		close(r.stop)
		close(r.done)
	})
}

// AnimationStatus - 애니메이션 상태 스냅샷
type AnimationStatus struct {
	RunID     string         `json:"run_id,omitempty"`
	DeviceID  string         `json:"device_id,omitempty"`
	Target    *models.Point  `json:"target,omitempty"`
	State     AnimationState `json:"state"`
	Steps     int            `json:"steps"`
	Position  *models.Point  `json:"position,omitempty"`
	StartedAt *time.Time     `json:"started_at,omitempty"`
}

// Animator - 태그를 목표 지점까지 일정 속도로 이동시키는 드라이버
//
// 한 번에 하나의 실행만 활성화된다. 매 스텝마다 저장소에서 현재 위치를
// 다시 읽으므로 사용자의 수동 이동과 함께 쓰여도 마지막 쓰기가 이긴다.
//
// 위치 쓰기는 mu 밖에서 일어나므로 저장소 구독자와 상태 리스너는 Status를
// 호출할 수 있다. Start와 Cancel은 진행 중인 스텝이 끝나기를 기다리므로
// 저장소 구독자 안에서 호출하면 안 된다.
type Animator struct {
	store *SpatialStore
	opts  AnimatorOptions

	stepMu  sync.Mutex // 스텝과 시작/취소를 직렬화
	mu      sync.Mutex
	current *AnimationRun // 실행 중인 run (없으면 nil)
	last    *AnimationRun // 마지막으로 시작된 run

	listenMu  sync.RWMutex
	listeners []func(AnimationStatus)

	logger *log.Logger
}

// NewAnimator - 애니메이션 드라이버 생성
func NewAnimator(store *SpatialStore, opts AnimatorOptions, logger *log.Logger) *Animator {
	def := DefaultAnimatorOptions()
	if opts.Interval <= 0 {
		opts.Interval = def.Interval
	}
	if opts.Speed <= 0 {
		opts.Speed = def.Speed
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = def.Tolerance
	}
	if opts.NewTicker == nil {
		opts.NewTicker = def.NewTicker
	}
	return &Animator{
		store:  store,
		opts:   opts,
		logger: orDiscard(logger).WithPrefix("animator"),
	}
}

// OnStatus registers fn to receive lifecycle changes (start and finish) of
// every run. Per-step positions go through the store's position events.
func (a *Animator) OnStatus(fn func(AnimationStatus)) {
	a.listenMu.Lock()
	a.listeners = append(a.listeners, fn)
	a.listenMu.Unlock()
}

func (a *Animator) notify(st AnimationStatus) {
	a.listenMu.RLock()
	defer a.listenMu.RUnlock()
	for _, fn := range a.listeners {
		fn(st)
	}
}

// resolveTarget - 대상 태그 찾기 (id가 비어 있으면 첫 번째 태그)
func (a *Animator) resolveTarget(deviceID string) (models.Device, error) {
	if deviceID == "" {
		d, ok := a.store.FirstOfType(models.DeviceTypeTag)
		if !ok {
			return models.Device{}, models.NewError(models.ErrCodeInvalidTarget, "no tag to animate")
		}
		return d, nil
	}

	d, ok := a.store.Device(deviceID)
	if !ok {
		return models.Device{}, models.NewError(models.ErrCodeInvalidTarget, "device not found: %s", deviceID)
	}
	if d.Type != models.DeviceTypeTag {
		return models.Device{}, models.NewError(models.ErrCodeInvalidTarget, "device %s is a %s, only tags can be animated", d.ID, d.Type)
	}
	return d, nil
}

// Start moves the device toward dest. An empty deviceID selects the first
// tag. A run already in progress is cancelled first. When the device is
// already within tolerance the returned run is converged with zero steps.
func (a *Animator) Start(deviceID string, dest models.Destination) (*AnimationRun, error) {
	device, err := a.resolveTarget(deviceID)
	if err != nil {
		return nil, err
	}
	target, ok := dest.Point()
	if !ok {
		return nil, models.NewError(models.ErrCodeInvalidDestination, "end location needs finite x and y")
	}
	return a.start(device, target), nil
}

// StartFromEndLocation starts a run toward the end location stored in the
// spatial store, consuming it.
func (a *Animator) StartFromEndLocation(deviceID string) (*AnimationRun, error) {
	device, err := a.resolveTarget(deviceID)
	if err != nil {
		return nil, err
	}
	target, ok := a.store.TakeEndLocation()
	if !ok {
		return nil, models.NewError(models.ErrCodeInvalidDestination, "no end location set")
	}
	return a.start(device, target), nil
}

func (a *Animator) start(device models.Device, target models.Point) *AnimationRun {
	run := &AnimationRun{
		ID:        uuid.NewString(),
		DeviceID:  device.ID,
		Target:    target,
		StartedAt: time.Now(),
		state:     AnimationRunning,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}

	var pending []AnimationStatus

	a.stepMu.Lock()
	a.mu.Lock()
	if prev := a.current; prev != nil {
		prev.finish(AnimationCancelled)
		pending = append(pending, a.statusLocked(prev))
		a.logger.Info("previous run cancelled", "run", prev.ID, "device", prev.DeviceID)
	}
	a.current = run
	a.last = run
	pending = append(pending, a.statusLocked(run))

	immediate := device.Position().Distance(target) < a.opts.Tolerance
	if immediate {
		run.finish(AnimationConverged)
		a.current = nil
		pending = append(pending, a.statusLocked(run))
	}
	a.mu.Unlock()
	a.stepMu.Unlock()

	for _, st := range pending {
		a.notify(st)
	}

	if immediate {
		a.logger.Info("already at target", "device", device.ID)
		return run
	}

	a.logger.Info("animation started", "run", run.ID, "device", device.ID,
		"from_x", device.X, "from_y", device.Y, "to_x", target.X, "to_y", target.Y)
	go a.loop(run, a.opts.NewTicker(a.opts.Interval))
	return run
}

// loop - 주기적 스텝 실행 루프
func (a *Animator) loop(run *AnimationRun, ticker Ticker) {
	defer ticker.Stop()

	for {
		select {
		case <-run.stop:
			return
		case <-ticker.C():
			if !a.stepRun(run) {
				return
			}
		}
	}
}

// Advance performs one step of the active run synchronously and returns the
// run's state afterwards. It reports AnimationIdle when nothing is running.
func (a *Animator) Advance() AnimationState {
	a.mu.Lock()
	run := a.current
	a.mu.Unlock()

	if run == nil {
		return AnimationIdle
	}
	a.stepRun(run)

	a.mu.Lock()
	defer a.mu.Unlock()
	return run.state
}

// stepRun advances run by one step and reports whether it is still running.
// The step is skipped when run is no longer the active run, so nothing
// applies after Cancel has returned.
func (a *Animator) stepRun(run *AnimationRun) bool {
	a.stepMu.Lock()
	a.mu.Lock()
	if a.current != run || run.state != AnimationRunning {
		a.mu.Unlock()
		a.stepMu.Unlock()
		return false
	}
	run.steps++
	a.mu.Unlock()

	st, running := a.step(run)
	a.stepMu.Unlock()

	if !running {
		a.notify(st)
	}
	return running
}

// step moves the device once. It runs with stepMu held and mu released.
func (a *Animator) step(run *AnimationRun) (AnimationStatus, bool) {
	device, ok := a.store.Device(run.DeviceID)
	if !ok {
		a.logger.Warn("animated device disappeared, stopping", "run", run.ID, "device", run.DeviceID)
		return a.finish(run, AnimationAborted), false
	}

	dx := run.Target.X - device.X
	dy := run.Target.Y - device.Y
	distance := math.Hypot(dx, dy)
	if distance < a.opts.Tolerance {
		a.logger.Info("animation converged", "run", run.ID, "device", run.DeviceID, "steps", run.steps)
		return a.finish(run, AnimationConverged), false
	}

	// 목표를 넘어가지 않도록 이동 거리 제한
	move := math.Min(a.opts.Speed, distance)
	angle := math.Atan2(dy, dx)
	nx := device.X + math.Cos(angle)*move
	ny := device.Y + math.Sin(angle)*move

	if _, err := a.store.UpdateDevicePosition(run.DeviceID, nx, ny); err != nil {
		a.logger.Warn("position update failed, stopping", "run", run.ID, "err", err)
		return a.finish(run, AnimationAborted), false
	}
	return AnimationStatus{}, true
}

func (a *Animator) finish(run *AnimationRun, state AnimationState) AnimationStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.finishLocked(run, state)
}

func (a *Animator) finishLocked(run *AnimationRun, state AnimationState) AnimationStatus {
	run.finish(state)
	if a.current == run {
		a.current = nil
	}
	return a.statusLocked(run)
}

// Cancel halts the active run without completing it. It is safe to call
// when nothing is running; it reports whether a run was cancelled.
func (a *Animator) Cancel() bool {
	a.stepMu.Lock()
	a.mu.Lock()
	run := a.current
	if run == nil {
		a.mu.Unlock()
		a.stepMu.Unlock()
		return false
	}
	st := a.finishLocked(run, AnimationCancelled)
	a.mu.Unlock()
	a.stepMu.Unlock()

	a.logger.Info("animation cancelled", "run", run.ID, "steps", st.Steps)
	a.notify(st)
	return true
}

// Status reports the most recent run, or idle when none was started.
func (a *Animator) Status() AnimationStatus {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.last == nil {
		return AnimationStatus{State: AnimationIdle}
	}
	return a.statusLocked(a.last)
}

// RunStatus reports the state of a specific run.
func (a *Animator) RunStatus(run *AnimationRun) AnimationStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.statusLocked(run)
}

func (a *Animator) statusLocked(run *AnimationRun) AnimationStatus {
	target := run.Target
	started := run.StartedAt
	st := AnimationStatus{
		RunID:     run.ID,
		DeviceID:  run.DeviceID,
		Target:    &target,
		State:     run.state,
		Steps:     run.steps,
		StartedAt: &started,
	}
	if d, ok := a.store.Device(run.DeviceID); ok {
		p := d.Position()
		st.Position = &p
	}
	return st
}
