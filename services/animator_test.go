package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blueprint-backend/models"
)

// manualTicker never fires; tests drive steps through Advance.
type manualTicker struct{ c chan time.Time }

func (m manualTicker) C() <-chan time.Time { return m.c }
func (m manualTicker) Stop()               {}

func manualTickers(time.Duration) Ticker {
	return manualTicker{c: make(chan time.Time)}
}

func newTestAnimator(t *testing.T, speed float64, devices ...models.Device) (*Animator, *SpatialStore) {
	t.Helper()
	store := newTestStore(t, devices...)
	a := NewAnimator(store, AnimatorOptions{
		Interval:  time.Millisecond,
		Speed:     speed,
		Tolerance: 1,
		NewTicker: manualTickers,
	}, nil)
	return a, store
}

func tagAt(id string, x, y float64) models.Device {
	return models.Device{ID: id, X: x, Y: y, Type: models.DeviceTypeTag}
}

func TestAnimatorConverges(t *testing.T) {
	a, store := newTestAnimator(t, 1, tagAt("t1", 0, 0))

	before := time.Now()
	run, err := a.Start("t1", models.NewDestination(10, 0))
	require.NoError(t, err)
	assert.Equal(t, AnimationRunning, a.Status().State)
	require.NotNil(t, a.Status().StartedAt)
	assert.False(t, a.Status().StartedAt.Before(before))

	steps := 0
	for a.Advance() == AnimationRunning {
		steps++
		require.LessOrEqual(t, steps, 11, "animation did not halt")
	}

	st := a.RunStatus(run)
	assert.Equal(t, AnimationConverged, st.State)
	assert.LessOrEqual(t, st.Steps, 11)

	d, _ := store.Device("t1")
	assert.Less(t, d.Position().Distance(models.Point{X: 10, Y: 0}), 1.0)
	assert.Equal(t, AnimationIdle, a.Advance())

	select {
	case <-run.Done():
	default:
		t.Fatal("run should be done")
	}
}

func TestAnimatorDoesNotOvershoot(t *testing.T) {
	// 스텝이 허용 오차보다 크면 목표를 지나칠 수 있으므로 남은 거리만큼만 이동
	a, store := newTestAnimator(t, 5, tagAt("t1", 0, 0))

	_, err := a.Start("t1", models.NewDestination(7, 0))
	require.NoError(t, err)

	require.Equal(t, AnimationRunning, a.Advance())
	d, _ := store.Device("t1")
	assert.InDelta(t, 5, d.X, 1e-9)

	require.Equal(t, AnimationRunning, a.Advance())
	d, _ = store.Device("t1")
	assert.InDelta(t, 7, d.X, 1e-9)

	assert.Equal(t, AnimationConverged, a.Advance())
}

func TestAnimatorDiagonalHeading(t *testing.T) {
	a, store := newTestAnimator(t, 1, tagAt("t1", 0, 0))

	_, err := a.Start("t1", models.NewDestination(3, 4))
	require.NoError(t, err)
	a.Advance()

	d, _ := store.Device("t1")
	assert.InDelta(t, 0.6, d.X, 1e-9)
	assert.InDelta(t, 0.8, d.Y, 1e-9)
}

func TestAnimatorCancel(t *testing.T) {
	a, store := newTestAnimator(t, 1, tagAt("t1", 0, 0))

	run, err := a.Start("t1", models.NewDestination(10, 0))
	require.NoError(t, err)
	a.Advance()
	a.Advance()

	assert.True(t, a.Cancel())
	d, _ := store.Device("t1")
	assert.Greater(t, d.X, 0.0)
	assert.Less(t, d.X, 10.0)

	assert.Equal(t, AnimationIdle, a.Advance())
	after, _ := store.Device("t1")
	assert.Equal(t, d, after)

	assert.Equal(t, AnimationCancelled, a.RunStatus(run).State)
	assert.Equal(t, 2, a.RunStatus(run).Steps)

	// 두 번째 호출은 아무 일도 하지 않는다
	assert.False(t, a.Cancel())
}

func TestAnimatorImmediateConvergence(t *testing.T) {
	a, store := newTestAnimator(t, 1, tagAt("t1", 5, 5))

	run, err := a.Start("t1", models.NewDestination(5.5, 5))
	require.NoError(t, err)

	st := a.RunStatus(run)
	assert.Equal(t, AnimationConverged, st.State)
	assert.Equal(t, 0, st.Steps)

	d, _ := store.Device("t1")
	assert.Equal(t, 5.0, d.X)
}

func TestAnimatorInvalidTarget(t *testing.T) {
	a, _ := newTestAnimator(t, 1,
		models.Device{ID: "a1", Type: models.DeviceTypeAnchor},
	)

	_, err := a.Start("ghost", models.NewDestination(1, 1))
	assert.ErrorIs(t, err, models.ErrInvalidTarget)

	_, err = a.Start("a1", models.NewDestination(1, 1))
	assert.ErrorIs(t, err, models.ErrInvalidTarget)

	// 태그가 없으면 기본 대상도 없다
	_, err = a.Start("", models.NewDestination(1, 1))
	assert.ErrorIs(t, err, models.ErrInvalidTarget)
}

func TestAnimatorInvalidDestination(t *testing.T) {
	a, _ := newTestAnimator(t, 1, tagAt("t1", 0, 0))

	x := 3.0
	_, err := a.Start("t1", models.Destination{X: &x})
	assert.ErrorIs(t, err, models.ErrInvalidDestination)

	_, err = a.Start("t1", models.Destination{})
	assert.ErrorIs(t, err, models.ErrInvalidDestination)

	_, err = a.StartFromEndLocation("t1")
	assert.ErrorIs(t, err, models.ErrInvalidDestination)

	assert.Equal(t, AnimationIdle, a.Status().State)
}

func TestAnimatorTargetCheckedFirst(t *testing.T) {
	a, _ := newTestAnimator(t, 1, tagAt("t1", 0, 0))

	_, err := a.Start("ghost", models.Destination{})
	assert.ErrorIs(t, err, models.ErrInvalidTarget)
}

func TestAnimatorDefaultsToFirstTag(t *testing.T) {
	a, _ := newTestAnimator(t, 1,
		models.Device{ID: "a1", Type: models.DeviceTypeAnchor},
		tagAt("t1", 0, 0),
		tagAt("t2", 9, 9),
	)

	run, err := a.Start("", models.NewDestination(4, 0))
	require.NoError(t, err)
	assert.Equal(t, "t1", run.DeviceID)
}

func TestAnimatorFromEndLocation(t *testing.T) {
	a, store := newTestAnimator(t, 1, tagAt("t1", 0, 0))
	store.SetEndLocation(models.Point{X: 0, Y: 3})

	run, err := a.StartFromEndLocation("t1")
	require.NoError(t, err)
	assert.Equal(t, models.Point{X: 0, Y: 3}, run.Target)

	_, ok := store.TakeEndLocation()
	assert.False(t, ok, "end location should be consumed")
}

func TestAnimatorDeviceRemovedMidFlight(t *testing.T) {
	a, store := newTestAnimator(t, 1, tagAt("t1", 0, 0), tagAt("t2", 1, 1))

	run, err := a.Start("t1", models.NewDestination(10, 0))
	require.NoError(t, err)
	a.Advance()

	require.NoError(t, store.SetDevices([]models.Device{tagAt("t2", 1, 1)}))
	assert.Equal(t, AnimationAborted, a.Advance())
	assert.Equal(t, AnimationAborted, a.RunStatus(run).State)
	assert.Nil(t, a.RunStatus(run).Position)
}

func TestAnimatorRestartCancelsPrevious(t *testing.T) {
	a, store := newTestAnimator(t, 1, tagAt("t1", 0, 0), tagAt("t2", 0, 0))

	first, err := a.Start("t1", models.NewDestination(10, 0))
	require.NoError(t, err)
	a.Advance()

	second, err := a.Start("t2", models.NewDestination(0, 10))
	require.NoError(t, err)
	assert.Equal(t, AnimationCancelled, a.RunStatus(first).State)

	a.Advance()
	t1, _ := store.Device("t1")
	t2, _ := store.Device("t2")
	assert.InDelta(t, 1, t1.X, 1e-9)
	assert.InDelta(t, 1, t2.Y, 1e-9)
	assert.Equal(t, second.ID, a.Status().RunID)
}

func TestAnimatorRereadsPosition(t *testing.T) {
	a, store := newTestAnimator(t, 1, tagAt("t1", 0, 0))

	_, err := a.Start("t1", models.NewDestination(10, 0))
	require.NoError(t, err)
	a.Advance()

	// 수동 이동이 다음 스텝의 출발점이 된다
	_, err = store.UpdateDevicePosition("t1", 8, 0)
	require.NoError(t, err)
	a.Advance()

	d, _ := store.Device("t1")
	assert.InDelta(t, 9, d.X, 1e-9)
}

func TestAnimatorStatusListener(t *testing.T) {
	a, _ := newTestAnimator(t, 1, tagAt("t1", 0, 0))

	var mu sync.Mutex
	var states []AnimationState
	a.OnStatus(func(st AnimationStatus) {
		mu.Lock()
		states = append(states, st.State)
		mu.Unlock()
	})

	_, err := a.Start("t1", models.NewDestination(2, 0))
	require.NoError(t, err)
	for a.Advance() == AnimationRunning {
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []AnimationState{AnimationRunning, AnimationConverged}, states)
}

func TestAnimatorWallClock(t *testing.T) {
	store := newTestStore(t, tagAt("t1", 0, 0))
	a := NewAnimator(store, AnimatorOptions{
		Interval:  time.Millisecond,
		Speed:     1,
		Tolerance: 1,
	}, nil)

	run, err := a.Start("t1", models.NewDestination(5, 0))
	require.NoError(t, err)

	select {
	case <-run.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("animation did not converge")
	}
	assert.Equal(t, AnimationConverged, a.RunStatus(run).State)
}

func TestAnimatorStatusFromStoreSubscriber(t *testing.T) {
	a, store := newTestAnimator(t, 1, tagAt("t1", 0, 0))

	var seen []int
	store.Subscribe(func(ev StoreEvent) {
		if ev.Kind == StoreEventPosition {
			seen = append(seen, a.Status().Steps)
		}
	})

	_, err := a.Start("t1", models.NewDestination(10, 0))
	require.NoError(t, err)

	done := make(chan AnimationState, 1)
	go func() { done <- a.Advance() }()

	select {
	case state := <-done:
		assert.Equal(t, AnimationRunning, state)
	case <-time.After(2 * time.Second):
		t.Fatal("step blocked on a subscriber reading the status")
	}
	assert.Equal(t, []int{1}, seen)
}
