package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"blueprint-backend/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenDatabase(DatabaseOptions{Driver: "sqlite", SQLitePath: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestOpenDatabaseRejectsUnknownDriver(t *testing.T) {
	_, err := OpenDatabase(DatabaseOptions{Driver: "oracle"}, nil)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = OpenDatabase(DatabaseOptions{Driver: "mysql"}, nil)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestDatabaseDSN(t *testing.T) {
	opts := DatabaseOptions{User: "u", Password: "p", Host: "db", Name: "plans"}
	assert.Equal(t, "u:p@tcp(db:3306)/plans?charset=utf8mb4&parseTime=True&loc=Local", opts.DSN())
}

func TestEventLogFlushAndQuery(t *testing.T) {
	el := NewEventLog(openTestDB(t), 1000, time.Hour, nil)

	el.LogDeviceMoved(models.Device{ID: "t1", Type: models.DeviceTypeTag, X: 1, Y: 2}, SourceStore)
	el.LogDeviceMoved(models.Device{ID: "t2", Type: models.DeviceTypeTag, X: 3, Y: 4}, SourceFeed)
	el.LogBoundary(models.Boundary{X: 1, Y: 2, Width: 3, Height: 4}, SourceStore)
	assert.Equal(t, 3, el.Pending())

	assert.Equal(t, 3, el.Flush())
	assert.Equal(t, 0, el.Pending())
	assert.Equal(t, 0, el.Flush())

	recent, err := el.Recent("t1", 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, models.EventDeviceMoved, recent[0].EventType)
	assert.Equal(t, 2.0, recent[0].PositionY)

	feed, err := el.ByEventType(models.EventFeedPosition, 10)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, "t2", feed[0].DeviceID)

	boundary, err := el.ByEventType(models.EventBoundaryChanged, 10)
	require.NoError(t, err)
	require.Len(t, boundary, 1)
	assert.JSONEq(t, `{"x":1,"y":2,"width":3,"height":4}`, boundary[0].DataJSON)

	stats, err := el.Stats(1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalLogs)
	assert.Equal(t, int64(1), stats.EventCounts[models.EventFeedPosition])

	ranged, err := el.ByTimeRange("", time.Now().Add(-time.Minute), time.Now().Add(time.Minute), 0)
	require.NoError(t, err)
	assert.Len(t, ranged, 3)
}

func TestEventLogAttach(t *testing.T) {
	el := NewEventLog(openTestDB(t), 1000, time.Hour, nil)
	store := newTestStore(t, tagAt("t1", 0, 0))
	animator := NewAnimator(store, AnimatorOptions{Speed: 1, Tolerance: 1, NewTicker: manualTickers}, nil)

	detach := el.Attach(store, animator)
	defer detach()

	_, err := animator.Start("t1", models.NewDestination(1.5, 0))
	require.NoError(t, err)
	for animator.Advance() == AnimationRunning {
	}
	store.NormalizeBoundary()
	el.Flush()

	started, err := el.ByEventType(models.EventAnimationStarted, 10)
	require.NoError(t, err)
	require.Len(t, started, 1)
	assert.Equal(t, 1.5, started[0].TargetX)

	converged, err := el.ByEventType(models.EventAnimationConverged, 10)
	require.NoError(t, err)
	require.Len(t, converged, 1)
	assert.Equal(t, 2, converged[0].Steps)

	moved, err := el.ByEventType(models.EventDeviceMoved, 10)
	require.NoError(t, err)
	assert.Len(t, moved, 1)

	boundary, err := el.ByEventType(models.EventBoundaryChanged, 10)
	require.NoError(t, err)
	assert.Len(t, boundary, 1)
}

func TestEventLogStopFlushes(t *testing.T) {
	el := NewEventLog(openTestDB(t), 1000, time.Hour, nil)
	el.Start()
	el.LogDevicesReplaced(4, SourceStore)

	el.Stop()
	el.Stop()

	logs, err := el.ByEventType(models.EventDevicesReplaced, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.JSONEq(t, `{"count":4}`, logs[0].DataJSON)
}

func TestEventLogWithoutDatabase(t *testing.T) {
	el := NewEventLog(nil, 10, time.Hour, nil)
	el.LogDevicesReplaced(1, SourceStore)
	assert.Equal(t, 0, el.Flush())

	_, err := el.Recent("", 10)
	assert.True(t, models.IsCode(err, models.ErrCodeInternal))
}
