package services

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"

	"blueprint-backend/models"
)

// 로그 출처
const (
	SourceStore    = "store"
	SourceAnimator = "animator"
	SourceFeed     = "feed"
)

// EventLog buffers scene events and writes them to the database in batches.
type EventLog struct {
	db *gorm.DB

	mu            sync.Mutex
	logs          []models.DeviceLog
	flushSize     int           // 일괄 저장 크기
	flushInterval time.Duration // 자동 플러시 간격

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	logger *log.Logger
}

// NewEventLog - 로그 버퍼 생성. db가 nil이면 이벤트는 버려진다.
func NewEventLog(db *gorm.DB, flushSize int, flushInterval time.Duration, logger *log.Logger) *EventLog {
	if flushSize <= 0 {
		flushSize = 50
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &EventLog{
		db:            db,
		logs:          make([]models.DeviceLog, 0, flushSize*2),
		flushSize:     flushSize,
		flushInterval: flushInterval,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
		logger:        orDiscard(logger).WithPrefix("eventlog"),
	}
}

// Start runs the periodic flush until Stop is called.
func (l *EventLog) Start() {
	go l.autoFlush()
	l.logger.Info("event log started", "flush_size", l.flushSize, "flush_interval", l.flushInterval)
}

// autoFlush - 주기적 로그 저장
func (l *EventLog) autoFlush() {
	defer close(l.done)

	ticker := time.NewTicker(l.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.Flush()
		case <-l.stop:
			l.Flush() // 종료 시 남은 로그 저장
			return
		}
	}
}

// Stop flushes what is left and ends the flush loop. Only valid after Start.
func (l *EventLog) Stop() {
	l.stopOnce.Do(func() {
		close(l.stop)
		<-l.done
		l.logger.Info("event log stopped")
	})
}

// Add appends an entry; a full buffer is flushed in the background.
func (l *EventLog) Add(entry models.DeviceLog) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	l.mu.Lock()
	l.logs = append(l.logs, entry)
	size := len(l.logs)
	l.mu.Unlock()

	if size >= l.flushSize {
		go l.Flush()
	}
}

// Pending returns the number of buffered entries.
func (l *EventLog) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.logs)
}

// Flush writes every buffered entry and returns how many were saved.
func (l *EventLog) Flush() int {
	l.mu.Lock()
	if len(l.logs) == 0 {
		l.mu.Unlock()
		return 0
	}
	toSave := make([]models.DeviceLog, len(l.logs))
	copy(toSave, l.logs)
	l.logs = l.logs[:0]
	l.mu.Unlock()

	if l.db == nil {
		return 0
	}
	if err := l.db.CreateInBatches(toSave, 100).Error; err != nil {
		l.logger.Error("saving logs failed", "count", len(toSave), "err", err)
		return 0
	}
	l.logger.Debug("logs saved", "count", len(toSave))
	return len(toSave)
}

// ========================================
// 이벤트 기록
// ========================================

// LogDeviceMoved records a single position change.
func (l *EventLog) LogDeviceMoved(d models.Device, source string) {
	eventType := models.EventDeviceMoved
	if source == SourceFeed {
		eventType = models.EventFeedPosition
	}
	l.Add(models.DeviceLog{
		EventType:  eventType,
		DeviceID:   d.ID,
		DeviceType: string(d.Type),
		PositionX:  d.X,
		PositionY:  d.Y,
		Source:     source,
	})
}

// LogDevicesReplaced records a wholesale replacement of the collection.
func (l *EventLog) LogDevicesReplaced(count int, source string) {
	l.Add(models.DeviceLog{
		EventType: models.EventDevicesReplaced,
		DataJSON:  fmt.Sprintf(`{"count":%d}`, count),
		Source:    source,
	})
}

// LogBoundary records the boundary rectangle after a change.
func (l *EventLog) LogBoundary(b models.Boundary, source string) {
	l.Add(models.DeviceLog{
		EventType: models.EventBoundaryChanged,
		DataJSON:  marshalLogData(b),
		Source:    source,
	})
}

// LogAnimation records an animation lifecycle change.
func (l *EventLog) LogAnimation(st AnimationStatus) {
	entry := models.DeviceLog{
		EventType: animationEventType(st.State),
		DeviceID:  st.DeviceID,
		RunID:     st.RunID,
		Steps:     st.Steps,
		Source:    SourceAnimator,
	}
	if st.Target != nil {
		entry.TargetX, entry.TargetY = st.Target.X, st.Target.Y
	}
	if st.Position != nil {
		entry.PositionX, entry.PositionY = st.Position.X, st.Position.Y
	}
	l.Add(entry)
}

func animationEventType(state AnimationState) string {
	switch state {
	case AnimationRunning:
		return models.EventAnimationStarted
	case AnimationConverged:
		return models.EventAnimationConverged
	case AnimationCancelled:
		return models.EventAnimationCancelled
	default:
		return models.EventAnimationAborted
	}
}

func marshalLogData(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// Attach records store changes and animation lifecycle events. The returned
// function stops recording store changes.
func (l *EventLog) Attach(store *SpatialStore, animator *Animator) func() {
	unsubscribe := store.Subscribe(func(ev StoreEvent) {
		switch ev.Kind {
		case StoreEventPosition:
			if ev.Device != nil {
				l.LogDeviceMoved(*ev.Device, SourceStore)
			}
		case StoreEventDevices:
			l.LogDevicesReplaced(len(store.Devices()), SourceStore)
		case StoreEventBoundary:
			l.LogBoundary(store.Boundary(), SourceStore)
		}
	})
	if animator != nil {
		animator.OnStatus(l.LogAnimation)
	}
	return unsubscribe
}

// ========================================
// 조회
// ========================================

func (l *EventLog) query() (*gorm.DB, error) {
	if l.db == nil {
		return nil, models.NewError(models.ErrCodeInternal, "event log has no database")
	}
	return l.db, nil
}

// Recent returns the latest entries, optionally for one device.
func (l *EventLog) Recent(deviceID string, limit int) ([]models.DeviceLog, error) {
	db, err := l.query()
	if err != nil {
		return nil, err
	}
	q := db.Order("created_at DESC, id DESC").Limit(limit)
	if deviceID != "" {
		q = q.Where("device_id = ?", deviceID)
	}
	var logs []models.DeviceLog
	err = q.Find(&logs).Error
	return logs, err
}

// ByEventType returns the latest entries of one event type.
func (l *EventLog) ByEventType(eventType string, limit int) ([]models.DeviceLog, error) {
	db, err := l.query()
	if err != nil {
		return nil, err
	}
	var logs []models.DeviceLog
	err = db.Where("event_type = ?", eventType).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

// ByTimeRange returns entries created between start and end.
func (l *EventLog) ByTimeRange(deviceID string, start, end time.Time, limit int) ([]models.DeviceLog, error) {
	db, err := l.query()
	if err != nil {
		return nil, err
	}
	q := db.Where("created_at BETWEEN ? AND ?", start, end)
	if deviceID != "" {
		q = q.Where("device_id = ?", deviceID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var logs []models.DeviceLog
	err = q.Order("created_at DESC, id DESC").Find(&logs).Error
	return logs, err
}

// Stats counts entries per event type over the last hours.
func (l *EventLog) Stats(hours int) (models.LogStats, error) {
	db, err := l.query()
	if err != nil {
		return models.LogStats{}, err
	}
	since := time.Now().Add(-time.Duration(hours) * time.Hour)

	var total int64
	if err := db.Model(&models.DeviceLog{}).Where("created_at >= ?", since).Count(&total).Error; err != nil {
		return models.LogStats{}, err
	}

	// 이벤트 타입별 카운트
	var counts []struct {
		EventType string
		Count     int64
	}
	err = db.Model(&models.DeviceLog{}).
		Select("event_type, COUNT(*) as count").
		Where("created_at >= ?", since).
		Group("event_type").
		Scan(&counts).Error
	if err != nil {
		return models.LogStats{}, err
	}

	eventCounts := make(map[string]int64, len(counts))
	for _, c := range counts {
		eventCounts[c.EventType] = c.Count
	}
	return models.LogStats{
		TotalLogs:   total,
		EventCounts: eventCounts,
		TimeRange:   fmt.Sprintf("Last %d hours", hours),
	}, nil
}
