package models

import (
	"time"
)

// 이벤트 타입
const (
	EventDeviceMoved        = "device_moved"
	EventDevicesReplaced    = "devices_replaced"
	EventBoundaryChanged    = "boundary_changed"
	EventAnimationStarted   = "animation_started"
	EventAnimationConverged = "animation_converged"
	EventAnimationCancelled = "animation_cancelled"
	EventAnimationAborted   = "animation_aborted"
	EventFeedPosition       = "feed_position"
)

// DeviceLog - 디바이스/장면 이벤트 로그
type DeviceLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	EventType string    `gorm:"size:64;index" json:"event_type"`

	// 디바이스 정보
	DeviceID   string  `gorm:"size:128;index" json:"device_id"`
	DeviceType string  `gorm:"size:16" json:"device_type"`
	PositionX  float64 `json:"position_x"`
	PositionY  float64 `json:"position_y"`

	// 애니메이션 정보
	RunID   string  `gorm:"size:36" json:"run_id,omitempty"`
	TargetX float64 `json:"target_x"`
	TargetY float64 `json:"target_y"`
	Steps   int     `json:"steps"`

	// 메타데이터
	DataJSON string `json:"data_json"` // 원본 데이터 JSON
	Source   string `gorm:"size:32" json:"source"` // "api", "feed", "animator", "loader"
}

// LogStats - 로그 통계
type LogStats struct {
	TotalLogs   int64            `json:"total_logs"`
	EventCounts map[string]int64 `json:"event_counts"`
	TimeRange   string           `json:"time_range"`
}
