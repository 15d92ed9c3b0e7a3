package models

import "time"

// Floor - 층별 도면/경계/기준점 정보
type Floor struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	Number int  `gorm:"uniqueIndex;not null" json:"number"`

	// 도면 이미지 (배경 제거 후 PNG)
	ImageID     string `gorm:"size:36" json:"image_id,omitempty"`
	ImageData   []byte `json:"-"`
	ImageWidth  int    `json:"image_width"`
	ImageHeight int    `json:"image_height"`

	// 층 높이 범위 (디바이스 z 좌표 기준)
	MinZ *float64 `json:"min_z"`
	MaxZ *float64 `json:"max_z"`

	// 경계 다각형 (월드 좌표)
	Boundaries []Point `gorm:"serializer:json" json:"boundaries"`

	// 시작 지점
	StartX *float64 `json:"start_x"`
	StartY *float64 `json:"start_y"`
	StartZ *float64 `json:"start_z"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasImage reports whether a processed blueprint is stored for the floor.
func (f *Floor) HasImage() bool {
	return len(f.ImageData) > 0
}

// ContainsZ reports whether z falls inside the floor's height range. A floor
// without a range contains every z.
func (f *Floor) ContainsZ(z float64) bool {
	if f.MinZ != nil && z < *f.MinZ {
		return false
	}
	if f.MaxZ != nil && z > *f.MaxZ {
		return false
	}
	return true
}
