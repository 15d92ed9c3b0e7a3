package handlers

import (
	"sort"
	"sync"
	"time"

	"blueprint-backend/models"
)

// FeedInfo - 피드로 보고된 디바이스 정보
type FeedInfo struct {
	ID         string       `json:"id"`
	FirstSeen  time.Time    `json:"first_seen"`
	LastUpdate time.Time    `json:"last_update"`
	Position   models.Point `json:"position"`
	Reports    int          `json:"reports"`
	Alive      bool         `json:"alive"`
}

// FeedTracker remembers which devices report through the position feed and
// when they last did.
type FeedTracker struct {
	mu      sync.RWMutex
	devices map[string]*FeedInfo
	timeout time.Duration // 이 시간 동안 보고가 없으면 오프라인
	now     func() time.Time
}

// NewFeedTracker - 트래커 생성 (기본 타임아웃 10초)
func NewFeedTracker(timeout time.Duration) *FeedTracker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &FeedTracker{
		devices: make(map[string]*FeedInfo),
		timeout: timeout,
		now:     time.Now,
	}
}

// Record notes a position report for id.
func (t *FeedTracker) Record(id string, p models.Point) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	info, ok := t.devices[id]
	if !ok {
		info = &FeedInfo{ID: id, FirstSeen: now}
		t.devices[id] = info
	}
	info.LastUpdate = now
	info.Position = p
	info.Reports++
}

// Get returns the feed state of one device.
func (t *FeedTracker) Get(id string) (FeedInfo, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	info, ok := t.devices[id]
	if !ok {
		return FeedInfo{}, false
	}
	return t.snapshot(info), true
}

// All returns every tracked device ordered by id.
func (t *FeedTracker) All() []FeedInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]FeedInfo, 0, len(t.devices))
	for _, info := range t.devices {
		result = append(result, t.snapshot(info))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (t *FeedTracker) snapshot(info *FeedInfo) FeedInfo {
	cp := *info
	cp.Alive = t.now().Sub(info.LastUpdate) < t.timeout
	return cp
}

// IsAlive reports whether id reported within the timeout.
func (t *FeedTracker) IsAlive(id string) bool {
	info, ok := t.Get(id)
	return ok && info.Alive
}

// CleanupOffline drops devices that have not reported within the timeout and
// returns how many were removed.
func (t *FeedTracker) CleanupOffline() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	count := 0
	now := t.now()
	for id, info := range t.devices {
		if now.Sub(info.LastUpdate) >= t.timeout {
			delete(t.devices, id)
			count++
		}
	}
	return count
}

// Statistics - 피드 통계
func (t *FeedTracker) Statistics() map[string]interface{} {
	t.mu.RLock()
	defer t.mu.RUnlock()

	alive, reports := 0, 0
	now := t.now()
	for _, info := range t.devices {
		if now.Sub(info.LastUpdate) < t.timeout {
			alive++
		}
		reports += info.Reports
	}
	return map[string]interface{}{
		"total_devices": len(t.devices),
		"alive":         alive,
		"reports":       reports,
		"timeout":       t.timeout.String(),
	}
}
