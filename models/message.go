package models

// ========================================
// 메시지 타입 상수
// ========================================
const (
	// Server → Web
	MessageTypeSceneUpdate = "scene_update" // 장면 전체 스냅샷
	MessageTypePosition    = "position"     // 단일 디바이스 위치 변경
	MessageTypeAnimation   = "animation"    // 애니메이션 상태 변경
	MessageTypeSystemInfo  = "system_info"  // 연결 정보

	// Feed → Server
	MessageTypeFeedPosition = "position" // 게이트웨이 위치 보고 (같은 형식)
)

// ========================================
// 공통 WebSocket 메시지 형식
// ========================================
type WebSocketMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"` // Unix timestamp (ms)
}

// PositionData - 디바이스 위치 데이터 (월드 좌표)
type PositionData struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// FeedMessage - 위치 피드에서 들어오는 메시지
type FeedMessage struct {
	Type      string       `json:"type"`
	Data      PositionData `json:"data"`
	Timestamp int64        `json:"timestamp"`
}

// SystemInfo - 접속 시 전송하는 서버 정보
type SystemInfo struct {
	Message     string         `json:"message"`
	ConnectedAt string         `json:"connected_at"`
	Clients     map[string]int `json:"clients"`
}
