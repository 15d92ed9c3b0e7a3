package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/websocket/v2"

	"blueprint-backend/models"
	"blueprint-backend/services"
)

// 클라이언트 종류
const (
	ClientTypeWeb  = "web"  // 장면 뷰어
	ClientTypeFeed = "feed" // 위치 피드 게이트웨이
)

// Conn is the part of a WebSocket connection the hub writes to.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Client - 연결된 WebSocket 클라이언트
type Client struct {
	Conn       Conn
	ClientType string
}

// Hub fans store and animation changes out to web viewers and applies
// position reports coming from feed connections.
type Hub struct {
	clients    map[Conn]*Client
	broadcast  chan models.WebSocketMessage
	register   chan *Client
	unregister chan Conn
	done       chan struct{}
	mutex      sync.RWMutex

	store     *services.SpatialStore
	evaluator *services.Evaluator
	feeds     *FeedTracker
	recorder  FeedRecorder

	logger *log.Logger
}

// FeedRecorder receives devices moved by the position feed.
type FeedRecorder interface {
	LogDeviceMoved(d models.Device, source string)
}

// NewHub - 허브 생성
func NewHub(store *services.SpatialStore, evaluator *services.Evaluator, feeds *FeedTracker, logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	if evaluator == nil {
		evaluator = services.NewEvaluator()
	}
	return &Hub{
		clients:    make(map[Conn]*Client),
		broadcast:  make(chan models.WebSocketMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan Conn),
		done:       make(chan struct{}),
		store:      store,
		evaluator:  evaluator,
		feeds:      feeds,
		logger:     logger.WithPrefix("hub"),
	}
}

// SetRecorder sets where feed-applied moves are recorded.
func (h *Hub) SetRecorder(r FeedRecorder) {
	h.recorder = r
}

// Run manages registrations and broadcasts until ctx is done. All client
// connections are closed on exit.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	h.logger.Info("hub started")
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			h.logger.Info("hub stopped")
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client.Conn] = client
			h.mutex.Unlock()
			h.logger.Info("client registered", "type", client.ClientType)

		case conn := <-h.unregister:
			h.remove(conn)

		case message := <-h.broadcast:
			h.handleBroadcast(message)
		}
	}
}

// Register adds a client. It reports false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client and closes its connection.
func (h *Hub) Unregister(conn Conn) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

func (h *Hub) remove(conn Conn) {
	h.mutex.Lock()
	client, ok := h.clients[conn]
	if ok {
		delete(h.clients, conn)
	}
	h.mutex.Unlock()

	if ok {
		_ = conn.Close()
		h.logger.Info("client unregistered", "type", client.ClientType)
	}
}

func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for conn := range h.clients {
		_ = conn.Close()
		delete(h.clients, conn)
	}
}

// handleBroadcast - 웹 뷰어에게만 전송, 실패한 연결은 제거
func (h *Hub) handleBroadcast(message models.WebSocketMessage) {
	h.mutex.RLock()
	var failed []Conn
	for conn, client := range h.clients {
		if client.ClientType != ClientTypeWeb {
			continue
		}
		if err := conn.WriteJSON(message); err != nil {
			h.logger.Warn("send failed", "type", client.ClientType, "err", err)
			failed = append(failed, conn)
		}
	}
	h.mutex.RUnlock()

	for _, conn := range failed {
		h.remove(conn)
	}
}

// Broadcast queues a message for every web viewer. The message is dropped
// when the queue is full.
func (h *Hub) Broadcast(msg models.WebSocketMessage) {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("broadcast queue full, dropping", "type", msg.Type)
	}
}

// ClientCount returns connected clients per type.
func (h *Hub) ClientCount() map[string]int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	count := map[string]int{
		ClientTypeWeb:  0,
		ClientTypeFeed: 0,
	}
	for _, client := range h.clients {
		count[client.ClientType]++
	}
	return count
}

// ========================================
// 저장소 / 애니메이션 → 뷰어
// ========================================

// ScenePayload - scene_update 메시지 본문
type ScenePayload struct {
	Kind        services.StoreEventKind    `json:"kind"`
	Scene       models.Scene               `json:"scene"`
	Containment services.ContainmentReport `json:"containment"`
}

// Attach forwards store changes and animation lifecycle events to viewers.
// Position changes go out as small position messages; everything else as a
// full scene update. The returned function detaches from the store.
func (h *Hub) Attach(animator *services.Animator) func() {
	unsubscribe := h.store.Subscribe(func(ev services.StoreEvent) {
		if ev.Kind == services.StoreEventPosition && ev.Device != nil {
			h.Broadcast(models.WebSocketMessage{
				Type: models.MessageTypePosition,
				Data: models.PositionData{ID: ev.Device.ID, X: ev.Device.X, Y: ev.Device.Y},
			})
			return
		}
		h.Broadcast(models.WebSocketMessage{
			Type: models.MessageTypeSceneUpdate,
			Data: h.scenePayload(ev.Kind),
		})
	})
	if animator != nil {
		animator.OnStatus(func(st services.AnimationStatus) {
			h.Broadcast(models.WebSocketMessage{Type: models.MessageTypeAnimation, Data: st})
		})
	}
	return unsubscribe
}

func (h *Hub) scenePayload(kind services.StoreEventKind) ScenePayload {
	scene := h.store.Snapshot()
	return ScenePayload{
		Kind:        kind,
		Scene:       scene,
		Containment: h.evaluator.Evaluate(scene),
	}
}

// ========================================
// 위치 피드
// ========================================

// ApplyFeed applies one position report from a feed connection.
func (h *Hub) ApplyFeed(msg models.FeedMessage) (models.Device, error) {
	if msg.Type != models.MessageTypeFeedPosition {
		return models.Device{}, models.NewError(models.ErrCodeInvalidInput, "unsupported feed message type %q", msg.Type)
	}
	if msg.Data.ID == "" {
		return models.Device{}, models.NewError(models.ErrCodeInvalidInput, "position report without device id")
	}

	d, err := h.store.UpdateDevicePosition(msg.Data.ID, msg.Data.X, msg.Data.Y)
	if err != nil {
		return models.Device{}, err
	}
	if h.feeds != nil {
		h.feeds.Record(d.ID, d.Position())
	}
	if h.recorder != nil {
		h.recorder.LogDeviceMoved(d, services.SourceFeed)
	}
	return d, nil
}

// HandleWeb serves a viewer connection: a welcome message with the current
// scene, then every broadcast until the viewer disconnects.
func (h *Hub) HandleWeb(c *websocket.Conn) {
	welcome := models.WebSocketMessage{
		Type: models.MessageTypeSystemInfo,
		Data: models.SystemInfo{
			Message:     "web client connected",
			ConnectedAt: time.Now().Format(time.RFC3339),
			Clients:     h.ClientCount(),
		},
		Timestamp: time.Now().UnixMilli(),
	}
	_ = c.WriteJSON(welcome)
	_ = c.WriteJSON(models.WebSocketMessage{
		Type:      models.MessageTypeSceneUpdate,
		Data:      h.scenePayload(services.StoreEventDevices),
		Timestamp: time.Now().UnixMilli(),
	})

	// 첫 메시지를 보낸 뒤 등록해야 쓰기가 겹치지 않는다
	if !h.Register(&Client{Conn: c, ClientType: ClientTypeWeb}) {
		return
	}
	defer h.Unregister(c)

	// 뷰어는 읽기 전용. 연결 종료 감지용으로만 읽는다.
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			h.logger.Debug("viewer read ended", "err", err)
			return
		}
	}
}

// HandleFeed serves a position feed connection. Invalid reports are answered
// with an error message and the connection stays open.
func (h *Hub) HandleFeed(c *websocket.Conn) {
	if !h.Register(&Client{Conn: c, ClientType: ClientTypeFeed}) {
		return
	}
	defer h.Unregister(c)

	for {
		var msg models.FeedMessage
		if err := c.ReadJSON(&msg); err != nil {
			h.logger.Debug("feed read ended", "err", err)
			return
		}

		if _, err := h.ApplyFeed(msg); err != nil {
			h.logger.Warn("feed report rejected", "id", msg.Data.ID, "err", err)
			_ = c.WriteJSON(newErrorBody(err))
		}
	}
}
