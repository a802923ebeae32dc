package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/image-uploader/backend/internal/models"
	"github.com/image-uploader/backend/internal/session"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// WebSocket message types
const (
	// Client -> Server messages
	MsgTypePing = "ping"

	// Server -> Client messages
	MsgTypeSnapshot = "snapshot"
	MsgTypePong     = "pong"
)

// WSMessage is the envelope for every websocket message
type WSMessage struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// StreamConfig tunes the snapshot push channel
type StreamConfig struct {
	// PushInterval is the minimum spacing between snapshot messages.
	// Snapshots produced in between are coalesced into the latest one.
	PushInterval   time.Duration
	MaxMessageSize int64
}

// WebSocketHandler pushes widget snapshots to the page as they change
type WebSocketHandler struct {
	sessions *session.Manager
	cfg      StreamConfig
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a new snapshot stream handler
func NewWebSocketHandler(sessions *session.Manager, cfg StreamConfig) *WebSocketHandler {
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 64 * 1024
	}
	return &WebSocketHandler{
		sessions: sessions,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
		},
	}
}

// latestSnapshot holds the most recent undelivered snapshot
type latestSnapshot struct {
	mu    sync.Mutex
	snap  *models.WidgetSnapshot
	ready chan struct{}
}

func newLatestSnapshot() *latestSnapshot {
	return &latestSnapshot{ready: make(chan struct{}, 1)}
}

// put never blocks; it is called from widget observers.
func (l *latestSnapshot) put(s models.WidgetSnapshot) {
	l.mu.Lock()
	l.snap = &s
	l.mu.Unlock()

	select {
	case l.ready <- struct{}{}:
	default:
	}
}

func (l *latestSnapshot) take() *models.WidgetSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.snap
	l.snap = nil
	return s
}

// HandleWidgetStream upgrades to a websocket and streams snapshots of one widget
func (wsh *WebSocketHandler) HandleWidgetStream(c echo.Context) error {
	w, err := lookupWidget(wsh.sessions, c)
	if err != nil {
		return err
	}

	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()
	ws.SetReadLimit(wsh.cfg.MaxMessageSize)

	fmt.Printf("[WebSocket %s] Client connected\n", models.ShortID(w.ID()))

	latest := newLatestSnapshot()
	unsubscribe := w.Subscribe(latest.put)
	defer unsubscribe()
	latest.put(w.Snapshot())

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	pongs := make(chan struct{}, 4)
	go wsh.readLoop(ctx, cancel, ws, pongs)

	limit := rate.Inf
	if wsh.cfg.PushInterval > 0 {
		limit = rate.Every(wsh.cfg.PushInterval)
	}
	limiter := rate.NewLimiter(limit, 1)

	for {
		select {
		case <-ctx.Done():
			fmt.Printf("[WebSocket %s] Client disconnected\n", models.ShortID(w.ID()))
			return nil
		case <-pongs:
			wsh.sessions.Touch(w.ID())
			if err := wsh.send(ws, MsgTypePong, nil); err != nil {
				return nil
			}
		case <-latest.ready:
			if err := limiter.Wait(ctx); err != nil {
				return nil
			}
			snap := latest.take()
			if snap == nil {
				continue
			}
			if err := wsh.send(ws, MsgTypeSnapshot, snap); err != nil {
				fmt.Printf("[WebSocket %s] Write error: %v\n", models.ShortID(w.ID()), err)
				return nil
			}
		}
	}
}

// readLoop handles client messages until the connection closes
func (wsh *WebSocketHandler) readLoop(ctx context.Context, cancel context.CancelFunc, ws *websocket.Conn, pongs chan<- struct{}) {
	defer cancel()
	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				fmt.Printf("[WebSocket] Connection error: %v\n", err)
			}
			return
		}

		switch msg.Type {
		case MsgTypePing:
			select {
			case pongs <- struct{}{}:
			case <-ctx.Done():
				return
			}
		default:
			// Unknown types are ignored; the server only pushes.
		}
	}
}

func (wsh *WebSocketHandler) send(ws *websocket.Conn, msgType string, payload interface{}) error {
	msg := WSMessage{Type: msgType, Timestamp: time.Now().UnixMilli()}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		msg.Payload = data
	}
	ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return ws.WriteJSON(msg)
}
