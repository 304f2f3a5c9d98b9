// FILE: internal/service/web/hub.go
package web

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"fixedreply/internal/core/responder"
	"fixedreply/internal/shared/logger"
)

const recentEventsLimit = 50

// WebSocketMessage 定义了 WebSocket 消息的通用格式
type WebSocketMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub maintains the set of active clients and broadcasts connection events
// to them. It also keeps the most recent events for /api/connections.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.Mutex

	recentMu sync.Mutex
	recent   []*responder.ConnectionEvent
}

// Hub 作为 responder 的观察者接收连接事件
var _ responder.Observer = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 64),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		clients:    make(map[*websocket.Conn]bool),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			h.mu.Unlock()
			logger.Info().Str("remote_addr", conn.RemoteAddr().String()).Msg("WebSocket client registered.")
		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
				logger.Info().Str("remote_addr", conn.RemoteAddr().String()).Msg("WebSocket client unregistered.")
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for conn := range h.clients {
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					// 读循环会负责注销断开的客户端
					logger.Warn().Err(err).Str("remote_addr", conn.RemoteAddr().String()).Msg("Error writing to websocket client.")
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount returns the number of registered websocket clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// OnConnection implements responder.Observer.
func (h *Hub) OnConnection(ev *responder.ConnectionEvent) {
	h.recentMu.Lock()
	h.recent = append(h.recent, ev)
	if len(h.recent) > recentEventsLimit {
		h.recent = h.recent[len(h.recent)-recentEventsLimit:]
	}
	h.recentMu.Unlock()

	h.BroadcastConnection(ev)
}

// Recent returns the retained events, oldest first.
func (h *Hub) Recent() []*responder.ConnectionEvent {
	h.recentMu.Lock()
	defer h.recentMu.Unlock()
	out := make([]*responder.ConnectionEvent, len(h.recent))
	copy(out, h.recent)
	return out
}

// BroadcastConnection 广播单条连接事件, 通道已满时直接丢弃, 不阻塞 accept 循环
func (h *Hub) BroadcastConnection(ev *responder.ConnectionEvent) {
	msg := WebSocketMessage{Type: "connection", Data: ev}
	jsonMsg, err := json.Marshal(msg)
	if err != nil {
		logger.Error().Err(err).Msg("Hub: Failed to marshal connection event")
		return
	}

	select {
	case h.broadcast <- jsonMsg:
	default:
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // Allow all origins
}

// ServeWs handles websocket requests from the peer.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to upgrade websocket")
		return
	}
	hub.register <- conn

	// 读循环只用于检测客户端关闭
	go func() {
		defer func() {
			hub.unregister <- conn
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logger.Warn().Err(err).Msg("Unexpected websocket close error")
				}
				break
			}
		}
	}()
}
