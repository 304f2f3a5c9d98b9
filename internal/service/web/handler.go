package web

import (
	"encoding/json"
	"net"
	"net/http"

	"fixedreply/internal/core/responder"
)

// StatusProvider is the part of the responder the dashboard reads.
type StatusProvider interface {
	Addr() net.Addr
	Stats() *responder.Stats
	Reply() []byte
}

type Handler struct {
	provider StatusProvider
	hub      *Hub
}

func NewHandler(provider StatusProvider, hub *Hub) *Handler {
	return &Handler{provider: provider, hub: hub}
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	ListenAddr string                  `json:"listen_addr"`
	ReplyLen   int                     `json:"reply_len"`
	WSClients  int                     `json:"ws_clients"`
	Stats      responder.StatsSnapshot `json:"stats"`
}

// HandleStatus 处理 GET /api/status 请求
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	response := StatusResponse{
		ListenAddr: h.provider.Addr().String(),
		ReplyLen:   len(h.provider.Reply()),
		WSClients:  h.hub.ClientCount(),
		Stats:      h.provider.Stats().Snapshot(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// HandleGetConnections 处理 GET /api/connections 请求，返回最近处理过的连接
func (h *Handler) HandleGetConnections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.hub.Recent())
}
