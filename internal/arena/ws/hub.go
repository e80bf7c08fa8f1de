package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/agent-arena/pkg/contracts/events"
)

// conn serializa escritas; o gorilla não aceita escritores concorrentes
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, b)
}

func (c *conn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}

// Hub gerencia conexões WebSocket e assinaturas por partida
type Hub struct {
	log      *zap.Logger
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	// matchID (ou "*") -> conexões
	subs map[string]map[*conn]struct{}
}

func NewHub(log *zap.Logger, allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		log:      log,
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		subs:     make(map[string]map[*conn]struct{}),
	}
}

// HandleWS gerencia o ciclo de vida de uma conexão: subscribe/unsubscribe/ping
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &conn{ws: wsConn}
	defer wsConn.Close()

	for {
		var msg ClientMsg
		if err := wsConn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "subscribe":
			if msg.MatchID == "" {
				continue
			}
			h.mu.Lock()
			if _, ok := h.subs[msg.MatchID]; !ok {
				h.subs[msg.MatchID] = make(map[*conn]struct{})
			}
			h.subs[msg.MatchID][c] = struct{}{}
			h.mu.Unlock()
		case "unsubscribe":
			h.mu.Lock()
			h.removeLocked(msg.MatchID, c)
			h.mu.Unlock()
		case "ping":
			_ = c.writeJSON(map[string]string{"type": "pong"})
		}
	}

	h.mu.Lock()
	for id := range h.subs {
		h.removeLocked(id, c)
	}
	h.mu.Unlock()
}

func (h *Hub) removeLocked(id string, c *conn) {
	if set, ok := h.subs[id]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, id)
		}
	}
}

// Broadcast envia o envelope para quem assina a partida e para quem assina "*"
func (h *Hub) Broadcast(e events.Envelope) {
	h.mu.RLock()
	targets := make([]*conn, 0)
	if e.MatchID != "" {
		for c := range h.subs[e.MatchID] {
			targets = append(targets, c)
		}
	}
	for c := range h.subs[AllMatches] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	b, err := json.Marshal(e)
	if err != nil {
		h.log.Warn("ws encode failed", zap.Error(err))
		return
	}
	for _, c := range targets {
		_ = c.write(b)
	}
}

// Publish permite usar o hub direto como publisher quando não há Redis
func (h *Hub) Publish(_ context.Context, e events.Envelope) error {
	h.Broadcast(e)
	return nil
}
