// Package ws implements the WebSocket adapter that pushes history events to
// connected clients of one tenant.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const writeTimeout = 5 * time.Second

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// conn wraps a single WebSocket connection bound to a tenant.
type conn struct {
	ws       *websocket.Conn
	cancel   context.CancelFunc
	tenantID string
}

// Hub manages active WebSocket connections and fans messages out per tenant.
type Hub struct {
	mu       sync.RWMutex
	conns    map[*conn]struct{}
	origin   string
	tenantOf func(*http.Request) string
}

// NewHub creates a hub. origin restricts the accepted Origin header pattern;
// empty accepts any origin. tenantOf extracts the tenant of an upgrade
// request; nil reads the X-Tenant-ID header or the tenant query parameter.
func NewHub(origin string, tenantOf func(*http.Request) string) *Hub {
	if tenantOf == nil {
		tenantOf = defaultTenant
	}
	return &Hub{
		conns:    make(map[*conn]struct{}),
		origin:   origin,
		tenantOf: tenantOf,
	}
}

func defaultTenant(r *http.Request) string {
	if tid := r.Header.Get("X-Tenant-ID"); tid != "" {
		return tid
	}
	return r.URL.Query().Get("tenant")
}

// HandleWS upgrades the request to a WebSocket bound to the caller's tenant.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	tenantID := h.tenantOf(r)
	if tenantID == "" {
		http.Error(w, `{"error":"tenant required"}`, http.StatusBadRequest)
		return
	}

	opts := &websocket.AcceptOptions{InsecureSkipVerify: h.origin == ""}
	if h.origin != "" {
		opts.OriginPatterns = []string{h.origin}
	}
	ws, err := websocket.Accept(w, r, opts)
	if err != nil {
		slog.ErrorContext(r.Context(), "websocket accept failed", "error", err)
		return
	}

	// The request context ends when the handler returns; the read loop
	// outlives it.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	c := &conn{ws: ws, cancel: cancel, tenantID: tenantID}

	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()

	slog.InfoContext(ctx, "websocket connected", "remote", r.RemoteAddr, "tenant_id", tenantID)

	go func() {
		defer func() {
			h.remove(c)
			_ = ws.Close(websocket.StatusNormalClosure, "")
		}()
		for {
			if _, _, err := ws.Read(ctx); err != nil {
				return
			}
		}
	}()
}

// Broadcast sends msg to every connected client regardless of tenant.
func (h *Hub) Broadcast(ctx context.Context, msg Message) {
	h.send(ctx, msg, func(*conn) bool { return true })
}

// BroadcastToTenant sends msg to the clients of tenantID only.
func (h *Hub) BroadcastToTenant(ctx context.Context, tenantID string, msg Message) {
	h.send(ctx, msg, func(c *conn) bool { return c.tenantID == tenantID })
}

func (h *Hub) send(ctx context.Context, msg Message, match func(*conn) bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.ErrorContext(ctx, "websocket marshal failed", "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*conn, 0, len(h.conns))
	for c := range h.conns {
		if match(c) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := c.ws.Write(wctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			slog.DebugContext(ctx, "websocket write failed", "tenant_id", c.tenantID, "error", err)
			h.remove(c)
		}
	}
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[c]; ok {
		c.cancel()
		delete(h.conns, c)
		slog.Info("websocket disconnected", "tenant_id", c.tenantID)
	}
}
