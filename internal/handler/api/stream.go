package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/revolis/allpremarkets/internal/domain/models"
	"github.com/revolis/allpremarkets/pkg/logger"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = pongWait * 9 / 10
	clientBuffer = 64
)

type streamClient struct {
	conn   *websocket.Conn
	send   chan []byte
	symbol string
}

// StreamHub broadcasts alert events to WebSocket clients. It is an alert
// sink; clients that fall behind are disconnected.
type StreamHub struct {
	log      *logger.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*streamClient]struct{}
	closed  bool
}

func NewStreamHub(l *logger.Logger) *StreamHub {
	return &StreamHub{
		log: l,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*streamClient]struct{}),
	}
}

func (h *StreamHub) Name() string { return "websocket" }

// Deliver never blocks on a client.
func (h *StreamHub) Deliver(_ context.Context, ev models.AlertEvent) error {
	msg, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.symbol != "" && c.symbol != ev.Symbol {
			continue
		}
		select {
		case c.send <- msg:
		default:
			h.log.Warn("stream client too slow, disconnecting", logger.String("remote", c.conn.RemoteAddr().String()))
			h.drop(c)
		}
	}
	return nil
}

// Clients returns the number of connected clients.
func (h *StreamHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *StreamHub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.drop(c)
	}
	return nil
}

// drop must be called with mu held.
func (h *StreamHub) drop(c *streamClient) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// Serve upgrades the request and streams alerts until the client leaves.
// An optional symbol query parameter filters the stream.
func (h *StreamHub) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Warn("stream upgrade failed", logger.Error(err))
		return nil
	}

	client := &streamClient{
		conn:   conn,
		send:   make(chan []byte, clientBuffer),
		symbol: c.QueryParam("symbol"),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		return conn.Close()
	}
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	go h.writePump(client)
	h.readPump(client)
	return nil
}

// readPump discards client messages and handles pongs.
func (h *StreamHub) readPump(c *streamClient) {
	defer func() {
		h.mu.Lock()
		h.drop(c)
		h.mu.Unlock()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *StreamHub) writePump(c *streamClient) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
