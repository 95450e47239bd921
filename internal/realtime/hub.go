// Package realtime pushes processing-status changes of a video to the
// sockets its owner has open. Delivery is best-effort: a slow or absent
// client misses messages and recovers by refetching.
package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/user/vidtube-go/internal/model"
)

const (
	sendBuffer = 64
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// MessageTypeVideoStatus tags status updates
const MessageTypeVideoStatus = "video.status"

// StatusUpdate is sent to the owner when a video's processing state changes
type StatusUpdate struct {
	Type           string          `json:"type"`
	VideoID        uuid.UUID       `json:"videoId"`
	MuxStatus      model.MuxStatus `json:"muxStatus"`
	MuxTrackStatus *string         `json:"muxTrackStatus"`
	Deleted        bool            `json:"deleted,omitempty"`
}

// NewStatusUpdate builds the update for v
func NewStatusUpdate(v *model.Video) StatusUpdate {
	return StatusUpdate{
		Type:           MessageTypeVideoStatus,
		VideoID:        v.ID,
		MuxStatus:      v.MuxStatus,
		MuxTrackStatus: v.MuxTrackStatus,
	}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks open sockets per user
type Hub struct {
	mu       sync.RWMutex
	clients  map[uuid.UUID]map[*client]struct{}
	upgrader websocket.Upgrader
}

// NewHub creates a hub accepting connections from allowedOrigin. An empty
// origin accepts any.
func NewHub(allowedOrigin string) *Hub {
	return &Hub{
		clients: make(map[uuid.UUID]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowedOrigin == "" || origin == "" || origin == allowedOrigin
			},
		},
	}
}

func (h *Hub) register(userID uuid.UUID, conn *websocket.Conn) *client {
	h.mu.Lock()
	defer h.mu.Unlock()

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	if _, ok := h.clients[userID]; !ok {
		h.clients[userID] = make(map[*client]struct{})
	}
	h.clients[userID][c] = struct{}{}
	return c
}

func (h *Hub) unregister(userID uuid.UUID, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[userID]
	if !ok {
		return
	}
	if _, ok := clients[c]; ok {
		close(c.send)
		delete(clients, c)
	}
	if len(clients) == 0 {
		delete(h.clients, userID)
	}
}

// Connections returns the number of open sockets for userID
func (h *Hub) Connections(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Publish sends msg to every socket of userID. Full buffers drop the message.
func (h *Hub) Publish(userID uuid.UUID, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode realtime message")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[userID] {
		select {
		case c.send <- data:
		default:
			log.Warn().Str("user", userID.String()).Msg("Realtime buffer full, dropping message")
		}
	}
}

// PublishVideo sends v's status to its owner
func (h *Hub) PublishVideo(v *model.Video) {
	h.Publish(v.UserID, NewStatusUpdate(v))
}

// PublishDeleted tells the owner that v is gone
func (h *Hub) PublishDeleted(v *model.Video) {
	update := NewStatusUpdate(v)
	update.Deleted = true
	h.Publish(v.UserID, update)
}

// Close drops every open socket. Handlers unwind through their read pumps.
func (h *Hub) Close() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, clients := range h.clients {
		for c := range clients {
			c.conn.Close()
		}
	}
}

// Serve upgrades the request and streams userID's updates until the socket
// closes. The caller has already authenticated userID.
func (h *Hub) Serve(c *gin.Context, userID uuid.UUID) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	cl := h.register(userID, conn)
	log.Debug().Str("user", userID.String()).Msg("Realtime client connected")

	go h.writePump(cl)
	h.readPump(userID, cl)
}

// readPump discards client frames and detects disconnects
func (h *Hub) readPump(userID uuid.UUID, c *client) {
	defer h.unregister(userID, c)

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
