package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"backend/internal/logger"
	"backend/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins for dev simplicity
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Event is the wire envelope pushed to connected review-queue clients
type Event struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// Client is one connected review-queue socket
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub fans invoice events out to every connected client
type Hub struct {
	mu        sync.Mutex
	clients   map[*Client]struct{}
	broadcast chan []byte
	attach    chan *Client
	detach    chan *Client
}

func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*Client]struct{}),
		broadcast: make(chan []byte),
		attach:    make(chan *Client),
		detach:    make(chan *Client),
	}
}

// BroadcastEvent marshals an event envelope and pushes it to all clients.
// A marshal failure drops the event; the review queue is refreshed on poll
// anyway.
func (h *Hub) BroadcastEvent(eventType string, payload interface{}) {
	data, err := json.Marshal(Event{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now(),
	})
	if err != nil {
		logger.L().Warn("failed to marshal websocket event", zap.String("type", eventType), zap.Error(err))
		return
	}
	h.broadcast <- data
}

// Run dispatches joins, leaves and broadcasts until the process exits
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.attach:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			logger.L().Debug("websocket client connected")
		case client := <-h.detach:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				logger.L().Debug("websocket client disconnected")
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer, drop it rather than stall the hub
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

func (c *Client) readPump() {
	defer func() {
		c.hub.detach <- c
		_ = c.conn.Close()
	}()
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		// Clients never send anything meaningful; reading drives the
		// pong handler and detects disconnects
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.L().Warn("websocket read error", zap.Error(err))
			}
			return
		}
	}
}

// socketRole validates the query-param token and returns its role claim
func socketRole(tokenString string, secret []byte) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", jwt.ErrTokenUnverifiable
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", jwt.ErrTokenInvalidClaims
	}
	role, _ := claims["role"].(string)
	return role, nil
}

// ServeWs authenticates the peer via the token query param and attaches it
// to the hub. Browsers cannot set headers on websocket upgrades.
func ServeWs(hub *Hub, c *gin.Context, secret []byte) {
	tokenString := c.Query("token")
	if tokenString == "" {
		logger.L().Warn("websocket connection rejected: missing token")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	role, err := socketRole(tokenString, secret)
	if err != nil {
		logger.L().Warn("websocket connection rejected: invalid token", zap.Error(err))
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	if role != model.RoleAdmin && role != model.RoleAccountant && role != model.RoleEmployee {
		logger.L().Warn("websocket connection rejected: unknown role", zap.String("role", role))
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.L().Error("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{hub: hub, conn: conn, send: make(chan []byte, sendBuffer)}
	hub.attach <- client

	go client.writePump()
	go client.readPump()
}
