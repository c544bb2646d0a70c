package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/rawblock/txrisk-engine/internal/heuristics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Origin policy is enforced by the CORS layer
	},
}

// Hub maintains the set of active websocket clients and broadcasts
// alert payloads to all of them.
type Hub struct {
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
	mutex     sync.Mutex
	log       *logrus.Logger
}

func NewHub(log *logrus.Logger) *Hub {
	if log == nil {
		log = logrus.New()
	}
	return &Hub{
		broadcast: make(chan []byte, 256),
		clients:   make(map[*websocket.Conn]bool),
		log:       log,
	}
}

func (h *Hub) Run() {
	for message := range h.broadcast {
		h.mutex.Lock()
		for client := range h.clients {
			// Write deadline keeps one stalled client from blocking the hub
			_ = client.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
				h.log.WithError(err).Debug("websocket write failed, dropping client")
				client.Close()
				delete(h.clients, client)
			}
		}
		h.mutex.Unlock()
	}
}

// Subscribe handles incoming websocket connections.
func (h *Hub) Subscribe(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("failed to upgrade websocket")
		return
	}

	h.mutex.Lock()
	h.clients[conn] = true
	total := len(h.clients)
	h.mutex.Unlock()

	h.log.WithField("clients", total).Debug("websocket client connected")

	// Push-only stream; reading is just disconnect detection.
	go func() {
		defer func() {
			h.mutex.Lock()
			delete(h.clients, conn)
			h.mutex.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.log.WithError(err).Debug("websocket closed unexpectedly")
				}
				return
			}
		}
	}()
}

// Broadcast queues a payload for all connected clients.
func (h *Hub) Broadcast(data []byte) {
	h.broadcast <- data
}

// marshalAlert wraps an alert in the stream envelope.
func marshalAlert(alert heuristics.Alert) ([]byte, error) {
	return json.Marshal(gin.H{
		"type":  "alert",
		"alert": alert,
	})
}
