package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/aragnam/BTMliveTrackerApp/internal/config"
	"github.com/aragnam/BTMliveTrackerApp/internal/metrics"
	"github.com/aragnam/BTMliveTrackerApp/internal/models"
	"github.com/aragnam/BTMliveTrackerApp/pkg/utils"
)

const (
	// Точность geohash для региональной фильтрации подписчиков
	regionGeohashPrecision = 5

	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsSendBuffer   = 64
)

// updateEnvelope JSON конверт сообщений WebSocket
type updateEnvelope struct {
	Type    string      `json:"type"` // "point" или "alert"
	TrackID string      `json:"track_id,omitempty"`
	Geohash string      `json:"geohash,omitempty"`
	Data    interface{} `json:"data"`
}

// wsClient одно WebSocket соединение
type wsClient struct {
	conn   *websocket.Conn
	send   chan []byte
	region string // geohash префикс подписки, "" = все
}

// WebSocketHandler транслирует обогащенные точки и алерты подписчикам.
// Отправка неблокирующая: медленный подписчик теряет сообщения, но не
// задерживает обработку фиксов.
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	logger   *utils.Logger

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

// NewWebSocketHandler создает новый WebSocket handler
func NewWebSocketHandler(cfg *config.Config, logger *utils.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// TODO: проверка Origin для production
				return true
			},
		},
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
}

// HandleConnection обрабатывает новое WebSocket соединение
// GET /ws/v1/updates?region={geohash-prefix}
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithField("error", err).Error("WebSocket upgrade failed")
		return
	}

	client := &wsClient{
		conn:   conn,
		send:   make(chan []byte, wsSendBuffer),
		region: c.Query("region"),
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	metrics.WebSocketConnections.Inc()

	h.logger.WithFields(map[string]interface{}{
		"client_ip": c.ClientIP(),
		"region":    client.region,
	}).Info("WebSocket client connected")

	go h.writeLoop(client)
	go h.readLoop(client)
}

// BroadcastPoint отправляет обогащенную точку подписчикам
func (h *WebSocketHandler) BroadcastPoint(trackID string, point *models.EnrichedPoint) {
	h.broadcast(updateEnvelope{
		Type:    "point",
		TrackID: trackID,
		Geohash: point.Filtered.Position.Geohash(regionGeohashPrecision),
		Data:    point,
	})
}

// BroadcastAlert отправляет алерт подписчикам
func (h *WebSocketHandler) BroadcastAlert(alert *models.Alert) {
	envelope := updateEnvelope{
		Type: "alert",
		Data: alert,
	}
	if alert.Position != nil {
		envelope.Geohash = alert.Position.Geohash(regionGeohashPrecision)
	}
	h.broadcast(envelope)
}

// broadcast рассылает конверт всем подходящим подписчикам
func (h *WebSocketHandler) broadcast(envelope updateEnvelope) {
	data, err := json.Marshal(envelope)
	if err != nil {
		h.logger.WithField("error", err).Error("Failed to marshal WebSocket envelope")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if client.region != "" && envelope.Geohash != "" &&
			!strings.HasPrefix(envelope.Geohash, client.region) {
			continue
		}

		select {
		case client.send <- data:
			metrics.WebSocketMessagesOut.WithLabelValues(envelope.Type).Inc()
		default:
			// Подписчик не успевает, сообщение пропускается
		}
	}
}

// CloseAll закрывает все соединения
func (h *WebSocketHandler) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

// writeLoop пишет сообщения и пинги в соединение
func (h *WebSocketHandler) writeLoop(client *wsClient) {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case data, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop читает входящие сообщения (только pong и close)
func (h *WebSocketHandler) readLoop(client *wsClient) {
	defer h.removeClient(client)

	client.conn.SetReadLimit(1024)
	client.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
		return nil
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// removeClient убирает клиента из списка подписчиков
func (h *WebSocketHandler) removeClient(client *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		close(client.send)
		delete(h.clients, client)
	}
	h.mu.Unlock()

	client.conn.Close()
	metrics.WebSocketConnections.Dec()
	h.logger.Debug("WebSocket client disconnected")
}
