package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"taskboard/pkg/util"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cross-origin browser clients are expected; auth happens via JWT.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades HTTP requests to WebSocket connections and attaches
// them to the hub.
type Handler struct {
	hub       *Hub
	jwtSecret string
	logger    *zap.Logger
}

func NewHandler(hub *Hub, jwtSecret string, logger *zap.Logger) *Handler {
	return &Handler{hub: hub, jwtSecret: jwtSecret, logger: logger}
}

// Serve authenticates and upgrades the connection. The token comes from the
// `token` query parameter or an Authorization bearer header. A bad token
// closes the connection without detail; the reason is only logged.
func (h *Handler) Serve(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = util.ExtractBearer(c.GetHeader("Authorization"))
	}

	userID, err := util.ParseJWT(token, h.jwtSecret)
	if err != nil {
		h.logger.Warn("WebSocket auth failed", zap.Error(err))
		c.Status(http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := newClient(h.hub, conn, userID, uuid.NewString(), h.logger)
	h.hub.register(client)

	go client.writePump()
	go client.readPump()

	if frame, err := json.Marshal(pushFrame{Event: "connected", Payload: map[string]string{"userId": userID}}); err == nil {
		client.trySend(frame)
	}
}
