package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/Dosada05/contest-system/realtime"
	"github.com/Dosada05/contest-system/services"
)

type WebSocketHandler struct {
	hub            *realtime.Hub
	contestService services.ContestService
	upgrader       websocket.Upgrader
	logger         *slog.Logger
}

// NewWebSocketHandler accepts connections from the given origins; an empty
// list accepts any origin.
func NewWebSocketHandler(hub *realtime.Hub, cs services.ContestService, allowedOrigins []string, logger *slog.Logger) *WebSocketHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &WebSocketHandler{
		hub:            hub,
		contestService: cs,
		logger:         logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
	}
}

// ServeWs handles GET /ws/contests/{contestID}. The client receives every
// bracket update of that contest until it disconnects.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	contestID, err := getIDFromURL(r, "contestID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if _, err := h.contestService.GetContest(r.Context(), contestID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the client.
		h.logger.Warn("websocket upgrade failed", slog.Int("contest_id", contestID), slog.Any("error", err))
		return
	}

	room := realtime.ContestRoom(contestID)
	client := realtime.NewClient(h.hub, conn, room)
	if !h.hub.Register(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()

	h.logger.Debug("websocket client joined", slog.String("room", room))
}
