package server

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleAskStream answers one question per connection: the client sends a
// JSON ask request, the server replies with delta events followed by exactly
// one final or error event, then closes.
func (s *Server) handleAskStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	var req models.AskRequest
	if err := conn.ReadJSON(&req); err != nil {
		_ = conn.WriteJSON(models.StreamEvent{Type: models.StreamError, Message: "invalid request"})
		return
	}
	s.logger.Debug("ask stream request", zap.String("course_id", req.CourseID))

	err = s.answerer.AskStream(r.Context(), &req, func(ev models.StreamEvent) error {
		return conn.WriteJSON(ev)
	})
	if err != nil {
		// The consumer went away mid-stream; nothing left to deliver.
		s.logger.Warn("ask stream aborted", zap.Error(err))
		return
	}
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
