package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mnemo-ai/mnemo/internal/chat"
	"github.com/mnemo-ai/mnemo/internal/engine"
)

// wsClientMessage is what a connected client sends per turn.
type wsClientMessage struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message,omitempty"`
}

// wsServerEvent is pushed back over the same connection.
type wsServerEvent struct {
	Type           string        `json:"type"`
	ConversationID string        `json:"conversation_id,omitempty"`
	Title          string        `json:"title,omitempty"`
	Message        *chat.Message `json:"message,omitempty"`
	Error          string        `json:"error,omitempty"`
	Code           string        `json:"code,omitempty"`
}

// handleChatWS runs a long-lived chat connection: the client sends one
// "chat" message per turn and receives turn lifecycle events back. The
// owner is fixed per connection via the owner_id query parameter.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	ownerID := strings.TrimSpace(r.URL.Query().Get("owner_id"))
	if ownerID == "" {
		respondError(w, http.StatusBadRequest, "missing_owner_id", "query parameter owner_id is required")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
		return nil
	})

	for {
		var req wsClientMessage
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Minute))

		if req.Type != "chat" {
			s.writeWSEvent(conn, wsServerEvent{Type: "error", Code: "unsupported_type", Error: "only chat messages are supported"})
			continue
		}

		s.writeWSEvent(conn, wsServerEvent{Type: "turn.started", ConversationID: req.ConversationID})

		result, err := s.service.HandleTurn(r.Context(), engine.TurnRequest{
			OwnerID:        ownerID,
			ConversationID: req.ConversationID,
			Message:        req.Message,
		})
		if err != nil {
			s.writeWSEvent(conn, wsServerEvent{
				Type:           "turn.failed",
				ConversationID: req.ConversationID,
				Code:           turnErrorCode(err),
				Error:          err.Error(),
			})
			continue
		}

		s.writeWSEvent(conn, wsServerEvent{
			Type:           "assistant.message",
			ConversationID: result.Conversation.ID,
			Title:          result.Conversation.Title,
			Message:        &result.Assistant,
		})
		s.writeWSEvent(conn, wsServerEvent{Type: "turn.completed", ConversationID: result.Conversation.ID})
	}
}

func (s *Server) writeWSEvent(conn *websocket.Conn, event wsServerEvent) {
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	_ = conn.WriteJSON(event)
}

func turnErrorCode(err error) string {
	switch {
	case errors.Is(err, engine.ErrEmptyMessage):
		return "empty_message"
	case errors.Is(err, chat.ErrNotFound):
		return "conversation_not_found"
	default:
		return "reply_failed"
	}
}
