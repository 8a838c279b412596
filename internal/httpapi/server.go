package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/mnemo-ai/mnemo/internal/chat"
	"github.com/mnemo-ai/mnemo/internal/config"
	"github.com/mnemo-ai/mnemo/internal/engine"
	"github.com/mnemo-ai/mnemo/internal/observability"
)

// ChatService is the turn pipeline consumed by the HTTP layer.
type ChatService interface {
	HandleTurn(ctx context.Context, req engine.TurnRequest) (engine.TurnResult, error)
	Conversations(ctx context.Context, ownerID string) ([]chat.Conversation, error)
	ConversationMessages(ctx context.Context, ownerID, conversationID string) ([]chat.Message, error)
	RenameConversation(ctx context.Context, ownerID, conversationID, title string) error
	DeleteConversation(ctx context.Context, ownerID, conversationID string) error
}

type Server struct {
	cfg      config.Config
	service  ChatService
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
}

func New(cfg config.Config, service ChatService, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:     cfg,
		service: service,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only allow browser websocket connections from the same
				// origin unless explicitly opened up. Non-browser clients
				// often omit Origin; allow them.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/api/perf", s.handlePerf)

	r.Post("/api/chat", s.handleChat)
	r.Get("/api/conversations", s.handleListConversations)
	r.Get("/api/conversations/{id}/messages", s.handleListMessages)
	r.Patch("/api/conversations/{id}", s.handleRenameConversation)
	r.Delete("/api/conversations/{id}", s.handleDeleteConversation)

	r.Get("/ws/chat", s.handleChatWS)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handlePerf(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.metrics.PerfSnapshot())
}

type chatRequest struct {
	OwnerID        string `json:"owner_id"`
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.OwnerID) == "" {
		respondError(w, http.StatusBadRequest, "missing_owner_id", "owner_id is required")
		return
	}

	result, err := s.service.HandleTurn(r.Context(), engine.TurnRequest{
		OwnerID:        req.OwnerID,
		ConversationID: req.ConversationID,
		Message:        req.Message,
	})
	if err != nil {
		respondTurnError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"conversation_id": result.Conversation.ID,
		"title":           result.Conversation.Title,
		"messages":        []chat.Message{result.User, result.Assistant},
	})
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	ownerID := strings.TrimSpace(r.URL.Query().Get("owner_id"))
	if ownerID == "" {
		respondError(w, http.StatusBadRequest, "missing_owner_id", "query parameter owner_id is required")
		return
	}

	convs, err := s.service.Conversations(r.Context(), ownerID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	if convs == nil {
		convs = []chat.Conversation{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"conversations": convs})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	ownerID := strings.TrimSpace(r.URL.Query().Get("owner_id"))
	id := chi.URLParam(r, "id")
	if ownerID == "" || id == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "owner_id and conversation id are required")
		return
	}

	msgs, err := s.service.ConversationMessages(r.Context(), ownerID, id)
	if errors.Is(err, chat.ErrNotFound) {
		respondError(w, http.StatusNotFound, "conversation_not_found", "conversation not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	if msgs == nil {
		msgs = []chat.Message{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

type renameRequest struct {
	Title string `json:"title"`
}

func (s *Server) handleRenameConversation(w http.ResponseWriter, r *http.Request) {
	ownerID := strings.TrimSpace(r.URL.Query().Get("owner_id"))
	id := chi.URLParam(r, "id")

	var req renameRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if ownerID == "" || strings.TrimSpace(req.Title) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "owner_id and title are required")
		return
	}

	err := s.service.RenameConversation(r.Context(), ownerID, id, strings.TrimSpace(req.Title))
	if errors.Is(err, chat.ErrNotFound) {
		respondError(w, http.StatusNotFound, "conversation_not_found", "conversation not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "rename_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	ownerID := strings.TrimSpace(r.URL.Query().Get("owner_id"))
	id := chi.URLParam(r, "id")
	if ownerID == "" || id == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "owner_id and conversation id are required")
		return
	}

	err := s.service.DeleteConversation(r.Context(), ownerID, id)
	if errors.Is(err, chat.ErrNotFound) {
		respondError(w, http.StatusNotFound, "conversation_not_found", "conversation not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "delete_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

func respondTurnError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrEmptyMessage):
		respondError(w, http.StatusBadRequest, "empty_message", "message must not be empty")
	case errors.Is(err, chat.ErrNotFound):
		respondError(w, http.StatusNotFound, "conversation_not_found", "conversation not found")
	default:
		respondError(w, http.StatusBadGateway, "reply_failed", err.Error())
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
