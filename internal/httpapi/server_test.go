package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/mnemo-ai/mnemo/internal/chat"
	"github.com/mnemo-ai/mnemo/internal/config"
	"github.com/mnemo-ai/mnemo/internal/engine"
	"github.com/mnemo-ai/mnemo/internal/llm"
	"github.com/mnemo-ai/mnemo/internal/memory"
	"github.com/mnemo-ai/mnemo/internal/prompt"
	"github.com/mnemo-ai/mnemo/internal/summary"
)

// newTestServer wires the full in-memory stack behind the router, the same
// shape main assembles, with the deterministic mock provider.
func newTestServer(t *testing.T) (*httptest.Server, *engine.Service) {
	t.Helper()

	chatStore := chat.NewInMemoryStore()
	memStore := memory.NewInMemoryStore()
	sumStore := summary.NewInMemoryStore()
	client := llm.NewMockClient()

	consolidator := memory.NewConsolidator(memStore, chatStore, client, 8, nil)
	summarizer := summary.NewSummarizer(sumStore, chatStore, client, 30, nil)
	assembler := prompt.NewAssembler(memStore, sumStore, chatStore, 10, 20)
	service := engine.NewService(engine.Config{}, chatStore, memStore, sumStore, consolidator, summarizer, assembler, client, nil)

	srv := New(config.Config{AllowAnyOrigin: true}, service, nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		ts.Close()
		service.WaitBackground()
	})
	return ts, service
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestChatEndpointRoundTrip(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/chat", map[string]string{
		"owner_id": "o1",
		"message":  "hello there",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		ConversationID string         `json:"conversation_id"`
		Title          string         `json:"title"`
		Messages       []chat.Message `json:"messages"`
	}
	decodeBody(t, resp, &body)

	if body.ConversationID == "" {
		t.Fatalf("conversation_id is empty")
	}
	if len(body.Messages) != 2 {
		t.Fatalf("messages = %d, want user+assistant pair", len(body.Messages))
	}
	if body.Messages[0].Role != chat.RoleUser || body.Messages[1].Role != chat.RoleAssistant {
		t.Fatalf("pair roles = %q, %q", body.Messages[0].Role, body.Messages[1].Role)
	}
	if !strings.Contains(body.Messages[1].Content, "hello there") {
		t.Fatalf("assistant content = %q", body.Messages[1].Content)
	}
}

func TestChatEndpointValidation(t *testing.T) {
	ts, _ := newTestServer(t)

	tests := []struct {
		name       string
		body       map[string]string
		wantStatus int
		wantCode   string
	}{
		{"missing owner", map[string]string{"message": "hi"}, http.StatusBadRequest, "missing_owner_id"},
		{"blank message", map[string]string{"owner_id": "o1", "message": "  "}, http.StatusBadRequest, "empty_message"},
		{"unknown conversation", map[string]string{"owner_id": "o1", "conversation_id": "missing", "message": "hi"}, http.StatusNotFound, "conversation_not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+"/api/chat", tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			var body errorResponse
			decodeBody(t, resp, &body)
			if body.Code != tt.wantCode {
				t.Fatalf("code = %q, want %q", body.Code, tt.wantCode)
			}
		})
	}
}

func TestConversationEndpoints(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/chat", map[string]string{"owner_id": "o1", "message": "first message"})
	var created struct {
		ConversationID string `json:"conversation_id"`
	}
	decodeBody(t, resp, &created)

	// List.
	resp, err := http.Get(ts.URL + "/api/conversations?owner_id=o1")
	if err != nil {
		t.Fatalf("GET conversations: %v", err)
	}
	var listed struct {
		Conversations []chat.Conversation `json:"conversations"`
	}
	decodeBody(t, resp, &listed)
	if len(listed.Conversations) != 1 || listed.Conversations[0].ID != created.ConversationID {
		t.Fatalf("conversations = %+v", listed.Conversations)
	}

	// Messages.
	resp, err = http.Get(fmt.Sprintf("%s/api/conversations/%s/messages?owner_id=o1", ts.URL, created.ConversationID))
	if err != nil {
		t.Fatalf("GET messages: %v", err)
	}
	var msgs struct {
		Messages []chat.Message `json:"messages"`
	}
	decodeBody(t, resp, &msgs)
	if len(msgs.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs.Messages))
	}

	// Rename.
	data, _ := json.Marshal(map[string]string{"title": "renamed"})
	req, _ := http.NewRequest(http.MethodPatch,
		fmt.Sprintf("%s/api/conversations/%s?owner_id=o1", ts.URL, created.ConversationID),
		bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PATCH conversation: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rename status = %d, want 200", resp.StatusCode)
	}

	// Delete as another owner must 404 and leave the conversation intact.
	req, _ = http.NewRequest(http.MethodDelete,
		fmt.Sprintf("%s/api/conversations/%s?owner_id=intruder", ts.URL, created.ConversationID), nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE conversation: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("foreign delete status = %d, want 404", resp.StatusCode)
	}

	// Delete as the owner.
	req, _ = http.NewRequest(http.MethodDelete,
		fmt.Sprintf("%s/api/conversations/%s?owner_id=o1", ts.URL, created.ConversationID), nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE conversation: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Get(fmt.Sprintf("%s/api/conversations/%s/messages?owner_id=o1", ts.URL, created.ConversationID))
	if err != nil {
		t.Fatalf("GET messages after delete: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("messages after delete status = %d, want 404", resp.StatusCode)
	}
}

func TestListConversationsRequiresOwner(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/conversations")
	if err != nil {
		t.Fatalf("GET conversations: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestPerfEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/perf")
	if err != nil {
		t.Fatalf("GET perf: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestChatWebSocketTurn(t *testing.T) {
	ts, service := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/chat?owner_id=o1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(wsClientMessage{Type: "chat", Message: "hello over ws"}); err != nil {
		t.Fatalf("write ws message: %v", err)
	}

	var events []wsServerEvent
	for i := 0; i < 3; i++ {
		var ev wsServerEvent
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read ws event %d: %v", i, err)
		}
		events = append(events, ev)
	}

	if events[0].Type != "turn.started" {
		t.Fatalf("event 0 = %q, want turn.started", events[0].Type)
	}
	if events[1].Type != "assistant.message" || events[1].Message == nil {
		t.Fatalf("event 1 = %+v, want assistant.message with payload", events[1])
	}
	if !strings.Contains(events[1].Message.Content, "hello over ws") {
		t.Fatalf("assistant content = %q", events[1].Message.Content)
	}
	if events[2].Type != "turn.completed" {
		t.Fatalf("event 2 = %q, want turn.completed", events[2].Type)
	}

	service.WaitBackground()
}

func TestChatWebSocketRejectsUnknownType(t *testing.T) {
	ts, _ := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/chat?owner_id=o1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(wsClientMessage{Type: "ping"}); err != nil {
		t.Fatalf("write ws message: %v", err)
	}
	var ev wsServerEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read ws event: %v", err)
	}
	if ev.Type != "error" || ev.Code != "unsupported_type" {
		t.Fatalf("event = %+v, want unsupported_type error", ev)
	}
}
