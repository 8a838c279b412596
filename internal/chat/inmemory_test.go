package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestMessageOrderingAndWindows(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	conv, err := s.CreateConversation(ctx, Conversation{OwnerID: "o1", Title: "t"})
	if err != nil {
		t.Fatalf("CreateConversation() error = %v", err)
	}

	var lastID int64
	for i := 0; i < 5; i++ {
		msg, err := s.AppendMessage(ctx, Message{ConversationID: conv.ID, Role: RoleUser, Content: fmt.Sprintf("m%d", i+1)})
		if err != nil {
			t.Fatalf("AppendMessage() error = %v", err)
		}
		if msg.ID <= lastID {
			t.Fatalf("message IDs not increasing: %d after %d", msg.ID, lastID)
		}
		lastID = msg.ID
	}

	count, err := s.MessageCount(ctx, conv.ID)
	if err != nil {
		t.Fatalf("MessageCount() error = %v", err)
	}
	if count != 5 {
		t.Fatalf("count = %d, want 5", count)
	}

	recent, err := s.RecentMessages(ctx, conv.ID, 2)
	if err != nil {
		t.Fatalf("RecentMessages() error = %v", err)
	}
	if len(recent) != 2 || recent[0].Content != "m4" || recent[1].Content != "m5" {
		t.Fatalf("recent window = %+v, want chronological [m4 m5]", recent)
	}

	all, err := s.AllMessages(ctx, conv.ID)
	if err != nil {
		t.Fatalf("AllMessages() error = %v", err)
	}
	if len(all) != 5 || all[0].Content != "m1" || all[4].Content != "m5" {
		t.Fatalf("all messages = %+v", all)
	}
}

func TestConversationLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	conv, err := s.CreateConversation(ctx, Conversation{OwnerID: "o1", Title: "first"})
	if err != nil {
		t.Fatalf("CreateConversation() error = %v", err)
	}
	if _, err := s.AppendMessage(ctx, Message{ConversationID: conv.ID, Role: RoleUser, Content: "hi"}); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}

	if err := s.RenameConversation(ctx, conv.ID, "renamed"); err != nil {
		t.Fatalf("RenameConversation() error = %v", err)
	}
	got, err := s.Conversation(ctx, conv.ID)
	if err != nil {
		t.Fatalf("Conversation() error = %v", err)
	}
	if got.Title != "renamed" {
		t.Fatalf("title = %q, want renamed", got.Title)
	}

	if err := s.DeleteConversation(ctx, conv.ID); err != nil {
		t.Fatalf("DeleteConversation() error = %v", err)
	}
	if _, err := s.Conversation(ctx, conv.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Conversation() after delete error = %v, want ErrNotFound", err)
	}
	count, _ := s.MessageCount(ctx, conv.ID)
	if count != 0 {
		t.Fatalf("messages survived delete: count = %d", count)
	}
}

func TestConversationsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	for i := 0; i < 3; i++ {
		created := time.Date(2026, 1, 1, 0, i, 0, 0, time.UTC)
		if _, err := s.CreateConversation(ctx, Conversation{
			OwnerID:   "o1",
			Title:     fmt.Sprintf("c%d", i+1),
			CreatedAt: created,
		}); err != nil {
			t.Fatalf("CreateConversation() error = %v", err)
		}
	}
	if _, err := s.CreateConversation(ctx, Conversation{OwnerID: "o2", Title: "other"}); err != nil {
		t.Fatalf("CreateConversation() error = %v", err)
	}

	convs, err := s.Conversations(ctx, "o1")
	if err != nil {
		t.Fatalf("Conversations() error = %v", err)
	}
	if len(convs) != 3 {
		t.Fatalf("conversation count = %d, want 3", len(convs))
	}
	for i, want := range []string{"c3", "c2", "c1"} {
		if convs[i].Title != want {
			t.Fatalf("conversations[%d] = %q, want %q (newest first)", i, convs[i].Title, want)
		}
	}
}

func TestRenderDialogue(t *testing.T) {
	got := RenderDialogue([]Message{
		{Role: RoleUser, Content: "hello"},
		{Role: RoleAssistant, Content: "hi there"},
		{Role: RoleSystem, Content: "note"},
	})
	want := "user: hello\nassistant: hi there\nassistant: note"
	if got != want {
		t.Fatalf("RenderDialogue() = %q, want %q", got, want)
	}
}
