package prompt

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mnemo-ai/mnemo/internal/chat"
	"github.com/mnemo-ai/mnemo/internal/llm"
	"github.com/mnemo-ai/mnemo/internal/memory"
	"github.com/mnemo-ai/mnemo/internal/summary"
)

func newFixture(t *testing.T) (*memory.InMemoryStore, *summary.InMemoryStore, *chat.InMemoryStore, *Assembler) {
	t.Helper()
	memStore := memory.NewInMemoryStore()
	sumStore := summary.NewInMemoryStore()
	chatStore := chat.NewInMemoryStore()
	a := NewAssembler(memStore, sumStore, chatStore, 10, 20)
	return memStore, sumStore, chatStore, a
}

func TestBuildOmitsAbsentBlocks(t *testing.T) {
	ctx := context.Background()
	_, _, chatStore, a := newFixture(t)

	if _, err := chatStore.AppendMessage(ctx, chat.Message{ConversationID: "conv-1", Role: chat.RoleUser, Content: "hello"}); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}

	segments, served, err := a.Build(ctx, "owner-1", "conv-1")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(served) != 0 {
		t.Fatalf("served memory IDs = %v, want none", served)
	}
	// Just the fixed system prompt plus the one raw message.
	if len(segments) != 2 {
		t.Fatalf("segment count = %d, want 2: %+v", len(segments), segments)
	}
	if segments[0].Role != llm.RoleSystem {
		t.Fatalf("first segment role = %q, want system", segments[0].Role)
	}
	if segments[1].Role != llm.RoleUser || segments[1].Content != "hello" {
		t.Fatalf("last segment = %+v", segments[1])
	}
}

func TestBuildIncludesMemoryAndSummaryBlocks(t *testing.T) {
	ctx := context.Background()
	memStore, sumStore, chatStore, a := newFixture(t)

	m1, err := memStore.Insert(ctx, memory.Memory{OwnerID: "owner-1", Content: "backend engineer", Importance: 5})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	m2, err := memStore.Insert(ctx, memory.Memory{OwnerID: "owner-1", Content: "prefers Go", Importance: 3})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := sumStore.Upsert(ctx, summary.ConversationSummary{
		ConversationID:            "conv-1",
		Summary:                   "user is building a chatbot",
		MessageCountAtLastSummary: 30,
	}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if _, err := chatStore.AppendMessage(ctx, chat.Message{ConversationID: "conv-1", Role: chat.RoleUser, Content: "next question"}); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}

	segments, served, err := a.Build(ctx, "owner-1", "conv-1")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(segments) != 4 {
		t.Fatalf("segment count = %d, want 4: %+v", len(segments), segments)
	}

	memBlock := segments[1].Content
	if !strings.Contains(memBlock, "1. backend engineer") || !strings.Contains(memBlock, "2. prefers Go") {
		t.Fatalf("memory block missing numbered entries: %q", memBlock)
	}
	if !strings.Contains(segments[2].Content, "user is building a chatbot") {
		t.Fatalf("summary block = %q", segments[2].Content)
	}
	if len(served) != 2 || served[0] != m1.ID || served[1] != m2.ID {
		t.Fatalf("served IDs = %v, want [%s %s]", served, m1.ID, m2.ID)
	}
}

func TestBuildRanksMemoriesByImportanceThenRecency(t *testing.T) {
	ctx := context.Background()
	memStore, _, chatStore, a := newFixture(t)

	old := time.Now().UTC().Add(-time.Hour)
	recent := time.Now().UTC()

	if _, err := memStore.Insert(ctx, memory.Memory{OwnerID: "o", Content: "low importance", Importance: 1, LastUsedAt: recent}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if _, err := memStore.Insert(ctx, memory.Memory{OwnerID: "o", Content: "high but stale", Importance: 5, LastUsedAt: old}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if _, err := memStore.Insert(ctx, memory.Memory{OwnerID: "o", Content: "high and fresh", Importance: 5, LastUsedAt: recent}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if _, err := chatStore.AppendMessage(ctx, chat.Message{ConversationID: "c", Role: chat.RoleUser, Content: "hi"}); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}

	segments, _, err := a.Build(ctx, "o", "c")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	block := segments[1].Content
	want := "1. high and fresh\n2. high but stale\n3. low importance"
	if !strings.Contains(block, want) {
		t.Fatalf("memory block order wrong:\n%q\nwant to contain:\n%q", block, want)
	}
}

func TestBuildCapsRecentWindow(t *testing.T) {
	ctx := context.Background()
	memStore := memory.NewInMemoryStore()
	sumStore := summary.NewInMemoryStore()
	chatStore := chat.NewInMemoryStore()
	a := NewAssembler(memStore, sumStore, chatStore, 10, 3)

	for _, content := range []string{"one", "two", "three", "four", "five"} {
		if _, err := chatStore.AppendMessage(ctx, chat.Message{ConversationID: "c", Role: chat.RoleUser, Content: content}); err != nil {
			t.Fatalf("AppendMessage() error = %v", err)
		}
	}

	segments, _, err := a.Build(ctx, "o", "c")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	// System prompt plus the last three messages in chronological order.
	if len(segments) != 4 {
		t.Fatalf("segment count = %d, want 4", len(segments))
	}
	got := []string{segments[1].Content, segments[2].Content, segments[3].Content}
	want := []string{"three", "four", "five"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("recent window = %v, want %v", got, want)
		}
	}
}
