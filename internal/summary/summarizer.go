package summary

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mnemo-ai/mnemo/internal/chat"
	"github.com/mnemo-ai/mnemo/internal/llm"
	"github.com/mnemo-ai/mnemo/internal/observability"
	"github.com/mnemo-ai/mnemo/internal/reliability"
)

const summaryPrompt = `Compress the following conversation into one short summary that keeps:
- the user's needs and goals
- things already done or decided
- important background information or settings

Bullet points or a short paragraph are both fine. Keep it under roughly 200
characters.`

// DefaultThreshold is how many new messages must accumulate before an
// existing summary is recomputed. The first summary is free.
const DefaultThreshold = 30

// MessageSource is the read-only view of the conversation log the
// summarizer needs.
type MessageSource interface {
	AllMessages(ctx context.Context, conversationID string) ([]chat.Message, error)
	MessageCount(ctx context.Context, conversationID string) (int, error)
}

// Summarizer keeps one bounded summary per conversation, refreshing it only
// when enough new material has accumulated so that re-summarization cost
// stays proportional to conversation growth.
type Summarizer struct {
	store     Store
	messages  MessageSource
	client    llm.Client
	threshold int
	metrics   *observability.Metrics
}

func NewSummarizer(store Store, messages MessageSource, client llm.Client, threshold int, metrics *observability.Metrics) *Summarizer {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Summarizer{
		store:     store,
		messages:  messages,
		client:    client,
		threshold: threshold,
		metrics:   metrics,
	}
}

// MaybeResummarize refreshes the stored summary when the message-count
// delta has crossed the threshold. It never returns an error: failures
// degrade to a stale summary, which self-corrects on the next successful
// cycle.
func (s *Summarizer) MaybeResummarize(ctx context.Context, conversationID string) {
	start := time.Now()
	outcome, err := s.run(ctx, conversationID)
	if s.metrics != nil {
		s.metrics.ObserveStage("summarize", time.Since(start))
	}

	if err != nil {
		class := reliability.Classify(err)
		if s.metrics != nil {
			s.metrics.SummaryRefreshes.WithLabelValues(string(class)).Inc()
		}
		log.Printf("summary refresh aborted (conversation=%s class=%s): %v", conversationID, class, err)
		return
	}
	if s.metrics != nil {
		s.metrics.SummaryRefreshes.WithLabelValues(outcome).Inc()
	}
}

func (s *Summarizer) run(ctx context.Context, conversationID string) (string, error) {
	totalCount, err := s.messages.MessageCount(ctx, conversationID)
	if err != nil {
		return "", fmt.Errorf("%w: count messages: %v", reliability.ErrPersistence, err)
	}

	existing, err := s.store.Get(ctx, conversationID)
	hasExisting := err == nil
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", fmt.Errorf("%w: load summary: %v", reliability.ErrPersistence, err)
	}

	if hasExisting && totalCount-existing.MessageCountAtLastSummary < s.threshold {
		return "skipped", nil
	}

	msgs, err := s.messages.AllMessages(ctx, conversationID)
	if err != nil {
		return "", fmt.Errorf("%w: load conversation: %v", reliability.ErrPersistence, err)
	}

	llmStart := time.Now()
	text, err := s.client.Generate(ctx, llm.Request{
		Turns: []llm.Turn{
			{Role: llm.RoleSystem, Content: summaryPrompt},
			{Role: llm.RoleUser, Content: chat.RenderDialogue(msgs)},
		},
		Temperature: 0.2,
	})
	if s.metrics != nil {
		s.metrics.ObserveLLMCall("summarize", time.Since(llmStart), err)
	}
	if err != nil {
		return "", fmt.Errorf("summary call: %w", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		// Never overwrite a good summary with emptiness.
		return "empty", nil
	}

	if err := s.store.Upsert(ctx, ConversationSummary{
		ConversationID:            conversationID,
		Summary:                   text,
		MessageCountAtLastSummary: totalCount,
	}); err != nil {
		return "", fmt.Errorf("%w: store summary: %v", reliability.ErrPersistence, err)
	}
	return "refreshed", nil
}
