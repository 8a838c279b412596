// Package engine runs the chat turn pipeline: resolve the conversation,
// append the user message, assemble the bounded context, call the model,
// store the reply, then kick off memory consolidation and summary refresh
// as detached background tasks that can never fail the reply.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/mnemo-ai/mnemo/internal/chat"
	"github.com/mnemo-ai/mnemo/internal/llm"
	"github.com/mnemo-ai/mnemo/internal/memory"
	"github.com/mnemo-ai/mnemo/internal/observability"
	"github.com/mnemo-ai/mnemo/internal/prompt"
	"github.com/mnemo-ai/mnemo/internal/summary"
)

const titlePrompt = `You are a succinct assistant. Compress the user's message into one short
chat title. Return the title text only: no JSON, no quotes, no emoji. Keep
it under about 30 characters.`

const fallbackReply = "I could not come up with a reply just now. Please try again."

var ErrEmptyMessage = errors.New("message must not be empty")

// Config tunes the engine.
type Config struct {
	// BackgroundTimeout bounds each detached consolidation/summarization
	// cycle.
	BackgroundTimeout time.Duration
}

// Service orchestrates one chat turn end to end.
type Service struct {
	cfg          Config
	store        chat.Store
	memories     memory.Store
	summaries    summary.Store
	consolidator *memory.Consolidator
	summarizer   *summary.Summarizer
	assembler    *prompt.Assembler
	client       llm.Client
	metrics      *observability.Metrics

	consolidateGate *keyedGate
	summarizeGate   *keyedGate
	bg              sync.WaitGroup
}

func NewService(
	cfg Config,
	store chat.Store,
	memories memory.Store,
	summaries summary.Store,
	consolidator *memory.Consolidator,
	summarizer *summary.Summarizer,
	assembler *prompt.Assembler,
	client llm.Client,
	metrics *observability.Metrics,
) *Service {
	if cfg.BackgroundTimeout <= 0 {
		cfg.BackgroundTimeout = time.Minute
	}
	return &Service{
		cfg:             cfg,
		store:           store,
		memories:        memories,
		summaries:       summaries,
		consolidator:    consolidator,
		summarizer:      summarizer,
		assembler:       assembler,
		client:          client,
		metrics:         metrics,
		consolidateGate: newKeyedGate(),
		summarizeGate:   newKeyedGate(),
	}
}

// TurnRequest is one incoming user message. An empty ConversationID starts
// a new conversation.
type TurnRequest struct {
	OwnerID        string `json:"owner_id"`
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
}

// TurnResult is the stored turn pair plus the (possibly new) conversation.
type TurnResult struct {
	Conversation chat.Conversation `json:"conversation"`
	User         chat.Message      `json:"user"`
	Assistant    chat.Message      `json:"assistant"`
}

// HandleTurn processes one user message and returns the assistant reply.
// Only the primary reply call can fail the turn; memory and summary work is
// detached and best-effort.
func (s *Service) HandleTurn(ctx context.Context, req TurnRequest) (TurnResult, error) {
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return TurnResult{}, ErrEmptyMessage
	}

	conv, err := s.resolveConversation(ctx, req.OwnerID, req.ConversationID, text)
	if err != nil {
		return TurnResult{}, err
	}

	userMsg, err := s.store.AppendMessage(ctx, chat.Message{
		ConversationID: conv.ID,
		Role:           chat.RoleUser,
		Content:        text,
	})
	if err != nil {
		return TurnResult{}, fmt.Errorf("store user message: %w", err)
	}

	segments, servedMemoryIDs, err := s.assembler.Build(ctx, req.OwnerID, conv.ID)
	if err != nil {
		return TurnResult{}, fmt.Errorf("assemble context: %w", err)
	}

	replyStart := time.Now()
	reply, err := s.client.Generate(ctx, llm.Request{Turns: segments, Temperature: 0.3})
	if s.metrics != nil {
		s.metrics.ObserveLLMCall("reply", time.Since(replyStart), err)
	}
	if err != nil {
		// The primary reply is the one call whose failure the user sees.
		return TurnResult{}, fmt.Errorf("generate reply: %w", err)
	}
	if strings.TrimSpace(reply) == "" {
		reply = fallbackReply
	}

	assistantMsg, err := s.store.AppendMessage(ctx, chat.Message{
		ConversationID: conv.ID,
		Role:           chat.RoleAssistant,
		Content:        reply,
	})
	if err != nil {
		return TurnResult{}, fmt.Errorf("store assistant message: %w", err)
	}

	if len(servedMemoryIDs) > 0 {
		if err := s.memories.TouchLastUsed(ctx, servedMemoryIDs, time.Now().UTC()); err != nil {
			log.Printf("touch served memories failed (owner=%s): %v", req.OwnerID, err)
		}
	}

	if s.metrics != nil {
		s.metrics.ChatTurns.Inc()
		s.metrics.ObserveStage("reply", time.Since(replyStart))
	}

	pair := chat.TurnPair{User: userMsg, Assistant: assistantMsg}
	s.spawnBackground(ctx, req.OwnerID, conv.ID, pair)

	return TurnResult{Conversation: conv, User: userMsg, Assistant: assistantMsg}, nil
}

func (s *Service) resolveConversation(ctx context.Context, ownerID, conversationID, firstMessage string) (chat.Conversation, error) {
	if conversationID == "" {
		return s.store.CreateConversation(ctx, chat.Conversation{
			OwnerID: ownerID,
			Title:   s.suggestTitle(ctx, firstMessage),
		})
	}

	conv, err := s.store.Conversation(ctx, conversationID)
	if err != nil {
		return chat.Conversation{}, err
	}
	if conv.OwnerID != ownerID {
		return chat.Conversation{}, chat.ErrNotFound
	}
	return conv, nil
}

// suggestTitle asks the model for a short conversation title and degrades
// to a prefix of the first message when the call fails or returns nothing.
func (s *Service) suggestTitle(ctx context.Context, firstMessage string) string {
	start := time.Now()
	title, err := s.client.Generate(ctx, llm.Request{
		Turns: []llm.Turn{
			{Role: llm.RoleSystem, Content: titlePrompt},
			{Role: llm.RoleUser, Content: firstMessage},
		},
		Temperature: 0.3,
	})
	if s.metrics != nil {
		s.metrics.ObserveLLMCall("title", time.Since(start), err)
	}
	if err != nil {
		log.Printf("title suggestion failed: %v", err)
	}

	title = strings.TrimSpace(title)
	if title == "" {
		runes := []rune(firstMessage)
		if len(runes) > 24 {
			runes = runes[:24]
		}
		title = string(runes)
	}
	return title
}

// spawnBackground launches consolidation and summarization as independent
// detached tasks. Both are gated per conversation so concurrent turns do
// not duplicate work, and both are tracked so WaitBackground can observe
// turn completion.
func (s *Service) spawnBackground(ctx context.Context, ownerID, conversationID string, pair chat.TurnPair) {
	base := context.WithoutCancel(ctx)

	s.bg.Add(2)
	go func() {
		defer s.bg.Done()
		taskCtx, cancel := context.WithTimeout(base, s.cfg.BackgroundTimeout)
		defer cancel()
		unlock := s.consolidateGate.Lock(conversationID)
		defer unlock()
		s.consolidator.Consolidate(taskCtx, ownerID, conversationID, pair)
	}()
	go func() {
		defer s.bg.Done()
		taskCtx, cancel := context.WithTimeout(base, s.cfg.BackgroundTimeout)
		defer cancel()
		unlock := s.summarizeGate.Lock(conversationID)
		defer unlock()
		s.summarizer.MaybeResummarize(taskCtx, conversationID)
	}()
}

// WaitBackground blocks until all in-flight background tasks finish. Used
// by graceful shutdown and by tests that assert on post-turn store state.
func (s *Service) WaitBackground() {
	s.bg.Wait()
}

// Conversations lists the owner's conversations, newest first.
func (s *Service) Conversations(ctx context.Context, ownerID string) ([]chat.Conversation, error) {
	return s.store.Conversations(ctx, ownerID)
}

// ConversationMessages returns the full log of an owned conversation.
func (s *Service) ConversationMessages(ctx context.Context, ownerID, conversationID string) ([]chat.Message, error) {
	if _, err := s.ownedConversation(ctx, ownerID, conversationID); err != nil {
		return nil, err
	}
	return s.store.AllMessages(ctx, conversationID)
}

// RenameConversation sets a new title on an owned conversation.
func (s *Service) RenameConversation(ctx context.Context, ownerID, conversationID, title string) error {
	if _, err := s.ownedConversation(ctx, ownerID, conversationID); err != nil {
		return err
	}
	return s.store.RenameConversation(ctx, conversationID, title)
}

// DeleteConversation removes an owned conversation, its messages, and its
// summary. Long-term memories survive: they belong to the owner, not the
// conversation.
func (s *Service) DeleteConversation(ctx context.Context, ownerID, conversationID string) error {
	if _, err := s.ownedConversation(ctx, ownerID, conversationID); err != nil {
		return err
	}
	if err := s.store.DeleteConversation(ctx, conversationID); err != nil {
		return err
	}
	if err := s.summaries.Delete(ctx, conversationID); err != nil {
		log.Printf("delete summary failed (conversation=%s): %v", conversationID, err)
	}
	return nil
}

func (s *Service) ownedConversation(ctx context.Context, ownerID, conversationID string) (chat.Conversation, error) {
	conv, err := s.store.Conversation(ctx, conversationID)
	if err != nil {
		return chat.Conversation{}, err
	}
	if conv.OwnerID != ownerID {
		return chat.Conversation{}, chat.ErrNotFound
	}
	return conv, nil
}
