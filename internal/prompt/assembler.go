// Package prompt composes the bounded context window sent to the model for
// one reply: a fixed system prompt, an optional long-term memory block, an
// optional conversation summary block, and the most recent raw messages.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/mnemo-ai/mnemo/internal/chat"
	"github.com/mnemo-ai/mnemo/internal/llm"
	"github.com/mnemo-ai/mnemo/internal/memory"
	"github.com/mnemo-ai/mnemo/internal/summary"
)

const systemPrompt = `You are a professional chat assistant. Answer concisely.
Think internally first, then output only the final answer.

Priority rules:
1) Use only information provided in the conversation; when information is
   missing, say you are unsure and ask.
2) Never fabricate facts, numbers, or sources.
3) Prefer concrete, actionable answers over vague advice.`

const memoryPreamble = "Long-term memories about this user. Use them when appropriate:"

const summaryPreamble = "Summary of the earlier part of this conversation, a compressed version of older messages:"

const (
	DefaultMemoryLimit = 10
	DefaultRecentLimit = 20
)

// MemorySource serves the top long-term memories for one owner.
type MemorySource interface {
	TopByImportance(ctx context.Context, ownerID string, limit int) ([]memory.Memory, error)
}

// SummarySource serves the conversation's current summary, if any.
type SummarySource interface {
	Get(ctx context.Context, conversationID string) (summary.ConversationSummary, error)
}

// MessageSource serves the newest raw messages in chronological order.
type MessageSource interface {
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]chat.Message, error)
}

// Assembler builds the bounded prompt. Absent memories or summary simply
// omit their block; an empty block is never injected.
type Assembler struct {
	memories    MemorySource
	summaries   SummarySource
	messages    MessageSource
	memoryLimit int
	recentLimit int
}

func NewAssembler(memories MemorySource, summaries SummarySource, messages MessageSource, memoryLimit, recentLimit int) *Assembler {
	if memoryLimit <= 0 {
		memoryLimit = DefaultMemoryLimit
	}
	if recentLimit <= 0 {
		recentLimit = DefaultRecentLimit
	}
	return &Assembler{
		memories:    memories,
		summaries:   summaries,
		messages:    messages,
		memoryLimit: memoryLimit,
		recentLimit: recentLimit,
	}
}

// Build returns the ordered prompt segments for the next reply along with
// the IDs of the memories that were served, so the caller can record their
// use after a successful reply. Build itself is a pure read.
//
// Memory and summary lookups degrade to an omitted block on failure; only a
// failure to load the recent messages is fatal, because without them there
// is no turn to answer.
func (a *Assembler) Build(ctx context.Context, ownerID, conversationID string) ([]llm.Turn, []string, error) {
	segments := []llm.Turn{{Role: llm.RoleSystem, Content: systemPrompt}}

	var servedIDs []string
	memories, err := a.memories.TopByImportance(ctx, ownerID, a.memoryLimit)
	if err != nil {
		log.Printf("context assembly: memory block skipped (owner=%s): %v", ownerID, err)
	} else if len(memories) > 0 {
		var b strings.Builder
		b.WriteString(memoryPreamble)
		for i, m := range memories {
			b.WriteString(fmt.Sprintf("\n%d. %s", i+1, m.Content))
			servedIDs = append(servedIDs, m.ID)
		}
		segments = append(segments, llm.Turn{Role: llm.RoleSystem, Content: b.String()})
	}

	sum, err := a.summaries.Get(ctx, conversationID)
	switch {
	case err == nil && strings.TrimSpace(sum.Summary) != "":
		segments = append(segments, llm.Turn{
			Role:    llm.RoleSystem,
			Content: summaryPreamble + "\n" + sum.Summary,
		})
	case err != nil && !errors.Is(err, summary.ErrNotFound):
		log.Printf("context assembly: summary block skipped (conversation=%s): %v", conversationID, err)
	}

	recent, err := a.messages.RecentMessages(ctx, conversationID, a.recentLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("load recent messages: %w", err)
	}
	for _, m := range recent {
		role := llm.RoleUser
		switch m.Role {
		case chat.RoleAssistant:
			role = llm.RoleAssistant
		case chat.RoleSystem:
			role = llm.RoleSystem
		}
		segments = append(segments, llm.Turn{Role: role, Content: m.Content})
	}

	return segments, servedIDs, nil
}
