package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mnemo-ai/mnemo/internal/chat"
	"github.com/mnemo-ai/mnemo/internal/llm"
	"github.com/mnemo-ai/mnemo/internal/observability"
	"github.com/mnemo-ai/mnemo/internal/reliability"
)

const extractionPrompt = `You are an assistant that extracts long-term memories from a conversation.

Read the dialogue excerpt below and pick out information that will stay useful
across future interactions and is unlikely to change soon, for example:
- the user's background (occupation, field, role)
- the user's preferences (style, format, favourite tech)
- the user's long-term goals or standing habits
- standing instructions for this chatbot

Reply with a JSON array where every element looks like:
{"content": "the fact to remember", "importance": <integer 1-5>}

If nothing is worth remembering long-term, reply with an empty array [].
Reply with JSON only, do not add any explanation.`

// DefaultExtractionWindow is how many recent messages feed one extraction.
const DefaultExtractionWindow = 8

// MessageSource provides the recent dialogue window used as extraction
// context. It is the caller-owned message log; the consolidator never
// mutates it.
type MessageSource interface {
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]chat.Message, error)
}

// Consolidator extracts candidate memories from recent dialogue, dedupes
// them against each other and against the owner's existing store, then
// merges or inserts. It treats the model as an untrusted text generator:
// malformed output aborts the cycle with no store mutation.
type Consolidator struct {
	store    Store
	messages MessageSource
	client   llm.Client
	window   int
	metrics  *observability.Metrics
}

func NewConsolidator(store Store, messages MessageSource, client llm.Client, window int, metrics *observability.Metrics) *Consolidator {
	if window <= 0 {
		window = DefaultExtractionWindow
	}
	return &Consolidator{
		store:    store,
		messages: messages,
		client:   client,
		window:   window,
		metrics:  metrics,
	}
}

// Consolidate runs one consolidation cycle for the turn. It never returns
// an error: every failure degrades to "no memory update this cycle" so the
// chat path stays unaffected.
func (c *Consolidator) Consolidate(ctx context.Context, ownerID, conversationID string, turn chat.TurnPair) {
	start := time.Now()
	inserted, merged, err := c.run(ctx, ownerID, conversationID, turn)
	if c.metrics != nil {
		c.metrics.ObserveStage("consolidate", time.Since(start))
	}

	if err != nil {
		class := reliability.Classify(err)
		if c.metrics != nil {
			c.metrics.Consolidations.WithLabelValues(string(class)).Inc()
		}
		log.Printf("consolidation aborted (owner=%s conversation=%s class=%s): %v", ownerID, conversationID, class, err)
		return
	}

	outcome := "ok"
	if inserted+merged == 0 {
		outcome = "empty"
	}
	if c.metrics != nil {
		c.metrics.Consolidations.WithLabelValues(outcome).Inc()
	}
}

type candidate struct {
	content    string
	importance int
}

func (c *Consolidator) run(ctx context.Context, ownerID, conversationID string, turn chat.TurnPair) (inserted, merged int, err error) {
	recent, err := c.messages.RecentMessages(ctx, conversationID, c.window)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: load extraction window: %v", reliability.ErrPersistence, err)
	}
	if len(recent) == 0 {
		return 0, 0, nil
	}

	llmStart := time.Now()
	raw, err := c.client.Generate(ctx, llm.Request{
		Turns: []llm.Turn{
			{Role: llm.RoleSystem, Content: extractionPrompt},
			{Role: llm.RoleUser, Content: chat.RenderDialogue(recent)},
		},
		Temperature: 0,
	})
	if c.metrics != nil {
		c.metrics.ObserveLLMCall("extract", time.Since(llmStart), err)
	}
	if err != nil {
		return 0, 0, fmt.Errorf("extraction call: %w", err)
	}

	candidates, err := parseCandidates(raw)
	if err != nil {
		return 0, 0, err
	}
	if len(candidates) == 0 {
		return 0, 0, nil
	}

	existing, err := c.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: load existing memories: %v", reliability.ErrPersistence, err)
	}

	latestMsgID := turn.Assistant.ID

	for _, cand := range candidates {
		// First merge-eligible match wins; the scan order is the store's
		// stable creation order, so outcomes are deterministic.
		matched := -1
		for i := range existing {
			if IsSimilar(existing[i].Content, cand.content) {
				matched = i
				break
			}
		}

		if matched >= 0 {
			mem := existing[matched]
			mem.Content = cand.content
			if cand.importance > mem.Importance {
				mem.Importance = cand.importance
			}
			mem.SourceConversationID = conversationID
			if latestMsgID != 0 {
				mem.SourceMessageID = latestMsgID
			}
			if err := c.store.Update(ctx, mem); err != nil {
				return inserted, merged, fmt.Errorf("%w: merge memory: %v", reliability.ErrPersistence, err)
			}
			existing[matched] = mem
			merged++
			if c.metrics != nil {
				c.metrics.MemoryWrites.WithLabelValues("merged").Inc()
			}
			continue
		}

		created, err := c.store.Insert(ctx, Memory{
			OwnerID:              ownerID,
			Content:              cand.content,
			Importance:           cand.importance,
			SourceConversationID: conversationID,
			SourceMessageID:      latestMsgID,
		})
		if err != nil {
			return inserted, merged, fmt.Errorf("%w: insert memory: %v", reliability.ErrPersistence, err)
		}
		// Later candidates in this batch must see the new row, otherwise
		// one cycle can insert twins.
		existing = append(existing, created)
		inserted++
		if c.metrics != nil {
			c.metrics.MemoryWrites.WithLabelValues("inserted").Inc()
		}
	}

	return inserted, merged, nil
}

// parseCandidates defensively decodes the extraction output. The top level
// must be a JSON array; malformed elements are skipped rather than failing
// the batch, mirroring how little the model's format can be trusted.
func parseCandidates(raw string) ([]candidate, error) {
	var elements []json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &elements); err != nil {
		return nil, fmt.Errorf("%w: %q", reliability.ErrMalformedOutput, truncateForLog(raw))
	}

	seen := make(map[string]int, len(elements))
	var order []string

	for _, el := range elements {
		var item struct {
			Content    any `json:"content"`
			Importance any `json:"importance"`
		}
		if err := json.Unmarshal(el, &item); err != nil {
			continue
		}
		content, ok := item.Content.(string)
		if !ok {
			continue
		}
		normalized := Normalize(content)
		if normalized == "" {
			continue
		}

		importance := DefaultImportance
		if v, ok := item.Importance.(float64); ok {
			importance = ClampImportance(int(v))
		}

		// Intra-batch dedup by exact normalized content, keeping the
		// maximum importance per distinct fact.
		if prev, ok := seen[normalized]; ok {
			if importance > prev {
				seen[normalized] = importance
			}
			continue
		}
		seen[normalized] = importance
		order = append(order, normalized)
	}

	out := make([]candidate, 0, len(order))
	for _, content := range order {
		out = append(out, candidate{content: content, importance: seen[content]})
	}
	return out, nil
}

func truncateForLog(s string) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) > 200 {
		return string(runes[:200]) + "..."
	}
	return string(runes)
}
