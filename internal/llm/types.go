package llm

import "context"

// Turn is a single prompt segment sent to the model.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Request is the normalized request sent to the language model.
type Request struct {
	Turns       []Turn  `json:"turns"`
	Temperature float64 `json:"temperature"`
}

// Client generates a completion for an ordered list of prompt segments.
// Implementations return free text with no format guarantee; callers that
// expect structure (JSON extraction, bounded summaries) must parse
// defensively.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}
