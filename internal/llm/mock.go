package llm

import (
	"context"
	"fmt"
	"strings"
)

// MockClient provides deterministic local replies when no provider is
// configured. Structured prompts (extraction, summaries) get structured
// answers so the rest of the pipeline keeps working offline.
type MockClient struct{}

func NewMockClient() *MockClient { return &MockClient{} }

func (c *MockClient) Generate(ctx context.Context, req Request) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	system := ""
	lastUser := ""
	for _, t := range req.Turns {
		switch t.Role {
		case RoleSystem:
			if system == "" {
				system = t.Content
			}
		case RoleUser:
			lastUser = t.Content
		}
	}

	// Extraction prompts expect a JSON array; an empty array is the honest
	// mock answer because nothing here is worth remembering.
	if strings.Contains(system, "JSON array") {
		return "[]", nil
	}

	base := strings.TrimSpace(lastUser)
	if base == "" {
		return "I am listening.", nil
	}
	return fmt.Sprintf("I heard you: %s", base), nil
}
