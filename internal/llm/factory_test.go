package llm

import (
	"context"
	"testing"
)

func TestNewClientModeSelection(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantMock bool
		wantErr  bool
	}{
		{name: "auto without key falls back to mock", cfg: Config{Mode: "auto"}, wantMock: true},
		{name: "empty mode means auto", cfg: Config{}, wantMock: true},
		{name: "auto with key picks provider", cfg: Config{Mode: "auto", APIKey: "sk-test"}},
		{name: "explicit mock", cfg: Config{Mode: "mock", APIKey: "sk-test"}, wantMock: true},
		{name: "mode is case-insensitive", cfg: Config{Mode: "MOCK"}, wantMock: true},
		{name: "openai without key fails", cfg: Config{Mode: "openai"}, wantErr: true},
		{name: "openai with key", cfg: Config{Mode: "openai", APIKey: "sk-test"}},
		{name: "unknown mode fails", cfg: Config{Mode: "llama-at-home"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NewClient() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewClient() error = %v", err)
			}
			_, isMock := client.(*MockClient)
			if isMock != tt.wantMock {
				t.Fatalf("NewClient() mock = %v, want %v", isMock, tt.wantMock)
			}
		})
	}
}

func TestMockClientEchoesLastUserMessage(t *testing.T) {
	client := NewMockClient()
	got, err := client.Generate(context.Background(), Request{
		Turns: []Turn{
			{Role: RoleSystem, Content: "You are helpful."},
			{Role: RoleUser, Content: "first"},
			{Role: RoleAssistant, Content: "reply"},
			{Role: RoleUser, Content: "second"},
		},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "I heard you: second" {
		t.Fatalf("Generate() = %q", got)
	}
}

func TestMockClientReturnsEmptyArrayForExtraction(t *testing.T) {
	client := NewMockClient()
	got, err := client.Generate(context.Background(), Request{
		Turns: []Turn{
			{Role: RoleSystem, Content: "Reply with a JSON array of facts."},
			{Role: RoleUser, Content: "dialogue"},
		},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "[]" {
		t.Fatalf("Generate() = %q, want []", got)
	}
}

func TestMockClientWithoutUserInput(t *testing.T) {
	client := NewMockClient()
	got, err := client.Generate(context.Background(), Request{
		Turns: []Turn{{Role: RoleSystem, Content: "You are helpful."}},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "I am listening." {
		t.Fatalf("Generate() = %q", got)
	}
}

func TestMockClientHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMockClient().Generate(ctx, Request{}); err == nil {
		t.Fatalf("Generate() error = nil, want context error")
	}
}
