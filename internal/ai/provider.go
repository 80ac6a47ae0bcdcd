package ai

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one generation call. Messages are in chronological order and may
// start with a system message; adapters move it to wherever their vendor wants it.
type Request struct {
	Messages    []Message
	Temperature *float64
	MaxTokens   int
}

type Provider interface {
	Chat(ctx context.Context, req Request) (string, error)
}
