package ai

import "context"

// Role enum
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn handed to the model.
type Message struct {
	Role    Role
	Content string
}

// CompletionRequest describes a single chat completion. JSONMode asks the
// provider for a single valid JSON object response.
type CompletionRequest struct {
	System    string
	Messages  []Message
	JSONMode  bool
	MaxTokens int
}

// Client is the shared connection to the model provider. Implementations
// must be safe for concurrent use and must bound every call with a timeout.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// TokenCounter measures and truncates text in model tokens.
type TokenCounter interface {
	Count(text string) int
	Truncate(text string, maxTokens int) string
}
