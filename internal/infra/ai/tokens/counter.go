package tokens

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/dukhanin/contract-advisor/internal/domain/ai"
)

// Counter measures text in model tokens using the cl100k_base encoding,
// shared by gpt-4o-mini and text-embedding-3-small.
type Counter struct {
	encoder *tiktoken.Tiktoken
}

func NewCounter() (*Counter, error) {
	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("tokens: get encoding: %w", err)
	}
	return &Counter{encoder: encoder}, nil
}

// Count returns the number of tokens in text.
func (c *Counter) Count(text string) int {
	return len(c.encoder.Encode(text, nil, nil))
}

// Truncate cuts text to at most maxTokens tokens, decoding back so the
// result is always valid UTF-8.
func (c *Counter) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	ids := c.encoder.Encode(text, nil, nil)
	if len(ids) <= maxTokens {
		return text
	}
	return c.encoder.Decode(ids[:maxTokens])
}

var _ ai.TokenCounter = (*Counter)(nil)
