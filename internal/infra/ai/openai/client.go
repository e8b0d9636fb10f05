package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	domai "github.com/dukhanin/contract-advisor/internal/domain/ai"
)

const (
	// DefaultModel for chat completions.
	DefaultModel = "gpt-4o-mini"

	// DefaultEmbeddingModel for retrieval vectors.
	DefaultEmbeddingModel = string(openai.SmallEmbedding3)

	// DefaultTimeout bounds every provider call; a slow call must fail,
	// never hang the request.
	DefaultTimeout = 60 * time.Second

	defaultMaxTokens = 2048
)

// Client adapts the OpenAI API to the domain Client port. One instance is
// shared across all sessions; the underlying SDK client is safe for
// concurrent use.
type Client struct {
	*openai.Client
	Model      string
	EmbedModel string
	Timeout    time.Duration
}

func NewClient(apiKey, model, embedModel string, timeout time.Duration) *Client {
	if model == "" {
		model = DefaultModel
	}
	if embedModel == "" {
		embedModel = DefaultEmbeddingModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		Client:     openai.NewClient(apiKey),
		Model:      model,
		EmbedModel: embedModel,
		Timeout:    timeout,
	}
}

// Complete implements the domain Client port.
func (c *Client) Complete(ctx context.Context, req domai.CompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    roleFor(m.Role),
			Content: m.Content,
		})
	}

	creq := openai.ChatCompletionRequest{
		Model:    c.Model,
		Messages: messages,
	}
	if req.JSONMode {
		creq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	// Reasoning models (o1/o3/o4/gpt-5*) take MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(c.Model, "o1") || strings.HasPrefix(c.Model, "o3") || strings.HasPrefix(c.Model, "o4") || strings.HasPrefix(c.Model, "gpt-5") {
		creq.MaxCompletionTokens = maxTokens
	} else {
		creq.MaxTokens = maxTokens
	}

	resp, err := c.CreateChatCompletion(ctx, creq)
	if err != nil {
		return "", mapErr("chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed implements the domain Client port.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("embeddings: no inputs")
	}
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	resp, err := c.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(c.EmbedModel),
	})
	if err != nil {
		return nil, mapErr("embeddings", err)
	}

	out := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embeddings: index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

func roleFor(r domai.Role) string {
	switch r {
	case domai.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	case domai.RoleSystem:
		return openai.ChatMessageRoleSystem
	default:
		return openai.ChatMessageRoleUser
	}
}

// mapErr folds provider failures into the domain taxonomy.
func mapErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, domai.ErrTimeout)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%s: %w", op, domai.ErrQuotaExceeded)
	}
	return fmt.Errorf("%s: %w", op, err)
}

var _ domai.Client = (*Client)(nil)
