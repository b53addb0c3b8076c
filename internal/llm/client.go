// Package llm wraps an OpenAI-compatible chat completion endpoint with
// the two call shapes Doc2Talk needs: a non-streaming decision call and
// a streaming generation call.
package llm

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	docerrors "github.com/unclecode/doc2talk/internal/errors"
)

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Client issues chat completion requests.
type Client interface {
	// Complete performs a non-streaming chat completion and returns the
	// full assistant content.
	Complete(ctx context.Context, cfg Config, messages []Message) (string, error)

	// Stream performs a streaming chat completion, invoking onChunk for
	// each content delta as it arrives.
	Stream(ctx context.Context, cfg Config, messages []Message, onChunk func(string)) error
}

// OpenAIClient is the production Client backed by go-openai.
type OpenAIClient struct {
	mu      sync.Mutex
	clients map[string]*openai.Client
}

// NewOpenAIClient creates a client. API tokens come from the per-call
// Config or, when unset, the OPENAI_API_KEY environment variable.
func NewOpenAIClient() *OpenAIClient {
	return &OpenAIClient{clients: make(map[string]*openai.Client)}
}

func (c *OpenAIClient) clientFor(cfg Config) *openai.Client {
	token := cfg.APIToken
	if token == "" {
		token = os.Getenv("OPENAI_API_KEY")
	}
	key := token + "|" + cfg.BaseURL
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.clients[key]; ok {
		return cl
	}
	conf := openai.DefaultConfig(token)
	if cfg.BaseURL != "" {
		conf.BaseURL = cfg.BaseURL
	}
	cl := openai.NewClientWithConfig(conf)
	c.clients[key] = cl
	return cl
}

// buildRequest maps Config and messages onto an API request, forwarding
// sampling parameters only when set.
func buildRequest(cfg Config, messages []Message, stream bool) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:  cfg.Model,
		Stream: stream,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	if cfg.Temperature != nil {
		req.Temperature = *cfg.Temperature
	}
	if cfg.MaxTokens > 0 {
		req.MaxTokens = cfg.MaxTokens
	}
	if cfg.TopP != nil {
		req.TopP = *cfg.TopP
	}
	if cfg.FrequencyPenalty != nil {
		req.FrequencyPenalty = *cfg.FrequencyPenalty
	}
	if cfg.PresencePenalty != nil {
		req.PresencePenalty = *cfg.PresencePenalty
	}
	if len(cfg.Stop) > 0 {
		req.Stop = cfg.Stop
	}
	if cfg.N > 0 {
		req.N = cfg.N
	}
	return req
}

// Complete implements Client.
func (c *OpenAIClient) Complete(ctx context.Context, cfg Config, messages []Message) (string, error) {
	resp, err := c.clientFor(cfg).CreateChatCompletion(ctx, buildRequest(cfg, messages, false))
	if err != nil {
		return "", docerrors.LLMError("chat completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", docerrors.LLMError("chat completion returned no choices", nil)
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream implements Client.
func (c *OpenAIClient) Stream(ctx context.Context, cfg Config, messages []Message, onChunk func(string)) error {
	stream, err := c.clientFor(cfg).CreateChatCompletionStream(ctx, buildRequest(cfg, messages, true))
	if err != nil {
		return docerrors.LLMError("chat completion stream failed", err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return docerrors.LLMError("chat completion stream interrupted", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if content := resp.Choices[0].Delta.Content; content != "" {
			onChunk(content)
		}
	}
}
