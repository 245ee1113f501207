package rewrite

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Dialect maps completion requests to and from one provider's HTTP format.
type Dialect interface {
	// Name returns the dialect identifier.
	Name() string
	// ChatPath returns the chat endpoint path relative to the base URL.
	ChatPath() string
	// BuildRequest returns the JSON request body.
	BuildRequest(req CompletionRequest) (any, error)
	// ParseResponse decodes the raw response body.
	ParseResponse(body []byte) (*CompletionResponse, error)
}

var (
	dialectsMu sync.RWMutex
	dialects   = map[string]Dialect{
		"openai": OpenAI{},
		"ollama": Ollama{},
	}
)

// RegisterDialect adds or replaces a dialect.
func RegisterDialect(name string, d Dialect) {
	dialectsMu.Lock()
	defer dialectsMu.Unlock()
	dialects[name] = d
}

// GetDialect looks a dialect up by name.
func GetDialect(name string) (Dialect, error) {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	d, ok := dialects[name]
	if !ok {
		return nil, fmt.Errorf("rewrite: unknown dialect %q", name)
	}
	return d, nil
}

// Dialects returns the sorted names of all registered dialects.
func Dialects() []string {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OpenAI speaks /chat/completions.
type OpenAI struct{}

func (OpenAI) Name() string     { return "openai" }
func (OpenAI) ChatPath() string { return "/chat/completions" }

type openAIRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream"`
}

type openAIResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

func (OpenAI) BuildRequest(req CompletionRequest) (any, error) {
	return openAIRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}, nil
}

func (OpenAI) ParseResponse(body []byte) (*CompletionResponse, error) {
	var r openAIResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, err
	}
	if len(r.Choices) == 0 {
		return nil, fmt.Errorf("rewrite: response has no choices")
	}
	return &CompletionResponse{Content: r.Choices[0].Message.Content, Model: r.Model, Usage: r.Usage}, nil
}

// Ollama speaks the native /api/chat endpoint with streaming off.
type Ollama struct{}

func (Ollama) Name() string     { return "ollama" }
func (Ollama) ChatPath() string { return "/api/chat" }

type ollamaRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaResponse struct {
	Model           string  `json:"model"`
	Message         Message `json:"message"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
}

func (Ollama) BuildRequest(req CompletionRequest) (any, error) {
	opts := map[string]any{"temperature": req.Temperature}
	if req.MaxTokens > 0 {
		opts["num_predict"] = req.MaxTokens
	}
	return ollamaRequest{Model: req.Model, Messages: req.Messages, Options: opts}, nil
}

func (Ollama) ParseResponse(body []byte) (*CompletionResponse, error) {
	var r ollamaResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, err
	}
	return &CompletionResponse{
		Content: r.Message.Content,
		Model:   r.Model,
		Usage: Usage{
			PromptTokens:     r.PromptEvalCount,
			CompletionTokens: r.EvalCount,
			TotalTokens:      r.PromptEvalCount + r.EvalCount,
		},
	}, nil
}
