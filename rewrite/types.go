package rewrite

// Message is one chat message.
type Message struct {
	Role    string `json:"role"` // "system" or "user"
	Content string `json:"content"`
}

// CompletionRequest is the provider-neutral request a Dialect encodes.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// CompletionResponse is the provider-neutral result of a Dialect decode.
type CompletionResponse struct {
	Content string
	Model   string
	Usage   Usage
}

// Usage reports token consumption when the provider returns it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
