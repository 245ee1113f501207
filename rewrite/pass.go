package rewrite

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	apperrors "github.com/kbukum/wonderwhisper/errors"
	"github.com/kbukum/wonderwhisper/httpclient"
	"github.com/kbukum/wonderwhisper/logger"
)

// Pass is a chat-completion rewrite pass.
type Pass struct {
	cfg     Config
	dialect Dialect
	client  *httpclient.Client
	log     *logger.Logger
}

// Option configures a Pass.
type Option func(*Pass)

// WithLogger sets the logger. Defaults to logger.Get("rewrite").
func WithLogger(l *logger.Logger) Option {
	return func(p *Pass) { p.log = l }
}

// New creates a rewrite pass.
func New(cfg Config, opts ...Option) (*Pass, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dialect, _ := GetDialect(cfg.Dialect)

	p := &Pass{cfg: cfg, dialect: dialect, log: logger.Get("rewrite")}
	for _, opt := range opts {
		opt(p)
	}

	httpCfg := cfg.HTTP
	if cfg.APIKey != "" {
		httpCfg.Auth = httpclient.BearerAuth(cfg.APIKey)
	}
	client, err := httpclient.New(httpCfg, httpclient.WithLogger(p.log.WithComponent("httpclient")))
	if err != nil {
		return nil, err
	}
	p.client = client
	return p, nil
}

// Process rewrites contextText and returns the cleaned text.
func (p *Pass) Process(ctx context.Context, contextText string) (string, error) {
	resp, err := p.Execute(ctx, CompletionRequest{
		Messages: []Message{
			{Role: "system", Content: p.cfg.SystemPrompt},
			{Role: "user", Content: contextText},
		},
	})
	if err != nil {
		return "", err
	}
	return cleanOutput(resp.Content), nil
}

// Execute sends one completion request.
func (p *Pass) Execute(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if req.Model == "" {
		req.Model = p.cfg.Model
	}
	if req.Temperature == 0 {
		req.Temperature = p.cfg.Temperature
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = p.cfg.MaxTokens
	}
	body, err := p.dialect.BuildRequest(req)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	start := time.Now()
	var raw json.RawMessage
	if err := p.client.PostJSON(ctx, p.dialect.ChatPath(), body, &raw); err != nil {
		return nil, httpclient.ToAppError("rewrite", err)
	}
	resp, err := p.dialect.ParseResponse(raw)
	if err != nil {
		return nil, apperrors.DecodingFailed("rewrite response", err)
	}
	p.log.Debug("rewrite completed", logger.Fields(
		logger.FieldDuration, time.Since(start).Milliseconds(),
		"model", resp.Model,
		"tokens", resp.Usage.TotalTokens,
	))
	return resp, nil
}

// Close releases pooled connections.
func (p *Pass) Close() { p.client.Close() }

// cleanOutput strips markdown fences and wrapping quotes models sometimes add.
func cleanOutput(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s[3:], "\n"); idx >= 0 {
			s = s[3+idx+1:]
		} else {
			s = s[3:]
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}
