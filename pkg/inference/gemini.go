package inference

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	providerGemini = "gemini"

	// DefaultGeminiModel is used when no model is configured.
	DefaultGeminiModel = "gemini-2.0-flash"
)

// Gemini implements Provider for Google's Gemini API through the genai SDK.
type Gemini struct {
	client *genai.Client
	config *Config
	logger *slog.Logger
}

// NewGemini creates a Gemini provider.
func NewGemini(ctx context.Context, opts ...Option) (*Gemini, error) {
	cfg := DefaultConfig()
	cfg.BaseURL = ""
	cfg.Model = DefaultGeminiModel
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, WrapError(providerGemini, ErrNoAPIKey)
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, WrapError(providerGemini, fmt.Errorf("create client: %w", err))
	}

	return &Gemini{
		client: client,
		config: cfg,
		logger: cfg.Logger.With("component", "inference.gemini"),
	}, nil
}

// Chat generates content from the conversation.
func (g *Gemini) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = g.config.Model
	}

	system, rest := SplitSystem(req.Messages)
	contents := convertContents(rest)
	if len(contents) == 0 {
		return nil, WrapError(providerGemini, fmt.Errorf("no user content"))
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, contents, g.buildConfig(req, system))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, WrapError(providerGemini, err)
	}

	text, finish := responseText(resp)
	if text == "" {
		return nil, WrapError(providerGemini, ErrEmptyResponse)
	}

	var usage Usage
	if um := resp.UsageMetadata; um != nil {
		usage = Usage{
			PromptTokens:     int(um.PromptTokenCount),
			CompletionTokens: int(um.CandidatesTokenCount),
			TotalTokens:      int(um.TotalTokenCount),
		}
	}

	latency := time.Since(start).Milliseconds()
	g.logger.Debug("generated content",
		"model", model,
		"chars", len(text),
		"latency_ms", latency,
	)

	return &ChatResponse{
		Message:      NewAssistantMessage(text),
		FinishReason: finish,
		Usage:        usage,
		Model:        model,
		LatencyMs:    latency,
	}, nil
}

func (g *Gemini) buildConfig(req *ChatRequest, system string) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = g.config.MaxTokens
	}
	if maxTokens > 0 {
		cfg.MaxOutputTokens = int32(maxTokens)
	}

	temp := req.Temperature
	if temp == 0 {
		temp = g.config.Temperature
	}
	if temp > 0 {
		t := float32(temp)
		cfg.Temperature = &t
	}
	if req.TopP > 0 {
		p := float32(req.TopP)
		cfg.TopP = &p
	}
	if len(req.Stop) > 0 {
		cfg.StopSequences = req.Stop
	}
	if system != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		}
	}
	return cfg
}

// convertContents maps messages to genai contents with user/model roles.
func convertContents(msgs []Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		out = append(out, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}
	return out
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, string) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", ""
	}
	cand := resp.Candidates[0]
	if cand.Content == nil {
		return "", string(cand.FinishReason)
	}
	var sb strings.Builder
	for _, p := range cand.Content.Parts {
		if p == nil || p.Thought {
			continue
		}
		sb.WriteString(p.Text)
	}
	return strings.TrimSpace(sb.String()), string(cand.FinishReason)
}

// Capabilities reports chat with native system instructions.
func (g *Gemini) Capabilities() Capabilities {
	return Capabilities{Chat: true, SystemPrompt: true}
}

// Health lists one model page to verify the API key.
func (g *Gemini) Health(ctx context.Context) error {
	if _, err := g.client.Models.List(ctx, &genai.ListModelsConfig{PageSize: 1}); err != nil {
		return WrapError(providerGemini, fmt.Errorf("health check: %w", err))
	}
	return nil
}

// Close is a no-op; the genai client holds no closable resources.
func (g *Gemini) Close() error {
	return nil
}

// Verify Gemini implements Provider at compile time.
var _ Provider = (*Gemini)(nil)
