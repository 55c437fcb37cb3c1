package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/revuedev/revue/internal/models"
)

// NameAnthropic is the registry name of the Claude-backed provider.
const NameAnthropic = "anthropic"

const (
	anthropicDefaultModel     = "claude-sonnet-4-5"
	anthropicDefaultMaxTokens = 4096
	anthropicDefaultTemp      = 0.2
	anthropicTokenLimit       = 200000
)

// Anthropic reviews code through the Claude Messages API.
type Anthropic struct {
	api         *anthropic.Client
	model       anthropic.Model
	maxTokens   int
	temperature float64
}

// NewAnthropic creates the provider. An empty APIKey falls back to the SDK's
// environment lookup (ANTHROPIC_API_KEY).
func NewAnthropic(cfg Config) *Anthropic {
	opts := []option.RequestOption{}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	client := anthropic.NewClient(opts...)

	model := cfg.Model
	if model == "" {
		model = anthropicDefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = anthropicDefaultTemp
	}

	return &Anthropic{
		api:         &client,
		model:       anthropic.Model(model),
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

// GenerateReview sends the review prompt to Claude and parses the reply.
func (a *Anthropic) GenerateReview(ctx context.Context, req *models.Request) (*models.Response, error) {
	if req.Temperature == 0 {
		req.Temperature = a.temperature
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = a.maxTokens
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	systemPrompt := buildSystemPrompt(req.Type)
	userPrompt := buildUserPrompt(req)

	msg, err := a.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       a.model,
		MaxTokens:   int64(req.MaxTokens),
		Temperature: anthropic.Float(req.Temperature),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}

	// Concatenate the text blocks of the reply.
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := sb.String()
	if text == "" {
		return nil, fmt.Errorf("%w: no text content in API response", ErrBadResponse)
	}

	resp, err := ParseResponse(text)
	if err != nil {
		return nil, err
	}
	if resp.Metadata == nil {
		resp.Metadata = make(map[string]any)
	}
	resp.Metadata["provider"] = NameAnthropic
	resp.Metadata["model"] = string(a.model)
	return resp, nil
}

// ValidateConfiguration sends a minimal ping to confirm the key and model
// are usable.
func (a *Anthropic) ValidateConfiguration(ctx context.Context) bool {
	_, err := a.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	return err == nil
}

// TokenLimit returns the context window size.
func (a *Anthropic) TokenLimit() int { return anthropicTokenLimit }

// EstimateTokens approximates the token count of text.
func (a *Anthropic) EstimateTokens(text string) int { return estimateTokens(text) }

// Name returns the registry name.
func (a *Anthropic) Name() string { return NameAnthropic }
