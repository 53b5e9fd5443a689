package llm

import (
	"context"
	"fmt"

	anthropic "github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/pi-qualytics/insight-engine/pkg/models"
	"github.com/pi-qualytics/insight-engine/pkg/prompts"
	"github.com/pi-qualytics/insight-engine/pkg/retry"
)

// AnthropicProvider is the cloud provider backed by the Anthropic API, with
// the same candidate-model fallback behavior as the OpenAI client.
type AnthropicProvider struct {
	client *anthropic.Client
	models []string
	keySet bool
	logger *zap.Logger
}

// NewAnthropicProvider creates the Anthropic-backed provider.
func NewAnthropicProvider(apiKey string, candidateModels []string, logger *zap.Logger) (*AnthropicProvider, error) {
	if len(candidateModels) == 0 {
		return nil, fmt.Errorf("at least one candidate model is required")
	}
	return &AnthropicProvider{
		client: anthropic.NewClient(apiKey),
		models: candidateModels,
		keySet: apiKey != "",
		logger: logger.Named("anthropic"),
	}, nil
}

// Name implements Provider.
func (p *AnthropicProvider) Name() string { return "anthropic" }

// Model implements Provider.
func (p *AnthropicProvider) Model() string { return p.models[0] }

// HealthCheck implements Provider.
func (p *AnthropicProvider) HealthCheck(ctx context.Context) error {
	if !p.keySet {
		return NewError(ErrorTypeAuth,
			"ANTHROPIC_API_KEY is not configured; set it or switch to the local provider", false, nil)
	}
	return nil
}

// GeneratePlan implements Provider.
func (p *AnthropicProvider) GeneratePlan(ctx context.Context, question, assetID, schemaText string) (*models.ExecutionPlan, string, error) {
	raw, err := p.generate(ctx, prompts.BuildPlanPrompt(question, assetID, schemaText))
	if err != nil {
		return nil, "", err
	}
	plan, err := DecodePlan(raw)
	if err != nil {
		return nil, raw, err
	}
	return plan, raw, nil
}

// InterpretResults implements Provider.
func (p *AnthropicProvider) InterpretResults(ctx context.Context, question, assetID string, sample ResultSample) (*models.Interpretation, error) {
	prompt := prompts.BuildInterpretPrompt(question, assetID, sample.Columns, sample.Rows, sample.TotalRows)
	raw, err := p.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return DecodeInterpretation(raw)
}

func (p *AnthropicProvider) generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error

	for _, model := range p.models {
		content, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (string, error) {
			return p.complete(ctx, model, prompt)
		})
		if err == nil {
			return content, nil
		}

		lastErr = err
		p.logger.Warn("candidate model failed, advancing to next",
			zap.String("model", model),
			zap.Error(err))
	}

	return "", fmt.Errorf("all candidate models failed: %w", lastErr)
}

func (p *AnthropicProvider) complete(ctx context.Context, model, prompt string) (string, error) {
	temp := float32(planTemperature)
	resp, err := p.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(model),
		MaxTokens:   2048,
		Temperature: &temp,
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(prompt),
		},
	})
	if err != nil {
		return "", ClassifyError(err)
	}
	if len(resp.Content) == 0 {
		return "", NewError(ErrorTypeBadOutput, "no content blocks in response", true, nil)
	}
	return resp.Content[0].GetText(), nil
}

// Ensure AnthropicProvider implements Provider at compile time.
var _ Provider = (*AnthropicProvider)(nil)
