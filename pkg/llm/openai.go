package llm

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/pi-qualytics/insight-engine/pkg/models"
	"github.com/pi-qualytics/insight-engine/pkg/prompts"
	"github.com/pi-qualytics/insight-engine/pkg/retry"
)

// OpenAIProvider is the cloud provider backed by the OpenAI API. A list of
// candidate model identifiers is tried in order per call, since the provider
// renames and deprecates model endpoints without notice.
type OpenAIProvider struct {
	client *openai.Client
	models []string
	keySet bool
	logger *zap.Logger
}

// NewOpenAIProvider creates the OpenAI-backed provider.
func NewOpenAIProvider(apiKey string, candidateModels []string, logger *zap.Logger) (*OpenAIProvider, error) {
	if len(candidateModels) == 0 {
		return nil, fmt.Errorf("at least one candidate model is required")
	}
	return &OpenAIProvider{
		client: openai.NewClient(apiKey),
		models: candidateModels,
		keySet: apiKey != "",
		logger: logger.Named("openai"),
	}, nil
}

// Name implements Provider.
func (p *OpenAIProvider) Name() string { return "openai" }

// Model implements Provider.
func (p *OpenAIProvider) Model() string { return p.models[0] }

// HealthCheck implements Provider. The cloud API has no cheap status probe;
// a missing key is the only failure detectable without spending a request.
func (p *OpenAIProvider) HealthCheck(ctx context.Context) error {
	if !p.keySet {
		return NewError(ErrorTypeAuth,
			"OPENAI_API_KEY is not configured; set it or switch to the local provider", false, nil)
	}
	return nil
}

// GeneratePlan implements Provider.
func (p *OpenAIProvider) GeneratePlan(ctx context.Context, question, assetID, schemaText string) (*models.ExecutionPlan, string, error) {
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
func (p *OpenAIProvider) InterpretResults(ctx context.Context, question, assetID string, sample ResultSample) (*models.Interpretation, error) {
	prompt := prompts.BuildInterpretPrompt(question, assetID, sample.Columns, sample.Rows, sample.TotalRows)
	raw, err := p.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return DecodeInterpretation(raw)
}

// generate runs one completion, advancing through candidate models. Each
// candidate gets the full retry budget; rate-limit backoff honors the
// provider's own retry-after hint via pkg/retry.
func (p *OpenAIProvider) generate(ctx context.Context, prompt string) (string, error) {
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

func (p *OpenAIProvider) complete(ctx context.Context, model, prompt string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Temperature: planTemperature,
		TopP:        planTopP,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", ClassifyError(err)
	}
	if len(resp.Choices) == 0 {
		return "", NewError(ErrorTypeBadOutput, "no choices in response", true, nil)
	}
	return resp.Choices[0].Message.Content, nil
}

// Ensure OpenAIProvider implements Provider at compile time.
var _ Provider = (*OpenAIProvider)(nil)
