package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pi-qualytics/insight-engine/pkg/models"
	"github.com/pi-qualytics/insight-engine/pkg/prompts"
	"github.com/pi-qualytics/insight-engine/pkg/retry"
)

// healthProbeTimeout bounds the /api/tags probe so a dead local service
// fails fast instead of hanging the pipeline.
const healthProbeTimeout = 5 * time.Second

// OllamaProvider is the locally-hosted provider speaking the Ollama REST
// API. Generation timeouts are long on purpose: local models cold-start and
// load weights on first use.
type OllamaProvider struct {
	endpoint string
	model    string
	http     *http.Client
	logger   *zap.Logger
}

// NewOllamaProvider creates the local provider. genTimeout bounds each
// generation call; it should be tens of seconds to minutes.
func NewOllamaProvider(endpoint, model string, genTimeout time.Duration, logger *zap.Logger) (*OllamaProvider, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}
	return &OllamaProvider{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		model:    model,
		http:     &http.Client{Timeout: genTimeout},
		logger:   logger.Named("ollama"),
	}, nil
}

// Name implements Provider.
func (p *OllamaProvider) Name() string { return "ollama" }

// Model implements Provider.
func (p *OllamaProvider) Model() string { return p.model }

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// HealthCheck implements Provider. A connection failure and a missing model
// are different operator problems and get different error strings.
func (p *OllamaProvider) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("build health probe: %w", err)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return NewError(ErrorTypeEndpoint,
			fmt.Sprintf("local LLM service unreachable at %s (is ollama running?)", p.endpoint),
			true, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return NewError(ErrorTypeEndpoint,
			fmt.Sprintf("local LLM service returned HTTP %d", resp.StatusCode), true, nil)
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return NewError(ErrorTypeEndpoint, "could not parse local model list", true, err)
	}

	for _, m := range tags.Models {
		if m.Name == p.model || strings.HasPrefix(m.Name, p.model+":") {
			return nil
		}
	}

	return NewError(ErrorTypeModel,
		fmt.Sprintf("model %q is not loaded on the local LLM service (run: ollama pull %s)", p.model, p.model),
		false, nil)
}

// GeneratePlan implements Provider.
func (p *OllamaProvider) GeneratePlan(ctx context.Context, question, assetID, schemaText string) (*models.ExecutionPlan, string, error) {
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
func (p *OllamaProvider) InterpretResults(ctx context.Context, question, assetID string, sample ResultSample) (*models.Interpretation, error) {
	prompt := prompts.BuildInterpretPrompt(question, assetID, sample.Columns, sample.Rows, sample.TotalRows)
	raw, err := p.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return DecodeInterpretation(raw)
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Format  string         `json:"format"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

func (p *OllamaProvider) generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()

	content, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (string, error) {
		return p.complete(ctx, prompt)
	})
	if err != nil {
		return "", err
	}

	p.logger.Debug("generation completed",
		zap.String("model", p.model),
		zap.Duration("elapsed", time.Since(start)))
	return content, nil
}

func (p *OllamaProvider) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  p.model,
		Prompt: prompt,
		Format: "json",
		Stream: false,
		Options: map[string]any{
			"temperature": planTemperature,
			"top_p":       planTopP,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", ClassifyError(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read generate response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", ClassifyError(fmt.Errorf("generate returned HTTP %d: %s", resp.StatusCode, truncate(string(payload), 200)))
	}

	var gen ollamaGenerateResponse
	if err := json.Unmarshal(payload, &gen); err != nil {
		return "", NewError(ErrorTypeBadOutput,
			fmt.Sprintf("unparseable generate response (raw: %s)", truncate(string(payload), 200)), false, err)
	}
	if gen.Error != "" {
		return "", ClassifyError(fmt.Errorf("generate failed: %s", gen.Error))
	}

	return gen.Response, nil
}

// Ensure OllamaProvider implements Provider at compile time.
var _ Provider = (*OllamaProvider)(nil)
