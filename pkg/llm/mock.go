package llm

import (
	"context"

	"github.com/pi-qualytics/insight-engine/pkg/models"
)

// MockProvider is a configurable mock for testing pipeline behavior.
// Set the function fields to control behavior in tests.
type MockProvider struct {
	// HealthCheckFunc is called when HealthCheck is invoked.
	// If nil, the provider reports healthy.
	HealthCheckFunc func(ctx context.Context) error

	// GeneratePlanFunc is called when GeneratePlan is invoked.
	// If nil, returns an empty plan.
	GeneratePlanFunc func(ctx context.Context, question, assetID, schemaText string) (*models.ExecutionPlan, string, error)

	// InterpretResultsFunc is called when InterpretResults is invoked.
	// If nil, returns a canned interpretation.
	InterpretResultsFunc func(ctx context.Context, question, assetID string, sample ResultSample) (*models.Interpretation, error)

	// ProviderName is returned by Name. Defaults to "mock".
	ProviderName string

	// ModelName is returned by Model. Defaults to "mock-model".
	ModelName string

	// Call tracking for verification.
	HealthCheckCalls      int
	GeneratePlanCalls     int
	InterpretResultsCalls int
}

// NewMockProvider creates a new mock with sensible defaults.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		ProviderName: "mock",
		ModelName:    "mock-model",
	}
}

// Name implements Provider.
func (m *MockProvider) Name() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

// Model implements Provider.
func (m *MockProvider) Model() string {
	if m.ModelName == "" {
		return "mock-model"
	}
	return m.ModelName
}

// HealthCheck implements Provider.
func (m *MockProvider) HealthCheck(ctx context.Context) error {
	m.HealthCheckCalls++
	if m.HealthCheckFunc != nil {
		return m.HealthCheckFunc(ctx)
	}
	return nil
}

// GeneratePlan implements Provider.
func (m *MockProvider) GeneratePlan(ctx context.Context, question, assetID, schemaText string) (*models.ExecutionPlan, string, error) {
	m.GeneratePlanCalls++
	if m.GeneratePlanFunc != nil {
		return m.GeneratePlanFunc(ctx, question, assetID, schemaText)
	}
	return &models.ExecutionPlan{}, "{}", nil
}

// InterpretResults implements Provider.
func (m *MockProvider) InterpretResults(ctx context.Context, question, assetID string, sample ResultSample) (*models.Interpretation, error) {
	m.InterpretResultsCalls++
	if m.InterpretResultsFunc != nil {
		return m.InterpretResultsFunc(ctx, question, assetID, sample)
	}
	return &models.Interpretation{Answer: "mock interpretation"}, nil
}

// Ensure MockProvider implements Provider at compile time.
var _ Provider = (*MockProvider)(nil)
