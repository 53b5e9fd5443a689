// Package llm provides the provider clients that turn user questions into
// execution plans and query results into business-readable answers.
package llm

import (
	"context"

	"github.com/pi-qualytics/insight-engine/pkg/models"
)

// ResultSample is the bounded slice of query results handed to a provider
// for interpretation. Never the full result set.
type ResultSample struct {
	Columns   []string   `json:"columns"`
	Rows      [][]string `json:"rows"`
	TotalRows int        `json:"total_rows"`
}

// Provider is the uniform capability set over LLM backends. Two families
// implement it: cloud-hosted (OpenAI, Anthropic) and locally-hosted (Ollama).
// The orchestrator is agnostic to which implementation it holds.
type Provider interface {
	// Name identifies the backend ("openai", "anthropic", "ollama").
	Name() string

	// Model returns the primary configured model name.
	Model() string

	// HealthCheck verifies the backend is reachable and usable. For the
	// local provider this distinguishes "service down" from "service up but
	// model not pulled"; each surfaces a different actionable error.
	HealthCheck(ctx context.Context) error

	// GeneratePlan asks the model for a structured execution plan. The raw
	// model text is returned alongside the decoded plan for diagnostics;
	// on decode failure the raw text is embedded in the error.
	GeneratePlan(ctx context.Context, question, assetID, schemaText string) (*models.ExecutionPlan, string, error)

	// InterpretResults asks the model to explain a row sample in business
	// terms.
	InterpretResults(ctx context.Context, question, assetID string, sample ResultSample) (*models.Interpretation, error)
}

// Generation sampling is fixed low to favor determinism over creativity:
// the output feeds a strict validator, not a reader.
const (
	planTemperature = 0.1
	planTopP        = 0.9
)
