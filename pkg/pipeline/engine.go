// Package pipeline orchestrates the plan-validate-build-execute-interpret
// flow for one question about one data asset.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pi-qualytics/insight-engine/pkg/llm"
	"github.com/pi-qualytics/insight-engine/pkg/metrics"
	"github.com/pi-qualytics/insight-engine/pkg/models"
	"github.com/pi-qualytics/insight-engine/pkg/schema"
	sqlbuild "github.com/pi-qualytics/insight-engine/pkg/sql"
)

// RegistryBuilder produces a fresh schema registry. The engine rebuilds it
// every run so a schema change between runs is picked up immediately.
type RegistryBuilder interface {
	Build(ctx context.Context) (*models.SchemaRegistry, error)
}

// QueryExecutor runs read queries against the warehouse.
type QueryExecutor interface {
	Query(ctx context.Context, sqlText string, binds ...any) (*models.ResultSet, error)
}

// AuditSink records terminal outcomes. Implementations must never fail the
// run; the engine calls Log exactly once per outcome.
type AuditSink interface {
	Log(ctx context.Context, rec *models.AuditRecord)
}

// Engine runs the full pipeline. All collaborators are injected.
type Engine struct {
	provider   llm.Provider
	registry   RegistryBuilder
	executor   QueryExecutor
	audit      AuditSink
	metrics    *metrics.Metrics
	sampleRows int
	logger     *zap.Logger
}

// NewEngine wires an engine from its collaborators. sampleRows caps how many
// result rows are handed to the provider for interpretation.
func NewEngine(
	provider llm.Provider,
	registry RegistryBuilder,
	executor QueryExecutor,
	audit AuditSink,
	m *metrics.Metrics,
	sampleRows int,
	logger *zap.Logger,
) *Engine {
	if sampleRows < 1 {
		sampleRows = 20
	}
	return &Engine{
		provider:   provider,
		registry:   registry,
		executor:   executor,
		audit:      audit,
		metrics:    m,
		sampleRows: sampleRows,
		logger:     logger.Named("pipeline"),
	}
}

// Execute runs one question through the pipeline and always returns a
// terminal outcome; failures are statuses, not errors. Context cancellation
// propagates into every blocking phase.
func (e *Engine) Execute(ctx context.Context, question, assetID string) *models.ExecutionOutcome {
	start := time.Now()
	outcome := &models.ExecutionOutcome{
		ExecutionID: uuid.NewString(),
		Question:    question,
		AssetID:     assetID,
		Provider:    e.provider.Name(),
		Model:       e.provider.Model(),
	}

	log := e.logger.With(
		zap.String("execution_id", outcome.ExecutionID),
		zap.String("asset_id", assetID))
	log.Info("pipeline run started", zap.String("provider", outcome.Provider))

	e.run(ctx, outcome, log)

	outcome.Timings.Total = time.Since(start)
	e.finish(ctx, outcome, log)
	return outcome
}

// run executes the pipeline phases, mutating outcome in place. It returns as
// soon as a phase fails terminally; finish handles everything that must
// happen exactly once.
func (e *Engine) run(ctx context.Context, outcome *models.ExecutionOutcome, log *zap.Logger) {
	// Fail fast before burning a warehouse roundtrip on a dead provider.
	if err := e.provider.HealthCheck(ctx); err != nil {
		outcome.Status = models.StatusProviderUnavailable
		outcome.Error = err.Error()
		outcome.Hint = "verify the LLM provider configuration and connectivity"
		return
	}

	registry, err := e.registry.Build(ctx)
	if err != nil {
		outcome.Status = models.StatusSQLError
		outcome.Error = err.Error()
		outcome.Hint = "check warehouse connectivity and schema access"
		return
	}
	schemaText := schema.PromptText(registry)

	planStart := time.Now()
	plan, _, err := e.provider.GeneratePlan(ctx, outcome.Question, outcome.AssetID, schemaText)
	outcome.Timings.PlanGen = time.Since(planStart)
	if err != nil {
		outcome.Status = models.StatusPlanError
		outcome.Error = err.Error()
		if errors.Is(err, llm.ErrSchemaInsufficient) {
			outcome.Hint = "the available schema cannot answer this question; rephrase it or choose a different asset"
		} else {
			outcome.Hint = "the model did not produce a usable plan; try rephrasing the question"
		}
		return
	}
	outcome.Plan = plan

	validation := sqlbuild.ValidatePlan(plan, registry)
	outcome.Validation = &validation
	if !validation.Valid {
		outcome.Status = models.StatusValidationError
		outcome.Error = validation.ErrorText()
		outcome.Hint = "the model referenced tables or columns that do not exist; try a more specific question"
		log.Warn("plan rejected by validator", zap.Strings("errors", validation.Errors))
		return
	}
	for _, w := range validation.Warnings {
		log.Warn("plan warning", zap.String("warning", w))
	}

	built, err := sqlbuild.BuildQuery(plan, outcome.AssetID)
	if err != nil {
		outcome.Status = models.StatusSQLError
		outcome.Error = err.Error()
		outcome.Hint = "the plan could not be compiled into a safe query; the safety gate rejected it"
		return
	}
	outcome.SQL = built.SQL
	outcome.Complexity = built.Complexity

	sqlStart := time.Now()
	results, err := e.executor.Query(ctx, built.SQL)
	outcome.Timings.SQLExec = time.Since(sqlStart)
	if err != nil {
		outcome.Status = models.StatusSQLError
		outcome.Error = err.Error()
		outcome.Hint = "the generated query failed on the warehouse"
		return
	}
	outcome.Results = results

	interpretStart := time.Now()
	interpretation, err := e.provider.InterpretResults(ctx, outcome.Question, outcome.AssetID, e.sample(results))
	outcome.Timings.Interpret = time.Since(interpretStart)
	if err != nil {
		// Rows were retrieved; a failed narration must not fail the run.
		log.Warn("interpretation failed, using fallback", zap.Error(err))
		interpretation = fallbackInterpretation(outcome.Plan, results)
	}
	outcome.Interpretation = interpretation
	outcome.Status = models.StatusSuccess
}

// finish records metrics, writes the single audit record and logs the
// terminal state.
func (e *Engine) finish(ctx context.Context, outcome *models.ExecutionOutcome, log *zap.Logger) {
	if e.metrics != nil {
		e.metrics.ObserveRun(string(outcome.Status), outcome.Provider)
		e.metrics.ObservePhase("plan_gen", outcome.Timings.PlanGen)
		e.metrics.ObservePhase("sql_exec", outcome.Timings.SQLExec)
		e.metrics.ObservePhase("interpret", outcome.Timings.Interpret)
	}

	if e.audit != nil {
		e.audit.Log(ctx, models.AuditRecordFromOutcome(outcome))
	}

	if outcome.Status == models.StatusSuccess {
		log.Info("pipeline run finished",
			zap.String("status", string(outcome.Status)),
			zap.Int("rows", outcome.Results.RowCount),
			zap.Duration("total", outcome.Timings.Total))
	} else {
		log.Warn("pipeline run failed",
			zap.String("status", string(outcome.Status)),
			zap.String("error", outcome.Error),
			zap.Duration("total", outcome.Timings.Total))
	}
}

// sample bounds the rows handed to the provider for interpretation.
func (e *Engine) sample(results *models.ResultSet) llm.ResultSample {
	rows := results.Rows
	if len(rows) > e.sampleRows {
		rows = rows[:e.sampleRows]
	}
	return llm.ResultSample{
		Columns:   results.Columns,
		Rows:      rows,
		TotalRows: results.RowCount,
	}
}

// fallbackInterpretation builds a deterministic answer from the rows alone,
// used when the provider cannot narrate them.
func fallbackInterpretation(plan *models.ExecutionPlan, results *models.ResultSet) *models.Interpretation {
	answer := fmt.Sprintf("The query returned %d row(s)", results.RowCount)
	if plan != nil {
		if plan.Intent != "" {
			answer += fmt.Sprintf(" for a %s analysis", plan.Intent)
		}
		if len(plan.Tables) > 0 {
			answer += fmt.Sprintf(" over %v", plan.Tables)
		}
	}
	answer += ". An automated explanation was not available; review the raw results below."

	return &models.Interpretation{
		Answer:   answer,
		Fallback: true,
	}
}
