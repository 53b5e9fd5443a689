// Package prompts builds the templated prompts sent to LLM providers.
package prompts

import (
	"fmt"
	"strings"
)

const planPromptTemplate = `You are a data quality analyst assistant for a banking data warehouse.

A user asked the following question about the data asset %q:

%s

The warehouse schema available to you is:

%s

Respond with EXACTLY ONE JSON object and nothing else. No markdown, no prose.

The object must have these fields:
  "intent": one of "trend", "root_cause", "comparison", "distribution", "impact", "anomaly"
  "tables": array of table names to query (required, at least one)
  "columns": array of column names to select (optional)
  "metrics": array of aggregate expressions like "AVG(METRIC_VALUE)" (optional)
  "filters": object of column -> value equality filters (optional)
  "group_by": array of group-by expressions (optional)
  "order_by": array of order-by expressions (optional)
  "limit": row limit (optional)
  "time_window_days": how many days of history to consider (optional)

Only reference tables and columns that appear in the schema above.

If the schema cannot answer the question, respond instead with:
  {"error": "insufficient_schema", "reason": "<one sentence why>"}`

// BuildPlanPrompt renders the plan-generation prompt for one question.
func BuildPlanPrompt(question, assetID, schemaText string) string {
	return fmt.Sprintf(planPromptTemplate, assetID, question, schemaText)
}

const interpretPromptTemplate = `You are a data quality analyst assistant for a banking data warehouse.

A user asked the following question about the data asset %q:

%s

A query was executed and returned %d row(s). A sample of the results:

%s

Explain what the results mean for the user in business terms.

Respond with EXACTLY ONE JSON object and nothing else:
  "answer": 2-4 sentence business-readable explanation (required)
  "key_findings": array of short bullet findings (optional)
  "recommendation": one suggested next step (optional)`

// BuildInterpretPrompt renders the result-interpretation prompt. The sample
// is rendered as a pipe-delimited table, header first.
func BuildInterpretPrompt(question, assetID string, columns []string, rows [][]string, totalRows int) string {
	return fmt.Sprintf(interpretPromptTemplate, assetID, question, totalRows,
		RenderSampleTable(columns, rows))
}

// RenderSampleTable formats a result sample as pipe-delimited text.
func RenderSampleTable(columns []string, rows [][]string) string {
	if len(columns) == 0 {
		return "(no columns)"
	}

	var b strings.Builder
	b.WriteString(strings.Join(columns, " | "))
	for _, row := range rows {
		b.WriteString("\n")
		b.WriteString(strings.Join(row, " | "))
	}
	return b.String()
}
