package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/pi-qualytics/insight-engine/pkg/models"
)

// codeFencePattern matches markdown code fences some models wrap JSON in
// despite being told not to.
var codeFencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// thinkTagPattern matches <think>...</think> preambles emitted by reasoning
// models before the actual answer.
var thinkTagPattern = regexp.MustCompile(`(?s)^[\s]*<think>.*?</think>[\s]*`)

// ExtractJSON extracts the first balanced JSON object from a model response
// that may contain code fences, think tags or prose around it.
func ExtractJSON(response string) (string, error) {
	cleaned := thinkTagPattern.ReplaceAllString(response, "")
	if m := codeFencePattern.FindStringSubmatch(cleaned); len(m) == 2 {
		cleaned = m[1]
	}

	if jsonStr, ok := extractBalancedObject(cleaned); ok {
		if json.Valid([]byte(jsonStr)) {
			return jsonStr, nil
		}
	}

	trimmed := strings.TrimSpace(cleaned)
	if json.Valid([]byte(trimmed)) {
		return trimmed, nil
	}

	return "", fmt.Errorf("no valid JSON object found in response")
}

// extractBalancedObject finds the first balanced {...} structure, tracking
// string literals and escapes so braces inside strings don't confuse it.
func extractBalancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	return "", false
}

// schemaRefusalSentinel is the reserved value a model uses to signal that
// the schema cannot answer the question.
const schemaRefusalSentinel = "insufficient_schema"

// planEnvelope is the wire shape of a plan response. The model either fills
// the plan fields or sets the refusal sentinel in "error".
type planEnvelope struct {
	models.ExecutionPlan
	Error  string `json:"error,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// DecodePlan decodes a model response into a typed ExecutionPlan. Malformed
// output fails loudly with the raw text embedded for diagnosis; an explicit
// schema refusal returns ErrSchemaInsufficient.
func DecodePlan(raw string) (*models.ExecutionPlan, error) {
	jsonStr, err := ExtractJSON(raw)
	if err != nil {
		return nil, NewError(ErrorTypeBadOutput,
			fmt.Sprintf("malformed model output (raw: %s)", truncate(raw, 500)), false, err)
	}

	var env planEnvelope
	if err := json.Unmarshal([]byte(jsonStr), &env); err != nil {
		return nil, NewError(ErrorTypeBadOutput,
			fmt.Sprintf("malformed model output (raw: %s)", truncate(raw, 500)), false, err)
	}

	if env.Error != "" {
		if env.Error == schemaRefusalSentinel {
			if env.Reason != "" {
				return nil, fmt.Errorf("%w: %s", ErrSchemaInsufficient, env.Reason)
			}
			return nil, ErrSchemaInsufficient
		}
		return nil, NewError(ErrorTypeBadOutput,
			fmt.Sprintf("model returned error %q (raw: %s)", env.Error, truncate(raw, 500)), false, nil)
	}

	plan := env.ExecutionPlan
	return &plan, nil
}

// DecodeInterpretation decodes a model response into a typed Interpretation.
func DecodeInterpretation(raw string) (*models.Interpretation, error) {
	jsonStr, err := ExtractJSON(raw)
	if err != nil {
		return nil, NewError(ErrorTypeBadOutput,
			fmt.Sprintf("malformed interpretation output (raw: %s)", truncate(raw, 500)), false, err)
	}

	var interp models.Interpretation
	if err := json.Unmarshal([]byte(jsonStr), &interp); err != nil {
		return nil, NewError(ErrorTypeBadOutput,
			fmt.Sprintf("malformed interpretation output (raw: %s)", truncate(raw, 500)), false, err)
	}

	if strings.TrimSpace(interp.Answer) == "" {
		return nil, NewError(ErrorTypeBadOutput,
			fmt.Sprintf("interpretation missing answer (raw: %s)", truncate(raw, 500)), false, nil)
	}

	return &interp, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
