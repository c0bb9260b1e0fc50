// Package conditional provides the conditional_check step, the only step type
// that branches: it routes through the success or failure handle based on one
// field comparison.
package conditional

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/loadbridge/loadbridge/pkg/models"
	"github.com/loadbridge/loadbridge/pkg/protocol"
	"github.com/loadbridge/loadbridge/pkg/template"
)

// Supported operators.
const (
	OpExists             = "exists"
	OpNotExists          = "not_exists"
	OpIsNull             = "is_null"
	OpIsNotNull          = "is_not_null"
	OpEquals             = "equals"
	OpNotEquals          = "not_equals"
	OpContains           = "contains"
	OpNotContains        = "not_contains"
	OpGreaterThan        = "greater_than"
	OpLessThan           = "less_than"
	OpGreaterThanOrEqual = "greater_than_or_equal"
	OpLessThanOrEqual    = "less_than_or_equal"
)

type Step struct {
	Field          string
	Operator       string
	Expected       string
	OutputVariable string
}

func NewStep(config map[string]any) (*Step, error) {
	field, ok := config["field"].(string)
	if !ok || field == "" {
		return nil, errors.New("missing required field 'field'")
	}

	operator, ok := config["operator"].(string)
	if !ok || operator == "" {
		return nil, errors.New("missing required field 'operator'")
	}

	step := &Step{Field: field, Operator: operator}

	if expected, ok := config["value"].(string); ok {
		step.Expected = expected
	} else if expected, ok := config["value"]; ok && expected != nil {
		step.Expected = template.Stringify(expected)
	}

	if output, ok := config["outputVariable"].(string); ok {
		step.OutputVariable = output
	}

	return step, nil
}

func (s *Step) Execute(ctx context.Context, run *models.Run, logger *slog.Logger) (*protocol.StepResult, error) {
	value, found := template.Lookup(s.Field, run.Context)
	expected := template.Resolve(s.Expected, run.Context)

	result, err := evaluate(s.Operator, value, found, expected)
	if err != nil {
		return nil, err
	}

	if s.OutputVariable != "" {
		run.Context[s.OutputVariable] = result
	}

	handle := models.FailureHandle
	if result {
		handle = models.SuccessHandle
	}

	logger.InfoContext(ctx, "Evaluated condition",
		"field", s.Field, "operator", s.Operator, "result", result)

	return &protocol.StepResult{
		Output: map[string]any{
			"field":    s.Field,
			"operator": s.Operator,
			"expected": expected,
			"actual":   value,
			"result":   result,
		},
		Handle: handle,
	}, nil
}

func evaluate(operator string, value any, found bool, expected string) (bool, error) {
	switch operator {
	case OpExists:
		return found, nil
	case OpNotExists:
		return !found, nil
	case OpIsNull:
		return !found || value == nil, nil
	case OpIsNotNull:
		return found && value != nil, nil
	case OpEquals:
		return found && template.Stringify(value) == expected, nil
	case OpNotEquals:
		return !found || template.Stringify(value) != expected, nil
	case OpContains:
		return found && strings.Contains(template.Stringify(value), expected), nil
	case OpNotContains:
		return !found || !strings.Contains(template.Stringify(value), expected), nil
	case OpGreaterThan, OpLessThan, OpGreaterThanOrEqual, OpLessThanOrEqual:
		if !found {
			return false, nil
		}

		return compareNumeric(operator, value, expected)
	default:
		return false, fmt.Errorf("unsupported operator '%s'", operator)
	}
}

func compareNumeric(operator string, value any, expected string) (bool, error) {
	actual, err := toFloat(value)
	if err != nil {
		return false, fmt.Errorf("field value is not numeric: %w", err)
	}

	target, err := strconv.ParseFloat(strings.TrimSpace(expected), 64)
	if err != nil {
		return false, fmt.Errorf("expected value %q is not numeric: %w", expected, err)
	}

	switch operator {
	case OpGreaterThan:
		return actual > target, nil
	case OpLessThan:
		return actual < target, nil
	case OpGreaterThanOrEqual:
		return actual >= target, nil
	default:
		return actual <= target, nil
	}
}

func toFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to number", value)
	}
}
