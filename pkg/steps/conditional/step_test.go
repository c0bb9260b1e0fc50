package conditional_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/loadbridge/loadbridge/pkg/models"
	"github.com/loadbridge/loadbridge/pkg/steps/conditional"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		config   map[string]any
		context  map[string]any
		expected bool
	}{
		{
			name:     "equals true",
			config:   map[string]any{"field": "status", "operator": "equals", "value": "approved"},
			context:  map[string]any{"status": "approved"},
			expected: true,
		},
		{
			name:     "equals false",
			config:   map[string]any{"field": "status", "operator": "equals", "value": "approved"},
			context:  map[string]any{"status": "pending"},
			expected: false,
		},
		{
			name:     "exists",
			config:   map[string]any{"field": "orderId", "operator": "exists"},
			context:  map[string]any{"orderId": "A1"},
			expected: true,
		},
		{
			name:     "not exists",
			config:   map[string]any{"field": "missing", "operator": "not_exists"},
			context:  map[string]any{},
			expected: true,
		},
		{
			name:     "is_null on missing field",
			config:   map[string]any{"field": "gone", "operator": "is_null"},
			context:  map[string]any{},
			expected: true,
		},
		{
			name:     "contains",
			config:   map[string]any{"field": "notes", "operator": "contains", "value": "urgent"},
			context:  map[string]any{"notes": "this is urgent!"},
			expected: true,
		},
		{
			name:     "greater_than with numeric string",
			config:   map[string]any{"field": "total", "operator": "greater_than", "value": "100"},
			context:  map[string]any{"total": "250.5"},
			expected: true,
		},
		{
			name:     "less_than_or_equal",
			config:   map[string]any{"field": "count", "operator": "less_than_or_equal", "value": "3"},
			context:  map[string]any{"count": float64(3)},
			expected: true,
		},
		{
			name:     "nested field path",
			config:   map[string]any{"field": "order.status", "operator": "equals", "value": "open"},
			context:  map[string]any{"order": map[string]any{"status": "open"}},
			expected: true,
		},
		{
			name:     "templated expected value",
			config:   map[string]any{"field": "a", "operator": "equals", "value": "{{b}}"},
			context:  map[string]any{"a": "same", "b": "same"},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			step, err := conditional.NewStep(tt.config)
			require.NoError(t, err)

			run := &models.Run{Context: tt.context}

			result, err := step.Execute(context.Background(), run, slog.Default())
			require.NoError(t, err)

			if tt.expected {
				assert.Equal(t, models.SuccessHandle, result.Handle)
			} else {
				assert.Equal(t, models.FailureHandle, result.Handle)
			}
		})
	}
}

func TestExecuteStoresOutputVariable(t *testing.T) {
	t.Parallel()

	step, err := conditional.NewStep(map[string]any{
		"field":          "status",
		"operator":       "equals",
		"value":          "approved",
		"outputVariable": "isApproved",
	})
	require.NoError(t, err)

	run := &models.Run{Context: map[string]any{"status": "approved"}}

	_, err = step.Execute(context.Background(), run, slog.Default())
	require.NoError(t, err)

	assert.Equal(t, true, run.Context["isApproved"])
}

func TestExecuteNonNumericComparisonFails(t *testing.T) {
	t.Parallel()

	step, err := conditional.NewStep(map[string]any{
		"field":    "status",
		"operator": "greater_than",
		"value":    "10",
	})
	require.NoError(t, err)

	run := &models.Run{Context: map[string]any{"status": "approved"}}

	_, err = step.Execute(context.Background(), run, slog.Default())
	assert.Error(t, err)
}
