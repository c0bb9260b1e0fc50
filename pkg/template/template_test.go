package template_test

import (
	"testing"

	"github.com/loadbridge/loadbridge/pkg/template"
	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	ctx := map[string]any{
		"orderId": "A1",
		"status":  "approved",
		"count":   float64(3),
		"flag":    true,
		"orders": []any{
			map[string]any{"number": "ORD-100", "total": 42.5},
			map[string]any{"number": "ORD-101"},
		},
		"customer": map[string]any{
			"name": "Acme Freight",
			"address": map[string]any{
				"city": "Dallas",
			},
		},
		"extractedData": map[string]any{
			"billNumber": "B-77",
		},
	}

	tests := []struct {
		name     string
		tmpl     string
		expected string
	}{
		{
			name:     "simple placeholder",
			tmpl:     "Order {{orderId}}",
			expected: "Order A1",
		},
		{
			name:     "missing path left verbatim",
			tmpl:     "Order {{missing.path}}",
			expected: "Order {{missing.path}}",
		},
		{
			name:     "nested path",
			tmpl:     "City: {{customer.address.city}}",
			expected: "City: Dallas",
		},
		{
			name:     "bracket index",
			tmpl:     "First: {{orders[0].number}}",
			expected: "First: ORD-100",
		},
		{
			name:     "bare numeric index",
			tmpl:     "Second: {{orders.1.number}}",
			expected: "Second: ORD-101",
		},
		{
			name:     "number stringified without trailing zero",
			tmpl:     "{{count}} items",
			expected: "3 items",
		},
		{
			name:     "boolean stringified",
			tmpl:     "flag={{flag}}",
			expected: "flag=true",
		},
		{
			name:     "extractedData prefix stripped",
			tmpl:     "{{extractedData.orderId}}",
			expected: "A1",
		},
		{
			name:     "extractedData nested lookup still works",
			tmpl:     "{{extractedData.billNumber}}",
			expected: "B-77",
		},
		{
			name:     "out of range index left verbatim",
			tmpl:     "{{orders[9].number}}",
			expected: "{{orders[9].number}}",
		},
		{
			name:     "multiple placeholders",
			tmpl:     "{{orderId}}/{{status}}",
			expected: "A1/approved",
		},
		{
			name:     "no placeholders",
			tmpl:     "plain text",
			expected: "plain text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, template.Resolve(tt.tmpl, ctx))
		})
	}
}

func TestResolveSingle(t *testing.T) {
	t.Parallel()

	ctx := map[string]any{"orderId": "A1"}

	assert.Equal(t, "Processed order A1", template.ResolveSingle("Processed order {orderId}", ctx))
	assert.Equal(t, "Missing {other}", template.ResolveSingle("Missing {other}", ctx))
}

func TestLookupLiteralKeyShadowsNested(t *testing.T) {
	t.Parallel()

	ctx := map[string]any{
		"a.b": "flat",
		"a":   map[string]any{"b": "nested"},
	}

	value, ok := template.Lookup("a.b", ctx)
	assert.True(t, ok)
	assert.Equal(t, "flat", value)
}

func TestLookupNilValueFails(t *testing.T) {
	t.Parallel()

	ctx := map[string]any{"field": nil}

	_, ok := template.Lookup("field", ctx)
	assert.False(t, ok)
}
