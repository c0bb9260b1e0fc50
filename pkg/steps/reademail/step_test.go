package reademail_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/loadbridge/loadbridge/pkg/models"
	"github.com/loadbridge/loadbridge/pkg/protocol"
	"github.com/loadbridge/loadbridge/pkg/steps/reademail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCastValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		raw       string
		fieldType string
		expected  any
		wantErr   bool
	}{
		{name: "date only from datetime", raw: "2024-01-05T10:00:00Z", fieldType: "date_only", expected: "2024-01-05"},
		{name: "date only from slash date", raw: "01/05/2024", fieldType: "date_only", expected: "2024-01-05"},
		{name: "datetime", raw: "2024-01-05T10:00:00Z", fieldType: "datetime", expected: "2024-01-05T10:00:00Z"},
		{name: "boolean yes", raw: "yes", fieldType: "boolean", expected: true},
		{name: "boolean No", raw: "No", fieldType: "boolean", expected: false},
		{name: "boolean garbage", raw: "maybe", fieldType: "boolean", wantErr: true},
		{name: "rin strips and uppercases", raw: "ab-12_3", fieldType: "rin", expected: "AB123"},
		{name: "number", raw: "42.5", fieldType: "number", expected: 42.5},
		{name: "integer", raw: "17", fieldType: "integer", expected: int64(17)},
		{name: "integer from float text", raw: "17.0", fieldType: "integer", expected: int64(17)},
		{name: "default string", raw: " padded ", fieldType: "string", expected: "padded"},
		{name: "bad date", raw: "not a date", fieldType: "date_only", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			value, err := reademail.CastValue(tt.raw, tt.fieldType)

			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, value)
		})
	}
}

type fakeAI struct {
	response string
	calls    int
	prompt   string
}

func (f *fakeAI) Generate(_ context.Context, parts []protocol.Part) (string, error) {
	f.calls++
	if len(parts) > 0 {
		f.prompt = parts[0].Text
	}

	return f.response, nil
}

func TestExecuteMergesFieldsAtTopLevelAndExtractedData(t *testing.T) {
	t.Parallel()

	ai := &fakeAI{response: `{"billNumber": "B-9", "pickupDate": "2024-03-01"}`}

	step, err := reademail.NewStep(map[string]any{
		"mappings": []any{
			map[string]any{"field": "source", "kind": "hardcoded", "value": "email"},
			map[string]any{"field": "sender", "kind": "function", "value": "{{senderEmail}}"},
			map[string]any{"field": "billNumber", "kind": "ai", "value": "the bill of lading number"},
			map[string]any{"field": "pickupDate", "kind": "ai", "type": "date_only"},
		},
	}, ai)
	require.NoError(t, err)

	run := &models.Run{Context: map[string]any{
		"senderEmail":  "driver@example.com",
		"emailSubject": "Pickup B-9",
		"emailBody":    "Bill B-9 picks up March 1st 2024",
	}}

	result, err := step.Execute(context.Background(), run, slog.Default())
	require.NoError(t, err)

	// One batched AI call covering both AI fields.
	assert.Equal(t, 1, ai.calls)
	assert.Contains(t, ai.prompt, "billNumber")
	assert.Contains(t, ai.prompt, "pickupDate")

	assert.Equal(t, "email", run.Context["source"])
	assert.Equal(t, "driver@example.com", run.Context["sender"])
	assert.Equal(t, "B-9", run.Context["billNumber"])
	assert.Equal(t, "2024-03-01", run.Context["pickupDate"])

	extracted, ok := run.Context["extractedData"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "B-9", extracted["billNumber"])
	assert.Equal(t, "email", extracted["source"])

	// Static fields and the AI batch are separate sub-step entries.
	require.Len(t, result.SubSteps, 2)
	assert.Equal(t, "Resolve hardcoded and function fields", result.SubSteps[0].Label)
	assert.Equal(t, "AI field extraction", result.SubSteps[1].Label)
}

func TestExecuteWithoutAIFieldsSkipsAICall(t *testing.T) {
	t.Parallel()

	ai := &fakeAI{}

	step, err := reademail.NewStep(map[string]any{
		"mappings": []any{
			map[string]any{"field": "channel", "kind": "hardcoded", "value": "portal"},
		},
	}, ai)
	require.NoError(t, err)

	run := &models.Run{Context: map[string]any{}}

	result, err := step.Execute(context.Background(), run, slog.Default())
	require.NoError(t, err)

	assert.Zero(t, ai.calls)
	require.Len(t, result.SubSteps, 1)
}
