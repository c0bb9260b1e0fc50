package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/loadbridge/loadbridge/pkg/models"
	"github.com/loadbridge/loadbridge/pkg/protocol"
	"github.com/loadbridge/loadbridge/pkg/steps/aidecision"
	"github.com/loadbridge/loadbridge/pkg/template"
)

// Payload formats accepted by the context builder.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// FieldMapping is a pre-traversal field computation applied to each order
// record before the graph starts. Only "function" mappings are evaluated here;
// other mapping types belong to the extraction schema outside this engine.
type FieldMapping struct {
	Field      string `json:"field"`
	Type       string `json:"type"`
	Expression string `json:"expression"`
}

// ContextBuilder assembles the initial execution context from the extracted
// payload, request metadata and prior-group carry-over fields.
type ContextBuilder struct {
	groups protocol.GroupSource
	ai     protocol.AIClient
	logger *slog.Logger
}

func NewContextBuilder(groups protocol.GroupSource, ai protocol.AIClient, logger *slog.Logger) *ContextBuilder {
	return &ContextBuilder{
		groups: groups,
		ai:     ai,
		logger: logger,
	}
}

// Build seeds the context for one run. Seeding order is deliberate: extracted
// payload and metadata first, caller contextData merged over them, then the
// JSON top-level spread and the first order's field spread, then prior-group
// carry-over fields.
func (b *ContextBuilder) Build(ctx context.Context, mode models.WorkflowType, req *RunRequest) (map[string]any, error) {
	built := make(map[string]any)

	extracted, err := b.seedExtractedData(built, req)
	if err != nil {
		return nil, err
	}

	b.seedMetadata(built, req)

	for k, v := range req.ContextData {
		built[k] = v
	}

	if req.FormatType != FormatCSV && extracted != nil {
		spreadExtracted(built, extracted)
	}

	err = b.mergePriorGroups(ctx, built, req)
	if err != nil {
		return nil, err
	}

	if mode == models.WorkflowTypeExtraction && extracted != nil {
		err = b.applyFunctionMappings(ctx, built, extracted, req.FieldMappings)
		if err != nil {
			return nil, err
		}
	}

	return built, nil
}

// seedExtractedData parses the payload per format and stores it under
// "extractedData". JSON payloads keep their object shape; CSV stays raw text.
func (b *ContextBuilder) seedExtractedData(built map[string]any, req *RunRequest) (map[string]any, error) {
	if req.FormatType == FormatCSV {
		built["extractedData"] = req.RawExtractedData

		return nil, nil
	}

	extracted := req.ExtractedData

	if extracted == nil && req.RawExtractedData != "" {
		extracted = make(map[string]any)

		err := json.Unmarshal([]byte(req.RawExtractedData), &extracted)
		if err != nil {
			return nil, fmt.Errorf("extracted data is not valid JSON: %w", err)
		}
	}

	if extracted == nil {
		extracted = make(map[string]any)
	}

	built["extractedData"] = extracted

	return extracted, nil
}

func (b *ContextBuilder) seedMetadata(built map[string]any, req *RunRequest) {
	built["pdfFileName"] = req.PDFFilename
	built["pdfFileNameWithoutExtension"] = strings.TrimSuffix(req.PDFFilename, ".pdf")
	built["pdfStoragePath"] = req.PDFStoragePath
	built["extractedDataStoragePath"] = req.ExtractedDataStoragePath
	built["userId"] = req.UserID
	built["senderEmail"] = req.SenderEmail
	built["submitterEmail"] = req.SubmitterEmail
	built["formatType"] = req.FormatType
	built["timestamp"] = time.Now().Format("1/2/2006, 3:04:05 PM")
}

// spreadExtracted copies the extracted fields to the top level, and the first
// order's fields as well, so templates can write {{orderNumber}} instead of
// {{orders.0.orderNumber}}.
func spreadExtracted(built, extracted map[string]any) {
	for k, v := range extracted {
		built[k] = v
	}

	orders, ok := extracted["orders"].([]any)
	if !ok || len(orders) == 0 {
		return
	}

	first, ok := orders[0].(map[string]any)
	if !ok {
		return
	}

	for k, v := range first {
		built[k] = v
	}
}

// mergePriorGroups pulls every earlier group's extracted fields into the
// context under a group{N}_ prefix. Only applies past the first group of a
// multi-page session.
func (b *ContextBuilder) mergePriorGroups(ctx context.Context, built map[string]any, req *RunRequest) error {
	if req.SessionID == "" || req.GroupOrder <= 1 || b.groups == nil {
		return nil
	}

	prior, err := b.groups.PriorGroupFields(ctx, req.SessionID, req.GroupOrder)
	if err != nil {
		return fmt.Errorf("failed to fetch prior group fields for session %s: %w", req.SessionID, err)
	}

	for i, fields := range prior {
		prefix := fmt.Sprintf("group%d_", i+1)
		for k, v := range fields {
			built[prefix+k] = v
		}
	}

	b.logger.InfoContext(ctx, "Merged prior group fields",
		"session_id", req.SessionID, "groups", len(prior))

	return nil
}

// applyFunctionMappings evaluates function-type field mappings against each
// order record and writes the result back into the record in place.
func (b *ContextBuilder) applyFunctionMappings(ctx context.Context, built, extracted map[string]any, mappings []FieldMapping) error {
	functions := make([]FieldMapping, 0, len(mappings))

	for _, mapping := range mappings {
		if mapping.Type == "function" && mapping.Field != "" {
			functions = append(functions, mapping)
		}
	}

	if len(functions) == 0 {
		return nil
	}

	orders, ok := extracted["orders"].([]any)
	if !ok || len(orders) == 0 {
		// No order records: evaluate against the context itself.
		return b.applyMappingsTo(ctx, built, built, functions)
	}

	for _, raw := range orders {
		order, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		err := b.applyMappingsTo(ctx, built, order, functions)
		if err != nil {
			return err
		}
	}

	return nil
}

func (b *ContextBuilder) applyMappingsTo(ctx context.Context, built, record map[string]any, mappings []FieldMapping) error {
	for _, mapping := range mappings {
		value, err := b.evaluateExpression(ctx, built, record, mapping.Expression)
		if err != nil {
			return fmt.Errorf("function mapping '%s' failed: %w", mapping.Field, err)
		}

		record[mapping.Field] = value
	}

	return nil
}

// evaluateExpression resolves one function expression. addressLookup(path)
// asks the AI collaborator to normalize the address text found at path; any
// other expression is treated as a template over the order record layered on
// the run context.
func (b *ContextBuilder) evaluateExpression(ctx context.Context, built, record map[string]any, expression string) (any, error) {
	expression = strings.TrimSpace(expression)

	scope := make(map[string]any, len(built)+len(record))
	for k, v := range built {
		scope[k] = v
	}

	for k, v := range record {
		scope[k] = v
	}

	if inner, ok := strings.CutPrefix(expression, "addressLookup("); ok {
		path := strings.TrimSuffix(inner, ")")

		return b.addressLookup(ctx, scope, path)
	}

	return template.Resolve(expression, scope), nil
}

func (b *ContextBuilder) addressLookup(ctx context.Context, scope map[string]any, path string) (any, error) {
	if b.ai == nil {
		return nil, fmt.Errorf("addressLookup requires an AI client")
	}

	raw, ok := template.Lookup(strings.TrimSpace(path), scope)
	if !ok || raw == nil {
		return nil, nil
	}

	prompt := "Normalize the following address into a JSON object with keys " +
		"\"address\", \"city\", \"state\" and \"zip\". Respond with ONLY the JSON object.\n\n" +
		template.Stringify(raw)

	text, err := b.ai.Generate(ctx, []protocol.Part{protocol.TextPart(prompt)})
	if err != nil {
		return nil, fmt.Errorf("address lookup call failed: %w", err)
	}

	var address map[string]any

	err = json.Unmarshal([]byte(aidecision.StripCodeFences(text)), &address)
	if err != nil {
		return nil, fmt.Errorf("address lookup returned malformed JSON: %w", err)
	}

	return address, nil
}
