// Package reademail provides the read_email step: populating context fields
// from a raw email using hardcoded literals, template-resolved expressions and
// one batched AI extraction call.
package reademail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/loadbridge/loadbridge/pkg/models"
	"github.com/loadbridge/loadbridge/pkg/protocol"
	"github.com/loadbridge/loadbridge/pkg/steps/aidecision"
	"github.com/loadbridge/loadbridge/pkg/template"
)

// Mapping kinds.
const (
	KindHardcoded = "hardcoded"
	KindFunction  = "function"
	KindAI        = "ai"
)

// FieldMapping describes how one context field is produced.
type FieldMapping struct {
	Field string // destination field name
	Kind  string // hardcoded | function | ai
	Value string // literal, template, or AI extraction hint
	Type  string // cast target, defaults to string
}

type Step struct {
	Mappings     []FieldMapping
	SubjectField string
	BodyField    string

	ai protocol.AIClient
}

func NewStep(config map[string]any, ai protocol.AIClient) (*Step, error) {
	rawMappings, ok := config["mappings"].([]any)
	if !ok || len(rawMappings) == 0 {
		return nil, errors.New("missing required field 'mappings'")
	}

	step := &Step{
		SubjectField: "emailSubject",
		BodyField:    "emailBody",
		ai:           ai,
	}

	for i, raw := range rawMappings {
		entry, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("mapping %d is %T, expected object", i, raw)
		}

		mapping := FieldMapping{Type: TypeString}
		mapping.Field, _ = entry["field"].(string)
		mapping.Kind, _ = entry["kind"].(string)
		mapping.Value, _ = entry["value"].(string)

		if fieldType, ok := entry["type"].(string); ok && fieldType != "" {
			mapping.Type = fieldType
		}

		if mapping.Field == "" {
			return nil, fmt.Errorf("mapping %d has no field name", i)
		}

		switch mapping.Kind {
		case KindHardcoded, KindFunction, KindAI:
		default:
			return nil, fmt.Errorf("mapping '%s' has unsupported kind '%s'", mapping.Field, mapping.Kind)
		}

		if mapping.Kind == KindAI && ai == nil {
			return nil, errors.New("AI client is not configured but an ai mapping is present")
		}

		step.Mappings = append(step.Mappings, mapping)
	}

	if subjectField, ok := config["subjectField"].(string); ok && subjectField != "" {
		step.SubjectField = subjectField
	}

	if bodyField, ok := config["bodyField"].(string); ok && bodyField != "" {
		step.BodyField = bodyField
	}

	return step, nil
}

func (s *Step) Execute(ctx context.Context, run *models.Run, logger *slog.Logger) (*protocol.StepResult, error) {
	result := &protocol.StepResult{Output: map[string]any{}}
	extracted := make(map[string]any)

	// Hardcoded and function mappings are one sub-step.
	staticSub, err := s.resolveStaticMappings(run, extracted)
	result.SubSteps = append(result.SubSteps, staticSub)

	if err != nil {
		return result, err
	}

	// All AI mappings go out in a single batched prompt.
	aiMappings := s.mappingsOfKind(KindAI)
	if len(aiMappings) > 0 {
		aiSub, err := s.resolveAIMappings(ctx, run, aiMappings, extracted)
		result.SubSteps = append(result.SubSteps, aiSub)

		if err != nil {
			return result, err
		}
	}

	mergeExtracted(run.Context, extracted)

	result.Output["fields"] = extracted

	logger.InfoContext(ctx, "Extracted email fields", "count", len(extracted))

	return result, nil
}

func (s *Step) mappingsOfKind(kind string) []FieldMapping {
	matched := make([]FieldMapping, 0, len(s.Mappings))

	for _, mapping := range s.Mappings {
		if mapping.Kind == kind {
			matched = append(matched, mapping)
		}
	}

	return matched
}

func (s *Step) resolveStaticMappings(run *models.Run, extracted map[string]any) (protocol.SubStep, error) {
	started := time.Now()

	sub := protocol.SubStep{
		Label:     "Resolve hardcoded and function fields",
		StartedAt: started,
	}

	fields := make(map[string]any)

	for _, mapping := range s.Mappings {
		var raw string

		switch mapping.Kind {
		case KindHardcoded:
			raw = mapping.Value
		case KindFunction:
			raw = template.Resolve(mapping.Value, run.Context)
		default:
			continue
		}

		value, err := CastValue(raw, mapping.Type)
		if err != nil {
			sub.Status = models.StepStatusFailed
			sub.Error = err.Error()
			sub.CompletedAt = time.Now()

			return sub, fmt.Errorf("failed to cast field '%s': %w", mapping.Field, err)
		}

		fields[mapping.Field] = value
		extracted[mapping.Field] = value
	}

	sub.Status = models.StepStatusCompleted
	sub.Output = map[string]any{"fields": fields}
	sub.CompletedAt = time.Now()

	return sub, nil
}

func (s *Step) resolveAIMappings(ctx context.Context, run *models.Run, mappings []FieldMapping, extracted map[string]any) (protocol.SubStep, error) {
	started := time.Now()

	sub := protocol.SubStep{
		Label:     "AI field extraction",
		StartedAt: started,
		Input:     map[string]any{"fieldCount": len(mappings)},
	}

	subject, _ := run.Context[s.SubjectField].(string)
	body, _ := run.Context[s.BodyField].(string)

	prompt := buildExtractionPrompt(subject, body, mappings)

	raw, err := s.ai.Generate(ctx, []protocol.Part{protocol.TextPart(prompt)})
	if err != nil {
		sub.Status = models.StepStatusFailed
		sub.Error = err.Error()
		sub.CompletedAt = time.Now()

		return sub, fmt.Errorf("AI extraction call failed: %w", err)
	}

	var values map[string]any

	err = json.Unmarshal([]byte(aidecision.StripCodeFences(raw)), &values)
	if err != nil {
		sub.Status = models.StepStatusFailed
		sub.Error = err.Error()
		sub.CompletedAt = time.Now()

		return sub, fmt.Errorf("AI returned malformed extraction JSON: %w", err)
	}

	fields := make(map[string]any)

	for _, mapping := range mappings {
		rawValue, ok := values[mapping.Field]
		if !ok || rawValue == nil {
			continue
		}

		value, err := CastValue(template.Stringify(rawValue), mapping.Type)
		if err != nil {
			sub.Status = models.StepStatusFailed
			sub.Error = err.Error()
			sub.CompletedAt = time.Now()

			return sub, fmt.Errorf("failed to cast AI field '%s': %w", mapping.Field, err)
		}

		fields[mapping.Field] = value
		extracted[mapping.Field] = value
	}

	sub.Status = models.StepStatusCompleted
	sub.Output = map[string]any{"fields": fields}
	sub.CompletedAt = time.Now()

	return sub, nil
}

func buildExtractionPrompt(subject, body string, mappings []FieldMapping) string {
	var b strings.Builder

	b.WriteString("Extract the following fields from the email below.\n")
	b.WriteString("Respond with ONLY a JSON object keyed by field name and no other text. ")
	b.WriteString("Use null for fields you cannot find.\n\nFields:\n")

	for _, mapping := range mappings {
		b.WriteString("- ")
		b.WriteString(mapping.Field)

		if mapping.Value != "" {
			b.WriteString(": ")
			b.WriteString(mapping.Value)
		}

		b.WriteString(" (type: ")
		b.WriteString(mapping.Type)
		b.WriteString(")\n")
	}

	b.WriteString("\nSubject: ")
	b.WriteString(subject)
	b.WriteString("\n\nBody:\n")
	b.WriteString(body)

	return b.String()
}

// mergeExtracted writes the fields both at the top level and under
// "extractedData", so downstream templates can use either addressing style.
func mergeExtracted(context map[string]any, fields map[string]any) {
	existing, ok := context["extractedData"].(map[string]any)
	if !ok {
		existing = make(map[string]any, len(fields))
		context["extractedData"] = existing
	}

	for field, value := range fields {
		context[field] = value
		existing[field] = value
	}
}
