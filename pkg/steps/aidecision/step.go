// Package aidecision provides the ai_decision step: resolve source fields from
// the context, fetch candidate records from a REST lookup, and pick the
// matching candidate, either directly (single result) or via a generative-AI
// matcher whose verdict is verified for self-consistency.
package aidecision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/loadbridge/loadbridge/pkg/models"
	"github.com/loadbridge/loadbridge/pkg/protocol"
	"github.com/loadbridge/loadbridge/pkg/steps/apicall"
	"github.com/loadbridge/loadbridge/pkg/template"
)

// LookupConfig describes where candidate records come from.
type LookupConfig struct {
	Profile string
	URL     string
	Path    string
	Method  string
}

type Step struct {
	SourceFields         map[string]string // field name -> context path
	Lookup               LookupConfig
	CandidatesPath       string
	Instructions         string
	SkipAIIfSingleResult bool
	FailOnNoMatch        bool
	OutputVariable       string
	ReturnFieldPath      string
	ResponseMappings     map[string]string // context field -> candidate path

	profiles map[string]models.APIProfile
	ai       protocol.AIClient
	client   *http.Client
}

func NewStep(config map[string]any, profiles map[string]models.APIProfile, ai protocol.AIClient) (*Step, error) {
	if ai == nil {
		return nil, errors.New("AI client is not configured")
	}

	outputVariable, ok := config["outputVariable"].(string)
	if !ok || outputVariable == "" {
		return nil, errors.New("missing required field 'outputVariable'")
	}

	step := &Step{
		SourceFields:         make(map[string]string),
		SkipAIIfSingleResult: true,
		OutputVariable:       outputVariable,
		ResponseMappings:     make(map[string]string),
		profiles:             profiles,
		ai:                   ai,
		client:               &http.Client{Timeout: 30 * time.Second},
	}

	sourceFields, ok := config["sourceFields"].(map[string]any)
	if !ok || len(sourceFields) == 0 {
		return nil, errors.New("missing required field 'sourceFields'")
	}

	for name, path := range sourceFields {
		strPath, ok := path.(string)
		if !ok {
			return nil, fmt.Errorf("source field '%s' must map to a context path string", name)
		}

		step.SourceFields[name] = strPath
	}

	lookup, ok := config["lookup"].(map[string]any)
	if !ok {
		return nil, errors.New("missing required field 'lookup'")
	}

	step.Lookup.Profile, _ = lookup["profile"].(string)
	step.Lookup.URL, _ = lookup["url"].(string)
	step.Lookup.Path, _ = lookup["path"].(string)
	step.Lookup.Method, _ = lookup["method"].(string)

	if step.Lookup.Method == "" {
		step.Lookup.Method = http.MethodGet
	} else {
		step.Lookup.Method = strings.ToUpper(step.Lookup.Method)
	}

	if step.Lookup.URL == "" && step.Lookup.Path == "" {
		return nil, errors.New("lookup requires either 'url' or a profile 'path'")
	}

	if candidatesPath, ok := config["candidatesPath"].(string); ok {
		step.CandidatesPath = candidatesPath
	}

	if instructions, ok := config["instructions"].(string); ok {
		step.Instructions = instructions
	}

	if skip, ok := config["skipAiIfSingleResult"].(bool); ok {
		step.SkipAIIfSingleResult = skip
	}

	if fail, ok := config["failOnNoMatch"].(bool); ok {
		step.FailOnNoMatch = fail
	}

	if returnField, ok := config["returnFieldPath"].(string); ok {
		step.ReturnFieldPath = returnField
	}

	if mappings, ok := config["responseMappings"].(map[string]any); ok {
		for contextField, candidatePath := range mappings {
			if strPath, ok := candidatePath.(string); ok {
				step.ResponseMappings[contextField] = strPath
			}
		}
	}

	return step, nil
}

func (s *Step) Execute(ctx context.Context, run *models.Run, logger *slog.Logger) (*protocol.StepResult, error) {
	result := &protocol.StepResult{Output: map[string]any{}}

	// Phase 1: resolve source fields.
	source, sub := s.resolveSourceFields(run)
	result.SubSteps = append(result.SubSteps, sub)

	// Phase 2: candidate lookup.
	candidates, lookupSub, err := s.fetchCandidates(ctx, run)
	result.SubSteps = append(result.SubSteps, lookupSub)

	if err != nil {
		return result, err
	}

	// Phase 3: matching.
	matchIndex, matchSub, err := s.decide(ctx, source, candidates, logger)
	result.SubSteps = append(result.SubSteps, matchSub)

	if err != nil {
		return result, err
	}

	if matchIndex < 0 {
		if s.FailOnNoMatch {
			return result, fmt.Errorf("no candidate matched source fields %v", source)
		}

		run.Context[s.OutputVariable] = nil
		result.Output["matched"] = false

		return result, nil
	}

	candidate := candidates[matchIndex]

	matchedValue := any(candidate)
	if s.ReturnFieldPath != "" {
		if value, ok := template.Lookup(s.ReturnFieldPath, candidate); ok {
			matchedValue = value
		} else {
			matchedValue = nil
		}
	}

	run.Context[s.OutputVariable] = matchedValue

	for contextField, candidatePath := range s.ResponseMappings {
		if value, ok := template.Lookup(candidatePath, candidate); ok {
			run.Context[contextField] = value
		}
	}

	result.Output["matched"] = true
	result.Output["matchIndex"] = matchIndex
	result.Output[s.OutputVariable] = matchedValue

	return result, nil
}

func (s *Step) resolveSourceFields(run *models.Run) (map[string]any, protocol.SubStep) {
	started := time.Now()
	source := make(map[string]any, len(s.SourceFields))

	for name, path := range s.SourceFields {
		value, ok := template.Lookup(path, run.Context)
		if !ok {
			value = nil
		}

		source[name] = value
	}

	return source, protocol.SubStep{
		Label:       "Resolve source fields",
		Status:      models.StepStatusCompleted,
		Input:       map[string]any{"sourceFields": s.SourceFields},
		Output:      map[string]any{"resolved": source},
		StartedAt:   started,
		CompletedAt: time.Now(),
	}
}

func (s *Step) fetchCandidates(ctx context.Context, run *models.Run) ([]map[string]any, protocol.SubStep, error) {
	started := time.Now()

	sub := protocol.SubStep{
		Label:     "Candidate lookup",
		StartedAt: started,
	}

	url, headers, err := s.lookupTarget(run)
	if err != nil {
		sub.Status = models.StepStatusFailed
		sub.Error = err.Error()
		sub.CompletedAt = time.Now()

		return nil, sub, err
	}

	sub.Input = map[string]any{"url": url, "method": s.Lookup.Method}

	response, err := apicall.Do(ctx, s.client, apicall.Request{
		Method:  s.Lookup.Method,
		URL:     url,
		Headers: headers,
	})
	if err != nil {
		sub.Status = models.StepStatusFailed
		sub.Error = err.Error()
		sub.CompletedAt = time.Now()

		return nil, sub, err
	}

	run.LastAPIResponse = response.Body

	candidates, err := extractCandidates(response.Body, s.CandidatesPath)
	if err != nil {
		sub.Status = models.StepStatusFailed
		sub.Error = err.Error()
		sub.CompletedAt = time.Now()

		return nil, sub, err
	}

	sub.Status = models.StepStatusCompleted
	sub.Output = map[string]any{"candidateCount": len(candidates)}
	sub.CompletedAt = time.Now()

	return candidates, sub, nil
}

func (s *Step) lookupTarget(run *models.Run) (string, map[string]string, error) {
	if s.Lookup.URL != "" {
		return template.Resolve(s.Lookup.URL, run.Context), nil, nil
	}

	profileName := s.Lookup.Profile
	if profileName == "" {
		profileName = models.ProfileMain
	}

	profile, ok := s.profiles[profileName]
	if !ok || profile.BaseURL == "" {
		return "", nil, fmt.Errorf("API profile '%s' is not configured", profileName)
	}

	path := template.Resolve(s.Lookup.Path, run.Context)
	url := strings.TrimSuffix(profile.BaseURL, "/") + "/" + strings.TrimPrefix(path, "/")

	headers := make(map[string]string, len(profile.Headers)+1)
	for k, v := range profile.Headers {
		headers[k] = v
	}

	if profile.AuthHeader != "" && profile.AuthToken != "" {
		headers[profile.AuthHeader] = profile.AuthToken
	}

	return url, headers, nil
}

// decide picks the matching candidate index, or -1 for no match.
func (s *Step) decide(ctx context.Context, source map[string]any, candidates []map[string]any, logger *slog.Logger) (int, protocol.SubStep, error) {
	started := time.Now()

	sub := protocol.SubStep{
		Label:     "AI matching",
		StartedAt: started,
		Input: map[string]any{
			"source":         source,
			"candidateCount": len(candidates),
		},
	}

	if len(candidates) == 0 {
		sub.Status = models.StepStatusCompleted
		sub.Output = map[string]any{"matchIndex": -1, "reason": "no candidates returned by lookup"}
		sub.CompletedAt = time.Now()

		return -1, sub, nil
	}

	if len(candidates) == 1 && s.SkipAIIfSingleResult {
		sub.Status = models.StepStatusCompleted
		sub.Output = map[string]any{"matchIndex": 0, "shortcut": "single_result"}
		sub.CompletedAt = time.Now()

		return 0, sub, nil
	}

	prompt, err := s.buildPrompt(source, candidates)
	if err != nil {
		sub.Status = models.StepStatusFailed
		sub.Error = err.Error()
		sub.CompletedAt = time.Now()

		return -1, sub, err
	}

	raw, err := s.ai.Generate(ctx, []protocol.Part{protocol.TextPart(prompt)})
	if err != nil {
		sub.Status = models.StepStatusFailed
		sub.Error = err.Error()
		sub.CompletedAt = time.Now()

		return -1, sub, fmt.Errorf("AI matching call failed: %w", err)
	}

	decision, err := parseDecision(raw)
	if err != nil {
		sub.Status = models.StepStatusFailed
		sub.Error = err.Error()
		sub.CompletedAt = time.Now()

		return -1, sub, err
	}

	matchIndex := reconcileIndex(candidates, decision, logger)

	sub.Status = models.StepStatusCompleted
	sub.Output = map[string]any{
		"matchIndex": matchIndex,
		"claimed":    decision.MatchIndex,
		"confidence": decision.Confidence,
		"reason":     decision.Reason,
	}
	sub.CompletedAt = time.Now()

	return matchIndex, sub, nil
}

func (s *Step) buildPrompt(source map[string]any, candidates []map[string]any) (string, error) {
	sourceJSON, err := json.Marshal(source)
	if err != nil {
		return "", fmt.Errorf("failed to encode source fields: %w", err)
	}

	candidatesJSON, err := json.Marshal(candidates)
	if err != nil {
		return "", fmt.Errorf("failed to encode candidates: %w", err)
	}

	var b strings.Builder

	b.WriteString("You match a source record against candidate records.\n")

	if s.Instructions != "" {
		b.WriteString(s.Instructions)
		b.WriteString("\n")
	}

	b.WriteString("Source record:\n")
	b.Write(sourceJSON)
	b.WriteString("\nCandidates (zero-indexed):\n")
	b.Write(candidatesJSON)
	b.WriteString("\nRespond with ONLY a JSON object of the form " +
		`{"matchIndex": <int, -1 for no match>, "confidence": <0..1>, "reason": "<short>", "matchedFields": {<field>: <value>}}` +
		" and no other text.")

	return b.String(), nil
}

func extractCandidates(body any, candidatesPath string) ([]map[string]any, error) {
	value := body

	if candidatesPath != "" {
		obj, ok := body.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("lookup response is %T, cannot resolve candidates path '%s'", body, candidatesPath)
		}

		nested, ok := template.Lookup(candidatesPath, obj)
		if !ok {
			return nil, fmt.Errorf("candidates path '%s' not found in lookup response", candidatesPath)
		}

		value = nested
	}

	if value == nil {
		return nil, nil
	}

	arr, ok := value.([]any)
	if !ok {
		// A bare object counts as a single candidate.
		if obj, isObj := value.(map[string]any); isObj {
			return []map[string]any{obj}, nil
		}

		return nil, fmt.Errorf("candidates must be a JSON array, got %T", value)
	}

	candidates := make([]map[string]any, 0, len(arr))

	for i, item := range arr {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("candidate %d is %T, expected object", i, item)
		}

		candidates = append(candidates, obj)
	}

	return candidates, nil
}
