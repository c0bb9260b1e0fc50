package aidecision

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/loadbridge/loadbridge/pkg/template"
)

// Decision is the strict JSON verdict expected from the AI matcher.
type Decision struct {
	MatchIndex    int            `json:"matchIndex"`
	Confidence    float64        `json:"confidence"`
	Reason        string         `json:"reason"`
	MatchedFields map[string]any `json:"matchedFields,omitempty"`
}

// parseDecision parses the AI response after stripping any surrounding code
// fences. Malformed JSON is a step failure, not a crash.
func parseDecision(raw string) (*Decision, error) {
	cleaned := StripCodeFences(raw)

	var decision Decision

	err := json.Unmarshal([]byte(cleaned), &decision)
	if err != nil {
		return nil, fmt.Errorf("AI returned malformed decision JSON: %w", err)
	}

	return &decision, nil
}

// StripCodeFences removes a surrounding markdown code fence, with or without a
// language tag, from a model response.
func StripCodeFences(raw string) string {
	cleaned := strings.TrimSpace(raw)

	if !strings.HasPrefix(cleaned, "```") {
		return cleaned
	}

	cleaned = strings.TrimPrefix(cleaned, "```")

	if newline := strings.IndexByte(cleaned, '\n'); newline >= 0 {
		firstLine := strings.TrimSpace(cleaned[:newline])
		// Drop a language tag like "json" on the opening fence.
		if firstLine != "" && !strings.ContainsAny(firstLine, "{[") {
			cleaned = cleaned[newline+1:]
		}
	}

	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")

	return strings.TrimSpace(cleaned)
}

// reconcileIndex verifies that the claimed index actually corresponds to the
// AI's own matchedFields and auto-corrects it via exact or partial field match
// when inconsistent. Returns -1 for no match.
func reconcileIndex(candidates []map[string]any, decision *Decision, logger *slog.Logger) int {
	claimed := decision.MatchIndex

	if claimed < 0 || claimed >= len(candidates) {
		if claimed >= len(candidates) && len(decision.MatchedFields) > 0 {
			// Out-of-range claim; field matching may still recover it.
			if corrected := indexByFields(candidates, decision.MatchedFields); corrected >= 0 {
				logger.Warn("AI match index out of range, corrected via field match",
					"claimed", claimed, "corrected", corrected)

				return corrected
			}
		}

		return -1
	}

	if len(decision.MatchedFields) == 0 {
		return claimed
	}

	if fieldsMatch(candidates[claimed], decision.MatchedFields) == len(decision.MatchedFields) {
		return claimed
	}

	if corrected := indexByFields(candidates, decision.MatchedFields); corrected >= 0 && corrected != claimed {
		logger.Warn("AI match index inconsistent with its matched fields, corrected",
			"claimed", claimed, "corrected", corrected)

		return corrected
	}

	return claimed
}

// indexByFields finds the candidate whose fields best match the AI's claimed
// matchedFields: a unique exact match first, then a unique best partial match.
func indexByFields(candidates []map[string]any, matchedFields map[string]any) int {
	exactIndex := -1
	exactCount := 0

	bestIndex := -1
	bestScore := 0
	bestUnique := false

	for i, candidate := range candidates {
		score := fieldsMatch(candidate, matchedFields)

		if score == len(matchedFields) {
			exactIndex = i
			exactCount++
		}

		switch {
		case score > bestScore:
			bestIndex = i
			bestScore = score
			bestUnique = true
		case score == bestScore && score > 0:
			bestUnique = false
		}
	}

	if exactCount == 1 {
		return exactIndex
	}

	if bestScore > 0 && bestUnique {
		return bestIndex
	}

	return -1
}

// fieldsMatch counts how many of the matched fields agree with the candidate,
// comparing stringified values so numeric formatting differences don't count
// as mismatches.
func fieldsMatch(candidate map[string]any, matchedFields map[string]any) int {
	count := 0

	for field, expected := range matchedFields {
		actual, ok := template.Lookup(field, candidate)
		if !ok {
			continue
		}

		if template.Stringify(actual) == template.Stringify(expected) {
			count++
		}
	}

	return count
}
