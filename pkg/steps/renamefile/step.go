// Package renamefile provides the rename_file step: computing a new logical
// filename from a template. Pure context mutation, no I/O.
package renamefile

import (
	"context"
	"errors"
	"log/slog"

	"github.com/loadbridge/loadbridge/pkg/models"
	"github.com/loadbridge/loadbridge/pkg/protocol"
	"github.com/loadbridge/loadbridge/pkg/template"
)

// ContextKey is where the computed filename is stored.
const ContextKey = "newFileName"

type Step struct {
	Template string
}

func NewStep(config map[string]any) (*Step, error) {
	tmpl, ok := config["template"].(string)
	if !ok || tmpl == "" {
		return nil, errors.New("missing required field 'template'")
	}

	return &Step{Template: tmpl}, nil
}

func (s *Step) Execute(ctx context.Context, run *models.Run, logger *slog.Logger) (*protocol.StepResult, error) {
	// The last API response and the format type are substitution sources
	// alongside the context itself.
	substitutions := run.Snapshot()

	if response, ok := run.LastAPIResponse.(map[string]any); ok {
		for k, v := range response {
			if _, exists := substitutions[k]; !exists {
				substitutions[k] = v
			}
		}

		substitutions["lastApiResponse"] = response
	}

	newName := template.Resolve(s.Template, substitutions)
	run.Context[ContextKey] = newName

	logger.InfoContext(ctx, "Renamed file", "new_file_name", newName)

	return &protocol.StepResult{
		Output: map[string]any{ContextKey: newName},
	}, nil
}
