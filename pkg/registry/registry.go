// Package registry maps step type identifiers to their executor factories.
package registry

import (
	"fmt"
	"log/slog"

	"github.com/loadbridge/loadbridge/pkg/protocol"
)

type Registry struct {
	logger        *slog.Logger
	stepFactories map[string]protocol.StepFactory
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:        logger,
		stepFactories: make(map[string]protocol.StepFactory),
	}
}

func (r *Registry) RegisterStep(factory protocol.StepFactory) {
	r.stepFactories[factory.ID()] = factory
}

// CreateStep validates config against the factory's schema and builds the
// executor for a step type.
func (r *Registry) CreateStep(stepType string, config map[string]any) (protocol.Step, error) {
	factory, ok := r.stepFactories[stepType]
	if !ok {
		return nil, fmt.Errorf("step type '%s' not registered", stepType)
	}

	err := validateConfig(factory.Schema(), config)
	if err != nil {
		return nil, fmt.Errorf("invalid config for step type '%s': %w", stepType, err)
	}

	return factory.Create(config)
}

// StepTypes returns the registered step type identifiers.
func (r *Registry) StepTypes() []string {
	types := make([]string, 0, len(r.stepFactories))
	for stepType := range r.stepFactories {
		types = append(types, stepType)
	}

	return types
}

// Schema returns the config schema for a registered step type.
func (r *Registry) Schema(stepType string) (map[string]any, bool) {
	factory, ok := r.stepFactories[stepType]
	if !ok {
		return nil, false
	}

	return factory.Schema(), true
}
