// Package file provides a JSON-file persistence implementation intended for
// local development and tests.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/loadbridge/loadbridge/pkg/models"
	"github.com/loadbridge/loadbridge/pkg/persistence"
)

// Persistence stores every entity as one JSON file under the root directory:
// workflows/{id}.json, executions/{id}.json, steps/{executionID}/{stepID}.json
// and groups/{sessionID}/{order}.json.
type Persistence struct {
	root string
	mu   sync.RWMutex
}

func NewPersistence(root string) (*Persistence, error) {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	for _, dir := range []string{"workflows", "executions", "steps", "groups"} {
		err := os.MkdirAll(filepath.Join(cleanRoot, dir), 0o755)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", dir, err)
		}
	}

	return &Persistence{root: cleanRoot}, nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	_, err := os.Stat(p.root)
	if err != nil {
		return fmt.Errorf("storage root unavailable: %w", err)
	}

	return nil
}

func (p *Persistence) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	files, err := fs.Glob(os.DirFS(filepath.Join(p.root, "workflows")), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow files: %w", err)
	}

	workflows := make([]*models.Workflow, 0, len(files))

	for _, file := range files {
		workflow := &models.Workflow{}

		err := p.readJSON(filepath.Join(p.root, "workflows", file), workflow)
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.After(workflows[j].CreatedAt)
	})

	return workflows, ctx.Err()
}

func (p *Persistence) WorkflowByID(_ context.Context, id string) (*models.Workflow, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	workflow := &models.Workflow{}

	err := p.readJSON(p.workflowPath(id), workflow)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, err
	}

	return workflow, nil
}

func (p *Persistence) SaveWorkflow(_ context.Context, workflow *models.Workflow) error {
	if workflow.ID == "" {
		return fmt.Errorf("workflow ID is required")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.writeJSON(p.workflowPath(workflow.ID), workflow)
}

func (p *Persistence) DeleteWorkflow(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := os.Remove(p.workflowPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
		}

		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}

	return nil
}

func (p *Persistence) CreateExecutionLog(_ context.Context, log *models.ExecutionLog) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.writeJSON(p.executionPath(log.ID), log)
}

func (p *Persistence) UpdateExecutionLog(_ context.Context, log *models.ExecutionLog) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, err := os.Stat(p.executionPath(log.ID))
	if err != nil {
		if os.IsNotExist(err) {
			return persistence.ErrExecutionLogNotFound
		}

		return fmt.Errorf("failed to stat execution log %s: %w", log.ID, err)
	}

	return p.writeJSON(p.executionPath(log.ID), log)
}

func (p *Persistence) CreateStepLog(_ context.Context, log *models.StepLog) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	dir := filepath.Join(p.root, "steps", log.ExecutionLogID)

	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return fmt.Errorf("failed to create step log directory: %w", err)
	}

	return p.writeJSON(filepath.Join(dir, log.ID+".json"), log)
}

func (p *Persistence) ExecutionLogByID(_ context.Context, id string) (*models.ExecutionLog, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	log := &models.ExecutionLog{}

	err := p.readJSON(p.executionPath(id), log)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrExecutionLogNotFound
		}

		return nil, err
	}

	return log, nil
}

func (p *Persistence) ExecutionLogsByWorkflowID(_ context.Context, workflowID string, limit int) ([]*models.ExecutionLog, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	files, err := fs.Glob(os.DirFS(filepath.Join(p.root, "executions")), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list execution log files: %w", err)
	}

	logs := make([]*models.ExecutionLog, 0)

	for _, file := range files {
		log := &models.ExecutionLog{}

		err := p.readJSON(filepath.Join(p.root, "executions", file), log)
		if err != nil {
			return nil, err
		}

		if log.WorkflowID == workflowID {
			logs = append(logs, log)
		}
	}

	sort.Slice(logs, func(i, j int) bool {
		return logs[i].StartedAt.After(logs[j].StartedAt)
	})

	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}

	return logs, nil
}

func (p *Persistence) StepLogsByExecutionID(_ context.Context, executionLogID string) ([]*models.StepLog, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	dir := filepath.Join(p.root, "steps", executionLogID)

	files, err := fs.Glob(os.DirFS(dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list step log files: %w", err)
	}

	logs := make([]*models.StepLog, 0, len(files))

	for _, file := range files {
		log := &models.StepLog{}

		err := p.readJSON(filepath.Join(dir, file), log)
		if err != nil {
			return nil, err
		}

		logs = append(logs, log)
	}

	sort.Slice(logs, func(i, j int) bool {
		return logs[i].StartedAt.Before(logs[j].StartedAt)
	})

	return logs, nil
}

func (p *Persistence) SaveGroupFields(_ context.Context, sessionID string, groupOrder int, fields map[string]any) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	dir := filepath.Join(p.root, "groups", sessionID)

	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return fmt.Errorf("failed to create group directory: %w", err)
	}

	return p.writeJSON(filepath.Join(dir, strconv.Itoa(groupOrder)+".json"), fields)
}

func (p *Persistence) PriorGroupFields(_ context.Context, sessionID string, beforeGroup int) ([]map[string]any, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	dir := filepath.Join(p.root, "groups", sessionID)

	files, err := fs.Glob(os.DirFS(dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list group files: %w", err)
	}

	orders := make([]int, 0, len(files))

	for _, file := range files {
		order, err := strconv.Atoi(strings.TrimSuffix(file, ".json"))
		if err != nil {
			continue
		}

		if order < beforeGroup {
			orders = append(orders, order)
		}
	}

	sort.Ints(orders)

	groups := make([]map[string]any, 0, len(orders))

	for _, order := range orders {
		fields := make(map[string]any)

		err := p.readJSON(filepath.Join(dir, strconv.Itoa(order)+".json"), &fields)
		if err != nil {
			return nil, err
		}

		groups = append(groups, fields)
	}

	return groups, nil
}

func (p *Persistence) workflowPath(id string) string {
	return filepath.Join(p.root, "workflows", id+".json")
}

func (p *Persistence) executionPath(id string) string {
	return filepath.Join(p.root, "executions", id+".json")
}

func (p *Persistence) readJSON(path string, target any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return err
		}

		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	err = json.Unmarshal(data, target)
	if err != nil {
		return fmt.Errorf("malformed JSON in %s: %w", path, err)
	}

	return nil
}

func (p *Persistence) writeJSON(path string, source any) error {
	data, err := json.MarshalIndent(source, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}

	err = os.WriteFile(path, data, 0o600)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}
