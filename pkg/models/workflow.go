// Package models defines the core domain models for graph-based workflow execution.
package models

import (
	"fmt"
	"time"
)

// WorkflowType selects how the initial execution context is seeded and which
// record type execution logs are attached to.
type WorkflowType string

const (
	WorkflowTypeExtraction     WorkflowType = "extraction"
	WorkflowTypeTransformation WorkflowType = "transformation"
	WorkflowTypeImaging        WorkflowType = "imaging"
)

// Workflow is a directed graph of typed steps built by the visual editor.
type Workflow struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"       validate:"required,min=3"`
	Type      WorkflowType `json:"type"       validate:"required,oneof=extraction transformation imaging"`
	IsActive  bool         `json:"is_active"`
	Nodes     []*Node      `json:"nodes"`
	Edges     []*Edge      `json:"edges"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Validate checks the structural invariants of the graph: exactly one start
// node, unique node IDs and edges that reference existing nodes.
func (w *Workflow) Validate() error {
	startCount := 0
	nodeIDs := make(map[string]bool, len(w.Nodes))

	for _, node := range w.Nodes {
		if nodeIDs[node.ID] {
			return fmt.Errorf("duplicate node ID '%s'", node.ID)
		}

		nodeIDs[node.ID] = true

		if node.Kind == NodeKindStart {
			startCount++
		}
	}

	if startCount != 1 {
		return fmt.Errorf("workflow must have exactly one start node, found %d", startCount)
	}

	for _, edge := range w.Edges {
		if !nodeIDs[edge.SourceNodeID] {
			return fmt.Errorf("edge '%s' references unknown source node '%s'", edge.ID, edge.SourceNodeID)
		}

		if !nodeIDs[edge.TargetNodeID] {
			return fmt.Errorf("edge '%s' references unknown target node '%s'", edge.ID, edge.TargetNodeID)
		}
	}

	return nil
}

// StartNode returns the single start node of the workflow, if present.
func (w *Workflow) StartNode() (*Node, bool) {
	for _, node := range w.Nodes {
		if node.Kind == NodeKindStart {
			return node, true
		}
	}

	return nil, false
}

// NodeByID returns the node with the given ID, if present.
func (w *Workflow) NodeByID(id string) (*Node, bool) {
	for _, node := range w.Nodes {
		if node.ID == id {
			return node, true
		}
	}

	return nil, false
}
