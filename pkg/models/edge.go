package models

// Routing handles. Every non-branching step exits through DefaultHandle;
// conditional_check exits through SuccessHandle or FailureHandle.
const (
	DefaultHandle = "default"
	SuccessHandle = "success"
	FailureHandle = "failure"
)

// Edge is a directed, handle-tagged connection between two nodes.
type Edge struct {
	ID           string `json:"id"             validate:"required"`
	WorkflowID   string `json:"workflow_id"`
	SourceNodeID string `json:"source_node_id" validate:"required"`
	TargetNodeID string `json:"target_node_id" validate:"required"`
	SourceHandle string `json:"source_handle"`
	TargetHandle string `json:"target_handle"` // cosmetic, not used for routing
	Label        string `json:"label"`
	Animated     bool   `json:"animated"` // cosmetic, editor-only
}

// Handle returns the effective source handle, defaulting to "default".
func (e *Edge) Handle() string {
	if e.SourceHandle == "" {
		return DefaultHandle
	}

	return e.SourceHandle
}
