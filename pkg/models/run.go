package models

// Run is the mutable state threaded through one traversal. It is created once
// per invocation and discarded at the end; only logged snapshots persist.
type Run struct {
	ExecutionID string
	WorkflowID  string
	Mode        WorkflowType

	// Context is the untyped mutable bag every step reads from and writes to.
	// Field names come from user-configured extraction schemas at runtime, so
	// its shape is not statically known.
	Context map[string]any

	// LastAPIResponse is whatever the most recent api_call, api_endpoint or
	// ai_decision lookup produced. It is carried explicitly here because
	// several step types read it positionally.
	LastAPIResponse any
}

// Snapshot returns a shallow copy of the context for logging. Steps keep
// mutating the live map after the snapshot is taken.
func (r *Run) Snapshot() map[string]any {
	snapshot := make(map[string]any, len(r.Context))
	for k, v := range r.Context {
		snapshot[k] = v
	}

	return snapshot
}
