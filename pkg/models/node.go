package models

// NodeKind separates the singular start marker from configured steps.
type NodeKind string

const (
	NodeKindStart NodeKind = "start"
	NodeKindStep  NodeKind = "step"
)

// Step type identifiers. One executor is registered per identifier.
const (
	StepTypeAPICall           = "api_call"
	StepTypeAPIEndpoint       = "api_endpoint"
	StepTypeConditionalCheck  = "conditional_check"
	StepTypeRenameFile        = "rename_file"
	StepTypeSFTPUpload        = "sftp_upload"
	StepTypeEmailAction       = "email_action"
	StepTypeMultipartUpload   = "multipart_form_upload"
	StepTypeAIDecision        = "ai_decision"
	StepTypeImaging           = "imaging"
	StepTypeReadEmail         = "read_email"
)

// Node is one vertex in a workflow graph.
type Node struct {
	ID         string   `json:"id"          validate:"required"`
	WorkflowID string   `json:"workflow_id"`
	Kind       NodeKind `json:"kind"        validate:"required,oneof=start step"`

	// Step fields; empty for start nodes.
	StepType                 string         `json:"step_type,omitempty"`
	Label                    string         `json:"label"`
	Config                   map[string]any `json:"config,omitempty"`
	EscapeSingleQuotesInBody bool           `json:"escape_single_quotes_in_body,omitempty"`
	UserResponseTemplate     string         `json:"user_response_template,omitempty"`
}

// IsStart reports whether the node is the graph's start marker.
func (n *Node) IsStart() bool {
	return n.Kind == NodeKindStart
}
