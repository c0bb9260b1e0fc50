package web

import (
	"github.com/loadbridge/loadbridge/pkg/models"
)

// CreateWorkflowRequest is the payload for creating or replacing a workflow
// graph.
type CreateWorkflowRequest struct {
	ID       string              `json:"id"`
	Name     string              `json:"name"      validate:"required,min=1,max=255"`
	Type     models.WorkflowType `json:"type"      validate:"required,oneof=extraction transformation imaging"`
	IsActive *bool               `json:"is_active"`
	Nodes    []*models.Node      `json:"nodes"     validate:"required,min=1,dive"`
	Edges    []*models.Edge      `json:"edges"     validate:"dive"`
}

// BarcodeRequest is one scanned barcode submitted for imaging intake.
type BarcodeRequest struct {
	Barcode     string `json:"barcode"      validate:"required"`
	Filename    string `json:"filename"`
	StoragePath string `json:"storage_path"`
}

// BarcodeResponse reports whether the barcode matched a document type or was
// queued for manual indexing.
type BarcodeResponse struct {
	Matched          bool   `json:"matched"`
	Queued           bool   `json:"queued,omitempty"`
	DocumentTypeID   string `json:"document_type_id,omitempty"`
	DocumentTypeName string `json:"document_type_name,omitempty"`
	DetailLineID     string `json:"detail_line_id,omitempty"`
}

// EnqueueRunResponse acknowledges an async run request.
type EnqueueRunResponse struct {
	EventID    string `json:"event_id"`
	WorkflowID string `json:"workflow_id"`
	Status     string `json:"status"`
}
