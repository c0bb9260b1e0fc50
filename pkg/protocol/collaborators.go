package protocol

import (
	"context"
	"errors"

	"github.com/loadbridge/loadbridge/pkg/models"
)

// ErrDocumentNotFound is returned by DocumentStore.Get when no document
// exists for the key.
var ErrDocumentNotFound = errors.New("document not found")

// GraphSource fetches workflow definitions. The graph is read-only during
// traversal.
type GraphSource interface {
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
}

// LogSink persists execution and step logs. All methods are best-effort from
// the engine's point of view: their failures are logged and swallowed so a
// log write can never change the business outcome of a run.
type LogSink interface {
	CreateExecutionLog(ctx context.Context, log *models.ExecutionLog) error
	UpdateExecutionLog(ctx context.Context, log *models.ExecutionLog) error
	CreateStepLog(ctx context.Context, log *models.StepLog) error
}

// Part is one piece of generative-AI prompt content: either text or an inline
// binary document such as a PDF.
type Part struct {
	Text     string `json:"text,omitempty"`
	MIMEType string `json:"mime_type,omitempty"`
	Data     []byte `json:"data,omitempty"`
}

// TextPart builds a text-only prompt part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// AIClient returns a single text completion for a list of content parts.
// Callers are expected to parse the returned text themselves, stripping any
// surrounding code fences, and to treat malformed output as a step failure
// rather than a crash.
type AIClient interface {
	Generate(ctx context.Context, parts []Part) (string, error)
}

// Document is the imaging store's handle to a stored file.
type Document struct {
	DocumentID  string `json:"document_id"`
	StoragePath string `json:"storage_path"`
	DocumentURL string `json:"document_url"`
}

// DocumentStore files and retrieves documents keyed by bucket, document type
// and detail line.
type DocumentStore interface {
	Put(ctx context.Context, key DocumentKey, fileBytes []byte, filename string) (*Document, error)
	// Get returns the most recent document for the key, or ErrDocumentNotFound.
	Get(ctx context.Context, key DocumentKey) (*Document, error)
}

// DocumentKey identifies a document slot in the imaging store.
type DocumentKey struct {
	BucketID       string `json:"bucket_id"`
	DocumentTypeID string `json:"document_type_id"`
	DetailLineID   string `json:"detail_line_id"`
	BillNumber     string `json:"bill_number,omitempty"`
	StoragePath    string `json:"storage_path,omitempty"`
}

// MailMessage is one outbound email.
type MailMessage struct {
	To      []string `json:"to"`
	CC      []string `json:"cc,omitempty"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	HTML    bool     `json:"html,omitempty"`
}

// MailSender sends one email through a configured provider profile.
type MailSender interface {
	Send(ctx context.Context, profile string, msg *MailMessage) error
}

// FileTransfer uploads the current file payload to a remote destination.
type FileTransfer interface {
	Upload(ctx context.Context, remotePath string, data []byte) error
}

// GroupSource fetches the extracted fields of prior groups in a multi-page
// session, ordered by group ascending.
type GroupSource interface {
	PriorGroupFields(ctx context.Context, sessionID string, beforeGroup int) ([]map[string]any, error)
}

// ManualIndexQueue receives barcodes that could not be matched to a document
// type, so they are queued for manual indexing rather than silently dropped.
type ManualIndexQueue interface {
	Enqueue(ctx context.Context, item *ManualIndexItem) error
}

// ManualIndexItem is one unmatched barcode queued for a human to file.
type ManualIndexItem struct {
	Barcode     string `json:"barcode"`
	Reason      string `json:"reason"`
	Filename    string `json:"filename,omitempty"`
	StoragePath string `json:"storage_path,omitempty"`
}
