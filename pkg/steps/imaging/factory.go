package imaging

import (
	"github.com/loadbridge/loadbridge/pkg/models"
	"github.com/loadbridge/loadbridge/pkg/protocol"
)

type Factory struct {
	store protocol.DocumentStore
}

func NewFactory(store protocol.DocumentStore) *Factory {
	return &Factory{store: store}
}

func (f *Factory) ID() string {
	return models.StepTypeImaging
}

func (f *Factory) Create(config map[string]any) (protocol.Step, error) {
	return NewStep(config, f.store)
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"mode": map[string]any{
				"type": "string",
				"enum": []string{ModePut, ModeGet},
			},
			"bucketId":       map[string]any{"type": "string"},
			"documentTypeId": map[string]any{"type": "string"},
			"detailLineId":   map[string]any{"type": "string"},
			"billNumber":     map[string]any{"type": "string"},
			"storagePath":    map[string]any{"type": "string"},
			"filename":       map[string]any{"type": "string"},
			"payloadSource":  map[string]any{"type": "string"},
		},
		"required": []string{"bucketId", "documentTypeId", "detailLineId"},
	}
}
