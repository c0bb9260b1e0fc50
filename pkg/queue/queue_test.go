package queue

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/loadbridge/loadbridge/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisQueueRejectsInvalidDB(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	_, err := NewRedisQueue(context.Background(), Config{DB: "not-a-number"}, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid db value")
}

func TestEnqueueRequiresBarcode(t *testing.T) {
	t.Parallel()

	queue := &RedisQueue{logger: slog.Default()}

	err := queue.Enqueue(context.Background(), nil)
	require.Error(t, err)

	err = queue.Enqueue(context.Background(), &protocol.ManualIndexItem{Reason: "no type match"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "barcode")
}
