// Package queue provides the redis-backed manual-indexing queue. Barcodes
// that could not be matched to a document type are pushed here for a human to
// file instead of being dropped.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/loadbridge/loadbridge/pkg/protocol"
	redis "github.com/redis/go-redis/v9"
)

const defaultKey = "loadbridge:manual-index"

type Config struct {
	Addr     string
	Password string
	DB       string
	Key      string
}

type RedisQueue struct {
	client redis.UniversalClient
	key    string
	logger *slog.Logger
}

// NewRedisQueue connects to redis and verifies the connection with a ping.
func NewRedisQueue(ctx context.Context, config Config, logger *slog.Logger) (*RedisQueue, error) {
	addr := config.Addr
	if addr == "" {
		addr = "localhost:6379"
	}

	db := 0

	if config.DB != "" {
		var err error

		db, err = strconv.Atoi(config.DB)
		if err != nil {
			return nil, fmt.Errorf("invalid db value: %w", err)
		}
	}

	key := config.Key
	if key == "" {
		key = defaultKey
	}

	queue := &RedisQueue{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.Password,
			DB:       db,
		}),
		key:    key,
		logger: logger.With("module", "manual_index_queue", "key", key),
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := queue.client.Ping(pingCtx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	queue.logger.InfoContext(ctx, "Connected to Redis", "addr", addr, "db", db)

	return queue, nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, item *protocol.ManualIndexItem) error {
	if item == nil || item.Barcode == "" {
		return errors.New("manual index item requires a barcode")
	}

	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to encode manual index item: %w", err)
	}

	err = q.client.RPush(ctx, q.key, payload).Err()
	if err != nil {
		return fmt.Errorf("failed to enqueue manual index item: %w", err)
	}

	q.logger.InfoContext(ctx, "Queued barcode for manual indexing",
		"barcode", item.Barcode, "reason", item.Reason)

	return nil
}

// Dequeue blocks up to timeout for the next item. Returns nil when the queue
// stays empty.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*protocol.ManualIndexItem, error) {
	result, err := q.client.BLPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to pop manual index item: %w", err)
	}

	if len(result) < 2 {
		return nil, nil
	}

	var item protocol.ManualIndexItem

	err = json.Unmarshal([]byte(result[1]), &item)
	if err != nil {
		return nil, fmt.Errorf("malformed manual index item: %w", err)
	}

	return &item, nil
}

// Len reports the number of queued items.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	length, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue length: %w", err)
	}

	return length, nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
