package barcode

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/loadbridge/loadbridge/pkg/protocol"
)

// Service matches incoming barcodes and queues the unmatched ones for manual
// indexing.
type Service struct {
	matcher *Matcher
	queue   protocol.ManualIndexQueue
	logger  *slog.Logger
}

func NewService(matcher *Matcher, queue protocol.ManualIndexQueue, logger *slog.Logger) *Service {
	return &Service{
		matcher: matcher,
		queue:   queue,
		logger:  logger.With("module", "barcode_service"),
	}
}

// Process decodes one barcode. Unmatched codes are enqueued and reported with
// queued=true; only a queue failure is an error.
func (s *Service) Process(ctx context.Context, code, filename, storagePath string) (*Match, bool, error) {
	match, matchErr := s.matcher.Match(code)
	if matchErr == nil {
		s.logger.InfoContext(ctx, "Matched barcode",
			"barcode", code, "document_type", match.DocumentTypeName, "detail_line", match.DetailLineID)

		return match, false, nil
	}

	s.logger.InfoContext(ctx, "Queueing unmatched barcode",
		"barcode", code, "reason", matchErr.Error())

	if s.queue == nil {
		return nil, false, fmt.Errorf("barcode did not match and no manual index queue is configured: %w", matchErr)
	}

	err := s.queue.Enqueue(ctx, &protocol.ManualIndexItem{
		Barcode:     code,
		Reason:      matchErr.Error(),
		Filename:    filename,
		StoragePath: storagePath,
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to queue barcode for manual indexing: %w", err)
	}

	return nil, true, nil
}
