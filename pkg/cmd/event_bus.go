// Package cmd provides shared wiring helpers for the loadbridge binaries.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/loadbridge/loadbridge/pkg/channels/gochannel"
	"github.com/loadbridge/loadbridge/pkg/channels/kafka"
	"github.com/loadbridge/loadbridge/pkg/eventbus"
)

// NewEventBus builds the run event bus for the given provider. "kafka" is the
// production transport; "gochannel" keeps everything in-process for local
// single-binary setups.
func NewEventBus(provider, serviceName, kafkaBrokers string, logger *slog.Logger) (eventbus.EventBus, error) {
	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), serviceName, kafkaBrokers)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil

	case "gochannel":
		pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil

	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", provider)
	}
}
