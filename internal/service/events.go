package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/BunsDev/shareconomy-nft-factory/internal/domain"
)

// Notifier delivers operator alerts for marketplace events. The concrete
// implementation lives in the notify package; services only need this one
// method.
type Notifier interface {
	NotifyEvent(ctx context.Context, ev domain.Event) error
}

// lockTTL bounds how long a per-asset lock can be held before it expires on
// its own. Engine operations are short; the TTL only matters if a replica
// dies mid-operation.
const lockTTL = 5 * time.Second

// publishEvent marshals an event and publishes it on the signal bus, then
// forwards it to the notifier when one is configured. Both are best-effort:
// the engine state is already committed, so failures are logged, never
// returned.
func publishEvent(ctx context.Context, bus domain.SignalBus, notifier Notifier, logger *slog.Logger, ev domain.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		logger.ErrorContext(ctx, "event marshal failed",
			slog.String("type", string(ev.Type)),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := bus.Publish(ctx, ev.Channel(), payload); err != nil {
		logger.WarnContext(ctx, "event publish failed",
			slog.String("type", string(ev.Type)),
			slog.String("channel", ev.Channel()),
			slog.String("error", err.Error()),
		)
	}

	if notifier != nil {
		if err := notifier.NotifyEvent(ctx, ev); err != nil {
			logger.WarnContext(ctx, "event notify failed",
				slog.String("type", string(ev.Type)),
				slog.String("error", err.Error()),
			)
		}
	}
}
