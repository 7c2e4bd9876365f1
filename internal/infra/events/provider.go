package events

import (
	"context"
	"log/slog"

	"sessiongate/config"
	"sessiongate/internal/domain/service"

	"go.uber.org/fx"
)

// BusParams holds dependencies for the Bus, injected by Fx
type BusParams struct {
	fx.In

	Lc     fx.Lifecycle
	Config *config.Config
	Logger *slog.Logger
}

// NewEventBus creates the process-wide Bus and closes it on shutdown.
func NewEventBus(params BusParams) *Bus {
	bus := NewBus(params.Config.Events.BufferSize, params.Logger)

	params.Lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			params.Logger.InfoContext(ctx, "Closing event bus")

			return bus.Close()
		},
	})

	return bus
}

// Module provides the event bus under both of its interfaces
//
//nolint:gochecknoglobals
var Module = fx.Options(
	fx.Provide(
		NewEventBus,
		func(bus *Bus) service.EventPublisher { return bus },
		func(bus *Bus) service.EventSubscriber { return bus },
	),
)
