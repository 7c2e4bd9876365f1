package realtime

import (
	"context"
	"log/slog"

	"sessiongate/internal/domain/service"

	"go.uber.org/fx"
)

// RegistryParams holds dependencies for the Registry, injected by Fx
type RegistryParams struct {
	fx.In

	Lc        fx.Lifecycle
	Publisher service.EventPublisher
	Logger    *slog.Logger
}

// NewConnectionRegistry creates the process-wide Registry and drops every
// connection on shutdown.
func NewConnectionRegistry(params RegistryParams) *Registry {
	registry := NewRegistry(params.Publisher, params.Logger)

	params.Lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			closed := registry.Shutdown()
			params.Logger.InfoContext(ctx, "Realtime connections closed", slog.Int("count", closed))

			return nil
		},
	})

	return registry
}

// Module provides the connection registry
//
//nolint:gochecknoglobals
var Module = fx.Options(
	fx.Provide(
		NewConnectionRegistry,
		func(registry *Registry) service.ConnectionRegistry { return registry },
	),
)
