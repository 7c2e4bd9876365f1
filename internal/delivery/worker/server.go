// Package worker runs the background jobs that sit beside the API server.
package worker

import (
	"context"
	"log/slog"
	"sync"

	"sessiongate/config"
	"sessiongate/internal/delivery"
	"sessiongate/internal/domain/lifecycle"
	"sessiongate/internal/errors"
	"sessiongate/internal/usecase"

	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
)

type workerServer struct {
	cfg      *config.Config
	logger   *slog.Logger
	janitor  usecase.SessionJanitor
	notifier usecase.PresenceNotifier
	cron     *cron.Cron

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

// ServerParams holds dependencies for the worker server
type ServerParams struct {
	fx.In

	Lc       fx.Lifecycle
	Cfg      *config.Config
	Logger   *slog.Logger
	Janitor  usecase.SessionJanitor
	Notifier usecase.PresenceNotifier
}

// NewServer creates the worker that schedules the session janitor and runs
// the presence notifier.
func NewServer(params ServerParams) (delivery.Delivery, error) {
	srv := &workerServer{
		cfg:      params.Cfg,
		logger:   params.Logger,
		janitor:  params.Janitor,
		notifier: params.Notifier,
		cron:     cron.New(),
	}

	if params.Cfg.Janitor.Enabled {
		if _, err := srv.cron.AddFunc(params.Cfg.Janitor.Schedule, srv.sweep); err != nil {
			return nil, errors.Wrapf(err, "invalid janitor schedule %q", params.Cfg.Janitor.Schedule)
		}
	}

	params.Lc.Append(fx.Hook{
		OnStop: srv.stop,
	})

	return srv, nil
}

// Serve starts the scheduler and blocks on the presence notifier until stop.
func (s *workerServer) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopped := make(chan struct{})
	defer close(stopped)

	s.mu.Lock()
	s.cancel = cancel
	s.stopped = stopped
	s.mu.Unlock()

	s.logger.Info("Starting worker",
		slog.Bool("janitor_enabled", s.cfg.Janitor.Enabled),
		slog.String("janitor_schedule", s.cfg.Janitor.Schedule),
	)
	s.cron.Start()

	if err := s.notifier.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return errors.WithStack(err)
	}

	return nil
}

func (s *workerServer) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), lifecycle.DefaultTimeout)
	defer cancel()

	if _, err := s.janitor.Sweep(ctx, s.cfg.Janitor.RetentionDays); err != nil {
		s.logger.Error("Session sweep failed", slog.Any("error", err))
	}
}

// stop waits for a running sweep and for the notifier loop to return.
func (s *workerServer) stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, lifecycle.DefaultTimeout)
	defer cancel()

	s.logger.Info("Shutting down worker")

	s.mu.Lock()
	cancelNotifier, notifierDone := s.cancel, s.stopped
	s.mu.Unlock()

	waits := []<-chan struct{}{s.cron.Stop().Done()}
	if cancelNotifier != nil {
		cancelNotifier()
		waits = append(waits, notifierDone)
	}

	for _, done := range waits {
		select {
		case <-done:
		case <-shutdownCtx.Done():
			return errors.WithStack(shutdownCtx.Err())
		}
	}

	return nil
}
