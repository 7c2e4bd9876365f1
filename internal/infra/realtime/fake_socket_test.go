package realtime

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"sessiongate/internal/domain/entity"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type frame struct {
	messageType int
	data        []byte
}

// fakeSocket records every frame written to it.
type fakeSocket struct {
	mu       sync.Mutex
	frames   []frame
	closed   bool
	writeErr error
}

func (s *fakeSocket) WriteMessage(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writeErr != nil {
		return s.writeErr
	}
	if s.closed {
		return errors.New("use of closed socket")
	}
	s.frames = append(s.frames, frame{messageType: messageType, data: append([]byte(nil), data...)})

	return nil
}

func (s *fakeSocket) WriteControl(messageType int, data []byte, _ time.Time) error {
	return s.WriteMessage(messageType, data)
}

func (s *fakeSocket) SetWriteDeadline(time.Time) error {
	return nil
}

func (s *fakeSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true

	return nil
}

func (s *fakeSocket) snapshot() ([]frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]frame(nil), s.frames...), s.closed
}

func (s *fakeSocket) texts() []string {
	frames, _ := s.snapshot()

	var out []string
	for _, f := range frames {
		if f.messageType == websocket.TextMessage {
			out = append(out, string(f.data))
		}
	}

	return out
}

// fakePublisher records presence changes and never blocks.
type fakePublisher struct {
	mu       sync.Mutex
	presence []entity.PresenceChange
}

func (p *fakePublisher) PublishLoginEvent(context.Context, entity.LoginEvent) error {
	return nil
}

func (p *fakePublisher) PublishPresenceChange(_ context.Context, change entity.PresenceChange) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.presence = append(p.presence, change)

	return nil
}

func (p *fakePublisher) Close() error {
	return nil
}

func (p *fakePublisher) changes() []entity.PresenceChange {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]entity.PresenceChange(nil), p.presence...)
}
