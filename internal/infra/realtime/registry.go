package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"sessiongate/internal/domain/entity"
	"sessiongate/internal/domain/service"

	"github.com/gorilla/websocket"
)

// Registry maps each user to the set of their live connections.
// Writes and closes run on a snapshot taken outside the lock.
type Registry struct {
	publisher service.EventPublisher
	logger    *slog.Logger

	mu    sync.RWMutex
	users map[string]map[*Connection]struct{}
}

var _ service.ConnectionRegistry = (*Registry)(nil)

// NewRegistry creates an empty registry that reports presence transitions to publisher.
func NewRegistry(publisher service.EventPublisher, logger *slog.Logger) *Registry {
	return &Registry{
		publisher: publisher,
		logger:    logger,
		users:     make(map[string]map[*Connection]struct{}),
	}
}

// Register adds conn. The user's first connection publishes an online change.
func (r *Registry) Register(ctx context.Context, conn *Connection) {
	r.mu.Lock()
	conns, ok := r.users[conn.UserID()]
	if !ok {
		conns = make(map[*Connection]struct{})
		r.users[conn.UserID()] = conns
	}
	conns[conn] = struct{}{}
	first := len(conns) == 1
	onlineCount := len(r.users)
	r.mu.Unlock()

	r.logger.DebugContext(ctx, "Connection registered",
		slog.String("user_id", conn.UserID()),
		slog.Int64("session_id", conn.SessionID()),
	)

	if first {
		r.publishPresence(ctx, entity.PresenceChange{UserID: conn.UserID(), Online: true, OnlineUserCount: onlineCount})
	}
}

// Unregister removes conn. Unknown connections are ignored. The user's last
// connection publishes an offline change.
func (r *Registry) Unregister(ctx context.Context, conn *Connection) {
	r.mu.Lock()
	conns, ok := r.users[conn.UserID()]
	if !ok {
		r.mu.Unlock()

		return
	}
	if _, ok := conns[conn]; !ok {
		r.mu.Unlock()

		return
	}
	delete(conns, conn)
	last := len(conns) == 0
	if last {
		delete(r.users, conn.UserID())
	}
	onlineCount := len(r.users)
	r.mu.Unlock()

	r.logger.DebugContext(ctx, "Connection unregistered",
		slog.String("user_id", conn.UserID()),
		slog.Int64("session_id", conn.SessionID()),
	)

	if last {
		r.publishPresence(ctx, entity.PresenceChange{UserID: conn.UserID(), Online: false, OnlineUserCount: onlineCount})
	}
}

func (r *Registry) publishPresence(ctx context.Context, change entity.PresenceChange) {
	if err := r.publisher.PublishPresenceChange(ctx, change); err != nil {
		r.logger.WarnContext(ctx, "Failed to publish presence change",
			slog.String("user_id", change.UserID),
			slog.Bool("online", change.Online),
			slog.Any("error", err),
		)
	}
}

func (r *Registry) CloseOne(userID string, sessionID int64, reason string) int {
	return r.closeMatching(userID, reason, func(c *Connection) bool {
		return c.SessionID() == sessionID
	})
}

func (r *Registry) CloseOthers(userID string, keepSessionID int64, reason string) int {
	return r.closeMatching(userID, reason, func(c *Connection) bool {
		return c.SessionID() != keepSessionID
	})
}

func (r *Registry) CloseAll(userID string, reason string) int {
	return r.closeMatching(userID, reason, func(*Connection) bool {
		return true
	})
}

func (r *Registry) closeMatching(userID, reason string, match func(*Connection) bool) int {
	closed := 0
	for _, conn := range r.snapshot(userID) {
		if !match(conn) {
			continue
		}

		if err := conn.ForceClose(CloseCodeForceLogout, reason); err != nil {
			r.logger.Debug("Force close incomplete",
				slog.String("user_id", userID),
				slog.Int64("session_id", conn.SessionID()),
				slog.Any("error", err),
			)
		}
		closed++
	}

	if closed > 0 {
		r.logger.Info("Connections force closed",
			slog.String("user_id", userID),
			slog.String("reason", reason),
			slog.Int("count", closed),
		)
	}

	return closed
}

func (r *Registry) SendToUser(userID string, msg any, exceptSessionID int64) int {
	conns := r.snapshot(userID)
	if exceptSessionID > 0 {
		filtered := conns[:0]
		for _, conn := range conns {
			if conn.SessionID() != exceptSessionID {
				filtered = append(filtered, conn)
			}
		}
		conns = filtered
	}

	return r.write(conns, msg)
}

func (r *Registry) Broadcast(msg any) int {
	return r.write(r.snapshotAll(), msg)
}

// write encodes msg once and fans it out. A connection that cannot be written
// to is dropped so its read loop ends and unregisters it.
func (r *Registry) write(conns []*Connection, msg any) int {
	if len(conns) == 0 {
		return 0
	}

	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("Failed to encode realtime message", slog.Any("error", err))

		return 0
	}

	sent := 0
	for _, conn := range conns {
		if err := conn.WriteText(data); err != nil {
			r.logger.Debug("Realtime write failed",
				slog.String("user_id", conn.UserID()),
				slog.Int64("session_id", conn.SessionID()),
				slog.Any("error", err),
			)
			_ = conn.Close()

			continue
		}
		sent++
	}

	return sent
}

func (r *Registry) OnlineUserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.users)
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.users[userID]) > 0
}

// Shutdown closes every connection with a going-away frame.
func (r *Registry) Shutdown() int {
	closed := 0
	for _, conn := range r.snapshotAll() {
		if err := conn.CloseGracefully(websocket.CloseGoingAway, "Server shutting down"); err == nil {
			closed++
		}
	}

	return closed
}

func (r *Registry) snapshot(userID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*Connection, 0, len(r.users[userID]))
	for conn := range r.users[userID] {
		conns = append(conns, conn)
	}

	return conns
}

func (r *Registry) snapshotAll() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var conns []*Connection
	for _, set := range r.users {
		for conn := range set {
			conns = append(conns, conn)
		}
	}

	return conns
}
