// Package realtime tracks live websocket connections per user and session.
package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"sessiongate/internal/domain/message"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// CloseCodeForceLogout is the application close code sent when a session is revoked.
const CloseCodeForceLogout = 4001

var errConnectionClosed = errors.New("connection closed")

// Socket is the subset of *websocket.Conn the registry writes through.
type Socket interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

var _ Socket = (*websocket.Conn)(nil)

// Connection is one live websocket tagged with the user and session that opened it.
// gorilla/websocket allows a single concurrent writer, so every write holds mu.
type Connection struct {
	userID    string
	sessionID int64
	socket    Socket
	writeWait time.Duration

	mu     sync.Mutex
	closed bool
}

// NewConnection wraps socket for the given user and session.
func NewConnection(userID string, sessionID int64, socket Socket, writeWait time.Duration) *Connection {
	return &Connection{
		userID:    userID,
		sessionID: sessionID,
		socket:    socket,
		writeWait: writeWait,
	}
}

func (c *Connection) UserID() string {
	return c.userID
}

func (c *Connection) SessionID() int64 {
	return c.sessionID
}

// WriteText writes an already encoded text frame.
func (c *Connection) WriteText(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.writeLocked(websocket.TextMessage, data)
}

// WritePing sends a ping control frame.
func (c *Connection) WritePing() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errConnectionClosed
	}

	return c.socket.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeWait))
}

// ForceClose tells the client why it is being disconnected, sends the close
// frame and drops the socket. Every step is best-effort; the returned error is
// the first failure, if any.
func (c *Connection) ForceClose(code int, reason string) error {
	data, err := json.Marshal(message.NewForceLogout(reason))
	if err != nil {
		return errors.Wrap(err, "failed to encode force logout")
	}

	return c.closeWith(data, code, reason)
}

// CloseGracefully sends only the close frame before dropping the socket.
func (c *Connection) CloseGracefully(code int, reason string) error {
	return c.closeWith(nil, code, reason)
}

func (c *Connection) closeWith(notice []byte, code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errConnectionClosed
	}

	var firstErr error
	keep := func(err error) {
		if firstErr == nil && err != nil {
			firstErr = err
		}
	}

	if notice != nil {
		keep(c.writeLocked(websocket.TextMessage, notice))
	}
	keep(c.socket.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(c.writeWait),
	))
	keep(c.closeLocked())

	return firstErr
}

// Close drops the socket without a close handshake.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	return c.closeLocked()
}

func (c *Connection) writeLocked(messageType int, data []byte) error {
	if c.closed {
		return errConnectionClosed
	}

	if err := c.socket.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		return errors.Wrap(err, "failed to set write deadline")
	}

	return c.socket.WriteMessage(messageType, data)
}

func (c *Connection) closeLocked() error {
	c.closed = true

	return c.socket.Close()
}
