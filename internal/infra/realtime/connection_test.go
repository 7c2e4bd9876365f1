package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sessiongate/internal/domain/service"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnection_WritesAfterCloseFail(t *testing.T) {
	socket := &fakeSocket{}
	conn := NewConnection("alice", 1, socket, testWriteWait)

	require.NoError(t, conn.WriteText([]byte(`{"type":"CHAT"}`)))
	require.NoError(t, conn.WritePing())
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	assert.ErrorIs(t, conn.WriteText([]byte("late")), errConnectionClosed)
	assert.ErrorIs(t, conn.WritePing(), errConnectionClosed)
	assert.ErrorIs(t, conn.ForceClose(CloseCodeForceLogout, "late"), errConnectionClosed)

	frames, _ := socket.snapshot()
	require.Len(t, frames, 2)
	assert.Equal(t, websocket.PingMessage, frames[1].messageType)
}

func TestRegistry_ForceCloseOverRealSocket(t *testing.T) {
	registry, _ := newTestRegistry()
	registered := make(chan struct{})
	unregistered := make(chan struct{})

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		conn := NewConnection("alice", 42, ws, testWriteWait)
		registry.Register(context.Background(), conn)
		close(registered)

		defer func() {
			registry.Unregister(context.Background(), conn)
			close(unregistered)
		}()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer client.Close()

	select {
	case <-registered:
	case <-time.After(2 * time.Second):
		t.Fatal("connection never registered")
	}

	assert.Equal(t, 1, registry.CloseOne("alice", 42, service.CloseReasonKicked))

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := client.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"FORCE_LOGOUT","reason":"Force Logout by Admin"}`, string(data))

	_, _, err = client.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, CloseCodeForceLogout, closeErr.Code)
	assert.Equal(t, service.CloseReasonKicked, closeErr.Text)

	select {
	case <-unregistered:
	case <-time.After(2 * time.Second):
		t.Fatal("connection never unregistered")
	}
	assert.False(t, registry.IsOnline("alice"))
}
