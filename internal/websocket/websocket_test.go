package websocket

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPastTense(t *testing.T) {
	assert.Equal(t, "created", pastTense("create"))
	assert.Equal(t, "updated", pastTense("update"))
	assert.Equal(t, "linked", pastTense("link"))
	assert.Equal(t, "imported", pastTense("import"))
	assert.Equal(t, "export", pastTense("export"))
}

func TestNilHub(t *testing.T) {
	var h *Hub
	assert.Equal(t, 0, h.Clients())
	h.BroadcastChange("job", "update", "J-1")
}

func TestBroadcastReachesClient(t *testing.T) {
	hub := NewHub(zap.NewNop())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn, _, err := ws.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.BroadcastChange("job", "update", "J-2024-101")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var evt Event
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, "job_updated", evt.Type)
	assert.Equal(t, "update", evt.Action)
	assert.Equal(t, "J-2024-101", evt.ID)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}
