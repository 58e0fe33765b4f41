package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"rag-pipeline-console/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(logger.NewNopLogger())
	hub.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	go hub.Run()
	return hub
}

func recv(t *testing.T, ch chan []byte) map[string]interface{} {
	t.Helper()
	select {
	case data := <-ch:
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &m))
		return m
	case <-time.After(time.Second):
		t.Fatal("no frame received")
		return nil
	}
}

func TestHubSendStampsTimestamp(t *testing.T) {
	hub := startHub(t)
	c := &Client{Hub: hub, ID: "console-1", Send: make(chan []byte, 4)}
	hub.register <- c
	require.Eventually(t, func() bool { return hub.Connected("console-1") }, time.Second, time.Millisecond)

	hub.Send("console-1", map[string]interface{}{"type": "system_status"})
	hub.Send("console-1", map[string]interface{}{"type": "error", "timestamp": "kept"})
	hub.Send("someone-else", map[string]interface{}{"type": "system_status"})

	first := recv(t, c.Send)
	assert.Equal(t, "system_status", first["type"])
	assert.Equal(t, "2025-01-02T03:04:05Z", first["timestamp"])
	assert.Equal(t, "kept", recv(t, c.Send)["timestamp"])
	assert.Len(t, c.Send, 0)
}

func TestHubReplacesConnectionWithSameID(t *testing.T) {
	hub := startHub(t)
	first := &Client{Hub: hub, ID: "console", Send: make(chan []byte, 4)}
	second := &Client{Hub: hub, ID: "console", Send: make(chan []byte, 4)}

	hub.register <- first
	hub.register <- second

	_, open := <-first.Send
	assert.False(t, open)

	// the replaced connection going away must not drop the new one
	hub.unregister <- first
	hub.Send("console", map[string]interface{}{"type": "x"})
	assert.Equal(t, "x", recv(t, second.Send)["type"])
	assert.Equal(t, 1, hub.Count())

	hub.unregister <- second
	require.Eventually(t, func() bool { return hub.Count() == 0 }, time.Second, time.Millisecond)
}

func TestHubDispatchesInbound(t *testing.T) {
	hub := NewHub(logger.NewNopLogger())
	var gotID, gotRaw string
	hub.OnMessage(func(id string, raw []byte) {
		gotID, gotRaw = id, string(raw)
	})

	hub.dispatch("c1", []byte(`{"action":"get_status"}`))
	assert.Equal(t, "c1", gotID)
	assert.Equal(t, `{"action":"get_status"}`, gotRaw)
}
