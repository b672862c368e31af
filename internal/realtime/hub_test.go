package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubBroadcastsToClients(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.Notify("request.updated", int64(7), map[string]string{"status": "Approved"}, "alice")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var update struct {
		Type  string            `json:"type"`
		ID    int64             `json:"id"`
		Data  map[string]string `json:"data"`
		Actor string            `json:"actor"`
	}
	require.NoError(t, json.Unmarshal(msg, &update))
	assert.Equal(t, "request.updated", update.Type)
	assert.Equal(t, int64(7), update.ID)
	assert.Equal(t, "Approved", update.Data["status"])
	assert.Equal(t, "alice", update.Actor)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestNotifyNeverBlocks(t *testing.T) {
	hub := NewHub(nil)
	// Nothing drains the queue.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.Notify("batch.updated", i, nil, "")
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked with a full queue")
	}
}
