// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/mfget/mfget/pkg/mediafire"
)

type fixedStats struct {
	mu   sync.Mutex
	snap mediafire.Snapshot
}

func (f *fixedStats) Snapshot() mediafire.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fixedStats) set(s mediafire.Snapshot) {
	f.mu.Lock()
	f.snap = s
	f.mu.Unlock()
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg WSMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

// readUntil skips messages of other types.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) WSMessage {
	t.Helper()
	for {
		if msg := readMessage(t, conn); msg.Type == msgType {
			return msg
		}
	}
}

func startServer(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv := New(cfg)
	srv.Start(ctx)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func TestWSHub_BroadcastWithoutClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewWSHub(nil)
	go hub.Run(ctx)

	hub.Broadcast("test", map[string]string{"key": "value"})
	hub.BroadcastEvent(map[string]string{"event": "test"})
	require.Equal(t, 0, hub.ClientCount())
}

func TestWebSocketInitAndStats(t *testing.T) {
	stats := &fixedStats{snap: mediafire.Snapshot{TotalFiles: 4, TotalSize: 200}}
	srv, ts := startServer(t, Config{Version: "1.2.3", Interval: 20 * time.Millisecond})
	srv.Attach(stats, "run-1", "https://www.mediafire.com/folder/abc")

	conn := dial(t, ts)

	init := readMessage(t, conn)
	require.Equal(t, "init", init.Type)
	data := init.Data.(map[string]any)
	require.Equal(t, "1.2.3", data["version"])
	require.Equal(t, "run-1", data["run"])
	require.EqualValues(t, 4, data["stats"].(map[string]any)["totalFiles"])

	stats.set(mediafire.Snapshot{TotalFiles: 4, TotalSize: 200, DownloadedFiles: 1, DownloadedBytes: 100})
	for {
		msg := readUntil(t, conn, "stats")
		if msg.Data.(map[string]any)["percent"] == float64(50) {
			break
		}
	}
}

func TestWebSocketForwardsFileEvents(t *testing.T) {
	srv, ts := startServer(t, Config{Interval: time.Hour})
	conn := dial(t, ts)
	require.Equal(t, "init", readMessage(t, conn).Type)
	require.Eventually(t, func() bool { return srv.wsHub.ClientCount() == 1 }, 5*time.Second, 5*time.Millisecond)

	progress := srv.Progress()
	progress(mediafire.ProgressEvent{Event: "file_progress", Path: "a", Bytes: 10})
	progress(mediafire.ProgressEvent{Event: "file_done", Path: "a"})

	msg := readMessage(t, conn)
	require.Equal(t, "event", msg.Type)
	require.Equal(t, "file_done", msg.Data.(map[string]any)["event"])
}

func TestWebSocketClosedOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := New(Config{})
	srv.Start(ctx)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dial(t, ts)
	require.Equal(t, "init", readMessage(t, conn).Type)
	require.Eventually(t, func() bool { return srv.wsHub.ClientCount() == 1 }, 5*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	require.Equal(t, 0, srv.wsHub.ClientCount())
}
