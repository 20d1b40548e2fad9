// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mfget/mfget/internal/metrics"
	"github.com/mfget/mfget/pkg/mediafire"
)

func TestHealth(t *testing.T) {
	srv := New(Config{Version: "0.9.0"})
	srv.Attach(&fixedStats{}, "r1", "link")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "ok", body["status"])
	require.Equal(t, "0.9.0", body["version"])
	require.Equal(t, "r1", body["run"])
}

func TestStats(t *testing.T) {
	srv := New(Config{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/stats", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	srv.Attach(&fixedStats{snap: mediafire.Snapshot{
		TotalFiles: 3, TotalSize: 2048, DownloadedFiles: 1, DownloadedBytes: 512, Failed: 1,
	}}, "r", "")

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, 3, resp.TotalFiles)
	require.Equal(t, 2, resp.Done)
	require.Equal(t, 25.0, resp.Percent)
	require.Equal(t, "2.00 KB", resp.TotalSizeText)
	require.Equal(t, "512.00 B", resp.DownloadedText)
}

func TestPercentClamped(t *testing.T) {
	resp := newStatsResponse(mediafire.Snapshot{TotalSize: 10, DownloadedBytes: 30})
	require.Equal(t, 100.0, resp.Percent)
	require.Zero(t, newStatsResponse(mediafire.Snapshot{}).Percent)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := New(Config{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/api/stats", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORS(t *testing.T) {
	srv := New(Config{AllowedOrigins: []string{"http://dash.local"}})

	req := httptest.NewRequest("OPTIONS", "/api/stats", nil)
	req.Header.Set("Origin", "http://dash.local")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "http://dash.local", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest("GET", "/api/health", nil)
	req.Header.Set("Origin", "http://evil.local")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsRoute(t *testing.T) {
	m := metrics.New()
	srv := New(Config{Metrics: m})
	srv.Progress()(mediafire.ProgressEvent{Event: "plan_item", Total: 5})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	require.Contains(t, string(body), "mfget_files_planned_total 1")

	rec = httptest.NewRecorder()
	New(Config{}).Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeShutsDown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	srv := New(Config{})
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/api/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestDashboard(t *testing.T) {
	srv := New(Config{})
	for path, want := range map[string]string{
		"/":          "<title>mfget</title>",
		"/app.js":    "/api/ws",
		"/style.css": "#fill",
	} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
		require.Contains(t, rec.Body.String(), want, path)
	}
}
