package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utkarsh5026/threadpool/pool"
)

func newSizeServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/1k":
			w.Header().Set("Content-Length", "1024")
		case "/5m":
			w.Header().Set("Content-Length", "5242880")
		case "/slow":
			time.Sleep(300 * time.Millisecond)
			w.Header().Set("Content-Length", "1")
		case "/missing":
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestContentLength(t *testing.T) {
	srv := newSizeServer(t)

	n, err := contentLength(context.Background(), srv.URL+"/1k")
	require.NoError(t, err)
	assert.Equal(t, int64(1024), n)

	_, err = contentLength(context.Background(), srv.URL+"/missing")
	assert.ErrorContains(t, err, "404")
}

func TestRun_ProbesAllURLs(t *testing.T) {
	srv := newSizeServer(t)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"--progress=false", "--workers", "2", "--timeout", "100ms",
		srv.URL + "/1k", srv.URL + "/5m", srv.URL + "/missing", srv.URL + "/slow",
	}, &stdout, &stderr)

	assert.Equal(t, 1, code, "failures give a non-zero exit code")
	out := stdout.String()
	assert.Contains(t, out, "1.0 KiB")
	assert.Contains(t, out, "5.0 MiB")
	assert.Contains(t, out, "404")
	assert.Contains(t, out, "timed")
	assert.Contains(t, out, "2 probed")
	assert.Contains(t, out, "2 failed")
}

func TestRun_InvalidConfig(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--log-level", "loud", "https://example.com"}, &stdout, &stderr)
	assert.Equal(t, 2, code)
	assert.True(t, strings.Contains(stderr.String(), "LogLevel"), stderr.String())
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1 << 30, "1.0 GiB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatBytes(tt.in))
	}
}

func TestConsume_DrainsBufferedEvents(t *testing.T) {
	events := make(chan pool.Message, 3)
	for _, e := range []string{"start", "end", "start"} {
		events <- pool.Message{Event: e}
	}
	batchDone := make(chan struct{})
	close(batchDone)

	var got []string
	consume(events, batchDone, func(m pool.Message) { got = append(got, m.Event) })

	assert.Equal(t, []string{"start", "end", "start"}, got)
}
