package api

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/modelwatch/modelwatch/internal/config"
	"github.com/modelwatch/modelwatch/internal/progress"
)

// readFrame returns the next non-empty SSE line from the stream.
func readFrame(t *testing.T, scanner *bufio.Scanner) string {
	t.Helper()
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			return line
		}
	}
	return ""
}

// readDataFrame skips heartbeat comment frames and decodes the next data
// frame. Heartbeats may interleave anywhere, so consumers (and this test
// helper) must ignore them.
func readDataFrame(t *testing.T, scanner *bufio.Scanner) progress.Record {
	t.Helper()
	for {
		line := readFrame(t, scanner)
		if strings.HasPrefix(line, ":") {
			continue
		}
		require.True(t, strings.HasPrefix(line, "data: "), "expected data frame, got %q", line)
		var rec progress.Record
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &rec))
		return rec
	}
}

// TestStreamReplayThenTerminal subscribes while a download is in flight and
// expects the replayed record, further updates, then stream close on the
// terminal record.
func TestStreamReplayThenTerminal(t *testing.T) {
	t.Parallel()

	srv, tracker, _ := newTestServer(t, config.Config{})
	tracker.Update("whisper-base", 25, 100, "model.bin")

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/models/whisper-base/progress/stream")
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)

	rec := readDataFrame(t, scanner)
	require.Equal(t, progress.StatusDownloading, rec.Status)
	require.InDelta(t, 25.0, rec.Percent, 0.001)

	tracker.Update("whisper-base", 90, 100, "model.bin")
	rec = readDataFrame(t, scanner)
	require.InDelta(t, 90.0, rec.Percent, 0.001)

	tracker.MarkComplete("whisper-base")
	rec = readDataFrame(t, scanner)
	require.Equal(t, progress.StatusComplete, rec.Status)
	require.InDelta(t, 100.0, rec.Percent, 0.001)

	// The terminal record ends the stream.
	require.Empty(t, readFrame(t, scanner), "stream must close after terminal record")
	require.Eventually(t, func() bool {
		return tracker.ListenerCount("whisper-base") == 0
	}, time.Second, 10*time.Millisecond)
}

// TestStreamSkipsStaleTerminalRecord: a subscriber arriving after completion
// sees heartbeats, never the stale complete record.
func TestStreamSkipsStaleTerminalRecord(t *testing.T) {
	t.Parallel()

	srv, tracker, _ := newTestServer(t, config.Config{})
	tracker.Update("old-model", 100, 100, "")
	tracker.MarkComplete("old-model")

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/models/old-model/progress/stream")
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()

	scanner := bufio.NewScanner(resp.Body)
	require.Equal(t, ": heartbeat", readFrame(t, scanner))
}

// TestStreamErrorRecordCarriesReason: the error frame includes the failure
// message and closes the stream.
func TestStreamErrorRecordCarriesReason(t *testing.T) {
	t.Parallel()

	srv, tracker, _ := newTestServer(t, config.Config{})
	tracker.Update("m", 10, 100, "")

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/models/m/progress/stream")
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()

	scanner := bufio.NewScanner(resp.Body)
	_ = readDataFrame(t, scanner) // replay

	tracker.MarkError("m", "connection reset")
	rec := readDataFrame(t, scanner)
	require.Equal(t, progress.StatusError, rec.Status)
	require.Equal(t, "connection reset", rec.Error)
	require.Empty(t, readFrame(t, scanner), "stream must close after terminal record")
}

// TestStreamClientDisconnect: closing the client connection deregisters the
// subscriber.
func TestStreamClientDisconnect(t *testing.T) {
	t.Parallel()

	srv, tracker, _ := newTestServer(t, config.Config{})
	tracker.Update("m", 1, 10, "")

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/models/m/progress/stream")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return tracker.ListenerCount("m") == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, resp.Body.Close())
	require.Eventually(t, func() bool {
		return tracker.ListenerCount("m") == 0
	}, 2*time.Second, 10*time.Millisecond)
}
