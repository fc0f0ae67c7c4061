package http

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

	"github.com/telodyne/cdmavoice/internal/adapters/radiosim"
	"github.com/telodyne/cdmavoice/internal/config"
	"github.com/telodyne/cdmavoice/internal/core"
	"github.com/telodyne/cdmavoice/internal/tracker"
)

func newTestServer(t *testing.T) (*httptest.Server, *tracker.Tracker, *radiosim.Sim) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	sim := radiosim.New(8, 0)
	tr := tracker.New(sim, core.NewPhone("phone0"), tracker.Options{PollInterval: 10 * time.Millisecond})
	go func() { _ = tr.Run(ctx) }()

	cfg := &config.Config{Mode: "release"}
	srv := httptest.NewServer(SetupRouter(ctx, cfg, tr))
	t.Cleanup(srv.Close)
	return srv, tr, sim
}

func getSnapshot(t *testing.T, srv *httptest.Server) tracker.Snapshot {
	t.Helper()
	resp, err := http.Get(srv.URL + "/api/calls")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap tracker.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	return snap
}

// slotState is getSnapshot without test assertions, safe inside
// Eventually conditions.
func slotState(srv *httptest.Server, slot string) string {
	resp, err := http.Get(srv.URL + "/api/calls")
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	var snap tracker.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return ""
	}
	switch slot {
	case tracker.SlotRinging:
		return snap.Ringing.State
	case tracker.SlotBackground:
		return snap.Background.State
	default:
		return snap.Foreground.State
	}
}

func TestGetCallsIdle(t *testing.T) {
	srv, _, _ := newTestServer(t)

	snap := getSnapshot(t, srv)
	assert.Equal(t, "IDLE", snap.Ringing.State)
	assert.Equal(t, "IDLE", snap.Foreground.State)
	assert.Equal(t, "IDLE", snap.Background.State)
}

func TestDialEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/dial", "application/json", strings.NewReader(`{"number":"5550123"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		return slotState(srv, tracker.SlotForeground) == "DIALING"
	}, time.Second, 10*time.Millisecond)

	// A second dial while one is pending conflicts.
	resp, err = http.Post(srv.URL+"/api/dial", "application/json", strings.NewReader(`{"number":"5550124"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestDialBadRequest(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Post(srv.URL+"/api/dial", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHangupEndpoint(t *testing.T) {
	srv, _, sim := newTestServer(t)
	require.NoError(t, sim.Ring("5550199"))
	require.Eventually(t, func() bool {
		return slotState(srv, tracker.SlotRinging) == "INCOMING"
	}, time.Second, 10*time.Millisecond)

	resp, err := http.Post(srv.URL+"/api/calls/ringing/hangup", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		return slotState(srv, tracker.SlotRinging) == "IDLE"
	}, time.Second, 10*time.Millisecond)
}

func TestHangupErrors(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/calls/garage/hangup", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Hanging up an idle slot is a state conflict.
	resp, err = http.Post(srv.URL+"/api/calls/background/hangup", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestEventStream(t *testing.T) {
	srv, _, sim := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/events"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	// Give the handler a beat to register its subscription.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, sim.Ring("5550177"))

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	seen := map[tracker.EventType]bool{}
	for len(seen) < 2 {
		var ev tracker.Event
		require.NoError(t, ws.ReadJSON(&ev))
		seen[ev.Type] = true
	}
	assert.True(t, seen[tracker.EventCallState])
	assert.True(t, seen[tracker.EventRinging])
}
