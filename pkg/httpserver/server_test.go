package httpserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/moltbot/molt-treasury/internal/runstate"
	"github.com/moltbot/molt-treasury/pkg/healthprobe"
)

type stubState struct {
	snap *runstate.Snapshot
	err  error
}

func (s *stubState) Load(context.Context) (*runstate.Snapshot, error) {
	return s.snap, s.err
}

type stubHistory struct {
	snaps     []*runstate.Snapshot
	err       error
	lastLimit int
}

func (s *stubHistory) Recent(_ context.Context, limit int) ([]*runstate.Snapshot, error) {
	s.lastLimit = limit
	return s.snaps, s.err
}

func sampleSnapshot() *runstate.Snapshot {
	return &runstate.Snapshot{
		RunID:         "run-1",
		LastRun:       "2026-03-01T12:00:00.000Z",
		Claimed:       runstate.Claimed{Primary: "100", Secondary: "50"},
		Buyback:       runstate.Buyback{SecondaryIn: "50", PrimaryOut: "1000"},
		Restaked:      "1100",
		TotalUSDValue: "61.0000",
		APR:           42.5,
		Tweeted:       true,
	}
}

func serve(t *testing.T, server *Server, path string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	return w.Result()
}

func newServer(state StateLoader, history HistoryReader) *Server {
	return New(&Config{
		Port:          "0",
		Logger:        zap.NewNop(),
		HealthChecker: healthprobe.New(),
		State:         state,
		History:       history,
	})
}

func TestNew(t *testing.T) {
	hc := healthprobe.New()
	logger := zap.NewNop()

	server := New(&Config{Port: "8080", Logger: logger, HealthChecker: hc})
	if server.server == nil {
		t.Fatal("New() server.server is nil")
	}
	if server.logger != logger {
		t.Error("New() logger not set correctly")
	}
	if server.healthChecker != hc {
		t.Error("New() healthChecker not set correctly")
	}
	if server.server.Addr != ":8080" {
		t.Errorf("Addr = %s, want :8080", server.server.Addr)
	}
}

func TestHealthAndReadyEndpoints(t *testing.T) {
	hc := healthprobe.New()
	server := New(&Config{Port: "0", Logger: zap.NewNop(), HealthChecker: hc})

	resp := serve(t, server, "/health")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200", resp.StatusCode)
	}

	resp = serve(t, server, "/ready")
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("ready status before SetReady = %d, want 503", resp.StatusCode)
	}

	hc.SetReady(true)
	resp = serve(t, server, "/ready")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("ready status after SetReady = %d, want 200", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	resp := serve(t, newServer(nil, nil), "/metrics")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics status = %d, want 200", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if len(body) == 0 {
		t.Error("metrics endpoint returned empty body")
	}
}

func TestStateEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		state      *stubState
		wantStatus int
		wantError  string
	}{
		{name: "snapshot", state: &stubState{snap: sampleSnapshot()}, wantStatus: http.StatusOK},
		{
			name:       "no state yet",
			state:      &stubState{err: runstate.ErrNoState},
			wantStatus: http.StatusNotFound,
			wantError:  "no run state recorded",
		},
		{
			name:       "load failure",
			state:      &stubState{err: errors.New("corrupt")},
			wantStatus: http.StatusInternalServerError,
			wantError:  "failed to load run state",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := serve(t, newServer(tt.state, nil), "/api/state")
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %s", ct)
			}
			if tt.wantStatus != http.StatusOK {
				var errResp ErrorResponse
				if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Error != tt.wantError {
					t.Errorf("expected error %q, got %+v (%v)", tt.wantError, errResp, err)
				}
				return
			}

			var snap runstate.Snapshot
			if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if snap.Restaked != "1100" || snap.TotalUSDValue != "61.0000" || !snap.Tweeted {
				t.Errorf("unexpected snapshot: %+v", snap)
			}
		})
	}
}

func TestHistoryEndpoint(t *testing.T) {
	history := &stubHistory{snaps: []*runstate.Snapshot{sampleSnapshot(), sampleSnapshot()}}
	server := newServer(&stubState{snap: sampleSnapshot()}, history)

	resp := serve(t, server, "/api/history")
	var snaps []runstate.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snaps); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || len(snaps) != 2 {
		t.Errorf("status = %d, rows = %d", resp.StatusCode, len(snaps))
	}
	if history.lastLimit != defaultHistoryLimit {
		t.Errorf("limit = %d, want %d", history.lastLimit, defaultHistoryLimit)
	}

	resp = serve(t, server, "/api/history?limit=5")
	resp.Body.Close()
	if history.lastLimit != 5 {
		t.Errorf("limit = %d, want 5", history.lastLimit)
	}

	for _, bad := range []string{"0", "-1", "abc", "501"} {
		resp = serve(t, server, "/api/history?limit="+bad)
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("limit=%s status = %d, want 400", bad, resp.StatusCode)
		}
	}

	history.err = errors.New("db down")
	resp = serve(t, server, "/api/history")
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("failing history status = %d, want 500", resp.StatusCode)
	}
}

func TestHistoryEndpoint_EmptyIsArray(t *testing.T) {
	resp := serve(t, newServer(&stubState{}, &stubHistory{}), "/api/history")
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "[]\n" {
		t.Errorf("body = %q, want []", body)
	}
}

func TestStateRoutes_OnlyWithStore(t *testing.T) {
	server := newServer(nil, nil)

	for _, path := range []string{"/api/state", "/api/history"} {
		resp := serve(t, server, path)
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s status = %d, want 404", path, resp.StatusCode)
		}
	}

	// History route is not mounted when history is disabled.
	resp := serve(t, newServer(&stubState{snap: sampleSnapshot()}, nil), "/api/history")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("history without reader = %d, want 404", resp.StatusCode)
	}
}

func TestServer_StartAndShutdown(t *testing.T) {
	server := newServer(nil, nil)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- server.Start()
	}()

	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}

	select {
	case err := <-serverDone:
		if err != nil {
			t.Errorf("Start() returned error after shutdown: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after shutdown")
	}
}

func TestServer_Timeouts(t *testing.T) {
	server := newServer(nil, nil)

	if server.server.ReadTimeout != 15*time.Second {
		t.Errorf("ReadTimeout = %v", server.server.ReadTimeout)
	}
	if server.server.ReadHeaderTimeout != 10*time.Second {
		t.Errorf("ReadHeaderTimeout = %v", server.server.ReadHeaderTimeout)
	}
	if server.server.WriteTimeout != 15*time.Second {
		t.Errorf("WriteTimeout = %v", server.server.WriteTimeout)
	}
	if server.server.IdleTimeout != 60*time.Second {
		t.Errorf("IdleTimeout = %v", server.server.IdleTimeout)
	}
}
