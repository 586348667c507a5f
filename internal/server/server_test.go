package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/ahbrosha/tiny-bots/internal/store"
	"github.com/prometheus/client_golang/prometheus"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// syncRecorder is an httptest.ResponseRecorder safe to read while the SSE
// handler is still writing.
type syncRecorder struct {
	mu  sync.Mutex
	rec *httptest.ResponseRecorder
}

func newSyncRecorder() *syncRecorder {
	return &syncRecorder{rec: httptest.NewRecorder()}
}

func (s *syncRecorder) Header() http.Header { return s.rec.Header() }

func (s *syncRecorder) Write(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Write(b)
}

func (s *syncRecorder) WriteHeader(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.WriteHeader(code)
}

func (s *syncRecorder) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.Flush()
}

func (s *syncRecorder) Body() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Body.String()
}

func TestHandleStatus(t *testing.T) {
	st := store.NewMemoryStore(store.VendorStatus{Name: "Alternate"}, store.VendorStatus{Name: "NBB"})
	st.SetWatch(store.WatchStatus{Name: "Ryzen 5 5600X", State: "polling", Cycle: 3, Phase: "sleeping"})
	st.UpdateVendor(store.VendorStatus{Name: "Alternate", Outcome: "unavailable", StatusCode: 200})

	srv := NewServer(st, ":0", nil, nil, "", testLogger())

	rec := httptest.NewRecorder()
	srv.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var snap store.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if snap.Watch.Cycle != 3 || snap.Watch.State != "polling" {
		t.Errorf("watch = %+v, want cycle 3 polling", snap.Watch)
	}
	if len(snap.Vendors) != 2 || snap.Vendors[0].Name != "Alternate" || snap.Vendors[1].Name != "NBB" {
		t.Errorf("vendors = %+v, want [Alternate NBB]", snap.Vendors)
	}
}

func TestHandleStatus_MethodNotAllowed(t *testing.T) {
	srv := NewServer(store.NewMemoryStore(), ":0", nil, nil, "", testLogger())

	rec := httptest.NewRecorder()
	srv.handleStatus(rec, httptest.NewRequest(http.MethodPost, "/api/status", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestHandleSSE_StreamsSnapshots(t *testing.T) {
	st := store.NewMemoryStore()
	st.SetWatch(store.WatchStatus{Name: "RTX 3080", State: "polling"})

	srv := NewServer(st, ":0", nil, nil, "", testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil).WithContext(ctx)
	rec := newSyncRecorder()

	done := make(chan struct{})
	go func() {
		srv.handleSSE(rec, req)
		close(done)
	}()

	// give handler time to subscribe
	time.Sleep(50 * time.Millisecond)
	st.SetWatch(store.WatchStatus{Name: "RTX 3080", State: "done", Label: "NVIDIA"})
	time.Sleep(50 * time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("handler did not exit after context cancellation")
	}

	body := rec.Body()
	if !strings.Contains(body, `"state":"polling"`) {
		t.Errorf("response should contain the initial snapshot, got: %s", body)
	}
	if !strings.Contains(body, `"label":"NVIDIA"`) {
		t.Errorf("response should contain the streamed update, got: %s", body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
}

func TestHandleSSE_ServerShutdown(t *testing.T) {
	srv := NewServer(store.NewMemoryStore(), ":0", nil, nil, "", testLogger())

	// request context derived from the server context, as BaseContext does
	serverCtx, serverCancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil).WithContext(serverCtx)

	done := make(chan struct{})
	go func() {
		srv.handleSSE(newSyncRecorder(), req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	serverCancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not exit after server shutdown")
	}
}

// nonFlushWriter is a ResponseWriter without http.Flusher.
type nonFlushWriter struct {
	header http.Header
	code   int
}

func (n *nonFlushWriter) Header() http.Header {
	if n.header == nil {
		n.header = make(http.Header)
	}
	return n.header
}

func (n *nonFlushWriter) Write(b []byte) (int, error) { return len(b), nil }

func (n *nonFlushWriter) WriteHeader(statusCode int) { n.code = statusCode }

func TestHandleSSE_SSENotSupported(t *testing.T) {
	srv := NewServer(store.NewMemoryStore(), ":0", nil, nil, "", testLogger())

	w := &nonFlushWriter{}
	srv.handleSSE(w, httptest.NewRequest(http.MethodGet, "/api/sse", nil))

	if w.code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.code)
	}
}

func TestServer_MetricsAndHealth(t *testing.T) {
	reg := prometheus.NewRegistry()
	checks := prometheus.NewCounter(prometheus.CounterOpts{Name: "tinybots_test_checks_total", Help: "test"})
	reg.MustRegister(checks)
	checks.Inc()

	srv := NewServer(store.NewMemoryStore(), ":0", nil, reg, "", testLogger())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "tinybots_test_checks_total 1") {
		t.Errorf("/metrics body missing counter, got: %s", body)
	}

	resp, err = http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/healthz status = %d, want 200", resp.StatusCode)
	}
}

func TestServer_NoMetricsWithoutGatherer(t *testing.T) {
	srv := NewServer(store.NewMemoryStore(), ":0", nil, nil, "", testLogger())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("/metrics status = %d, want 404", resp.StatusCode)
	}
}

func TestServer_SSEIntegration(t *testing.T) {
	st := store.NewMemoryStore()
	srv := NewServer(st, "127.0.0.1:0", nil, nil, "", testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr().String() + "/api/sse")
	if err != nil {
		t.Fatalf("GET /api/sse error = %v", err)
	}
	defer resp.Body.Close()

	go func() {
		time.Sleep(50 * time.Millisecond)
		st.SetWatch(store.WatchStatus{Name: "Watch", State: "polling", Cycle: 7})
	}()

	scanner := bufio.NewScanner(resp.Body)
	deadline := time.After(2 * time.Second)
	found := make(chan bool, 1)
	go func() {
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var snap store.Snapshot
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &snap); err != nil {
				continue
			}
			if snap.Watch.Cycle == 7 {
				found <- true
				return
			}
		}
	}()

	select {
	case <-found:
	case <-deadline:
		t.Fatal("did not receive streamed snapshot")
	}
}

func TestStart_AddrInUse_ReturnsError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}
	defer ln.Close()

	srv := NewServer(store.NewMemoryStore(), ln.Addr().String(), nil, nil, "", testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err == nil {
		t.Error("Start() expected error for address in use, got nil")
	}
}

func dashboardFS() fs.FS {
	return fstest.MapFS{
		"assets/index.html": &fstest.MapFile{Data: []byte("<title>{{.Title}}</title>")},
	}
}

func TestHandleDashboard_Title(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"custom", "RTX 3080 watch", "<title>RTX 3080 watch</title>"},
		{"default", "", "<title>tinybots</title>"},
		{"escaped", "<script>", "<title>&lt;script&gt;</title>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(store.NewMemoryStore(), ":0", dashboardFS(), nil, tt.title, testLogger())

			rec := httptest.NewRecorder()
			srv.handleDashboard(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			if got := rec.Body.String(); got != tt.want {
				t.Errorf("body = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHandleDashboard_NonRootPath(t *testing.T) {
	srv := NewServer(store.NewMemoryStore(), ":0", dashboardFS(), nil, "", testLogger())

	rec := httptest.NewRecorder()
	srv.handleDashboard(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
