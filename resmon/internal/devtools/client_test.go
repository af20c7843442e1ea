package devtools

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeCDP is a minimal control endpoint + debugging socket. It answers every
// command with an id-correlated empty result, interleaves a noise event
// before each response, and optionally fires Page.loadEventFired after a
// navigate command.
type fakeCDP struct {
	t          *testing.T
	srv        *httptest.Server
	fireLoad   bool
	delayList  atomic.Int32 // targets appear only after /json/new
	pageCalled atomic.Bool
}

func newFakeCDP(t *testing.T, fireLoad, emptyTargets bool) *fakeCDP {
	t.Helper()
	f := &fakeCDP{t: t, fireLoad: fireLoad}
	if emptyTargets {
		f.delayList.Store(1)
	}

	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()

	mux.HandleFunc("/json/version", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"webSocketDebuggerUrl": f.wsURL("/devtools/browser/b0"),
		})
	})
	mux.HandleFunc("/json/list", func(w http.ResponseWriter, r *http.Request) {
		if f.delayList.Load() > 0 {
			w.Write([]byte("[]"))
			return
		}
		json.NewEncoder(w).Encode([]map[string]string{
			{"type": "background_page", "webSocketDebuggerUrl": f.wsURL("/devtools/page/bg")},
			{"type": "page", "webSocketDebuggerUrl": f.wsURL("/devtools/page/p1")},
		})
	})
	mux.HandleFunc("/json/new", func(w http.ResponseWriter, r *http.Request) {
		f.delayList.Store(0)
		w.Write([]byte("{}"))
	})
	mux.HandleFunc("/devtools/page/p1", func(w http.ResponseWriter, r *http.Request) {
		f.pageCalled.Store(true)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		f.serve(conn)
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeCDP) wsURL(path string) string {
	u, _ := url.Parse(f.srv.URL)
	return "ws://" + u.Host + path
}

func (f *fakeCDP) hostPort() (string, int) {
	u, _ := url.Parse(f.srv.URL)
	host, portStr, _ := net.SplitHostPort(u.Host)
	port, _ := strconv.Atoi(portStr)
	return host, port
}

func (f *fakeCDP) serve(conn *websocket.Conn) {
	for {
		var req struct {
			ID     int             `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		if err := conn.ReadJSON(&req); err != nil {
			return
		}

		// Unrelated notification interleaved before the pending response;
		// the client must buffer/ignore it without losing correlation.
		conn.WriteJSON(map[string]any{"method": "Network.requestWillBeSent", "params": map[string]any{}})

		result := map[string]any{}
		switch req.Method {
		case "Runtime.evaluate":
			result["result"] = map[string]any{"type": "number", "value": 42}
		case "Performance.getMetrics":
			result["metrics"] = []map[string]any{
				{"name": "Timestamp", "value": 123456.7},
				{"name": "JSHeapUsedSize", "value": 16 * 1024 * 1024},
				{"name": "JSHeapTotalSize", "value": 64 * 1024 * 1024},
			}
		}
		conn.WriteJSON(map[string]any{"id": req.ID, "result": result})

		if req.Method == "Page.navigate" && f.fireLoad {
			conn.WriteJSON(map[string]any{"method": "Page.loadEventFired", "params": map[string]any{"timestamp": 1.0}})
		}
	}
}

func newClient(t *testing.T, f *fakeCDP, opts ...Option) *Client {
	t.Helper()
	host, port := f.hostPort()
	opts = append(opts, WithConnectTimeout(2*time.Second))
	c := New(host, port, opts...)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestConnect_PrefersPageTarget(t *testing.T) {
	f := newFakeCDP(t, true, false)
	c := newClient(t, f)
	if !c.Connected() {
		t.Fatal("not connected")
	}
	if !f.pageCalled.Load() {
		t.Error("client should attach to the page-type target's socket")
	}
}

func TestConnect_CreatesBlankPageWhenNoTargets(t *testing.T) {
	f := newFakeCDP(t, true, true)
	newClient(t, f)
	if f.delayList.Load() != 0 {
		t.Error("client should have requested a blank page via /json/new")
	}
}

func TestNavigate_LoadEventFired(t *testing.T) {
	f := newFakeCDP(t, true, false)
	c := newClient(t, f)

	loaded, err := c.Navigate(context.Background(), "http://127.0.0.1:3000/")
	if err != nil {
		t.Fatalf("navigate: %v", err)
	}
	if !loaded {
		t.Error("expected load event to be observed")
	}
}

func TestNavigate_TimeoutIsSoftSuccess(t *testing.T) {
	f := newFakeCDP(t, false, false)
	c := newClient(t, f, WithNavigationWait(100*time.Millisecond))

	loaded, err := c.Navigate(context.Background(), "http://127.0.0.1:3000/")
	if err != nil {
		t.Fatalf("navigation timeout must not be an error, got: %v", err)
	}
	if loaded {
		t.Error("no load event was sent, loaded should be false")
	}
}

func TestEvaluate_ReturnsValueDespiteNoiseEvents(t *testing.T) {
	f := newFakeCDP(t, true, false)
	c := newClient(t, f)

	v, err := c.Evaluate(context.Background(), "6*7")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if v.Int() != 42 {
		t.Errorf("value: got %v, want 42", v.Int())
	}
}

func TestHeapUsage_FromPerformanceMetrics(t *testing.T) {
	f := newFakeCDP(t, true, false)
	c := newClient(t, f)

	h := c.HeapUsage(context.Background())
	if !h.ConnectionWorking {
		t.Fatal("connection_working should be true")
	}
	if h.UsedMB != 16 || h.TotalMB != 64 {
		t.Errorf("heap: got used=%v total=%v, want 16/64", h.UsedMB, h.TotalMB)
	}
}

func TestHeapUsage_NotConnected(t *testing.T) {
	c := New("127.0.0.1", 1)
	h := c.HeapUsage(context.Background())
	if h.ConnectionWorking {
		t.Fatal("connection_working must be false on a nonexistent connection")
	}
	if h.UsedMB != 0 || h.TotalMB != 0 {
		t.Errorf("heap fields must be zero: %+v", h)
	}
}

func TestHeapUsage_AfterClose(t *testing.T) {
	f := newFakeCDP(t, true, false)
	c := newClient(t, f)
	c.Close()

	h := c.HeapUsage(context.Background())
	if h.ConnectionWorking {
		t.Fatal("connection_working must be false after close")
	}
}

func TestEvaluate_NotConnected(t *testing.T) {
	c := New("127.0.0.1", 1)
	if _, err := c.Evaluate(context.Background(), "1"); err == nil {
		t.Fatal("expected error on unconnected client")
	}
}

func TestConnect_TimeoutBoundsStalledHandshake(t *testing.T) {
	// A socket endpoint that accepts the TCP connection but never answers
	// the upgrade. The configured connect timeout must bound the handshake.
	stall, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { stall.Close() })
	go func() {
		for {
			conn, err := stall.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
		}
	}()
	stallWS := "ws://" + stall.Addr().String() + "/devtools/page/p1"

	mux := http.NewServeMux()
	mux.HandleFunc("/json/version", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"webSocketDebuggerUrl": stallWS})
	})
	mux.HandleFunc("/json/list", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]string{
			{"type": "page", "webSocketDebuggerUrl": stallWS},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	u, _ := url.Parse(srv.URL)
	host, portStr, _ := net.SplitHostPort(u.Host)
	port, _ := strconv.Atoi(portStr)

	c := New(host, port, WithConnectTimeout(250*time.Millisecond))
	start := time.Now()
	if err := c.Connect(context.Background()); err == nil {
		t.Fatal("expected connect error against a stalled handshake")
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("connect not bounded by configured timeout: took %v", elapsed)
	}
}

func TestConnect_ControlUnreachable(t *testing.T) {
	c := New("127.0.0.1", 1, WithConnectTimeout(300*time.Millisecond))
	if err := c.Connect(context.Background()); err == nil {
		t.Fatal("expected connect error against a dead port")
	}
}
