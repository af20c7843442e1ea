// Package devtools is a minimal remote-debugging protocol client: one
// persistent websocket carrying JSON-RPC requests correlated by id, with
// unsolicited event notifications consumed by a single receive loop. Public
// calls are synchronous; the async transport is an implementation detail.
//
// Heap introspection failures must never abort profiling, so HeapUsage
// degrades to a zero-valued, connection_working=false reading instead of
// returning an error.
package devtools

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-rod/rod/lib/cdp"
	"github.com/gorilla/websocket"
	"github.com/ysmood/gson"

	"github.com/Lissy93/framework-benchmarks/resmon/metrics"
)

const (
	connectTimeout = 10 * time.Second
	connectBackoff = 250 * time.Millisecond
	commandTimeout = 10 * time.Second
	defaultNavWait = 3 * time.Second
)

// socket adapts a gorilla connection to rod's pluggable websocket interface,
// keeping explicit Close control for ordered teardown.
type socket struct {
	conn *websocket.Conn
}

func (s *socket) Send(b []byte) error {
	return s.conn.WriteMessage(websocket.TextMessage, b)
}

func (s *socket) Read() ([]byte, error) {
	_, b, err := s.conn.ReadMessage()
	return b, err
}

// Client is the protocol client for one sandboxed browser. One outstanding
// navigate-and-await-load is expected per connection; concurrent callers
// serialize through the wire client's single receive loop.
type Client struct {
	host       string
	port       int
	httpc      *http.Client
	logger     *slog.Logger
	navWait    time.Duration
	connectTTL time.Duration

	mu        sync.Mutex
	conn      *websocket.Conn
	wire      *cdp.Client
	loadFired chan struct{}
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithNavigationWait overrides the bounded load-event wait. Default: 3s.
func WithNavigationWait(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.navWait = d
		}
	}
}

// WithConnectTimeout overrides the overall connect deadline. Default: 10s.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.connectTTL = d
		}
	}
}

// New creates a Client for the control endpoint at host:port. Call Connect
// before issuing commands.
func New(host string, port int, opts ...Option) *Client {
	c := &Client{
		host:       host,
		port:       port,
		httpc:      &http.Client{Timeout: 5 * time.Second},
		logger:     slog.Default(),
		navWait:    defaultNavWait,
		connectTTL: connectTimeout,
		loadFired:  make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Connect probes the control endpoint (retrying while the browser boots,
// bounded by the connect timeout), resolves the target socket, and attaches
// the wire client.
func (c *Client) Connect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.connectTTL)
	defer cancel()

	var wsURL string
	for {
		var err error
		if wsURL, err = c.resolveSocket(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("devtools: connect: %w", err)
		case <-time.After(connectBackoff):
		}
	}

	dialer := &websocket.Dialer{HandshakeTimeout: c.connectTTL}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("devtools: dial %s: %w", wsURL, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.wire = cdp.New().Start(&socket{conn: conn})
	c.mu.Unlock()

	go c.pump()

	c.logger.Debug("devtools: connected", "url", wsURL)
	return nil
}

// pump is the single receive loop for unsolicited notifications. Load events
// are latched; everything else is drained and ignored so the pending
// request/response correlation is never disrupted.
func (c *Client) pump() {
	c.mu.Lock()
	wire := c.wire
	c.mu.Unlock()
	if wire == nil {
		return
	}
	for ev := range wire.Event() {
		if ev.Method == "Page.loadEventFired" {
			select {
			case c.loadFired <- struct{}{}:
			default:
			}
		}
	}
}

// Connected reports whether a wire client is attached.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wire != nil
}

// call issues one command and blocks until its correlated response or the
// per-command timeout.
func (c *Client) call(ctx context.Context, method string, params any) (gson.JSON, error) {
	c.mu.Lock()
	wire := c.wire
	c.mu.Unlock()
	if wire == nil {
		return gson.New(nil), fmt.Errorf("devtools: not connected")
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	res, err := wire.Call(ctx, "", method, params)
	if err != nil {
		return gson.New(nil), fmt.Errorf("devtools: %s: %w", method, err)
	}
	return gson.New(res), nil
}

// Navigate enables the required domains, issues the navigate command, and
// waits (bounded) for the load event. A missing load event is a soft
// success: it returns loaded=false with a nil error.
func (c *Client) Navigate(ctx context.Context, url string) (bool, error) {
	// Drain a stale load event from a previous navigation.
	select {
	case <-c.loadFired:
	default:
	}

	if _, err := c.call(ctx, "Page.enable", nil); err != nil {
		return false, err
	}
	if _, err := c.call(ctx, "Runtime.enable", nil); err != nil {
		return false, err
	}
	if _, err := c.call(ctx, "Page.navigate", map[string]string{"url": url}); err != nil {
		return false, err
	}

	select {
	case <-c.loadFired:
		return true, nil
	case <-time.After(c.navWait):
		c.logger.Debug("devtools: load event timeout, continuing", "url", url)
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Evaluate runs a script expression in the page and returns its value.
func (c *Client) Evaluate(ctx context.Context, expr string) (gson.JSON, error) {
	res, err := c.call(ctx, "Runtime.evaluate", map[string]any{
		"expression":    expr,
		"returnByValue": true,
	})
	if err != nil {
		return gson.New(nil), err
	}
	return res.Get("result").Get("value"), nil
}

// HeapUsage queries the script engine's heap through the performance domain,
// after a best-effort garbage collection for a tighter reading. Any failure
// degrades to a zero-valued, connection_working=false result.
func (c *Client) HeapUsage(ctx context.Context) metrics.HeapUsage {
	if !c.Connected() {
		return metrics.HeapUsage{}
	}

	if _, err := c.call(ctx, "Performance.enable", nil); err != nil {
		return metrics.HeapUsage{}
	}

	// Optional: collect garbage first. Failures here don't matter.
	if _, err := c.call(ctx, "HeapProfiler.enable", nil); err == nil {
		_, _ = c.call(ctx, "HeapProfiler.collectGarbage", nil)
	}

	res, err := c.call(ctx, "Performance.getMetrics", nil)
	if err != nil {
		return metrics.HeapUsage{}
	}

	usage := metrics.HeapUsage{ConnectionWorking: true}
	for _, m := range res.Get("metrics").Arr() {
		switch m.Get("name").Str() {
		case "JSHeapUsedSize":
			usage.UsedMB = m.Get("value").Num() / (1024 * 1024)
		case "JSHeapTotalSize":
			usage.TotalMB = m.Get("value").Num() / (1024 * 1024)
		}
	}
	return usage
}

// Close tears down the websocket. Safe to call on a never-connected or
// already-closed client; errors are swallowed because teardown must proceed
// to the remaining steps regardless.
func (c *Client) Close() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.wire = nil
	c.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			c.logger.Debug("devtools: close", "error", err)
		}
	}
}
