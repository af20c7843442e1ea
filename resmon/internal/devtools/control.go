package devtools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// targetInfo is one entry of the control endpoint's target list.
type targetInfo struct {
	Type                 string `json:"type"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

func (c *Client) controlURL(path string) string {
	return fmt.Sprintf("http://%s:%d%s", c.host, c.port, path)
}

func (c *Client) controlGet(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.controlURL(path), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("devtools: control %s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// browserSocket returns the top-level browser websocket URL. Also serves as
// the liveness probe: Chrome answers /json/version as soon as the debug
// port is up.
func (c *Client) browserSocket(ctx context.Context) (string, error) {
	var v struct {
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := c.controlGet(ctx, http.MethodGet, "/json/version", &v); err != nil {
		return "", err
	}
	return v.WebSocketDebuggerURL, nil
}

func (c *Client) listTargets(ctx context.Context) ([]targetInfo, error) {
	var targets []targetInfo
	if err := c.controlGet(ctx, http.MethodGet, "/json/list", &targets); err != nil {
		return nil, err
	}
	return targets, nil
}

// createBlankPage asks the control endpoint for a fresh about:blank target.
// Chrome 111+ requires PUT on /json/new; older builds accept GET, so the
// fallback keeps both working.
func (c *Client) createBlankPage(ctx context.Context) error {
	if err := c.controlGet(ctx, http.MethodPut, "/json/new?about:blank", nil); err == nil {
		return nil
	}
	return c.controlGet(ctx, http.MethodGet, "/json/new?about:blank", nil)
}

// resolveSocket picks the websocket to attach to: prefer a page-type target,
// creating a blank page when the target list is empty, and fall back to the
// top-level browser socket.
func (c *Client) resolveSocket(ctx context.Context) (string, error) {
	browserWS, err := c.browserSocket(ctx)
	if err != nil {
		return "", fmt.Errorf("devtools: control endpoint unreachable: %w", err)
	}

	targets, err := c.listTargets(ctx)
	if err != nil {
		return "", fmt.Errorf("devtools: list targets: %w", err)
	}

	if len(targets) == 0 {
		if err := c.createBlankPage(ctx); err != nil {
			c.logger.Warn("devtools: create blank page failed", "error", err)
		}
		if targets, err = c.listTargets(ctx); err != nil {
			return "", fmt.Errorf("devtools: list targets after create: %w", err)
		}
	}

	for _, t := range targets {
		if t.Type == "page" && t.WebSocketDebuggerURL != "" {
			return t.WebSocketDebuggerURL, nil
		}
	}

	if browserWS == "" {
		return "", fmt.Errorf("devtools: no page target and no browser socket")
	}
	return browserWS, nil
}
