// Package main provides a CI-friendly smoke test for the tasker task feed.
//
// It validates:
//   - register two users over HTTP
//   - feed handshake with subprotocol selection and feed.ready
//   - ping -> pong
//   - create/patch/delete reach the owner's feed as task.* events
//   - another user's feed stays silent
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
)

const (
	subprotocol  = "tasker.events.v1"
	maxReadBytes = 1 << 20 // 1MiB

	typeReady   = "feed.ready"
	typePing    = "ping"
	typePong    = "pong"
	typeError   = "error"
	typeCreated = "task.created"
	typeUpdated = "task.updated"
	typeDeleted = "task.deleted"
)

type envelope struct {
	V       int             `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	TS      time.Time       `json:"ts"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type smokeClient struct {
	name  string
	token string
	conn  *websocket.Conn

	inbox chan envelope
	errCh chan error
}

func main() {
	var (
		apiURL  = flag.String("api", "http://127.0.0.1:3000", "HTTP base URL of the API")
		origin  = flag.String("origin", "http://localhost", "Origin header to send (browser-like WS handshake)")
		title   = flag.String("title", "smoke task", "Title of the task to create")
		timeout = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	base, err := url.Parse(strings.TrimRight(*apiURL, "/"))
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		fatalf("invalid -api: %q", *apiURL)
	}

	root := context.Background()
	run := time.Now().UnixNano()

	a := &smokeClient{name: "A", token: mustRegister(root, base, fmt.Sprintf("smoke-a-%d@example.com", run), *timeout)}
	b := &smokeClient{name: "B", token: mustRegister(root, base, fmt.Sprintf("smoke-b-%d@example.com", run), *timeout)}

	mustConnect(root, a, base, *origin, *timeout)
	defer closeWS(a.conn)
	mustConnect(root, b, base, *origin, *timeout)
	defer closeWS(b.conn)

	if *verbose {
		fmt.Printf("connected: A and B origin=%q\n", *origin)
	}

	mustWrite(root, a.conn, envelope{V: 1, Type: typePing, TS: time.Now().UTC()}, *timeout)
	a.mustReadUntilType(root, typePong, *timeout)

	var created struct {
		ID string `json:"id"`
	}
	mustCallJSON(root, base, http.MethodPost, "/api/tasks", a.token, map[string]any{"title": *title}, http.StatusCreated, &created, *timeout)
	if created.ID == "" {
		fatalf("create: missing id")
	}

	ev := a.mustReadUntilType(root, typeCreated, *timeout)
	assertTaskID(ev, created.ID)

	mustCallJSON(root, base, http.MethodPatch, "/api/tasks/"+created.ID, a.token, map[string]any{"isCompleted": true}, http.StatusOK, nil, *timeout)
	ev = a.mustReadUntilType(root, typeUpdated, *timeout)
	assertTaskID(ev, created.ID)

	mustCallJSON(root, base, http.MethodDelete, "/api/tasks/"+created.ID, a.token, nil, http.StatusOK, nil, *timeout)
	ev = a.mustReadUntilType(root, typeDeleted, *timeout)
	assertTaskID(ev, created.ID)

	b.mustAssertSilent(root, 1200*time.Millisecond)

	fmt.Printf("OK: task_id=%s events=%s,%s,%s\n", created.ID, typeCreated, typeUpdated, typeDeleted)
}

func mustRegister(parent context.Context, base *url.URL, email string, stepTimeout time.Duration) string {
	var out struct {
		AccessToken string `json:"accessToken"`
	}
	mustCallJSON(parent, base, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name":     "Smoke",
		"email":    email,
		"password": "smoke-test-password",
	}, http.StatusCreated, &out, stepTimeout)
	if out.AccessToken == "" {
		fatalf("register %s: missing accessToken", email)
	}
	return out.AccessToken
}

func mustCallJSON(parent context.Context, base *url.URL, method, path, token string, body any, wantStatus int, dst any, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			fatalf("%s %s: marshal: %v", method, path, err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, base.String()+path, rd)
	if err != nil {
		fatalf("%s %s: %v", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fatalf("%s %s: %v", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxReadBytes))
	if resp.StatusCode != wantStatus {
		fatalf("%s %s: status=%d want=%d body=%s", method, path, resp.StatusCode, wantStatus, raw)
	}
	if dst != nil {
		if err := json.Unmarshal(raw, dst); err != nil {
			fatalf("%s %s: decode: %v", method, path, err)
		}
	}
}

func mustConnect(parent context.Context, c *smokeClient, base *url.URL, origin string, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	u := *base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = "/api/tasks/events"

	h := http.Header{}
	h.Set("Authorization", "Bearer "+c.token)
	if strings.TrimSpace(origin) != "" {
		h.Set("Origin", origin)
	}

	conn, resp, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{
		Subprotocols: []string{subprotocol},
		HTTPHeader:   h,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		fatalf("connect %s: %v", c.name, err)
	}
	if got := conn.Subprotocol(); got != subprotocol {
		fatalf("subprotocol mismatch (%s): got=%q want=%q", c.name, got, subprotocol)
	}

	conn.SetReadLimit(maxReadBytes)
	c.conn = conn
	c.inbox = make(chan envelope, 512)
	c.errCh = make(chan error, 1)
	c.startReadLoop()

	c.mustReadUntilType(parent, typeReady, stepTimeout)
}

func (c *smokeClient) startReadLoop() {
	go func() {
		defer close(c.inbox)

		for {
			_, data, err := c.conn.Read(context.Background())
			if err != nil {
				c.fail(err)
				return
			}

			var env envelope
			if err := json.Unmarshal(data, &env); err != nil {
				c.fail(fmt.Errorf("bad json: %w", err))
				return
			}

			select {
			case c.inbox <- env:
			default:
				c.fail(errors.New("inbox overflow: consumer too slow"))
				return
			}
		}
	}()
}

func (c *smokeClient) fail(err error) {
	select {
	case c.errCh <- err:
	default:
	}
}

func (c *smokeClient) mustReadUntilType(parent context.Context, wantType string, stepTimeout time.Duration) envelope {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			fatalf("timeout waiting for %q (%s): %v", wantType, c.name, ctx.Err())
		case err := <-c.errCh:
			fatalf("connection error while waiting for %q (%s): %v", wantType, c.name, err)
		case env, ok := <-c.inbox:
			if !ok {
				fatalf("connection closed while waiting for %q (%s)", wantType, c.name)
			}
			if env.Type == wantType {
				return env
			}
			if env.Type == typeError {
				var ep errorPayload
				_ = json.Unmarshal(env.Payload, &ep)
				fatalf("server error (%s): code=%q msg=%q", c.name, ep.Code, ep.Message)
			}
			fatalf("unexpected envelope type (%s): got=%q want=%q", c.name, env.Type, wantType)
		}
	}
}

// mustAssertSilent fails if any task event reaches c within wait.
func (c *smokeClient) mustAssertSilent(parent context.Context, wait time.Duration) {
	ctx, cancel := context.WithTimeout(parent, wait)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-c.errCh:
			fatalf("connection closed unexpectedly (%s): %v", c.name, err)
		case env, ok := <-c.inbox:
			if !ok {
				fatalf("connection closed unexpectedly (%s)", c.name)
			}
			if strings.HasPrefix(env.Type, "task.") {
				fatalf("foreign %s leaked to %s", env.Type, c.name)
			}
		}
	}
}

func assertTaskID(env envelope, want string) {
	var p struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		fatalf("%s payload: %v", env.Type, err)
	}
	if p.ID != want {
		fatalf("%s: id=%q want=%q", env.Type, p.ID, want)
	}
}

func mustWrite(parent context.Context, conn *websocket.Conn, env envelope, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	b, err := json.Marshal(env)
	if err != nil {
		fatalf("marshal %s: %v", env.Type, err)
	}
	if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
		fatalf("write %s: %v", env.Type, err)
	}
}

func closeWS(conn *websocket.Conn) {
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
