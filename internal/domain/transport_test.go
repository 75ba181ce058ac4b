package domain

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func receiveOne(t *testing.T, transport Transport) *Request {
	t.Helper()
	select {
	case req, ok := <-transport.Receive():
		if !ok {
			t.Fatal("request channel closed unexpectedly")
		}
		return req
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for request")
		return nil
	}
}

func TestStdioTransportReadsNewlineFramedRequests(t *testing.T) {
	input := `{"jsonrpc":"2.0","id":1,"method":"initialize"}` + "\n" +
		"\n" + // blank lines between messages are skipped
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}` + "\n"

	var output bytes.Buffer
	transport := NewStdioTransportWithIO(strings.NewReader(input), &output)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := transport.Start(ctx); err != nil {
		t.Fatalf("failed to start transport: %v", err)
	}

	first := receiveOne(t, transport)
	if first.Method != "initialize" || first.ID != float64(1) {
		t.Errorf("unexpected first request: %+v", first)
	}

	second := receiveOne(t, transport)
	if second.Method != "tools/list" || second.ID != float64(2) {
		t.Errorf("unexpected second request: %+v", second)
	}

	// EOF on the reader closes the request channel.
	select {
	case _, ok := <-transport.Receive():
		if ok {
			t.Error("expected channel closed after EOF")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}

func TestStdioTransportSendWritesSingleLine(t *testing.T) {
	var output bytes.Buffer
	transport := NewStdioTransportWithIO(strings.NewReader(""), &output)

	err := transport.Send(&Response{
		ID:     1,
		Result: map[string]interface{}{"ok": true},
	})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}

	line := output.String()
	if !strings.HasSuffix(line, "\n") {
		t.Errorf("response must be newline-terminated: %q", line)
	}
	if strings.Count(line, "\n") != 1 {
		t.Errorf("response must be exactly one line: %q", line)
	}

	var resp Response
	if err := json.Unmarshal([]byte(strings.TrimSpace(line)), &resp); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if resp.JSONRPC != "2.0" {
		t.Errorf("missing jsonrpc version got filled in, found %q", resp.JSONRPC)
	}
}

func TestStdioTransportRejectsMalformedInput(t *testing.T) {
	input := "this is not json\n" +
		`{"jsonrpc":"1.0","id":9,"method":"initialize"}` + "\n" +
		`{"jsonrpc":"2.0","id":10,"method":"initialize"}` + "\n"

	var output bytes.Buffer
	transport := NewStdioTransportWithIO(strings.NewReader(input), &output)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := transport.Start(ctx); err != nil {
		t.Fatalf("failed to start transport: %v", err)
	}

	// Only the well-formed request makes it through; the loop keeps reading
	// past the bad ones.
	req := receiveOne(t, transport)
	if req.ID != float64(10) {
		t.Errorf("expected request 10 to survive, got %+v", req)
	}

	out := output.String()
	if !strings.Contains(out, `"code":-32700`) {
		t.Errorf("expected parse error on the wire, got %q", out)
	}
	if !strings.Contains(out, `"code":-32600`) {
		t.Errorf("expected invalid request error for wrong version, got %q", out)
	}
}

func TestStdioTransportSendAfterClose(t *testing.T) {
	transport := NewStdioTransportWithIO(strings.NewReader(""), &bytes.Buffer{})

	if err := transport.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := transport.Close(); err != nil {
		t.Fatalf("second close must be a no-op: %v", err)
	}

	if err := transport.Send(&Response{ID: 1}); err == nil {
		t.Error("expected error sending on closed transport")
	}
}

// sseClient wraps a live SSE stream for event-by-event reading.
type sseClient struct {
	resp    *http.Response
	scanner *bufio.Scanner
}

func dialSSE(t *testing.T, url string) *sseClient {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("failed to open SSE stream: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected text/event-stream, got %q", ct)
	}
	return &sseClient{resp: resp, scanner: bufio.NewScanner(resp.Body)}
}

// nextEvent reads one SSE event and returns its event name and data line.
func (c *sseClient) nextEvent(t *testing.T) (string, string) {
	t.Helper()
	event, data := "", ""
	for c.scanner.Scan() {
		line := c.scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && event != "":
			return event, data
		}
	}
	t.Fatalf("SSE stream ended before an event: %v", c.scanner.Err())
	return "", ""
}

// newSSEFixture exposes the HTTP transport's handlers on a test server
// without binding the transport's own listener.
func newSSEFixture(t *testing.T) (*HTTPTransport, *httptest.Server) {
	t.Helper()
	transport := NewHTTPTransport("127.0.0.1", 0)

	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", transport.handleSSE)
	mux.HandleFunc("/mcp/message", transport.handleMessage)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return transport, server
}

func TestHTTPTransportSSERoundTrip(t *testing.T) {
	transport, server := newSSEFixture(t)

	client := dialSSE(t, server.URL+"/mcp")

	// The first event announces the per-session message endpoint.
	event, endpoint := client.nextEvent(t)
	if event != "endpoint" {
		t.Fatalf("expected endpoint event first, got %q", event)
	}
	if !strings.HasPrefix(endpoint, "/mcp/message?sessionId=") {
		t.Fatalf("unexpected endpoint: %q", endpoint)
	}

	// Session IDs are session_<uuid>.
	sessionID := strings.TrimPrefix(endpoint, "/mcp/message?sessionId=")
	if !strings.HasPrefix(sessionID, "session_") {
		t.Fatalf("unexpected session id shape: %q", sessionID)
	}
	if _, err := uuid.Parse(strings.TrimPrefix(sessionID, "session_")); err != nil {
		t.Fatalf("session id suffix is not a uuid: %q", sessionID)
	}

	// Client-to-server: POST against the announced endpoint.
	resp, err := http.Post(server.URL+endpoint, "application/json",
		strings.NewReader(`{"jsonrpc":"2.0","id":5,"method":"tools/list"}`))
	if err != nil {
		t.Fatalf("post failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	req := receiveOne(t, transport)
	if req.Method != "tools/list" || req.ID != float64(5) {
		t.Errorf("unexpected request: %+v", req)
	}

	// Server-to-client: Send surfaces as a message event on the stream.
	if err := transport.Send(&Response{ID: 5, Result: "ok"}); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	event, data := client.nextEvent(t)
	if event != "message" {
		t.Fatalf("expected message event, got %q", event)
	}
	var sent Response
	if err := json.Unmarshal([]byte(data), &sent); err != nil {
		t.Fatalf("message data is not valid JSON: %v", err)
	}
	if sent.Result != "ok" || sent.JSONRPC != "2.0" {
		t.Errorf("unexpected response payload: %+v", sent)
	}
}

func TestHTTPTransportSessionIDsAreUnique(t *testing.T) {
	_, server := newSSEFixture(t)

	seen := make(map[string]bool)
	for i := 0; i < 3; i++ {
		client := dialSSE(t, server.URL+"/mcp")
		_, endpoint := client.nextEvent(t)
		if seen[endpoint] {
			t.Fatalf("duplicate session endpoint: %q", endpoint)
		}
		seen[endpoint] = true
		client.resp.Body.Close()
	}
}

func TestHTTPTransportMessageEndpointValidation(t *testing.T) {
	_, server := newSSEFixture(t)

	// Missing session.
	resp, err := http.Post(server.URL+"/mcp/message", "application/json",
		strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`))
	if err != nil {
		t.Fatalf("post failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for missing sessionId, got %d", resp.StatusCode)
	}

	// Unknown session.
	resp, err = http.Post(server.URL+"/mcp/message?sessionId=session_bogus", "application/json",
		strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`))
	if err != nil {
		t.Fatalf("post failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown session, got %d", resp.StatusCode)
	}

	// Wrong method on the SSE endpoint.
	resp, err = http.Post(server.URL+"/mcp", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("post failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for POST on SSE endpoint, got %d", resp.StatusCode)
	}
}

func TestHTTPTransportSendWithoutSessions(t *testing.T) {
	transport := NewHTTPTransport("127.0.0.1", 0)

	if err := transport.Send(&Response{ID: 1, Result: "ok"}); err == nil {
		t.Error("expected error sending with no active sessions")
	}
}

func TestHTTPTransportClose(t *testing.T) {
	transport := NewHTTPTransport("127.0.0.1", 0)

	if err := transport.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := transport.Close(); err != nil {
		t.Fatalf("second close must be a no-op: %v", err)
	}

	// The request channel is closed so the protocol loop can drain and exit.
	select {
	case _, ok := <-transport.Receive():
		if ok {
			t.Error("expected closed request channel")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for closed channel")
	}

	if err := transport.Send(&Response{ID: 1}); err == nil {
		t.Error("expected error sending on closed transport")
	}
}
