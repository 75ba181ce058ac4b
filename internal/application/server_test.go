package application

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jira-mcp-server/internal/domain"
)

// fakeTransport is an in-memory Transport for driving the protocol loop.
type fakeTransport struct {
	reqChan  chan *domain.Request
	respChan chan *domain.Response
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		reqChan:  make(chan *domain.Request, 8),
		respChan: make(chan *domain.Response, 8),
	}
}

func (t *fakeTransport) Start(ctx context.Context) error { return nil }

func (t *fakeTransport) Send(response *domain.Response) error {
	t.respChan <- response
	return nil
}

func (t *fakeTransport) Receive() <-chan *domain.Request { return t.reqChan }

func (t *fakeTransport) Close() error { return nil }

func startTestServer(t *testing.T, handler http.HandlerFunc) (*fakeTransport, func(*domain.Request) *domain.Response) {
	t.Helper()

	registry, _ := newTestRegistry(t, handler)
	transport := newFakeTransport()

	config := &domain.Config{Transport: domain.TransportConfig{Type: "stdio"}}
	server := NewServer(transport, registry, config, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, server.Start(ctx))

	roundTrip := func(req *domain.Request) *domain.Response {
		t.Helper()
		transport.reqChan <- req
		select {
		case resp := <-transport.respChan:
			return resp
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for response")
			return nil
		}
	}
	return transport, roundTrip
}

func TestServerInitialize(t *testing.T) {
	_, roundTrip := startTestServer(t, failingUpstream)

	resp := roundTrip(&domain.Request{JSONRPC: "2.0", ID: 1, Method: "initialize"})

	require.Nil(t, resp.Error)
	result, ok := resp.Result.(map[string]interface{})
	require.True(t, ok)

	serverInfo, ok := result["serverInfo"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "jira-mcp-server", serverInfo["name"])
}

func TestServerToolsList(t *testing.T) {
	_, roundTrip := startTestServer(t, failingUpstream)

	resp := roundTrip(&domain.Request{JSONRPC: "2.0", ID: 2, Method: "tools/list"})

	require.Nil(t, resp.Error)
	result, ok := resp.Result.(map[string]interface{})
	require.True(t, ok)

	tools, ok := result["tools"].([]domain.ToolDefinition)
	require.True(t, ok)
	assert.Len(t, tools, 7)
}

func TestServerToolsCallFailureStaysInEnvelope(t *testing.T) {
	_, roundTrip := startTestServer(t, failingUpstream)

	resp := roundTrip(&domain.Request{
		JSONRPC: "2.0",
		ID:      3,
		Method:  "tools/call",
		Params: map[string]interface{}{
			"name":      "jira_frobnicate",
			"arguments": map[string]interface{}{},
		},
	})

	// A failing tool is a successful JSON-RPC response carrying an error
	// envelope; the loop itself never errors.
	require.Nil(t, resp.Error)
	toolResp, ok := resp.Result.(*domain.ToolResponse)
	require.True(t, ok)
	assert.True(t, toolResp.IsError)
}

func TestServerUnknownMethod(t *testing.T) {
	_, roundTrip := startTestServer(t, failingUpstream)

	resp := roundTrip(&domain.Request{JSONRPC: "2.0", ID: 4, Method: "resources/list"})

	require.NotNil(t, resp.Error)
	assert.Equal(t, domain.MethodNotFound, resp.Error.Code)
}

func TestServerInvalidRequest(t *testing.T) {
	_, roundTrip := startTestServer(t, failingUpstream)

	resp := roundTrip(&domain.Request{JSONRPC: "1.0", ID: 5, Method: "initialize"})

	require.NotNil(t, resp.Error)
	assert.Equal(t, domain.InvalidRequest, resp.Error.Code)
}

func TestServerSurvivesToolFailures(t *testing.T) {
	_, roundTrip := startTestServer(t, failingUpstream)

	// A burst of failing calls, then a protocol method: the loop must still
	// be alive.
	for i := 0; i < 3; i++ {
		resp := roundTrip(&domain.Request{
			JSONRPC: "2.0",
			ID:      10 + i,
			Method:  "tools/call",
			Params: map[string]interface{}{
				"name":      ToolJiraListProjects,
				"arguments": map[string]interface{}{},
			},
		})
		require.Nil(t, resp.Error)
		toolResp, ok := resp.Result.(*domain.ToolResponse)
		require.True(t, ok)
		assert.True(t, toolResp.IsError, "upstream 500 surfaces in the envelope")
	}

	resp := roundTrip(&domain.Request{JSONRPC: "2.0", ID: 20, Method: "tools/list"})
	require.Nil(t, resp.Error)
}
