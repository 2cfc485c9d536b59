package e2e_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/alexjbarnes/sealbox/internal/auth"
	"github.com/alexjbarnes/sealbox/internal/crypto"
	"github.com/alexjbarnes/sealbox/internal/explorer"
	"github.com/alexjbarnes/sealbox/internal/explorer/explorertest"
	"github.com/alexjbarnes/sealbox/internal/mcpserver"
	"github.com/alexjbarnes/sealbox/internal/server"
)

const testUser = "e2e-user"

// harness holds the full e2e test stack: a real HTTP server backed by
// the API key middleware and the MCP tool server over an unlocked
// explorer.
type harness struct {
	URL      string
	APIKey   string
	Explorer *explorer.Explorer
	Remote   *explorertest.Remote
	Client   *http.Client
}

// newHarness unlocks an explorer over an in-memory remote, wires the
// MCP HTTP stack via server.NewMux, and starts an httptest server.
func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	logger := slog.New(slog.DiscardHandler)
	remote := explorertest.NewRemote(t)

	e := explorer.New(remote, crypto.NewNative(), nil, explorer.Options{Logger: logger})
	t.Cleanup(e.Close)

	require.NoError(t, e.Login(ctx, explorertest.Email, explorertest.Password))
	_, err := e.UseCollection(ctx, explorertest.CollectionID)
	require.NoError(t, err)

	mcpServer := mcp.NewServer(
		&mcp.Implementation{Name: "sealbox-e2e", Version: "test"},
		nil,
	)
	mcpserver.RegisterTools(mcpServer, e, logger)

	mcpHandler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return mcpServer
	}, nil)

	key := auth.GenerateAPIKey()
	store := auth.NewStore()
	store.AddAPIKey(testUser, key)

	ts := httptest.NewServer(server.NewMux(server.MuxConfig{
		Store:      store,
		MCPHandler: mcpHandler,
		Logger:     logger,
	}))
	t.Cleanup(ts.Close)

	return &harness{
		URL:      ts.URL,
		APIKey:   key,
		Explorer: e,
		Remote:   remote,
		Client:   ts.Client(),
	}
}

// mcpSession creates an MCP client session authenticated with the given
// Bearer token. Uses the MCP SDK's StreamableClientTransport with a
// custom HTTP RoundTripper that injects the Authorization header.
func (h *harness) mcpSession(t *testing.T, token string) *mcp.ClientSession {
	t.Helper()

	transport := &mcp.StreamableClientTransport{
		Endpoint: h.URL + "/mcp",
		HTTPClient: &http.Client{
			Transport: &bearerTransport{
				token: token,
				base:  h.Client.Transport,
			},
		},
		DisableStandaloneSSE: true,
	}

	client := mcp.NewClient(
		&mcp.Implementation{Name: "e2e-test-client", Version: "test"},
		nil,
	)

	session, err := client.Connect(t.Context(), transport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	return session
}

// callTool calls name and fails the test on transport errors.
func callTool(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()

	result, err := session.CallTool(t.Context(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	require.NoError(t, err)

	return result
}

// bearerTransport is an http.RoundTripper that injects a Bearer token
// into every request's Authorization header.
type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (bt *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+bt.token)

	return bt.base.RoundTrip(req)
}
