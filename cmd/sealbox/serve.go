package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/alexjbarnes/sealbox/internal/auth"
	"github.com/alexjbarnes/sealbox/internal/config"
	"github.com/alexjbarnes/sealbox/internal/explorer"
	"github.com/alexjbarnes/sealbox/internal/logging"
	"github.com/alexjbarnes/sealbox/internal/mcpserver"
	"github.com/alexjbarnes/sealbox/internal/server"
)

// runMCP starts the MCP HTTP server over the unlocked explorer.
func runMCP(ctx context.Context, cfg *config.Config, e *explorer.Explorer, logger *slog.Logger) error {
	keys, err := cfg.ParseMCPAPIKeys()
	if err != nil {
		return fmt.Errorf("parsing MCP API keys: %w", err)
	}

	mcpLogger := logging.Component(logger, "mcp")

	store := auth.NewStore()
	for _, k := range keys {
		store.AddAPIKey(k.UserID, k.Key)
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{Name: "sealbox-mcp", Version: Version},
		nil,
	)
	mcpserver.RegisterTools(mcpServer, e, mcpLogger)

	mcpHandler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return mcpServer
	}, nil)

	srv := &http.Server{
		Addr: cfg.MCPListenAddr,
		Handler: server.NewMux(server.MuxConfig{
			Store:      store,
			MCPHandler: mcpHandler,
			Logger:     mcpLogger,
		}),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	mcpLogger.Info("starting MCP server",
		slog.String("listen", cfg.MCPListenAddr),
		slog.String("collection_id", e.ActiveCollection()),
		slog.Int("api_keys", store.Len()),
	)

	// Shutdown when context is cancelled.
	go func() {
		<-ctx.Done()
		mcpLogger.Info("shutting down MCP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("MCP server error: %w", err)
	}

	return nil
}
