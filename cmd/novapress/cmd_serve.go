package main

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"novapress/internal/logging"
	mcpserver "novapress/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server over stdio",
	Long: `Starts an MCP server over stdin/stdout exposing read-only tools:
pipeline_status, live_syntheses, causal_graph, entity_profile, list_followed
and breaking_news.

The server monitors its parent process and exits when it goes away, so an
editor restart does not leave it running.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	go a.cache.Run(ctx)
	a.serveMetrics(ctx)

	srv := mcpserver.NewServer(mcpserver.Deps{
		Client:  a.client,
		Cache:   a.cache,
		Follows: a.follows,
		Logger:  logging.New("mcp"),
		Version: version,
	})
	mcpserver.WatchParent(ctx, logging.New("mcp"), cancel)

	logging.New("mcp").Info("starting novapress MCP server over stdio (parent watchdog active)")
	return srv.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}
