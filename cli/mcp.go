// ABOUTME: MCP server subcommand
// ABOUTME: Starts the MCP server on stdio for agent integration
package cli

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/harperreed/leadsheet/handlers"
)

// NewMCPServer builds the server with every lead tool, resource, and prompt registered.
func NewMCPServer(p *handlers.Pipeline, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "leadsheet",
		Version: version,
	}, nil)

	handlers.RegisterTools(server, handlers.NewLeadHandlers(p))
	handlers.RegisterVizTools(server, handlers.NewVizHandlers(p))
	handlers.RegisterResources(server, handlers.NewResourceHandlers(p))
	handlers.RegisterPrompts(server, handlers.NewPromptHandlers(p))
	return server
}

// MCPCommand starts the MCP server on stdio
func MCPCommand(ctx context.Context, p *handlers.Pipeline, logger *zap.Logger, version string) error {
	logger.Info("starting MCP server", zap.String("version", version), zap.String("writes", p.Engine().Writer().Target()))

	server := NewMCPServer(p, version)
	return server.Run(ctx, &mcp.StdioTransport{})
}
