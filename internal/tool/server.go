package tool

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewServer creates an MCP server with the invoice tools registered.
func NewServer(version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "invoice-vision", Version: version}, nil)
	mcp.AddTool(server, MetadataParseInvoiceResponse, ParseInvoiceResponse)
	mcp.AddTool(server, MetadataValidateInvoice, ValidateInvoice)
	return server
}

// Run serves the invoice tools over stdio until ctx is done or the client disconnects.
func Run(ctx context.Context, version string) error {
	slog.Info("Starting MCP server", "transport", "stdio", "version", version)
	return NewServer(version).Run(ctx, &mcp.StdioTransport{})
}
