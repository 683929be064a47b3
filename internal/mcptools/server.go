// Package mcptools exposes ad generation as Model Context Protocol tools.
package mcptools

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewServer creates an MCP server with the ad tools registered.
// list_ad_creatives is only offered when the service has a store.
func NewServer(svc *AdService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "adofly",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "generate_ad_creative",
		Description: "Generate an ad creative from a product brief. Runs ad copy, target audience and budget generation in order and returns the creative, or the stage that failed.",
	}, svc.Generate)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "validate_ad_request",
		Description: "Check an ad request against the request rules without generating anything. Returns every violation, or the normalized request.",
	}, svc.Validate)

	if svc.store != nil {
		mcp.AddTool(server, &mcp.Tool{
			Name:        "list_ad_creatives",
			Description: "List previously generated ad creatives, newest first.",
		}, svc.List)
	}

	return server
}

// RunStdio runs server on the stdio transport, blocking until stdin is
// closed or ctx is canceled.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// HTTPHandler serves server over the streamable HTTP transport.
func HTTPHandler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)
}
