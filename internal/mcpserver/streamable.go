package mcpserver

import (
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/server"
)

// NewStreamableHandler wraps the relay-backed MCP server in a Streamable
// HTTP transport, for MCP clients that prefer HTTP over stdio.
func NewStreamableHandler(relayAddr string, timeout time.Duration, version string) http.Handler {
	return server.NewStreamableHTTPServer(New(relayAddr, timeout, version))
}
