// Package mcpserver exposes the relay to MCP clients as a stdio tool
// server. It is an ordinary downstream client of the relay's TCP protocol.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gqlrelay/gqlrelay/internal/client"
	"github.com/gqlrelay/gqlrelay/internal/proto"
)

// New builds the MCP server with the relay-backed tools registered.
func New(relayAddr string, timeout time.Duration, version string) *server.MCPServer {
	s := server.NewMCPServer("gqlrelay", version, server.WithToolCapabilities(false))
	s.AddTool(executeQueryTool(), ExecuteQueryHandler(relayAddr, timeout))
	s.AddTool(echoTool(), EchoHandler())
	return s
}

func executeQueryTool() mcp.Tool {
	return mcp.NewTool("execute_query",
		mcp.WithDescription("Execute a GraphQL query through the browser extension and return its result."),
		mcp.WithString("query", mcp.Required(), mcp.Description("GraphQL query string")),
		mcp.WithString("endpoint", mcp.Description("GraphQL endpoint URL; defaults to the extension's active page")),
		mcp.WithObject("variables", mcp.Description("GraphQL variables object")),
	)
}

// ExecuteQueryHandler forwards a tool call through the relay and reports the
// extension's answer.
func ExecuteQueryHandler(relayAddr string, timeout time.Duration) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		qr := proto.QueryRequest{
			Query:    query,
			Endpoint: req.GetString("endpoint", ""),
		}
		if vars, ok := req.GetArguments()["variables"]; ok && vars != nil {
			raw, err := json.Marshal(vars)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("invalid variables: %v", err)), nil
			}
			qr.Variables = raw
		}

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		res, err := client.Do(callCtx, relayAddr, qr)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("relay unavailable: %v", err)), nil
		}
		if !res.Success {
			msg := "query failed"
			if res.Error != nil {
				msg = res.Error.Message
			}
			return mcp.NewToolResultError(msg), nil
		}
		return mcp.NewToolResultText(string(res.Data)), nil
	}
}

func echoTool() mcp.Tool {
	return mcp.NewTool("echo",
		mcp.WithDescription("Echo back a message with a timestamp; a connectivity check."),
		mcp.WithString("message", mcp.Required(), mcp.Description("Message to echo back")),
	)
}

// EchoHandler answers without touching the relay.
func EchoHandler() server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		msg, err := req.RequireString("message")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		reply := map[string]string{
			"echoed":    "You said: " + msg,
			"timestamp": time.Now().Format(time.RFC3339),
		}
		out, _ := json.Marshal(reply)
		return mcp.NewToolResultText(string(out)), nil
	}
}
