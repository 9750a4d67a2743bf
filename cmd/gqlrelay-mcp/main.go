package main

import (
	"flag"
	"fmt"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/gqlrelay/gqlrelay/internal/logx"
	"github.com/gqlrelay/gqlrelay/internal/mcpserver"
)

var (
	version   = "dev"
	buildSHA  = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	relayAddr := flag.String("relay-addr", "127.0.0.1:8766", "address of the relay's downstream listener")
	httpAddr := flag.String("http", "", "serve Streamable HTTP on this address instead of stdio")
	timeout := flag.Duration("timeout", 30*time.Second, "per-query timeout")
	logLevel := flag.String("log-level", "info", "log verbosity (all, debug, info, warn, error, fatal, none)")
	flag.Parse()
	if *showVersion {
		fmt.Printf("gqlrelay-mcp version=%s sha=%s date=%s\n", version, buildSHA, buildDate)
		return
	}
	logx.Configure(*logLevel)

	if *httpAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/mcp", mcpserver.NewStreamableHandler(*relayAddr, *timeout, version))
		logx.Log.Info().Str("relay", *relayAddr).Str("addr", *httpAddr).Msg("mcp server starting on http")
		if err := http.ListenAndServe(*httpAddr, mux); err != nil {
			logx.Log.Fatal().Err(err).Msg("mcp server stopped")
		}
		return
	}

	s := mcpserver.New(*relayAddr, *timeout, version)
	logx.Log.Info().Str("relay", *relayAddr).Msg("mcp server starting on stdio")
	if err := server.ServeStdio(s); err != nil {
		logx.Log.Fatal().Err(err).Msg("mcp server stopped")
	}
}
