package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gqlrelay/gqlrelay/internal/client"
	"github.com/gqlrelay/gqlrelay/internal/logx"
	"github.com/gqlrelay/gqlrelay/internal/proto"
)

var (
	version   = "dev"
	buildSHA  = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	addr := flag.String("addr", "127.0.0.1:8766", "address of the relay's downstream listener")
	endpoint := flag.String("endpoint", "", "GraphQL endpoint URL")
	varsJSON := flag.String("variables", "", "GraphQL variables as a JSON object")
	id := flag.String("id", "", "request id; generated when empty")
	timeout := flag.Duration("timeout", 30*time.Second, "how long to wait for the response")
	logLevel := flag.String("log-level", "warn", "log verbosity (all, debug, info, warn, error, fatal, none)")
	flag.Usage = func() {
		_, _ = fmt.Fprintf(flag.CommandLine.Output(), "usage: gqlrelay-send [flags] <query>\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if *showVersion {
		fmt.Printf("gqlrelay-send version=%s sha=%s date=%s\n", version, buildSHA, buildDate)
		return
	}
	logx.Configure(*logLevel)
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	req := proto.QueryRequest{ID: *id, Query: flag.Arg(0), Endpoint: *endpoint}
	if *varsJSON != "" {
		if !json.Valid([]byte(*varsJSON)) {
			logx.Log.Fatal().Msg("variables must be a valid JSON document")
		}
		req.Variables = json.RawMessage(*varsJSON)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	res, err := client.Do(ctx, *addr, req)
	if err != nil {
		logx.Log.Fatal().Err(err).Msg("query failed")
	}
	fmt.Println(string(res.Raw))
	if !res.Success {
		os.Exit(1)
	}
}
