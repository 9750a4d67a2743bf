package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gqlrelay/gqlrelay/internal/config"
	"github.com/gqlrelay/gqlrelay/internal/logx"
	"github.com/gqlrelay/gqlrelay/internal/relay"
)

var (
	version   = "dev"
	buildSHA  = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	var cfg config.RelayConfig
	// Resolve config with precedence: defaults < file < env < args
	cfg.SetDefaults()
	cfg.ApplyEnv()
	// Allow --config to override file path before loading it
	for i := 1; i < len(os.Args); i++ {
		a := os.Args[i]
		if a == "--config" && i+1 < len(os.Args) {
			cfg.ConfigFile = os.Args[i+1]
			break
		}
		if strings.HasPrefix(a, "--config=") {
			cfg.ConfigFile = strings.TrimPrefix(a, "--config=")
			break
		}
	}
	if cfg.ConfigFile != "" {
		if err := cfg.LoadFile(cfg.ConfigFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			logx.Log.Fatal().Err(err).Str("path", cfg.ConfigFile).Msg("load config")
		}
	}
	cfg.ApplyEnv()
	cfg.BindFlagsFromCurrent()
	flag.Usage = func() {
		_, _ = fmt.Fprintf(flag.CommandLine.Output(), "gqlrelay version=%s sha=%s date=%s\n\n", version, buildSHA, buildDate)
		flag.PrintDefaults()
	}
	flag.Parse()
	if *showVersion {
		fmt.Printf("gqlrelay version=%s sha=%s date=%s\n", version, buildSHA, buildDate)
		return
	}
	logx.Configure(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logx.Log.Warn().Msg("termination requested")
		cancel()
	}()

	// The browser owns stdin/stdout; everything else goes through logx on
	// stderr.
	r := relay.New(os.Stdin, os.Stdout, cfg.RequestTimeout, cfg.EvictInterval)

	if cfg.StatusAddr != "" {
		addr, err := r.StartStatusServer(ctx, cfg.StatusAddr, cfg.AllowedOrigins)
		if err != nil {
			logx.Log.Fatal().Err(err).Msg("start status server")
		}
		logx.Log.Info().Str("addr", addr).Msg("status server started")
	}

	go func() {
		if err := r.ListenAndServe(ctx, cfg.ListenAddr); err != nil {
			logx.Log.Error().Err(err).Msg("downstream listener failed")
			cancel()
		}
	}()

	logx.Log.Info().Str("listen", cfg.ListenAddr).Dur("request_timeout", cfg.RequestTimeout).Msg("relay starting")
	if err := r.Run(ctx); err != nil {
		logx.Log.Fatal().Err(err).Msg("relay stopped")
	}
	logx.Log.Info().Msg("relay stopped")
}
