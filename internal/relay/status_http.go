package relay

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// StatusInfo is the JSON document served on /status.
type StatusInfo struct {
	Connected      bool    `json:"connected"`
	Pending        int     `json:"pending"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
	MemUsedPercent float64 `json:"mem_used_percent,omitempty"`
	CPUPercent     float64 `json:"cpu_percent,omitempty"`
}

// StartStatusServer exposes /healthz, /status and /metrics on addr and shuts
// down when ctx is done. It returns the resolved listen address.
func (r *Relay) StartStatusServer(ctx context.Context, addr string, allowedOrigins []string) (string, error) {
	router := chi.NewRouter()
	if len(allowedOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"*"},
		}))
	}
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		info := StatusInfo{
			Connected:     r.Connected(),
			Pending:       r.PendingCount(),
			UptimeSeconds: r.Uptime().Seconds(),
		}
		if vm, err := mem.VirtualMemory(); err == nil {
			info.MemUsedPercent = vm.UsedPercent
		}
		if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
			info.CPUPercent = pct[0]
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(info)
	})
	router.Handle("/metrics", promhttp.HandlerFor(metricsRegistry(), promhttp.HandlerOpts{}))
	return serveUntilContext(ctx, addr, router)
}

// serveUntilContext starts an HTTP server bound to addr and shuts it down
// when ctx is done. It returns the resolved listen address.
func serveUntilContext(ctx context.Context, addr string, handler http.Handler) (string, error) {
	srv := &http.Server{Handler: handler}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}
	actual := ln.Addr().String()
	go func() {
		<-ctx.Done()
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(c)
	}()
	go func() { _ = srv.Serve(ln) }()
	return actual, nil
}
