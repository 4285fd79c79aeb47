package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/abelbrown/dropwatch/internal/coord"
	"github.com/abelbrown/dropwatch/internal/feed"
	"github.com/abelbrown/dropwatch/internal/logging"
	"github.com/abelbrown/dropwatch/internal/metrics"
	"github.com/abelbrown/dropwatch/internal/monitor"
	"github.com/abelbrown/dropwatch/internal/push"
	"github.com/abelbrown/dropwatch/internal/ui"
)

func runLive() int {
	fs := flag.NewFlagSet("dropwatch", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage+"\nFlags:\n")
		fs.PrintDefaults()
	}
	common := registerCommon(fs)
	metricsAddr := fs.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	fs.Parse(os.Args[1:])

	cfg, err := common.resolve()
	if err != nil {
		return fail("%v", err)
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}

	// The TUI owns the terminal, so logs go to a file.
	if err := logging.Init(cfg.Logging.Level); err != nil {
		return fail("logging: %v", err)
	}
	defer logging.Close()
	logging.Debug("config", "base_url", cfg.Backend.BaseURL, "limit", cfg.Backend.PostLimit,
		"author", cfg.UI.Author, "metrics_addr", cfg.MetricsAddr)

	client, err := newAPIClient(cfg)
	if err != nil {
		return fail("%v", err)
	}
	pc, err := push.New(push.Config{BaseURL: cfg.Backend.BaseURL})
	if err != nil {
		return fail("%v", err)
	}
	logging.Info("backend", "api", client.BaseURL(), "push", pc.URL(), "client_id", pc.ClientID())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var m *metrics.Metrics
	if cfg.MetricsAddr != "" {
		m = metrics.New(prometheus.NewRegistry())
		srv := serveMetrics(cfg.MetricsAddr, m)
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logging.Warn("metrics server shutdown", "err", err)
			}
		}()
	}

	coordinator := coord.New(feed.NewStore(), client,
		coord.WithPush(pc),
		coord.WithMonitor(monitor.New(pc, monitor.DefaultWatchdogInterval)),
		coord.WithMetrics(m),
	)

	// Create UI app with dependency injection
	app := ui.NewApp(ui.AppConfig{
		Filter:   coordinator.Filter,
		Sort:     coordinator.Sort,
		Lookup:   coordinator.Lookup,
		Reload:   coordinator.Reload,
		Author:   cfg.UI.Author,
		Renderer: newRenderer(cfg),
	})

	program := tea.NewProgram(app, tea.WithAltScreen())
	coordinator.Start(ctx, program)

	// Run UI (blocks until quit)
	_, runErr := program.Run()

	// Graceful shutdown
	cancel()
	coordinator.Wait()

	if runErr != nil {
		logging.Error("program exited", "err", runErr)
		return fail("%v", runErr)
	}
	return 0
}

// serveMetrics exposes /metrics and /healthz on addr in the background.
func serveMetrics(addr string, m *metrics.Metrics) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/metrics", gin.WrapH(m.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("metrics server failed", "addr", addr, "err", err)
		}
	}()
	logging.Info("metrics listening", "addr", addr)
	return srv
}
