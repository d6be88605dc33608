package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/xid"

	"github.com/devraj-patil/reliudp/internal/logger"
	"github.com/devraj-patil/reliudp/internal/metrics"
	"github.com/devraj-patil/reliudp/internal/schedule"
	"github.com/devraj-patil/reliudp/internal/sender"
	"github.com/devraj-patil/reliudp/internal/session"
)

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if cfg.showVersion {
		fmt.Println(version)
		return
	}

	logger.Init()
	if err := logger.SetLevel(cfg.logLevel); err != nil {
		fmt.Printf("Warning: invalid log level %q, using default\n", cfg.logLevel)
	}
	log := logger.Logger().With("component", "cli", "role", "sender")

	var recorder metrics.Recorder = metrics.NoOp{}
	if cfg.metricsAddr != "" {
		prom := metrics.NewPrometheusRecorder()
		reg := prometheus.NewRegistry()
		reg.MustRegister(prom)
		recorder = prom
		go serveMetrics(cfg.metricsAddr, reg, log)
	}

	params := session.Params{
		PacketSize: cfg.packetSize,
		WindowSize: cfg.windowSize,
		Timeout:    cfg.timeout,
		MaxRetries: cfg.maxRetries,
	}

	runOnce := func() error {
		id := xid.New().String()
		sessionLog := logger.WithSession(log, id, "sender")
		return sender.Send(sender.Config{
			FilePath:   cfg.filePath,
			TargetAddr: cfg.targetAddr,
			Params:     params,
			SessionID:  id,
			Log:        logger.Callback(sessionLog),
			Metrics:    recorder,
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.cronExpr == "" {
		if err := runOnce(); err != nil {
			log.Error("send failed", "error", err)
			os.Exit(1)
		}
		return
	}

	sched, err := schedule.NewScheduler(cfg.cronExpr, logger.Callback(log), runOnce)
	if err != nil {
		log.Error("invalid schedule", "error", err)
		os.Exit(2)
	}
	sched.Start()
	log.Info("scheduled sender started", "schedule", cfg.cronExpr, "target", cfg.targetAddr)

	<-ctx.Done()
	log.Info("shutdown signal received")
	sched.Stop()
}

func serveMetrics(addr string, reg *prometheus.Registry, log interface {
	Error(msg string, args ...any)
	Info(msg string, args ...any)
}) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	log.Info("metrics server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("metrics server failed", "error", err)
	}
}
