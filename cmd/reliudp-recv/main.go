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
	"github.com/devraj-patil/reliudp/internal/receiver"
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
	log := logger.Logger().With("component", "cli", "role", "receiver")

	var recorder metrics.Recorder = metrics.NoOp{}
	if cfg.metricsAddr != "" {
		prom := metrics.NewPrometheusRecorder()
		reg := prometheus.NewRegistry()
		reg.MustRegister(prom)
		recorder = prom
		go serveMetrics(cfg.metricsAddr, reg, log)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shuttingDown := false
	go func() {
		<-sigCtx.Done()
		shuttingDown = true
		log.Info("shutdown signal received, receiver will stop after the current transfer")
	}()

	for {
		id := xid.New().String()
		sessionLog := logger.WithSession(log, id, "receiver")

		err := receiver.Receive(receiver.Config{
			ListenAddr: cfg.listenAddr,
			SaveDir:    cfg.saveDir,
			HandshakeTimeout: session.Params{
				Timeout:    cfg.timeout,
				MaxRetries: cfg.maxRetries,
			},
			SessionID: id,
			Log:       logger.Callback(sessionLog),
			Metrics:   recorder,
		})
		if err != nil {
			log.Error("receive failed", "error", err)
			if cfg.listenOnce {
				os.Exit(1)
			}
		}

		if cfg.listenOnce || shuttingDown {
			return
		}
	}
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
