package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/devraj-patil/reliudp/internal/config"
	"github.com/devraj-patil/reliudp/internal/session"
)

// version is injected at build time with -ldflags "-X main.version=...".
var version = "dev"

// cliConfig holds the resolved flag values after merging an optional -config
// file with explicit command-line flags (flags always win).
type cliConfig struct {
	filePath    string
	targetAddr  string
	packetSize  int
	windowSize  int
	timeout     time.Duration
	maxRetries  int
	logLevel    string
	cronExpr    string
	metricsAddr string
	configPath  string
	showVersion bool
}

// extractConfigPath manually scans args for -config/-config=VALUE before the
// full flag set is built, so its value can seed that flag set's defaults
// (mirrors the logger package's own manual -log-level prescan).
func extractConfigPath(args []string) string {
	for i, arg := range args {
		if arg == "-config" || arg == "--config" {
			if i+1 < len(args) {
				return args[i+1]
			}
		}
		for _, prefix := range []string{"-config=", "--config="} {
			if strings.HasPrefix(arg, prefix) {
				return strings.TrimPrefix(arg, prefix)
			}
		}
	}
	return ""
}

func parseFlags(args []string) (*cliConfig, error) {
	defaults := cliConfig{
		packetSize: 4096,
		windowSize: 4,
		timeout:    2 * time.Second,
		maxRetries: 5,
		logLevel:   "info",
	}

	configPath := extractConfigPath(args)
	if configPath != "" {
		fileCfg, err := config.LoadSendConfig(configPath)
		if err != nil {
			return nil, err
		}
		applySendFileDefaults(&defaults, fileCfg)
	}

	fs := flag.NewFlagSet("reliudp-send", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	cfg := &cliConfig{}
	fs.StringVar(&cfg.configPath, "config", configPath, "Optional YAML config file")
	fs.StringVar(&cfg.filePath, "file", defaults.filePath, "Path of the file to send")
	fs.StringVar(&cfg.targetAddr, "target", defaults.targetAddr, "Receiver address (host:port)")
	fs.IntVar(&cfg.packetSize, "packet-size", defaults.packetSize, "Packet size in bytes: one of 1024, 2048, 4096, 8000")
	fs.IntVar(&cfg.windowSize, "window-size", defaults.windowSize, "Go-Back-N window size (1-10)")
	fs.DurationVar(&cfg.timeout, "timeout", defaults.timeout, "Ack/handshake timeout (1s-10s)")
	fs.IntVar(&cfg.maxRetries, "max-retries", defaults.maxRetries, "Max consecutive timeouts before aborting (1-10)")
	fs.StringVar(&cfg.logLevel, "log-level", defaults.logLevel, "Log level: debug|info|warn|error")
	fs.StringVar(&cfg.cronExpr, "schedule", defaults.cronExpr, "Optional cron expression to repeat the send; empty means send once")
	fs.StringVar(&cfg.metricsAddr, "metrics-addr", defaults.metricsAddr, "Optional address to serve Prometheus metrics on, e.g. :9100")
	fs.BoolVar(&cfg.showVersion, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.showVersion {
		return cfg, nil
	}

	if cfg.filePath == "" {
		return nil, fmt.Errorf("-file is required")
	}
	if cfg.targetAddr == "" {
		return nil, fmt.Errorf("-target is required")
	}
	if err := session.ValidatePacketSize(cfg.packetSize); err != nil {
		return nil, err
	}
	if err := session.ValidateWindowSize(cfg.windowSize); err != nil {
		return nil, err
	}
	if err := session.ValidateTimeout(cfg.timeout); err != nil {
		return nil, err
	}
	if err := session.ValidateMaxRetries(cfg.maxRetries); err != nil {
		return nil, err
	}
	switch cfg.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log-level %q", cfg.logLevel)
	}

	return cfg, nil
}

func applySendFileDefaults(defaults *cliConfig, fileCfg *config.SendConfig) {
	if fileCfg.File.Path != "" {
		defaults.filePath = fileCfg.File.Path
	}
	if fileCfg.Target.Addr != "" {
		defaults.targetAddr = fileCfg.Target.Addr
	}
	if fileCfg.Session.PacketSize != 0 {
		defaults.packetSize = fileCfg.Session.PacketSize
	}
	if fileCfg.Session.WindowSize != 0 {
		defaults.windowSize = fileCfg.Session.WindowSize
	}
	if fileCfg.Session.Timeout != 0 {
		defaults.timeout = fileCfg.Session.Timeout
	}
	if fileCfg.Session.MaxRetries != 0 {
		defaults.maxRetries = fileCfg.Session.MaxRetries
	}
	if fileCfg.Schedule.Cron != "" {
		defaults.cronExpr = fileCfg.Schedule.Cron
	}
	if fileCfg.Logging.Level != "" {
		defaults.logLevel = fileCfg.Logging.Level
	}
	if fileCfg.Metrics.Addr != "" {
		defaults.metricsAddr = fileCfg.Metrics.Addr
	}
}
