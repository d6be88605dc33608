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

var version = "dev"

type cliConfig struct {
	listenAddr  string
	saveDir     string
	timeout     time.Duration
	maxRetries  int
	logLevel    string
	metricsAddr string
	configPath  string
	listenOnce  bool
	showVersion bool
}

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
		listenAddr: ":9999",
		saveDir:    ".",
		timeout:    2 * time.Second,
		maxRetries: 5,
		logLevel:   "info",
	}

	configPath := extractConfigPath(args)
	if configPath != "" {
		fileCfg, err := config.LoadRecvConfig(configPath)
		if err != nil {
			return nil, err
		}
		applyRecvFileDefaults(&defaults, fileCfg)
	}

	fs := flag.NewFlagSet("reliudp-recv", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	cfg := &cliConfig{}
	fs.StringVar(&cfg.configPath, "config", configPath, "Optional YAML config file")
	fs.StringVar(&cfg.listenAddr, "listen", defaults.listenAddr, "UDP listen address (e.g. :9999 or 0.0.0.0:9999)")
	fs.StringVar(&cfg.saveDir, "save-dir", defaults.saveDir, "Directory to write received files")
	fs.DurationVar(&cfg.timeout, "timeout", defaults.timeout, "Handshake timeout (1s-10s)")
	fs.IntVar(&cfg.maxRetries, "max-retries", defaults.maxRetries, "Max retries (1-10); validated only, the receiver keeps no retry count")
	fs.StringVar(&cfg.logLevel, "log-level", defaults.logLevel, "Log level: debug|info|warn|error")
	fs.StringVar(&cfg.metricsAddr, "metrics-addr", defaults.metricsAddr, "Optional address to serve Prometheus metrics on, e.g. :9100")
	fs.BoolVar(&cfg.listenOnce, "listen-once", true, "Serve a single transfer and exit; when false, serve repeated independent transfers sequentially")
	fs.BoolVar(&cfg.showVersion, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.showVersion {
		return cfg, nil
	}

	if cfg.listenAddr == "" {
		return nil, fmt.Errorf("-listen is required")
	}
	if info, err := os.Stat(cfg.saveDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("-save-dir %q must be an existing directory", cfg.saveDir)
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

func applyRecvFileDefaults(defaults *cliConfig, fileCfg *config.RecvConfig) {
	if fileCfg.Listen.Addr != "" {
		defaults.listenAddr = fileCfg.Listen.Addr
	}
	if fileCfg.Output.Dir != "" {
		defaults.saveDir = fileCfg.Output.Dir
	}
	if fileCfg.Session.Timeout != 0 {
		defaults.timeout = fileCfg.Session.Timeout
	}
	if fileCfg.Session.MaxRetries != 0 {
		defaults.maxRetries = fileCfg.Session.MaxRetries
	}
	if fileCfg.Logging.Level != "" {
		defaults.logLevel = fileCfg.Logging.Level
	}
	if fileCfg.Metrics.Addr != "" {
		defaults.metricsAddr = fileCfg.Metrics.Addr
	}
}
