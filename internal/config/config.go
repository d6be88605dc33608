// Package config loads the optional YAML configuration file accepted by
// both cmd/ binaries. Command-line flags always take precedence over a
// loaded file: callers load the file before parsing flags and use its
// non-zero values as the flag defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SendConfig is the sender's -config file shape.
type SendConfig struct {
	File     FileBlock     `yaml:"file"`
	Target   TargetBlock   `yaml:"target"`
	Session  SessionBlock  `yaml:"session"`
	Schedule ScheduleBlock `yaml:"schedule"`
	Logging  LoggingBlock  `yaml:"logging"`
	Metrics  MetricsBlock  `yaml:"metrics"`
}

// RecvConfig is the receiver's -config file shape.
type RecvConfig struct {
	Listen  ListenBlock  `yaml:"listen"`
	Output  OutputBlock  `yaml:"output"`
	Session SessionBlock `yaml:"session"`
	Logging LoggingBlock `yaml:"logging"`
	Metrics MetricsBlock `yaml:"metrics"`
}

type FileBlock struct {
	Path string `yaml:"path"`
}

type TargetBlock struct {
	Addr string `yaml:"addr"`
}

type ListenBlock struct {
	Addr string `yaml:"addr"`
}

type OutputBlock struct {
	Dir string `yaml:"dir"`
}

// SessionBlock mirrors the negotiable fields of session.Params; a zero value
// means "not set in this file, fall back to the flag default".
type SessionBlock struct {
	PacketSize int           `yaml:"packet_size"`
	WindowSize int           `yaml:"window_size"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// ScheduleBlock configures the sender's optional repeated-send cron job.
// An empty Cron means "send once and exit" (the spec's baseline behavior).
type ScheduleBlock struct {
	Cron string `yaml:"cron"`
}

type LoggingBlock struct {
	Level string `yaml:"level"`
}

type MetricsBlock struct {
	Addr string `yaml:"addr"`
}

// LoadSendConfig reads and parses path. A missing or unreadable file,
// including an empty path, is an error; callers skip the call when no
// -config flag was given.
func LoadSendConfig(path string) (*SendConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sender config %s: %w", path, err)
	}
	var cfg SendConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing sender config %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadRecvConfig reads and parses path.
func LoadRecvConfig(path string) (*RecvConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading receiver config %s: %w", path, err)
	}
	var cfg RecvConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing receiver config %s: %w", path, err)
	}
	return &cfg, nil
}
