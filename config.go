package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/OpenPeeDeeP/xdg"
)

var dirs = xdg.New("vipnode", "qwebchannel")

// Config is the resolved connection setup: built-in defaults, overridden by
// the config file, overridden by flags.
type Config struct {
	URL        string
	Transport  string
	Timeout    time.Duration
	NATSURL    string
	NATSSend   string
	NATSRecv   string
	Journal    bool
	JournalDir string
}

func defaultConfig() Config {
	return Config{
		URL:        "ws://127.0.0.1:12345",
		Transport:  "gorilla",
		Timeout:    5 * time.Second,
		NATSURL:    "nats://127.0.0.1:4222",
		NATSSend:   "qwebchannel.host",
		NATSRecv:   "qwebchannel.client",
		JournalDir: dirs.DataHome(),
	}
}

type fileConfig struct {
	URL        string `toml:"url"`
	Transport  string `toml:"transport"`
	Timeout    string `toml:"timeout"`
	Journal    bool   `toml:"journal"`
	JournalDir string `toml:"journal_dir"`
	NATS       struct {
		URL  string `toml:"url"`
		Send string `toml:"send"`
		Recv string `toml:"recv"`
	} `toml:"nats"`
}

// defaultConfigPath is where the config file is looked up when --config is
// not given.
func defaultConfigPath() string {
	return filepath.Join(dirs.ConfigHome(), "config.toml")
}

// loadConfig returns the defaults overridden by the file at path. A missing
// file at the default location is not an error.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		path = defaultConfigPath()
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		logger.Warningf("Ignoring unknown config keys in %s: %v", path, undecoded)
	}

	if meta.IsDefined("url") {
		cfg.URL = strings.TrimSpace(raw.URL)
	}
	if meta.IsDefined("transport") {
		cfg.Transport = strings.TrimSpace(raw.Transport)
	}
	if meta.IsDefined("timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Timeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if meta.IsDefined("journal") {
		cfg.Journal = raw.Journal
	}
	if meta.IsDefined("journal_dir") {
		cfg.JournalDir = strings.TrimSpace(raw.JournalDir)
	}
	if meta.IsDefined("nats", "url") {
		cfg.NATSURL = strings.TrimSpace(raw.NATS.URL)
	}
	if meta.IsDefined("nats", "send") {
		cfg.NATSSend = strings.TrimSpace(raw.NATS.Send)
	}
	if meta.IsDefined("nats", "recv") {
		cfg.NATSRecv = strings.TrimSpace(raw.NATS.Recv)
	}
	return cfg, nil
}

// applyFlags overrides the config with every flag that was set.
func (cfg *Config) applyFlags(options Options) {
	if options.URL != "" {
		cfg.URL = options.URL
	}
	if options.Transport != "" {
		cfg.Transport = options.Transport
	}
	if options.Timeout != 0 {
		cfg.Timeout = options.Timeout
	}
	if options.NATSURL != "" {
		cfg.NATSURL = options.NATSURL
	}
	if options.NATSSend != "" {
		cfg.NATSSend = options.NATSSend
	}
	if options.NATSRecv != "" {
		cfg.NATSRecv = options.NATSRecv
	}
	if options.Record {
		cfg.Journal = true
	}
	if options.JournalDir != "" {
		cfg.JournalDir = options.JournalDir
	}
}

func (cfg Config) validate() error {
	if _, ok := transports[cfg.Transport]; !ok && cfg.Transport != "nats" {
		return ErrExplain{
			fmt.Errorf("unknown transport: %q", cfg.Transport),
			"Use --transport with one of: gorilla, gobwas, coder, nats.",
		}
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got: %s", cfg.Timeout)
	}
	if cfg.Transport == "nats" && (cfg.NATSSend == "" || cfg.NATSRecv == "") {
		return ErrExplain{
			errors.New("missing NATS subjects"),
			"The nats transport needs both --nats-send and --nats-recv subjects.",
		}
	}
	if cfg.Journal && cfg.JournalDir == "" {
		return errors.New("journal enabled without a journal directory")
	}
	return nil
}
