package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
url = "ws://example.com:9000"
transport = "coder"
timeout = "2s"
journal = true

[nats]
send = "bridge.in"
`)
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}

	want := defaultConfig()
	want.URL = "ws://example.com:9000"
	want.Transport = "coder"
	want.Timeout = 2 * time.Second
	want.Journal = true
	want.NATSSend = "bridge.in"
	if cfg != want {
		t.Errorf("got: %+v\nwant: %+v", cfg, want)
	}

	// Flags win over the file.
	cfg.applyFlags(Options{Transport: "gobwas", Timeout: time.Second, NATSRecv: "bridge.out"})
	if cfg.Transport != "gobwas" || cfg.Timeout != time.Second || cfg.NATSRecv != "bridge.out" {
		t.Errorf("flags not applied: %+v", cfg)
	}
	if cfg.URL != "ws://example.com:9000" {
		t.Errorf("unset flag overrode the file: %q", cfg.URL)
	}
	if err := cfg.validate(); err != nil {
		t.Errorf("unexpected error: %s", err)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
	if _, err := loadConfig(writeConfig(t, `timeout = "soon"`)); err == nil {
		t.Error("expected error for invalid timeout")
	}
	if _, err := loadConfig(writeConfig(t, `url = `)); err == nil {
		t.Error("expected error for invalid TOML")
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"nats", func(c *Config) { c.Transport = "nats" }, true},
		{"unknown transport", func(c *Config) { c.Transport = "carrier-pigeon" }, false},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, false},
		{"nats without subjects", func(c *Config) { c.Transport = "nats"; c.NATSRecv = "" }, false},
		{"journal without dir", func(c *Config) { c.Journal = true; c.JournalDir = "" }, false},
	}
	for _, tc := range tests {
		cfg := defaultConfig()
		tc.modify(&cfg)
		err := cfg.validate()
		if tc.ok && err != nil {
			t.Errorf("%s: unexpected error: %s", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}
