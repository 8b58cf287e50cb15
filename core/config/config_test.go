package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizeDefaults(t *testing.T) {
	cfg := &Config{Telegram: TelegramConfig{Token: " token ", RunMode: "polling"}}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Telegram.Token != "token" {
		t.Fatalf("token not trimmed: %q", cfg.Telegram.Token)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run mode = %q, want %q", cfg.Telegram.RunMode, RunModeLongpoll)
	}
	if cfg.Telegram.ConnectTimeoutSeconds != DefaultTimeoutSeconds ||
		cfg.Telegram.ReadTimeoutSeconds != DefaultTimeoutSeconds ||
		cfg.Telegram.WriteTimeoutSeconds != DefaultTimeoutSeconds {
		t.Fatalf("timeouts not defaulted: %+v", cfg.Telegram)
	}
}

func TestNormalizeRejects(t *testing.T) {
	cases := map[string]Config{
		"missing token": {},
		"bad run mode":  {Telegram: TelegramConfig{Token: "x", RunMode: "push"}},
		"webhook without url": {
			Telegram: TelegramConfig{Token: "x", RunMode: RunModeWebhook},
		},
		"bad proxy scheme": {Telegram: TelegramConfig{Token: "x", ProxyURL: "ftp://127.0.0.1:21"}},
		"negative timeout": {Telegram: TelegramConfig{Token: "x", ReadTimeoutSeconds: -1}},
		"bad exclude": {
			Telegram:  TelegramConfig{Token: "x"},
			RateLimit: RateLimitConfig{ExcludeUpdates: []string{"poll"}},
		},
	}
	for name, cfg := range cases {
		cfg := cfg
		if err := Normalize(&cfg); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestIsAdmin(t *testing.T) {
	cfg := &Config{Telegram: TelegramConfig{AdminIDs: []int64{7, 42}}}
	if !cfg.IsAdmin(42) {
		t.Fatal("42 should be admin")
	}
	if cfg.IsAdmin(1) {
		t.Fatal("1 should not be admin")
	}
	var nilCfg *Config
	if nilCfg.IsAdmin(42) {
		t.Fatal("nil config has no admins")
	}
}

func TestLoadYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte("telegram:\n  token: from-yaml\n  admin_ids: [1, 2]\n  proxy_url: socks5://127.0.0.1:1080\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("BOT_TOKEN", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "from-env" {
		t.Fatalf("env should override yaml, got %q", cfg.Telegram.Token)
	}
	if len(cfg.Telegram.AdminIDs) != 2 {
		t.Fatalf("admin ids = %v", cfg.Telegram.AdminIDs)
	}
}

func TestLoadMissingFileUsesEnv(t *testing.T) {
	t.Setenv("BOT_TOKEN", "env-only")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "env-only" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
}
