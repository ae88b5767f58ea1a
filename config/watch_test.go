package config

import (
	"context"
	"os"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	cfg := DefaultConfig()
	path := writeConfig(t, cfg)

	updates := make(chan AppConfig, 4)
	w, err := NewWatcher(path, HotReloadConfig{Enabled: true, CooldownMs: 0},
		func(c AppConfig) { updates <- c },
		func(err error) { t.Logf("watch error: %v", err) })
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	cfg.Env = "reloaded"
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	// Small delay so the write lands after the watch is in place.
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case got := <-updates:
			if got.Env == "reloaded" {
				return
			}
		case <-deadline:
			t.Fatalf("no reload observed")
		}
	}
}

func TestWatcherKeepsRunningOnBadConfig(t *testing.T) {
	path := writeConfig(t, DefaultConfig())

	updates := make(chan AppConfig, 4)
	errs := make(chan error, 4)
	w, err := NewWatcher(path, HotReloadConfig{Enabled: true, CooldownMs: 0},
		func(c AppConfig) { updates <- c },
		func(err error) { errs <- err })
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte("env: ''\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case <-errs:
	case <-updates:
		t.Fatalf("invalid config delivered as an update")
	case <-time.After(3 * time.Second):
		t.Fatalf("no error surfaced for bad config")
	}
}

func TestWatcherDisabled(t *testing.T) {
	path := writeConfig(t, DefaultConfig())
	w, err := NewWatcher(path, HotReloadConfig{Enabled: false}, nil, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
