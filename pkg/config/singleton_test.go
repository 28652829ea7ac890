package config

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"
)

func TestSingleton_SetAndGet(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })

	cfg := validConfig()
	SetConfig(cfg)
	if GetConfig() != cfg {
		t.Error("GetConfig() did not return the stored config")
	}
	if MustGetConfig() != cfg {
		t.Error("MustGetConfig() did not return the stored config")
	}
}

func TestMustGetConfig_Panics(t *testing.T) {
	SetConfig(nil)
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	MustGetConfig()
}

func TestReloadConfig_KeepsRestartOnlyFields(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })

	current := validConfig()
	current.Security.SecretKey = "startup-key"
	SetConfig(current)

	path := writeConfig(t, `
server:
  listen_address: ":7000"
storage:
  db_path: other.db
  roasts_db_path: other-roasts.db
retention:
  keep_days: 30
telemetry:
  logging:
    level: debug
`)

	cfg, err := ReloadConfig(path)
	if err != nil {
		t.Fatalf("ReloadConfig() error: %v", err)
	}

	if cfg.Retention.KeepDays != 30 || cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("live fields not reloaded: %+v %+v", cfg.Retention, cfg.Telemetry.Logging)
	}
	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("listen address changed to %q", cfg.Server.ListenAddress)
	}
	if cfg.Storage.DBPath != DefaultDBPath {
		t.Errorf("db path changed to %q", cfg.Storage.DBPath)
	}
	if cfg.Security.SecretKey != "startup-key" {
		t.Errorf("secret key changed")
	}
	if GetConfig() != cfg {
		t.Error("reloaded config not stored")
	}
}

func TestReloadConfig_KeepsCurrentOnError(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })

	current := validConfig()
	SetConfig(current)

	if _, err := ReloadConfig(writeConfig(t, "retention:\n  keep_days: -3\n")); err == nil {
		t.Fatal("expected error")
	}
	if GetConfig() != current {
		t.Error("current config was replaced")
	}
}

func TestSingleton_ConcurrentAccess(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			SetConfig(validConfig())
		}()
		go func() {
			defer wg.Done()
			_ = GetConfig()
		}()
	}
	wg.Wait()
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })
	SetConfig(validConfig())

	path := writeConfig(t, "retention:\n  keep_days: 7\n")

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(path, 20*time.Millisecond, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	if err != nil {
		t.Fatalf("NewWatcher() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher goroutine a moment to enter its loop.
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte("retention:\n  keep_days: 21\n"), 0o644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Retention.KeepDays != 21 {
			t.Errorf("keep days = %d, want 21", cfg.Retention.KeepDays)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}
}

func TestNewWatcher_RequiresPath(t *testing.T) {
	if _, err := NewWatcher("", 0, nil); err == nil {
		t.Error("expected error")
	}
}
