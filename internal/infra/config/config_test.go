package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("port = %q", cfg.Port)
	}
	if cfg.Download.RetentionMinutes != 15 || cfg.Download.SweepIntervalMinutes != 5 {
		t.Errorf("retention/sweep = %d/%d", cfg.Download.RetentionMinutes, cfg.Download.SweepIntervalMinutes)
	}
	if cfg.Download.MaxActivePerSession != 3 || cfg.Download.HistoryLimit != 20 {
		t.Errorf("limits = %d/%d", cfg.Download.MaxActivePerSession, cfg.Download.HistoryLimit)
	}
	if cfg.Tools.YtdlpPath != "yt-dlp" {
		t.Errorf("ytdlp path = %q", cfg.Tools.YtdlpPath)
	}
	if cfg.Download.Retention() != 15*time.Minute {
		t.Errorf("Retention() = %v", cfg.Download.Retention())
	}
	if cfg.Tools.InfoTimeout() != 30*time.Second {
		t.Errorf("InfoTimeout() = %v", cfg.Tools.InfoTimeout())
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
port: "9090"
download:
  dir: /srv/media
  retention_minutes: 30
tools:
  ytdlp_path: /usr/local/bin/yt-dlp
  ffmpeg_dir: /opt/ffmpeg
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("port = %q", cfg.Port)
	}
	if cfg.Download.Dir != "/srv/media" || cfg.Download.RetentionMinutes != 30 {
		t.Errorf("download = %+v", cfg.Download)
	}
	if cfg.Tools.FfmpegDir != "/opt/ffmpeg" {
		t.Errorf("ffmpeg dir = %q", cfg.Tools.FfmpegDir)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
	// Unset keys keep their defaults.
	if cfg.Download.SweepIntervalMinutes != 5 {
		t.Errorf("sweep interval = %d", cfg.Download.SweepIntervalMinutes)
	}
}

func TestLoadClampsNonsenseValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
download:
  retention_minutes: -5
  max_active_per_session: 0
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Download.RetentionMinutes != 15 {
		t.Errorf("retention = %d, want clamped default 15", cfg.Download.RetentionMinutes)
	}
	if cfg.Download.MaxActivePerSession != 3 {
		t.Errorf("max active = %d, want clamped default 3", cfg.Download.MaxActivePerSession)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("port: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}
