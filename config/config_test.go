package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Analysis.PauseThreshold != 0.5 {
		t.Fatalf("expected pause threshold 0.5, got %v", cfg.Analysis.PauseThreshold)
	}
	if cfg.Analysis.WindowMargin != 0.1 {
		t.Fatalf("expected window margin 0.1, got %v", cfg.Analysis.WindowMargin)
	}
	if cfg.Media.SampleRate != 16000 {
		t.Fatalf("expected 16 kHz, got %d", cfg.Media.SampleRate)
	}
	if got := cfg.Scoring.DefaultProfile["relevance"]; got != 40 {
		t.Fatalf("expected default relevance weight 40, got %v", got)
	}
	if len(cfg.Analysis.RAGCategories) != 2 {
		t.Fatalf("expected two rag categories, got %v", cfg.Analysis.RAGCategories)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
pipeline:
  log_level: debug
services:
  asr:
    url: http://asr:9000
analysis:
  pause_threshold: 0.7
jobs:
  workers: 3
  queue_size: 1
  timeout_sec: 60
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AMER_HTTP_ADDR", ":9999")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Pipeline.LogLvl != "debug" {
		t.Fatalf("expected debug log level, got %s", cfg.Pipeline.LogLvl)
	}
	if cfg.Services.ASR.URL != "http://asr:9000" {
		t.Fatalf("unexpected asr url %q", cfg.Services.ASR.URL)
	}
	if cfg.Analysis.PauseThreshold != 0.7 {
		t.Fatalf("expected file override 0.7, got %v", cfg.Analysis.PauseThreshold)
	}
	if cfg.HTTP.Addr != ":9999" {
		t.Fatalf("expected env override :9999, got %s", cfg.HTTP.Addr)
	}
	if cfg.Jobs.QueueSize < cfg.Jobs.Workers {
		t.Fatalf("queue size should be at least workers, got %d", cfg.Jobs.QueueSize)
	}
	if cfg.JobTimeout() != time.Minute {
		t.Fatalf("expected 1m timeout, got %v", cfg.JobTimeout())
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}
