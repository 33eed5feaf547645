package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "BOOKISH_API_KEY", "WORKER_COUNT", "MAX_QUEUE_SIZE",
		"MAX_CONCURRENT_PARSE", "MAX_UPLOAD_BYTES", "JOB_TTL", "SESSION_TTL",
		"WORDS_PER_MINUTE", "MIN_WORD_LENGTH", "PDF_FALLBACK_PDFTOTEXT",
		"BOOKISH_CONFIG",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8090" {
		t.Errorf("expected port 8090, got %q", cfg.Port)
	}
	if cfg.WorkerCount != 4 || cfg.MaxQueueSize != 100 || cfg.MaxConcurrentParse != 4 {
		t.Errorf("unexpected pool defaults: %+v", cfg)
	}
	if cfg.JobTTL != time.Hour || cfg.SessionTTL != 30*time.Minute {
		t.Errorf("unexpected ttl defaults: job=%s session=%s", cfg.JobTTL, cfg.SessionTTL)
	}
	if cfg.WordsPerMinute != 150 || cfg.MinWordLength != 3 {
		t.Errorf("unexpected book defaults: wpm=%d min=%d", cfg.WordsPerMinute, cfg.MinWordLength)
	}
	if !cfg.PDFFallbackPdftotext {
		t.Error("expected pdftotext fallback on by default")
	}
}

func TestLoadEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("WORKER_COUNT", "-2")
	t.Setenv("SESSION_TTL", "5m")
	t.Setenv("WORDS_PER_MINUTE", "not-a-number")
	t.Setenv("PDF_FALLBACK_PDFTOTEXT", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9000" {
		t.Errorf("expected port 9000, got %q", cfg.Port)
	}
	if cfg.WorkerCount != 4 {
		t.Errorf("expected negative worker count to fall back to 4, got %d", cfg.WorkerCount)
	}
	if cfg.SessionTTL != 5*time.Minute {
		t.Errorf("expected session ttl 5m, got %s", cfg.SessionTTL)
	}
	if cfg.WordsPerMinute != 150 {
		t.Errorf("expected invalid wpm to fall back to 150, got %d", cfg.WordsPerMinute)
	}
	if cfg.PDFFallbackPdftotext {
		t.Error("expected pdftotext fallback off")
	}
}

func TestLoadFileOverlay(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	path := filepath.Join(t.TempDir(), "bookish.toml")
	data := `
port = "7000"
words_per_minute = 200
job_ttl = "2h"
pdf_fallback_pdftotext = false

[symbols]
lang = "Go"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BOOKISH_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "7000" {
		t.Errorf("expected file port to win, got %q", cfg.Port)
	}
	if cfg.WordsPerMinute != 200 {
		t.Errorf("expected wpm 200, got %d", cfg.WordsPerMinute)
	}
	if cfg.JobTTL != 2*time.Hour {
		t.Errorf("expected job ttl 2h, got %s", cfg.JobTTL)
	}
	if cfg.PDFFallbackPdftotext {
		t.Error("expected file to turn pdftotext fallback off")
	}
	if cfg.Symbols["lang"] != "Go" {
		t.Errorf("expected symbol lang=Go, got %v", cfg.Symbols)
	}
	if cfg.MinWordLength != 3 {
		t.Errorf("expected unset keys to keep defaults, got %d", cfg.MinWordLength)
	}
}

func TestLoadFileErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOOKISH_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))
	if _, err := Load(); err == nil {
		t.Error("expected error for missing config file")
	}

	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte(`job_ttl = "soon"`), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BOOKISH_CONFIG", path)
	if _, err := Load(); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestValidate(t *testing.T) {
	if err := (Config{}).Validate(); err == nil {
		t.Error("expected missing api key to fail validation")
	}
	if err := (Config{APIKey: "secret"}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
