package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Worker pool
	WorkerCount        int
	MaxQueueSize       int
	MaxConcurrentParse int

	// Upload limits
	MaxUploadBytes int64

	// Job and session state
	JobTTL     time.Duration
	SessionTTL time.Duration

	// Books
	WordsPerMinute int
	MinWordLength  int
	// Symbols are global symbol definitions applied to every parse.
	Symbols map[string]string

	// PDF
	PDFFallbackPdftotext bool
}

// fileConfig is the TOML overlay read from BOOKISH_CONFIG. Zero values
// leave the environment setting in place.
type fileConfig struct {
	Port                 string            `toml:"port"`
	APIKey               string            `toml:"api_key"`
	WorkerCount          int               `toml:"worker_count"`
	MaxQueueSize         int               `toml:"max_queue_size"`
	MaxConcurrentParse   int               `toml:"max_concurrent_parse"`
	MaxUploadBytes       int64             `toml:"max_upload_bytes"`
	JobTTL               string            `toml:"job_ttl"`
	SessionTTL           string            `toml:"session_ttl"`
	WordsPerMinute       int               `toml:"words_per_minute"`
	MinWordLength        int               `toml:"min_word_length"`
	PDFFallbackPdftotext *bool             `toml:"pdf_fallback_pdftotext"`
	Symbols              map[string]string `toml:"symbols"`
}

// Load reads the environment, then overlays the TOML file named by
// BOOKISH_CONFIG when set.
func Load() (Config, error) {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("BOOKISH_API_KEY"),

		WorkerCount:        envInt("WORKER_COUNT", 4),
		MaxQueueSize:       envInt("MAX_QUEUE_SIZE", 100),
		MaxConcurrentParse: envInt("MAX_CONCURRENT_PARSE", 4),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		JobTTL:     envDuration("JOB_TTL", 1*time.Hour),
		SessionTTL: envDuration("SESSION_TTL", 30*time.Minute),

		WordsPerMinute: envInt("WORDS_PER_MINUTE", 150),
		MinWordLength:  envInt("MIN_WORD_LENGTH", 3),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),
	}

	if path := os.Getenv("BOOKISH_CONFIG"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return cfg, err
		}
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var f fileConfig
	if err := toml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}

	if f.Port != "" {
		c.Port = f.Port
	}
	if f.APIKey != "" {
		c.APIKey = f.APIKey
	}
	if f.WorkerCount != 0 {
		c.WorkerCount = f.WorkerCount
	}
	if f.MaxQueueSize != 0 {
		c.MaxQueueSize = f.MaxQueueSize
	}
	if f.MaxConcurrentParse != 0 {
		c.MaxConcurrentParse = f.MaxConcurrentParse
	}
	if f.MaxUploadBytes != 0 {
		c.MaxUploadBytes = f.MaxUploadBytes
	}
	if f.WordsPerMinute != 0 {
		c.WordsPerMinute = f.WordsPerMinute
	}
	if f.MinWordLength != 0 {
		c.MinWordLength = f.MinWordLength
	}
	if f.PDFFallbackPdftotext != nil {
		c.PDFFallbackPdftotext = *f.PDFFallbackPdftotext
	}
	if f.JobTTL != "" {
		d, err := time.ParseDuration(f.JobTTL)
		if err != nil {
			return fmt.Errorf("job_ttl: %w", err)
		}
		c.JobTTL = d
	}
	if f.SessionTTL != "" {
		d, err := time.ParseDuration(f.SessionTTL)
		if err != nil {
			return fmt.Errorf("session_ttl: %w", err)
		}
		c.SessionTTL = d
	}
	if len(f.Symbols) > 0 {
		c.Symbols = f.Symbols
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.WorkerCount <= 0 {
		c.WorkerCount = 4
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = 100
	}
	if c.MaxConcurrentParse <= 0 {
		c.MaxConcurrentParse = 4
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 52428800
	}
	if c.JobTTL <= 0 {
		c.JobTTL = 1 * time.Hour
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 30 * time.Minute
	}
	if c.WordsPerMinute <= 0 {
		c.WordsPerMinute = 150
	}
	if c.MinWordLength <= 0 {
		c.MinWordLength = 3
	}
}

// Validate checks settings the HTTP server needs. The CLI does not call it.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("BOOKISH_API_KEY is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
