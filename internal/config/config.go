package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file settings
const (
	EnvASREndpoint = "DIARIZER_ASR_ENDPOINT"
	EnvASRAPIKey   = "DIARIZER_ASR_API_KEY"
	EnvLogLevel    = "DIARIZER_LOG_LEVEL"
)

// Config represents the complete service configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Audio    AudioConfig    `yaml:"audio"`
	Features FeaturesConfig `yaml:"features"`
	ASR      ASRConfig      `yaml:"asr"`
	Jobs     JobsConfig     `yaml:"jobs"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig contains HTTP API server configuration
type ServerConfig struct {
	Port         int    `yaml:"port"`
	Address      string `yaml:"address"`
	MaxUploadMB  int    `yaml:"max_upload_mb"`
	ReadTimeout  int    `yaml:"read_timeout"`  // seconds
	WriteTimeout int    `yaml:"write_timeout"` // seconds
}

// AudioConfig contains decoding and slicing parameters
type AudioConfig struct {
	WindowSeconds      float64 `yaml:"window_seconds"`       // 0 = send the whole clip
	MaxDurationSeconds float64 `yaml:"max_duration_seconds"` // 0 = unlimited
}

// FeaturesConfig contains diarization options
type FeaturesConfig struct {
	SpeakerStrategy string `yaml:"speaker_strategy"` // parity | band_sum
	Language        string `yaml:"language"`
}

// ASRConfig contains speech recognition service configuration
type ASRConfig struct {
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"api_key"`
	Timeout       int    `yaml:"timeout"` // seconds
	MaxRetries    int    `yaml:"max_retries"`
	MaxConcurrent int    `yaml:"max_concurrent"`
	RetryBackoff  int    `yaml:"retry_backoff_ms"`
	Model         string `yaml:"model"`
	ChunkLength   int    `yaml:"chunk_length_s"`
	StrideLength  int    `yaml:"stride_length_s"`
}

// JobsConfig contains asynchronous job settings
type JobsConfig struct {
	MaxConcurrent   int `yaml:"max_concurrent"`
	MaxQueued       int `yaml:"max_queued"`
	Timeout         int `yaml:"timeout"`          // seconds, 0 = none
	Retention       int `yaml:"retention"`        // seconds
	CleanupInterval int `yaml:"cleanup_interval"` // seconds
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns a complete, valid configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Address:      "0.0.0.0",
			MaxUploadMB:  100,
			ReadTimeout:  60,
			WriteTimeout: 600,
		},
		Audio: AudioConfig{
			WindowSeconds:      0,
			MaxDurationSeconds: 3600,
		},
		Features: FeaturesConfig{
			SpeakerStrategy: "parity",
			Language:        "en",
		},
		ASR: ASRConfig{
			Endpoint:      "http://localhost:9000/transcribe",
			Timeout:       120,
			MaxRetries:    3,
			MaxConcurrent: 4,
			RetryBackoff:  1000,
			Model:         "whisper-tiny",
			ChunkLength:   30,
			StrideLength:  5,
		},
		Jobs: JobsConfig{
			MaxConcurrent:   2,
			MaxQueued:       100,
			Timeout:         1800,
			Retention:       3600,
			CleanupInterval: 60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Load reads the configuration file over the defaults, applies environment
// overrides (including a .env file in the working directory) and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := LoadDotEnv(); err != nil {
		return nil, err
	}
	config.ApplyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// LoadDotEnv loads variables from the given files (default ".env") without
// overriding variables already set. Missing files are skipped.
func LoadDotEnv(filenames ...string) error {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}

	for _, filename := range filenames {
		if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(filename); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", filename, err)
		}
	}

	return nil
}

// ApplyEnv overrides settings from environment variables
func (c *Config) ApplyEnv() {
	if endpoint := os.Getenv(EnvASREndpoint); endpoint != "" {
		c.ASR.Endpoint = endpoint
	}

	if apiKey := os.Getenv(EnvASRAPIKey); apiKey != "" {
		c.ASR.APIKey = apiKey
	}

	if level := os.Getenv(EnvLogLevel); level != "" {
		c.Logging.Level = level
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Features.Validate(); err != nil {
		return fmt.Errorf("features config: %w", err)
	}

	if err := c.ASR.Validate(); err != nil {
		return fmt.Errorf("asr config: %w", err)
	}

	if err := c.Jobs.Validate(); err != nil {
		return fmt.Errorf("jobs config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}

	if s.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	if s.MaxUploadMB < 1 {
		return fmt.Errorf("max_upload_mb must be at least 1, got %d", s.MaxUploadMB)
	}

	if s.ReadTimeout < 1 {
		return fmt.Errorf("read_timeout must be at least 1 second, got %d", s.ReadTimeout)
	}

	if s.WriteTimeout < 1 {
		return fmt.Errorf("write_timeout must be at least 1 second, got %d", s.WriteTimeout)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.WindowSeconds < 0 {
		return fmt.Errorf("window_seconds cannot be negative, got %f", a.WindowSeconds)
	}

	if a.WindowSeconds > 0 && a.WindowSeconds < 1 {
		return fmt.Errorf("window_seconds must be 0 or at least 1 second, got %f", a.WindowSeconds)
	}

	if a.MaxDurationSeconds < 0 {
		return fmt.Errorf("max_duration_seconds cannot be negative, got %f", a.MaxDurationSeconds)
	}

	return nil
}

// Validate validates feature configuration
func (f *FeaturesConfig) Validate() error {
	validStrategies := map[string]bool{"": true, "parity": true, "band_sum": true}
	if !validStrategies[f.SpeakerStrategy] {
		return fmt.Errorf("speaker_strategy must be 'parity' or 'band_sum', got '%s'", f.SpeakerStrategy)
	}

	return nil
}

// Validate validates ASR configuration
func (a *ASRConfig) Validate() error {
	if a.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	endpoint, err := url.Parse(a.Endpoint)
	if err != nil || (endpoint.Scheme != "http" && endpoint.Scheme != "https") || endpoint.Host == "" {
		return fmt.Errorf("endpoint must be an http(s) URL, got '%s'", a.Endpoint)
	}

	if a.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", a.Timeout)
	}

	if a.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", a.MaxRetries)
	}

	if a.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", a.MaxConcurrent)
	}

	if a.RetryBackoff < 0 {
		return fmt.Errorf("retry_backoff_ms cannot be negative, got %d", a.RetryBackoff)
	}

	if a.ChunkLength < 1 {
		return fmt.Errorf("chunk_length_s must be at least 1, got %d", a.ChunkLength)
	}

	if a.StrideLength < 0 || a.StrideLength >= a.ChunkLength {
		return fmt.Errorf("stride_length_s must be between 0 and chunk_length_s (%d), got %d", a.ChunkLength, a.StrideLength)
	}

	return nil
}

// Validate validates job configuration
func (j *JobsConfig) Validate() error {
	if j.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", j.MaxConcurrent)
	}

	if j.MaxQueued < 0 {
		return fmt.Errorf("max_queued cannot be negative, got %d", j.MaxQueued)
	}

	if j.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative, got %d", j.Timeout)
	}

	if j.Retention < 1 {
		return fmt.Errorf("retention must be at least 1 second, got %d", j.Retention)
	}

	if j.CleanupInterval < 1 {
		return fmt.Errorf("cleanup_interval must be at least 1 second, got %d", j.CleanupInterval)
	}

	return nil
}

// Validate validates logging configuration. Output may be stdout, stderr or a file path.
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// MaxUploadBytes returns the upload limit in bytes
func (s *ServerConfig) MaxUploadBytes() int64 {
	return int64(s.MaxUploadMB) << 20
}

// GetReadTimeoutDuration returns the read timeout as a time.Duration
func (s *ServerConfig) GetReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// GetWriteTimeoutDuration returns the write timeout as a time.Duration
func (s *ServerConfig) GetWriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// GetTimeoutDuration returns the ASR request timeout as a time.Duration
func (a *ASRConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(a.Timeout) * time.Second
}

// GetRetryBackoffDuration returns the base retry delay as a time.Duration
func (a *ASRConfig) GetRetryBackoffDuration() time.Duration {
	return time.Duration(a.RetryBackoff) * time.Millisecond
}

// GetTimeoutDuration returns the per-job timeout as a time.Duration
func (j *JobsConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(j.Timeout) * time.Second
}

// GetRetentionDuration returns the finished job retention as a time.Duration
func (j *JobsConfig) GetRetentionDuration() time.Duration {
	return time.Duration(j.Retention) * time.Second
}

// GetCleanupIntervalDuration returns the cleanup interval as a time.Duration
func (j *JobsConfig) GetCleanupIntervalDuration() time.Duration {
	return time.Duration(j.CleanupInterval) * time.Second
}
