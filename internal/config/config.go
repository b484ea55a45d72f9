// Package config provides configuration loading from environment variables,
// an optional YAML file and command-line overrides.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"

	"github.com/maauso/urbanmel/internal/audio"
	"github.com/maauso/urbanmel/internal/features"
	"github.com/maauso/urbanmel/internal/storage"
)

// ErrInvalid is returned when the configuration fails validation.
var ErrInvalid = errors.New("config: invalid configuration")

// Config holds all configuration for a run.
type Config struct {
	// Input and output
	DatasetDir string `env:"DATASET_DIR, default=UrbanSound8K/audio" yaml:"dataset_dir" json:"dataset_dir" validate:"required"`
	OutputDir  string `env:"OUTPUT_DIR, default=features" yaml:"output_dir" json:"output_dir" validate:"required"`
	NumFolds   int    `env:"NUM_FOLDS, default=10" yaml:"num_folds" json:"num_folds" validate:"gte=1"`
	Folds      []int  `env:"FOLDS" yaml:"folds" json:"folds,omitempty" validate:"unique,dive,gte=1"`
	AudioExt   string `env:"AUDIO_EXT, default=.wav" yaml:"audio_ext" json:"audio_ext" validate:"oneof=.wav .wave .flac wav wave flac"`

	// Feature settings
	SampleRate   int           `env:"SAMPLE_RATE, default=22050" yaml:"sample_rate" json:"sample_rate" validate:"gt=0"`
	Bands        int           `env:"BANDS, default=60" yaml:"bands" json:"bands" validate:"gt=0"`
	Frames       int           `env:"FRAMES, default=41" yaml:"frames" json:"frames" validate:"gt=0"`
	ClipDuration time.Duration `env:"CLIP_DURATION, default=4s" yaml:"clip_duration" json:"clip_duration" validate:"gt=0"`
	MaxDuration  time.Duration `env:"MAX_DURATION, default=4s" yaml:"max_duration" json:"max_duration" validate:"gte=0"`
	MelFMin      float64       `env:"MEL_FMIN, default=0" yaml:"mel_fmin" json:"mel_fmin" validate:"gte=0"`
	MelFMax      float64       `env:"MEL_FMAX, default=8000" yaml:"mel_fmax" json:"mel_fmax" validate:"gtfield=MelFMin"`
	NumClasses   int           `env:"NUM_CLASSES, default=10" yaml:"num_classes" json:"num_classes" validate:"gt=0"`

	// Processing settings
	Workers int    `env:"WORKERS, default=10" yaml:"workers" json:"workers" validate:"gt=0"`
	DType   string `env:"DTYPE, default=float32" yaml:"dtype" json:"dtype" validate:"oneof=float32 float16"`

	// Optional S3 mirror
	S3Bucket           string `env:"S3_BUCKET" yaml:"s3_bucket" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" yaml:"s3_region" json:"s3_region,omitempty"`
	S3Prefix           string `env:"S3_PREFIX" yaml:"s3_prefix" json:"s3_prefix,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" yaml:"s3_endpoint" json:"s3_endpoint,omitempty" validate:"omitempty,url"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" yaml:"-" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" yaml:"-" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" yaml:"log_format" json:"log_format" validate:"oneof=text json TEXT JSON"`
	LogLevel  string `env:"LOG_LEVEL, default=info" yaml:"log_level" json:"log_level"` // "debug", "info", "warn", "error"
}

// Load reads configuration from environment variables using go-envconfig.
// The result is not validated; call Validate after applying overrides.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// ApplyFile overlays the YAML file at path onto c. Keys absent from the file
// keep their current values; unknown keys are an error.
func (c *Config) ApplyFile(path string) error {
	f, err := os.Open(path) // #nosec G304 - path is given by the operator
	if err != nil {
		return fmt.Errorf("config: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if nyquist := float64(c.SampleRate) / 2; c.MelFMax > nyquist {
		return fmt.Errorf("%w: MEL_FMAX %.0f above Nyquist frequency %.0f", ErrInvalid, c.MelFMax, nyquist)
	}
	if n, _ := features.WindowLength(c.SampleRate, c.ClipDuration, c.Frames); n < 2 {
		return fmt.Errorf("%w: %d frames per %s at %d Hz leaves no room for a window", ErrInvalid, c.Frames, c.ClipDuration, c.SampleRate)
	}
	return nil
}

// FoldList returns the folds to process: Folds if set, otherwise 1..NumFolds.
func (c *Config) FoldList() []int {
	if len(c.Folds) > 0 {
		out := make([]int, len(c.Folds))
		copy(out, c.Folds)
		return out
	}
	out := make([]int, c.NumFolds)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

// Extension returns AudioExt with a leading dot.
func (c *Config) Extension() string {
	if strings.HasPrefix(c.AudioExt, ".") {
		return c.AudioExt
	}
	return "." + c.AudioExt
}

// ExtractorConfig returns the feature extractor settings.
func (c *Config) ExtractorConfig() features.ExtractorConfig {
	return features.ExtractorConfig{
		SampleRate:   c.SampleRate,
		Bands:        c.Bands,
		Frames:       c.Frames,
		ClipDuration: c.ClipDuration,
		FMin:         c.MelFMin,
		FMax:         c.MelFMax,
	}
}

// LoadOpts returns the clip decoding options.
func (c *Config) LoadOpts() audio.LoadOpts {
	return audio.LoadOpts{
		TargetSampleRate: c.SampleRate,
		MaxDuration:      c.MaxDuration,
	}
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// S3Config returns the S3 mirror settings.
func (c *Config) S3Config() storage.S3Config {
	return storage.S3Config{
		Bucket:          c.S3Bucket,
		Region:          c.S3Region,
		Prefix:          c.S3Prefix,
		Endpoint:        c.S3Endpoint,
		AccessKeyID:     c.AWSAccessKeyID,
		SecretAccessKey: c.AWSSecretAccessKey,
	}
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs. Logs go to stderr so that
// stdout carries only command output.
func (c *Config) NewLogger() *slog.Logger {
	return c.newLogger(os.Stderr)
}

func (c *Config) newLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.LogLevel)}

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{DatasetDir: %s, OutputDir: %s, Folds: %v, AudioExt: %s, SampleRate: %d, Bands: %d, Frames: %d, ClipDuration: %s, MaxDuration: %s, Mel: %.0f-%.0f Hz, NumClasses: %d, Workers: %d, DType: %s, S3Bucket: %s, S3Region: %s, S3Prefix: %s, LogFormat: %s, LogLevel: %s}",
		c.DatasetDir,
		c.OutputDir,
		c.FoldList(),
		c.AudioExt,
		c.SampleRate,
		c.Bands,
		c.Frames,
		c.ClipDuration,
		c.MaxDuration,
		c.MelFMin,
		c.MelFMax,
		c.NumClasses,
		c.Workers,
		c.DType,
		c.S3Bucket,
		c.S3Region,
		c.S3Prefix,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
