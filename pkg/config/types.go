package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config is the main configuration struct.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Sheet     SheetConfig     `yaml:"sheet"`
	Extract   ExtractConfig   `yaml:"extract"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Retention RetentionConfig `yaml:"retention"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds webhook listener settings.
type ServerConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
	// WebhookToken, when set, must match the X-Webhook-Token header of
	// inbound deliveries.
	WebhookToken string          `yaml:"webhook_token"`
	RateLimit    RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig tunes the per-remote webhook limiter.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// StorageConfig holds the message-log location.
type StorageConfig struct {
	DBPath string `yaml:"db_path"`
	// AuditDir, when set, attaches the JSON audit file sink there.
	AuditDir string `yaml:"audit_dir"`
}

// SheetConfig describes the external tabular store.
type SheetConfig struct {
	// DBPath is the sqlite grid database path.
	DBPath string `yaml:"db_path"`
	// Name is the data grid; AuditName the audit trail grid.
	Name      string `yaml:"name"`
	AuditName string `yaml:"audit_name"`
	// IdentifierColumn is the header of the work-id column.
	IdentifierColumn string `yaml:"identifier_column"`
	// AppendFields are merged by concatenation instead of overwrite.
	AppendFields []string `yaml:"append_fields"`
	// Headers seeds the data grid's header row when the grid is empty.
	Headers []string `yaml:"headers"`
}

// ExtractConfig selects and tunes the field-extraction collaborator.
type ExtractConfig struct {
	// Provider is "anthropic" or "pattern".
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	MaxTokens int64  `yaml:"max_tokens"`
}

// IngestConfig holds queueing and processing configuration.
type IngestConfig struct {
	Workers              int       `yaml:"workers"`
	QueueCapacity        int       `yaml:"queue_capacity"`
	AllowCreate          bool      `yaml:"allow_create"`
	MaxPooledBufferBytes SizeBytes `yaml:"max_pooled_buffer_bytes"`
	HintTTL              Duration  `yaml:"hint_ttl"`
}

// RetentionConfig holds configuration for the message-log purge runner.
type RetentionConfig struct {
	Enabled bool     `yaml:"enabled"`
	Cron    string   `yaml:"cron"`
	Period  Duration `yaml:"period"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SizeBytes represents a number of bytes, unmarshaled from
// human-friendly strings like "64MB" or plain integers.
type SizeBytes int64

func (s *SizeBytes) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*s = 0
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*s = 0
		return nil
	}
	if v, err := humanize.ParseBytes(raw); err == nil {
		*s = SizeBytes(v)
		return nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*s = SizeBytes(i)
		return nil
	}
	return fmt.Errorf("invalid size value: %q", node.Value)
}

func (s SizeBytes) Int64() int64 { return int64(s) }

// Duration is a wrapper around time.Duration that supports YAML parsing
// from strings like "100ms" or plain numbers (interpreted as seconds).
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*d = Duration(0)
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*d = Duration(0)
		return nil
	}
	if td, err := time.ParseDuration(raw); err == nil {
		*d = Duration(td)
		return nil
	}
	// allow numeric seconds
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(time.Duration(f * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("invalid duration value: %q", node.Value)
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }
