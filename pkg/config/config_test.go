package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
server:
  address: "127.0.0.1"
  port: 9090
  webhook_token: "secret"
  rate_limit:
    rps: 10
    burst: 20
storage:
  db_path: "/var/lib/sheetbridge/messages"
  audit_dir: "/var/log/sheetbridge"
sheet:
  db_path: "/var/lib/sheetbridge/grid.db"
  name: "jobs"
  audit_name: "trail"
  identifier_column: "Work ID"
  append_fields: ["notes", "history"]
  headers: ["Work ID", "Job Status", "Notes"]
extract:
  provider: "anthropic"
  model: "claude-3-5-haiku-latest"
  max_tokens: 1024
ingest:
  workers: 8
  queue_capacity: 1000
  allow_create: true
  max_pooled_buffer_bytes: "64KB"
  hint_ttl: "30s"
retention:
  enabled: true
  cron: "0 3 * * *"
  period: "720h"
logging:
  level: "debug"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoadFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr() != "127.0.0.1:9090" {
		t.Fatalf("Addr = %q", cfg.Addr())
	}
	if cfg.Server.WebhookToken != "secret" || cfg.Server.RateLimit.Burst != 20 {
		t.Fatalf("server config: %+v", cfg.Server)
	}
	if cfg.Sheet.Name != "jobs" || cfg.Sheet.IdentifierColumn != "Work ID" {
		t.Fatalf("sheet config: %+v", cfg.Sheet)
	}
	if len(cfg.Sheet.AppendFields) != 2 || cfg.Sheet.AppendFields[1] != "history" {
		t.Fatalf("append fields: %v", cfg.Sheet.AppendFields)
	}
	if cfg.Extract.Provider != "anthropic" || cfg.Extract.MaxTokens != 1024 {
		t.Fatalf("extract config: %+v", cfg.Extract)
	}
	if cfg.Ingest.MaxPooledBufferBytes.Int64() != 64000 {
		t.Fatalf("size parse: %d", cfg.Ingest.MaxPooledBufferBytes.Int64())
	}
	if cfg.Ingest.HintTTL.Duration() != 30*time.Second {
		t.Fatalf("hint ttl: %v", cfg.Ingest.HintTTL.Duration())
	}
	if cfg.Retention.Period.Duration() != 720*time.Hour {
		t.Fatalf("retention period: %v", cfg.Retention.Period.Duration())
	}
}

func TestDurationNumericSeconds(t *testing.T) {
	cfg, err := Load(writeConfig(t, "ingest:\n  hint_ttl: 90\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Ingest.HintTTL.Duration() != 90*time.Second {
		t.Fatalf("numeric duration: %v", cfg.Ingest.HintTTL.Duration())
	}
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Sheet.Name != "records" || cfg.Sheet.AuditName != "audit" {
		t.Fatalf("sheet defaults: %+v", cfg.Sheet)
	}
	if cfg.Sheet.IdentifierColumn != "work_id" {
		t.Fatalf("identifier default: %q", cfg.Sheet.IdentifierColumn)
	}
	if cfg.Extract.Provider != "pattern" {
		t.Fatalf("provider default: %q", cfg.Extract.Provider)
	}
	if cfg.Ingest.Workers != 4 || cfg.Ingest.QueueCapacity != 4096 {
		t.Fatalf("ingest defaults: %+v", cfg.Ingest)
	}
	if cfg.Addr() != "0.0.0.0:8080" {
		t.Fatalf("addr default: %q", cfg.Addr())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SHEETBRIDGE_ADDR", "10.0.0.5:9191")
	t.Setenv("SHEETBRIDGE_SHEET_NAME", "jobs")
	t.Setenv("SHEETBRIDGE_APPEND_FIELDS", "notes, history")
	t.Setenv("SHEETBRIDGE_RATE_RPS", "50")
	t.Setenv("SHEETBRIDGE_ALLOW_CREATE", "true")

	var cfg Config
	if !LoadEnvOverrides(&cfg) {
		t.Fatalf("env overrides not detected")
	}
	if cfg.Server.Address != "10.0.0.5" || cfg.Server.Port != 9191 {
		t.Fatalf("addr override: %+v", cfg.Server)
	}
	if cfg.Sheet.Name != "jobs" {
		t.Fatalf("sheet name override: %q", cfg.Sheet.Name)
	}
	if len(cfg.Sheet.AppendFields) != 2 || cfg.Sheet.AppendFields[1] != "history" {
		t.Fatalf("append fields override: %v", cfg.Sheet.AppendFields)
	}
	if cfg.Server.RateLimit.RPS != 50 {
		t.Fatalf("rps override: %v", cfg.Server.RateLimit.RPS)
	}
	if !cfg.Ingest.AllowCreate {
		t.Fatalf("allow_create override not applied")
	}
}

func TestLoadEffectiveMissingFile(t *testing.T) {
	cfg, _, err := LoadEffective(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadEffective: %v", err)
	}
	if cfg.Sheet.Name != "records" {
		t.Fatalf("defaults not applied on missing file: %+v", cfg.Sheet)
	}
}

func TestResolveConfigPath(t *testing.T) {
	if p := ResolveConfigPath("./flagged.yaml", true); p != "./flagged.yaml" {
		t.Fatalf("explicit flag must win: %q", p)
	}
	t.Setenv("SHEETBRIDGE_CONFIG", "/etc/sheetbridge/config.yaml")
	if p := ResolveConfigPath("./config.yaml", false); p != "/etc/sheetbridge/config.yaml" {
		t.Fatalf("env fallback: %q", p)
	}
}

func TestAnthropicAPIKeyPrecedence(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "generic")
	t.Setenv("SHEETBRIDGE_ANTHROPIC_API_KEY", "specific")
	if k := AnthropicAPIKey(); k != "specific" {
		t.Fatalf("key precedence: %q", k)
	}
}
