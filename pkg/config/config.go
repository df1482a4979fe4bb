package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Addr returns host:port for the webhook listener.
func (c *Config) Addr() string {
	addr := c.Server.Address
	if addr == "" {
		addr = "0.0.0.0"
	}
	p := c.Server.Port
	if p == 0 {
		p = 8080
	}
	return fmt.Sprintf("%s:%d", addr, p)
}

// ApplyDefaults fills unset values with working defaults.
func (c *Config) ApplyDefaults() {
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = "./.messages"
	}
	if c.Sheet.DBPath == "" {
		c.Sheet.DBPath = "./.sheet/grid.db"
	}
	if c.Sheet.Name == "" {
		c.Sheet.Name = "records"
	}
	if c.Sheet.AuditName == "" {
		c.Sheet.AuditName = "audit"
	}
	if c.Sheet.IdentifierColumn == "" {
		c.Sheet.IdentifierColumn = "work_id"
	}
	if len(c.Sheet.AppendFields) == 0 {
		c.Sheet.AppendFields = []string{"notes"}
	}
	if c.Extract.Provider == "" {
		c.Extract.Provider = "pattern"
	}
	if c.Ingest.Workers == 0 {
		c.Ingest.Workers = 4
	}
	if c.Ingest.QueueCapacity == 0 {
		c.Ingest.QueueCapacity = 4096
	}
}

// Load reads a YAML config file from path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseCommandFlags defines and parses command-line flags and returns
// their values along with a map indicating which were explicitly set.
func ParseCommandFlags() (addr string, dbPath string, cfgPath string, setFlags map[string]bool) {
	addrPtr := flag.String("addr", ":8080", "HTTP listen address")
	dbPtr := flag.String("db", "./.messages", "message log path")
	cfgPtr := flag.String("config", "./config.yaml", "path to config file")
	flag.Parse()
	setFlags = map[string]bool{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return *addrPtr, *dbPtr, *cfgPtr, setFlags
}

// ResolveConfigPath decides the config file path using the
// flag-provided value and SHEETBRIDGE_CONFIG when the flag is unset.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("SHEETBRIDGE_CONFIG"); p != "" {
		return p
	}
	return flagPath
}

// LoadEnvOverrides applies SHEETBRIDGE_* environment overrides onto the
// provided cfg and reports whether any were used.
func LoadEnvOverrides(cfg *Config) bool {
	envUsed := false
	parseList := func(v string) []string {
		var parts []string
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				parts = append(parts, s)
			}
		}
		return parts
	}

	if v := os.Getenv("SHEETBRIDGE_ADDR"); v != "" {
		envUsed = true
		if h, p, err := net.SplitHostPort(v); err == nil {
			cfg.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				cfg.Server.Port = pi
			}
		} else {
			cfg.Server.Address = v
		}
	}
	if v := os.Getenv("SHEETBRIDGE_DB_PATH"); v != "" {
		envUsed = true
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("SHEETBRIDGE_AUDIT_DIR"); v != "" {
		envUsed = true
		cfg.Storage.AuditDir = v
	}
	if v := os.Getenv("SHEETBRIDGE_SHEET_DB_PATH"); v != "" {
		envUsed = true
		cfg.Sheet.DBPath = v
	}
	if v := os.Getenv("SHEETBRIDGE_SHEET_NAME"); v != "" {
		envUsed = true
		cfg.Sheet.Name = v
	}
	if v := os.Getenv("SHEETBRIDGE_IDENTIFIER_COLUMN"); v != "" {
		envUsed = true
		cfg.Sheet.IdentifierColumn = v
	}
	if v := os.Getenv("SHEETBRIDGE_APPEND_FIELDS"); v != "" {
		envUsed = true
		cfg.Sheet.AppendFields = parseList(v)
	}
	if v := os.Getenv("SHEETBRIDGE_WEBHOOK_TOKEN"); v != "" {
		envUsed = true
		cfg.Server.WebhookToken = v
	}
	if v := os.Getenv("SHEETBRIDGE_EXTRACT_PROVIDER"); v != "" {
		envUsed = true
		cfg.Extract.Provider = v
	}
	if v := os.Getenv("SHEETBRIDGE_EXTRACT_MODEL"); v != "" {
		envUsed = true
		cfg.Extract.Model = v
	}
	if v := os.Getenv("SHEETBRIDGE_RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			envUsed = true
			cfg.Server.RateLimit.RPS = f
		}
	}
	if v := os.Getenv("SHEETBRIDGE_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Server.RateLimit.Burst = n
		}
	}
	if v := os.Getenv("SHEETBRIDGE_ALLOW_CREATE"); v != "" {
		envUsed = true
		vl := strings.ToLower(strings.TrimSpace(v))
		cfg.Ingest.AllowCreate = vl == "1" || vl == "true" || vl == "yes"
	}
	return envUsed
}

// LoadEffective loads config from path and applies environment
// overrides and defaults. A missing file is tolerated: env and defaults
// still produce a runnable config.
func LoadEffective(path string) (*Config, bool, error) {
	cfg, err := Load(path)
	if err != nil {
		cfg = &Config{}
	}
	envUsed := LoadEnvOverrides(cfg)
	cfg.ApplyDefaults()
	return cfg, envUsed, nil
}

// AnthropicAPIKey resolves the extraction API key from the environment;
// secrets never live in the config file.
func AnthropicAPIKey() string {
	if v := os.Getenv("SHEETBRIDGE_ANTHROPIC_API_KEY"); v != "" {
		return v
	}
	return os.Getenv("ANTHROPIC_API_KEY")
}
