package setting

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the passbook settings. It is read once at startup and is not
// reloaded for the lifetime of the process.
type Config struct {
	SupportedTypeNames []string `yaml:"supported_type_names"`
	Table              string   `yaml:"table"`
	LegacyTable        string   `yaml:"legacy_table"`
	AdminRole          string   `yaml:"admin_role"`
}

func defaults() Config {
	return Config{
		SupportedTypeNames: []string{"competency"},
		Table:              "user_passbook",
		LegacyTable:        "user_passbook_legacy",
		AdminRole:          "ADMIN",
	}
}

// ConfigFromEnv builds the settings from defaults, then PASSBOOK_CONFIG_FILE
// (if set), then individual PASSBOOK_* variables.
func ConfigFromEnv() (Config, error) {
	cfg := defaults()
	if path := os.Getenv("PASSBOOK_CONFIG_FILE"); path != "" {
		fileCfg, err := LoadFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = merge(cfg, fileCfg)
	}
	if v := os.Getenv("PASSBOOK_SUPPORTED_TYPE_NAMES"); v != "" {
		cfg.SupportedTypeNames = splitList(v)
	}
	if v := os.Getenv("PASSBOOK_TABLE"); v != "" {
		cfg.Table = v
	}
	if v := os.Getenv("PASSBOOK_LEGACY_TABLE"); v != "" {
		cfg.LegacyTable = v
	}
	if v := os.Getenv("PASSBOOK_ADMIN_ROLE"); v != "" {
		cfg.AdminRole = v
	}
	return cfg, cfg.Validate()
}

// LoadFile reads a YAML settings file. Keys absent from the file stay empty.
func LoadFile(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read settings file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse settings file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the settings are usable.
func (c Config) Validate() error {
	if len(c.SupportedTypeNames) == 0 {
		return fmt.Errorf("no supported passbook type names configured")
	}
	if c.Table == "" || c.LegacyTable == "" {
		return fmt.Errorf("passbook table names must not be empty")
	}
	if c.Table == c.LegacyTable {
		return fmt.Errorf("passbook table and legacy table are both %q", c.Table)
	}
	return nil
}

// Supports reports whether typeName is in the allow-list.
func (c Config) Supports(typeName string) bool {
	for _, tn := range c.SupportedTypeNames {
		if tn == typeName {
			return true
		}
	}
	return false
}

func merge(base, over Config) Config {
	if len(over.SupportedTypeNames) > 0 {
		base.SupportedTypeNames = over.SupportedTypeNames
	}
	if over.Table != "" {
		base.Table = over.Table
	}
	if over.LegacyTable != "" {
		base.LegacyTable = over.LegacyTable
	}
	if over.AdminRole != "" {
		base.AdminRole = over.AdminRole
	}
	return base
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
