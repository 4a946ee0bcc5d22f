// Package config loads the application configuration from an optional YAML
// file with environment-variable overrides on top.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/inboxforge/email-triage/internal/ingest"
)

// Duration is a time.Duration that decodes from YAML strings like "5s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type GeminiConfig struct {
	APIKey       string  `yaml:"api_key"`
	Model        string  `yaml:"model"`
	BaseURL      string  `yaml:"base_url"`
	RateLimitRPS float64 `yaml:"rate_limit_rps"`
}

type PipelineConfig struct {
	BatchSize     int      `yaml:"batch_size"`
	ImageTimeout  Duration `yaml:"image_timeout"`
	ImageMaxBytes int64    `yaml:"image_max_bytes"`
}

type IMAPConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	TLS      bool   `yaml:"tls"`
	Limit    int    `yaml:"limit"`
}

type Config struct {
	DBPath   string         `yaml:"db_path"`
	Gemini   GeminiConfig   `yaml:"gemini"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	IMAP     IMAPConfig     `yaml:"imap"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		DBPath: "email_triage.db",
		Gemini: GeminiConfig{
			Model: "gemini-2.5-flash-lite",
		},
		Pipeline: PipelineConfig{
			BatchSize:     10,
			ImageTimeout:  Duration(5 * time.Second),
			ImageMaxBytes: 4 << 20,
		},
		IMAP: IMAPConfig{
			Host:  "imap.gmail.com",
			Port:  "993",
			TLS:   true,
			Limit: 10,
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. An empty path skips the file entirely.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides file values with environment variables. Env always wins
// so deployments can keep secrets out of the config file.
func (c *Config) applyEnv() {
	setString(&c.DBPath, "TRIAGE_DB")
	setString(&c.Gemini.APIKey, "GEMINI_API_KEY")
	setString(&c.Gemini.Model, "GEMINI_MODEL")
	setString(&c.Gemini.BaseURL, "GEMINI_BASE_URL")
	setFloat(&c.Gemini.RateLimitRPS, "RATE_LIMIT_RPS")
	setInt(&c.Pipeline.BatchSize, "BATCH_SIZE")
	setString(&c.IMAP.Host, "IMAP_HOST")
	setString(&c.IMAP.Port, "IMAP_PORT")
	setString(&c.IMAP.Username, "IMAP_USERNAME")
	setString(&c.IMAP.Password, "IMAP_PASSWORD")
	setInt(&c.IMAP.Limit, "IMAP_LIMIT")
}

// IMAPClientConfig converts the IMAP section into the ingest client config.
func (c Config) IMAPClientConfig() ingest.IMAPConfig {
	return ingest.IMAPConfig{
		Host:     c.IMAP.Host,
		Port:     c.IMAP.Port,
		Username: c.IMAP.Username,
		Password: c.IMAP.Password,
		TLS:      c.IMAP.TLS,
	}
}

func setString(dst *string, varName string) {
	if v := strings.TrimSpace(os.Getenv(varName)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, varName string) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return
	}
	if out, err := strconv.Atoi(v); err == nil {
		*dst = out
	}
}

func setFloat(dst *float64, varName string) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return
	}
	if out, err := strconv.ParseFloat(v, 64); err == nil {
		*dst = out
	}
}
