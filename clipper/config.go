package clipper

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config configures the clipper service.
type Config struct {
	// ListenAddr is the HTTP listen address.
	ListenAddr string `yaml:"listen_addr"`

	// DBPath is the SQLite database holding settings and the offline queue.
	DBPath string `yaml:"db_path"`

	// NotionBaseURL overrides the Notion API base URL (tests, proxies).
	NotionBaseURL string `yaml:"notion_base_url"`

	// LLMBaseURL overrides the chat-completions gateway base URL.
	LLMBaseURL string `yaml:"llm_base_url"`

	// FlushInterval is the period of the offline queue processor.
	FlushInterval time.Duration `yaml:"flush_interval"`

	// RequestTimeout applies to outbound Notion calls.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

func (c *Config) defaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8090"
	}
	if c.DBPath == "" {
		c.DBPath = "data/clipd.db"
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 2 * time.Minute
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
}

// LoadConfig reads a YAML config file. A missing file yields defaults.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.defaults()
			return cfg, nil
		}
		return cfg, fmt.Errorf("clipper: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("clipper: parse config: %w", err)
	}
	cfg.defaults()
	return cfg, nil
}
