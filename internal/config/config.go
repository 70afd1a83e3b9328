package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Site    Site    `yaml:"site"`
	API     API     `yaml:"api"`
	Access  Access  `yaml:"access"`
	Audit   Audit   `yaml:"audit"`
	Editor  Editor  `yaml:"editor"`
	Import  Import  `yaml:"import"`
	Output  Output  `yaml:"output"`
	Server  Server  `yaml:"server"`
	Logging Logging `yaml:"logging"`
}

type Site struct {
	URL     string `yaml:"url"`
	Name    string `yaml:"name"`
	Charset string `yaml:"charset"`
}

type API struct {
	KeyEnv string `yaml:"key_env"`
	Key    string `yaml:"key"`
}

type Access struct {
	Capabilities []string `yaml:"capabilities"`
}

type Audit struct {
	PerPage           int `yaml:"per_page"`
	LowScoreThreshold int `yaml:"low_score_threshold"`
}

type Editor struct {
	PerPage int `yaml:"per_page"`
}

type Import struct {
	Feeds          []Feed `yaml:"feeds"`
	FetchContent   bool   `yaml:"fetch_content"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type Feed struct {
	URL         string `yaml:"url"`
	Name        string `yaml:"name"`
	ContentType string `yaml:"content_type"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port                  int `yaml:"port"`
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for nexus.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "nexus")
}

// DataDir returns the XDG data directory for nexus.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "nexus")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/nexus/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'nexus init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.Site.URL = strings.TrimRight(cfg.Site.URL, "/")
	return cfg, nil
}

// Default returns a Config populated with built-in defaults only.
func Default() *Config {
	return &Config{
		Site: Site{
			URL:     "http://localhost",
			Name:    "Nexus",
			Charset: "UTF-8",
		},
		API: API{KeyEnv: "NEXUS_API_KEY"},
		Access: Access{
			Capabilities: []string{"manage_options", "edit_posts"},
		},
		Audit: Audit{
			PerPage:           20,
			LowScoreThreshold: 75,
		},
		Editor: Editor{PerPage: 20},
		Import: Import{TimeoutSeconds: 15},
		Server: Server{
			Port:                  8000,
			RequestTimeoutSeconds: 30,
		},
		Logging: Logging{Level: "info"},
	}
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// APIKey returns the shared secret for the read API. The environment
// variable named by api.key_env wins over the literal api.key.
func (c *Config) APIKey() string {
	if c.API.KeyEnv != "" {
		if v := os.Getenv(c.API.KeyEnv); v != "" {
			return v
		}
	}
	return c.API.Key
}

// RequestTimeout returns the per-request deadline for Content Store calls.
func (c *Config) RequestTimeout() time.Duration {
	if c.Server.RequestTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// ImportTimeout returns the HTTP timeout used by the feed importer.
func (c *Config) ImportTimeout() time.Duration {
	if c.Import.TimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Import.TimeoutSeconds) * time.Second
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
