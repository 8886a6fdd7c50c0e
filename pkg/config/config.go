package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// AppConfig is read from a YAML file under the user's home directory.
// All fields are optional; defaults are applied by the accessor methods.
//
// Example (~/.renohub/config.yaml):
//
// server:
//   host: 127.0.0.1
//   port: 8088
// database:
//   path: ~/.renohub/renohub.db
// ai:
//   base_url: https://api.openai.com/v1
//   api_key: sk-...
//   model: gpt-4o-mini
// redis:
//   addr: 127.0.0.1:6379
// chat:
//   history_page_size: 50
//   around_before: 6
//   around_after: 5
//   ai_context_window: 10
//
// Notes:
// - If the config file does not exist, Load returns defaults without error.
// - If the config file exists but cannot be parsed, Load returns an error.
// - Port must be between 1 and 65535.

type AppConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	AI       AIConfig       `yaml:"ai"`
	Redis    RedisConfig    `yaml:"redis"`
	Chat     ChatConfig     `yaml:"chat"`
}

type ServerConfig struct {
	Host *string `yaml:"host"`
	Port *int    `yaml:"port"`
}

type DatabaseConfig struct {
	Path *string `yaml:"path"`
}

// AIConfig configures the conversational AI provider. When APIKey is empty
// the assistant is disabled and chat works without it.
type AIConfig struct {
	BaseURL *string `yaml:"base_url"`
	APIKey  *string `yaml:"api_key"`
	Model   *string `yaml:"model"`
}

// RedisConfig configures the optional cross-instance event bridge.
// When Addr is empty, events stay in-process only.
type RedisConfig struct {
	Addr     *string `yaml:"addr"`
	Password *string `yaml:"password"`
	DB       *int    `yaml:"db"`
}

// ChatConfig holds the window sizes used by history queries and the
// assistant's context fetch.
type ChatConfig struct {
	HistoryPageSize *int `yaml:"history_page_size"`
	AroundBefore    *int `yaml:"around_before"`
	AroundAfter     *int `yaml:"around_after"`
	AIContextWindow *int `yaml:"ai_context_window"`
}

const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 8088

	DefaultHistoryPageSize = 50
	DefaultAroundBefore    = 6
	DefaultAroundAfter     = 5
	DefaultAIContextWindow = 10
)

// DefaultPaths returns the config dir and config file path.
func DefaultPaths() (configDir string, configFile string, err error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", "", fmt.Errorf("get user home dir: %w", err)
	}
	configDir = filepath.Join(home, ".renohub")
	configFile = filepath.Join(configDir, "config.yaml")
	return configDir, configFile, nil
}

// Load reads ~/.renohub/config.yaml.
// If the file doesn't exist, it returns a default config and nil error.
func Load() (*AppConfig, string, error) {
	_, configFile, err := DefaultPaths()
	if err != nil {
		return nil, "", err
	}

	cfg := &AppConfig{}

	b, err := os.ReadFile(configFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, configFile, nil
		}
		return nil, "", fmt.Errorf("read config file %s: %w", configFile, err)
	}

	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, "", fmt.Errorf("parse yaml config %s: %w", configFile, err)
	}

	if strings.TrimSpace(cfg.Host()) == "" {
		return nil, "", fmt.Errorf("invalid server.host (empty) in %s", configFile)
	}
	if port := cfg.Port(); port < 1 || port > 65535 {
		return nil, "", fmt.Errorf("invalid server.port %d in %s", port, configFile)
	}
	for name, v := range map[string]int{
		"chat.history_page_size": cfg.HistoryPageSize(),
		"chat.around_before":     cfg.AroundBefore(),
		"chat.around_after":      cfg.AroundAfter(),
		"chat.ai_context_window": cfg.AIContextWindow(),
	} {
		if v < 1 {
			return nil, "", fmt.Errorf("invalid %s %d in %s", name, v, configFile)
		}
	}

	return cfg, configFile, nil
}

// EnsureDefaultConfig writes a default config file if it doesn't already exist.
// It is safe to call on startup.
func EnsureDefaultConfig() (string, error) {
	configDir, configFile, err := DefaultPaths()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(configFile); err == nil {
		return configFile, nil
	}

	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return "", fmt.Errorf("create config dir %s: %w", configDir, err)
	}

	defaultCfg := AppConfig{Server: ServerConfig{Host: ptr(DefaultHost), Port: ptr(DefaultPort)}}
	b, err := yaml.Marshal(&defaultCfg)
	if err != nil {
		return "", fmt.Errorf("marshal default config: %w", err)
	}

	// Restrictive permissions: the file may hold an API key.
	if err := os.WriteFile(configFile, b, 0o600); err != nil {
		return "", fmt.Errorf("write default config file %s: %w", configFile, err)
	}

	return configFile, nil
}

func (c *AppConfig) Host() string {
	if c == nil || c.Server.Host == nil {
		return DefaultHost
	}
	v := strings.TrimSpace(*c.Server.Host)
	if v == "" {
		return DefaultHost
	}
	return v
}

func (c *AppConfig) Port() int {
	if c == nil || c.Server.Port == nil {
		return DefaultPort
	}
	return *c.Server.Port
}

// DatabasePath returns the sqlite file path, defaulting to
// ~/.renohub/renohub.db next to the config file.
func (c *AppConfig) DatabasePath() string {
	if c != nil && c.Database.Path != nil && strings.TrimSpace(*c.Database.Path) != "" {
		return *c.Database.Path
	}
	configDir, _, err := DefaultPaths()
	if err != nil {
		return "renohub.db"
	}
	return filepath.Join(configDir, "renohub.db")
}

func (c *AppConfig) AIBaseURL() string {
	if c == nil || c.AI.BaseURL == nil {
		return ""
	}
	return strings.TrimSpace(*c.AI.BaseURL)
}

func (c *AppConfig) AIAPIKey() string {
	if c == nil || c.AI.APIKey == nil {
		return ""
	}
	return strings.TrimSpace(*c.AI.APIKey)
}

func (c *AppConfig) AIModel() string {
	if c == nil || c.AI.Model == nil || strings.TrimSpace(*c.AI.Model) == "" {
		return "gpt-4o-mini"
	}
	return strings.TrimSpace(*c.AI.Model)
}

func (c *AppConfig) RedisAddr() string {
	if c == nil || c.Redis.Addr == nil {
		return ""
	}
	return strings.TrimSpace(*c.Redis.Addr)
}

func (c *AppConfig) RedisPassword() string {
	if c == nil || c.Redis.Password == nil {
		return ""
	}
	return *c.Redis.Password
}

func (c *AppConfig) RedisDB() int {
	if c == nil || c.Redis.DB == nil {
		return 0
	}
	return *c.Redis.DB
}

func (c *AppConfig) HistoryPageSize() int {
	if c == nil || c.Chat.HistoryPageSize == nil {
		return DefaultHistoryPageSize
	}
	return *c.Chat.HistoryPageSize
}

func (c *AppConfig) AroundBefore() int {
	if c == nil || c.Chat.AroundBefore == nil {
		return DefaultAroundBefore
	}
	return *c.Chat.AroundBefore
}

func (c *AppConfig) AroundAfter() int {
	if c == nil || c.Chat.AroundAfter == nil {
		return DefaultAroundAfter
	}
	return *c.Chat.AroundAfter
}

func (c *AppConfig) AIContextWindow() int {
	if c == nil || c.Chat.AIContextWindow == nil {
		return DefaultAIContextWindow
	}
	return *c.Chat.AIContextWindow
}

func ptr[T any](v T) *T { return &v }
