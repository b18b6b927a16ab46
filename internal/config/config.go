// Package config loads settings from ~/.salesmind/config.yaml with
// SALESMIND_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	DataDir    string           `mapstructure:"data_dir"`
	LogLevel   string           `mapstructure:"log_level"`
	Server     ServerConfig     `mapstructure:"server"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Router     RouterConfig     `mapstructure:"router"`
	Session    SessionConfig    `mapstructure:"session"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// ClassifierConfig holds the LLM classifier settings. The API key is
// normally supplied via SALESMIND_CLASSIFIER_API_KEY rather than the file.
type ClassifierConfig struct {
	Provider        string `mapstructure:"provider"`
	Endpoint        string `mapstructure:"endpoint"`
	APIKey          string `mapstructure:"api_key"`
	Model           string `mapstructure:"model"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	MaxRetries      int    `mapstructure:"max_retries"`
	KeywordFallback bool   `mapstructure:"keyword_fallback"`
}

// RouterConfig holds the confidence thresholds.
type RouterConfig struct {
	ThresholdLow  float64 `mapstructure:"threshold_low"`
	ThresholdHigh float64 `mapstructure:"threshold_high"`
}

// SessionConfig holds session lifecycle settings.
type SessionConfig struct {
	IdleTimeoutMinutes int `mapstructure:"idle_timeout_minutes"`
	HistoryWindow      int `mapstructure:"history_window"`
}

// Timeout returns the classifier request timeout.
func (c ClassifierConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// IdleTimeout returns the session idle timeout.
func (c SessionConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutMinutes) * time.Minute
}

// Dir returns the configuration directory, creating it if needed.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	dir := filepath.Join(home, ".salesmind")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return dir, nil
}

// Load reads the configuration, writing a default file on first run.
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return LoadFrom(dir)
}

// LoadFrom reads the configuration rooted at dir.
func LoadFrom(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	setDefaults(v, dir)

	v.SetEnvPrefix("SALESMIND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := writeDefault(dir); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, dir string) {
	v.SetDefault("data_dir", dir)
	v.SetDefault("log_level", "info")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("classifier.provider", "groq")
	v.SetDefault("classifier.endpoint", "https://api.groq.com/openai/v1")
	// An explicit empty default so the env override binds on Unmarshal.
	v.SetDefault("classifier.api_key", "")
	v.SetDefault("classifier.model", "llama-3.3-70b-versatile")
	v.SetDefault("classifier.timeout_seconds", 30)
	v.SetDefault("classifier.max_retries", 2)
	v.SetDefault("classifier.keyword_fallback", false)
	v.SetDefault("router.threshold_low", 0.4)
	v.SetDefault("router.threshold_high", 0.7)
	v.SetDefault("session.idle_timeout_minutes", 30)
	v.SetDefault("session.history_window", 20)
}

// writeDefault materializes a commented starter config so users have a
// file to edit.
func writeDefault(dir string) error {
	doc := map[string]any{
		"data_dir":  dir,
		"log_level": "info",
		"server":    map[string]any{"address": ":8080"},
		"classifier": map[string]any{
			"provider":         "groq",
			"endpoint":         "https://api.groq.com/openai/v1",
			"model":            "llama-3.3-70b-versatile",
			"timeout_seconds":  30,
			"max_retries":      2,
			"keyword_fallback": false,
		},
		"router": map[string]any{
			"threshold_low":  0.4,
			"threshold_high": 0.7,
		},
		"session": map[string]any{
			"idle_timeout_minutes": 30,
			"history_window":       20,
		},
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("render default config: %w", err)
	}
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	return nil
}
