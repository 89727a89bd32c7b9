// Package config loads runtime settings from an optional config file and
// the environment. A missing API key is not fatal here; the gateway
// reports it in-conversation where the user can act on it.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds runtime settings.
type Config struct {
	Server struct {
		Port string `mapstructure:"port"`
	} `mapstructure:"server"`

	Database struct {
		URL        string `mapstructure:"url"`
		SQLitePath string `mapstructure:"sqlite_path"`
	} `mapstructure:"database"`

	Model struct {
		Provider       string `mapstructure:"provider"`
		GoogleAPIKey   string `mapstructure:"google_api_key"`
		OpenAIAPIKey   string `mapstructure:"openai_api_key"`
		OpenAIBaseURL  string `mapstructure:"openai_base_url"`
		ChatModel      string `mapstructure:"chat_model"`
		ImageModel     string `mapstructure:"image_model"`
		EmbeddingModel string `mapstructure:"embedding_model"`
		AspectRatio    string `mapstructure:"aspect_ratio"`
	} `mapstructure:"model"`
}

// Load reads shyn.yaml when present, then environment variables, then
// defaults. Prefixed env keys follow the config tree (SHYN_SERVER_PORT);
// a few conventional names (GOOGLE_API_KEY, DATABASE_URL) alias in
// unprefixed.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("shyn")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	v.SetEnvPrefix("SHYN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range map[string]string{
		"database.url":         "DATABASE_URL",
		"model.google_api_key": "GOOGLE_API_KEY",
		"model.openai_api_key": "OPENAI_API_KEY",
	} {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	v.SetDefault("server.port", "8080")
	v.SetDefault("database.sqlite_path", "shyn.db")
	v.SetDefault("model.provider", "gemini")
	v.SetDefault("model.chat_model", "gemini-2.5-flash")
	v.SetDefault("model.image_model", "imagen-4.0-generate-001")
	v.SetDefault("model.embedding_model", "text-embedding-004")
	v.SetDefault("model.aspect_ratio", "3:4")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
