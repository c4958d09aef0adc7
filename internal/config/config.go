// Package config loads kiln's configuration via viper: a YAML file at
// ~/.kiln.yaml (or ./.kiln.yaml), overridden by KILN_-prefixed
// environment variables, overridden in turn by CLI flags the caller
// applies after LoadConfig returns. Grounded on the teacher's
// internal/config/config.go, generalized from a single chat provider to
// the LLM/embedding provider pair and run-control settings this system
// adds.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds kiln's full application configuration.
type Config struct {
	LLM         ProviderConfig   `mapstructure:"llm"`
	Embedding   EmbeddingConfig  `mapstructure:"embedding"`
	UI          UIConfig         `mapstructure:"ui"`
	Permissions PermissionConfig `mapstructure:"permissions"`
	Run         RunConfig        `mapstructure:"run"`
}

// ProviderConfig configures the LLM provider used by the Planner's LLM
// step, the Argument Inferencer's repair step, and the summarize_text
// tool.
type ProviderConfig struct {
	Provider  string `mapstructure:"provider"` // "auto", "openai", "ollama", "noop"
	Endpoint  string `mapstructure:"endpoint"`
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	OllamaURL string `mapstructure:"ollama_url"`
}

// EmbeddingConfig configures the embedding provider backing the Tool
// Registry's semantic search index.
type EmbeddingConfig struct {
	Provider  string `mapstructure:"provider"`
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	OllamaURL string `mapstructure:"ollama_url"`
}

// UIConfig holds UI-specific configuration.
type UIConfig struct {
	ColorEnabled bool `mapstructure:"color_enabled"`
	ShowSpinner  bool `mapstructure:"show_spinner"`
}

// RunConfig holds run-control settings: how cautious the loop is and how
// far it's allowed to go before giving up.
type RunConfig struct {
	ApprovalMode string `mapstructure:"approval_mode"` // "auto", "sensitive", "always"
	MaxSteps     int    `mapstructure:"max_steps"`
	TopKTools    int    `mapstructure:"topk_tools"`
	DataDir      string `mapstructure:"data_dir"`
}

// LoadConfig loads configuration from ~/.kiln.yaml or ./.kiln.yaml,
// falling back to defaults, then layering KILN_-prefixed environment
// variables on top.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	viper.SetConfigName(".kiln")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if homeDir, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(homeDir)
	}

	viper.SetEnvPrefix("KILN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for _, key := range []string{
		"llm.provider", "llm.endpoint", "llm.api_key", "llm.model", "llm.ollama_url",
		"embedding.provider", "embedding.api_key", "embedding.model", "embedding.ollama_url",
		"ui.color_enabled", "ui.show_spinner",
		"run.approval_mode", "run.max_steps", "run.topk_tools", "run.data_dir",
	} {
		if err := viper.BindEnv(key); err != nil {
			return cfg, fmt.Errorf("binding environment variable for %s: %w", key, err)
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// SaveConfig writes the configuration to ~/.kiln.yaml.
func SaveConfig(cfg Config) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("getting home dir: %w", err)
	}
	configPath := filepath.Join(homeDir, ".kiln.yaml")
	viper.SetConfigFile(configPath)

	viper.Set("llm.provider", cfg.LLM.Provider)
	viper.Set("llm.api_key", cfg.LLM.APIKey)
	viper.Set("llm.model", cfg.LLM.Model)
	viper.Set("llm.endpoint", cfg.LLM.Endpoint)
	viper.Set("llm.ollama_url", cfg.LLM.OllamaURL)

	viper.Set("embedding.provider", cfg.Embedding.Provider)
	viper.Set("embedding.api_key", cfg.Embedding.APIKey)
	viper.Set("embedding.model", cfg.Embedding.Model)
	viper.Set("embedding.ollama_url", cfg.Embedding.OllamaURL)

	viper.Set("ui.color_enabled", cfg.UI.ColorEnabled)
	viper.Set("ui.show_spinner", cfg.UI.ShowSpinner)

	viper.Set("run.approval_mode", cfg.Run.ApprovalMode)
	viper.Set("run.max_steps", cfg.Run.MaxSteps)
	viper.Set("run.topk_tools", cfg.Run.TopKTools)
	viper.Set("run.data_dir", cfg.Run.DataDir)

	for tool, autoApprove := range cfg.Permissions.AutoApprove {
		viper.Set(fmt.Sprintf("permissions.auto_approve.%s", tool), autoApprove)
	}

	return viper.WriteConfig()
}

// GetDataDir returns the data directory for kiln, creating it if
// necessary. cfg.Run.DataDir overrides the default when set.
func GetDataDir(cfg Config) (string, error) {
	if cfg.Run.DataDir != "" {
		if err := os.MkdirAll(cfg.Run.DataDir, 0755); err != nil {
			return "", fmt.Errorf("creating data dir: %w", err)
		}
		return cfg.Run.DataDir, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home dir: %w", err)
	}
	dataDir := filepath.Join(homeDir, ".kiln")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("creating data dir: %w", err)
	}
	return dataDir, nil
}
