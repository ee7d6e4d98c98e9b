// Package config provides configuration management for Jarvis Bridge
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Voice      VoiceConfig      `mapstructure:"voice"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Analysis   AnalysisConfig   `mapstructure:"analysis"`
	Automation AutomationConfig `mapstructure:"automation"`
	Feedback   FeedbackConfig   `mapstructure:"feedback"`
}

// VoiceConfig configures the voice service subprocess
type VoiceConfig struct {
	PythonPath     string        `mapstructure:"python_path"`     // Interpreter for the voice service
	ScriptPath     string        `mapstructure:"script_path"`     // Path to voice_service.py
	WhisperModel   string        `mapstructure:"whisper_model"`   // tiny, base, small, medium, large-v3
	SilenceTimeout float64       `mapstructure:"silence_timeout"` // Seconds of silence before finalizing
	StartupTimeout time.Duration `mapstructure:"startup_timeout"` // Bound on spawn + initialization
	StopGrace      time.Duration `mapstructure:"stop_grace"`      // Grace period before force kill
	DefaultVoice   string        `mapstructure:"default_voice"`
}

// LLMConfig configures the local inference endpoint
type LLMConfig struct {
	BaseURL     string        `mapstructure:"base_url"` // e.g., "http://localhost:11434"
	Model       string        `mapstructure:"model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
}

// AnalysisConfig configures background intent analysis
type AnalysisConfig struct {
	ContextTurns int           `mapstructure:"context_turns"` // Turns of context per analysis pass
	MaxTurns     int           `mapstructure:"max_turns"`     // Conversation buffer size cap
	MaxTurnAge   time.Duration `mapstructure:"max_turn_age"`  // Conversation retention window
}

// AutomationConfig configures delivery into the automation target
type AutomationConfig struct {
	PreferredTitle string        `mapstructure:"preferred_title"` // Window title to focus first
	FallbackTitle  string        `mapstructure:"fallback_title"`  // Window title to fall back to
	SettleDelay    time.Duration `mapstructure:"settle_delay"`    // Pause between sequence steps
	QueueSize      int           `mapstructure:"queue_size"`      // Pending invocation capacity
}

// FeedbackConfig configures the completion summary watcher
type FeedbackConfig struct {
	SummaryPath string        `mapstructure:"summary_path"` // Well-known completion file path
	Debounce    time.Duration `mapstructure:"debounce"`     // Settle time after a change event
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Voice: VoiceConfig{
			PythonPath:     "python3",
			ScriptPath:     filepath.Join(home, ".jarvisbridge", "voice_service.py"),
			WhisperModel:   "tiny",
			SilenceTimeout: 1.0,
			StartupTimeout: 60 * time.Second,
			StopGrace:      3 * time.Second,
			DefaultVoice:   "af_bella",
		},
		LLM: LLMConfig{
			BaseURL:     "http://localhost:11434",
			Model:       "gpt-oss:20b",
			Timeout:     30 * time.Second,
			Temperature: 0.3,
			MaxTokens:   300,
		},
		Analysis: AnalysisConfig{
			ContextTurns: 5,
			MaxTurns:     10,
			MaxTurnAge:   5 * time.Minute,
		},
		Automation: AutomationConfig{
			PreferredTitle: "Cursor",
			FallbackTitle:  "Visual Studio Code",
			SettleDelay:    300 * time.Millisecond,
			QueueSize:      8,
		},
		Feedback: FeedbackConfig{
			SummaryPath: filepath.Join(home, ".windsurf", "jarvis_summary.json"),
			Debounce:    300 * time.Millisecond,
		},
	}
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	cfg := DefaultConfig()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return cfg, err
	}

	configDir := filepath.Join(homeDir, ".jarvisbridge")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return cfg, err
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("JARVISBRIDGE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, err
		}
		// Config file not found, use defaults and create one
		if err := Save(cfg); err != nil {
			return cfg, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Save writes the configuration to file
func Save(cfg *Config) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configDir := filepath.Join(homeDir, ".jarvisbridge")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	viper.Set("voice", cfg.Voice)
	viper.Set("llm", cfg.LLM)
	viper.Set("analysis", cfg.Analysis)
	viper.Set("automation", cfg.Automation)
	viper.Set("feedback", cfg.Feedback)

	return viper.WriteConfigAs(filepath.Join(configDir, "config.yaml"))
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".jarvisbridge"), nil
}
