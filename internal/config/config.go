package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	DefaultModel              = "gpt-4o-mini"
	DefaultMaxTokens          = 1024
	DefaultProviderTimeout    = 30 // seconds
	DefaultTTSModel           = "tts-1"
	DefaultTTSVoice           = "nova"
	DefaultTTSSpeed           = 1.0
	DefaultTTSFormat          = "opus"
	DefaultCommandPrefix      = "!"
	DefaultBufSize            = 100
	DefaultHistoryLimit       = 20
	DefaultContextTurns       = 10
	DefaultListeningMode      = "smart-listening"
	DefaultListeningThreshold = 0.6
	DefaultRetentionDays      = 30
	DefaultTempAudioMaxAgeMin = 10
	DefaultRetentionSpec      = "0 0 4 * * *"    // daily at 04:00
	DefaultTempSweepSpec      = "0 */10 * * * *" // every 10 minutes
)

type Config struct {
	Provider  ProviderConfig  `json:"provider"`
	TTS       TTSConfig       `json:"tts"`
	Discord   DiscordConfig   `json:"discord"`
	Store     StoreConfig     `json:"store"`
	Listening ListeningConfig `json:"listening"`
	Retention RetentionConfig `json:"retention"`
	Gateway   GatewayConfig   `json:"gateway"`
}

type ProviderConfig struct {
	APIKey         string `json:"apiKey"`
	BaseURL        string `json:"baseUrl,omitempty"`
	Model          string `json:"model"`
	MaxTokens      int    `json:"maxTokens"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

type TTSConfig struct {
	Enabled        bool    `json:"enabled"`
	APIKey         string  `json:"apiKey,omitempty"` // falls back to provider.apiKey
	BaseURL        string  `json:"baseUrl,omitempty"`
	Model          string  `json:"model"`
	Voice          string  `json:"voice"`
	Speed          float64 `json:"speed"`
	Format         string  `json:"format"`
	TimeoutSeconds int     `json:"timeoutSeconds"`
}

type DiscordConfig struct {
	Enabled       bool              `json:"enabled"`
	Token         string            `json:"token"`
	CommandPrefix string            `json:"commandPrefix"`
	VoiceChannels map[string]string `json:"voiceChannels,omitempty"` // guild id -> default voice channel id
}

type StoreConfig struct {
	DBPath string `json:"dbPath,omitempty"`
}

type ListeningConfig struct {
	DefaultMode      string  `json:"defaultMode"`
	DefaultThreshold float64 `json:"defaultThreshold"`
}

type RetentionConfig struct {
	ConversationMaxAgeDays int    `json:"conversationMaxAgeDays"`
	TempAudioMaxAgeMin     int    `json:"tempAudioMaxAgeMin"`
	ConversationSweepSpec  string `json:"conversationSweepSpec,omitempty"`
	TempAudioSweepSpec     string `json:"tempAudioSweepSpec,omitempty"`
}

type GatewayConfig struct {
	HistoryLimit int `json:"historyLimit"`
	ContextTurns int `json:"contextTurns"`
}

func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			Model:          DefaultModel,
			MaxTokens:      DefaultMaxTokens,
			TimeoutSeconds: DefaultProviderTimeout,
		},
		TTS: TTSConfig{
			Enabled:        true,
			Model:          DefaultTTSModel,
			Voice:          DefaultTTSVoice,
			Speed:          DefaultTTSSpeed,
			Format:         DefaultTTSFormat,
			TimeoutSeconds: DefaultProviderTimeout,
		},
		Discord: DiscordConfig{
			CommandPrefix: DefaultCommandPrefix,
		},
		Listening: ListeningConfig{
			DefaultMode:      DefaultListeningMode,
			DefaultThreshold: DefaultListeningThreshold,
		},
		Retention: RetentionConfig{
			ConversationMaxAgeDays: DefaultRetentionDays,
			TempAudioMaxAgeMin:     DefaultTempAudioMaxAgeMin,
			ConversationSweepSpec:  DefaultRetentionSpec,
			TempAudioSweepSpec:     DefaultTempSweepSpec,
		},
		Gateway: GatewayConfig{
			HistoryLimit: DefaultHistoryLimit,
			ContextTurns: DefaultContextTurns,
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".sonant")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func LoadConfig() (*Config, error) {
	return LoadConfigFrom(ConfigPath())
}

func LoadConfigFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SONANT_API_KEY"); v != "" {
		cfg.Provider.APIKey = v
	} else if cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if v := os.Getenv("SONANT_BASE_URL"); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := os.Getenv("SONANT_MODEL"); v != "" {
		cfg.Provider.Model = v
	}
	if v := os.Getenv("SONANT_DISCORD_TOKEN"); v != "" {
		cfg.Discord.Token = v
		cfg.Discord.Enabled = true
	}
	if v := os.Getenv("SONANT_DB_PATH"); v != "" {
		cfg.Store.DBPath = v
	}
	if v := os.Getenv("SONANT_TTS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.TTS.Enabled = b
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Provider.Model == "" {
		cfg.Provider.Model = DefaultModel
	}
	if cfg.Provider.MaxTokens <= 0 {
		cfg.Provider.MaxTokens = DefaultMaxTokens
	}
	if cfg.Provider.TimeoutSeconds <= 0 {
		cfg.Provider.TimeoutSeconds = DefaultProviderTimeout
	}
	if cfg.TTS.APIKey == "" {
		cfg.TTS.APIKey = cfg.Provider.APIKey
	}
	if cfg.TTS.Model == "" {
		cfg.TTS.Model = DefaultTTSModel
	}
	if cfg.TTS.Voice == "" {
		cfg.TTS.Voice = DefaultTTSVoice
	}
	if cfg.TTS.Speed <= 0 {
		cfg.TTS.Speed = DefaultTTSSpeed
	}
	if cfg.TTS.Format == "" {
		cfg.TTS.Format = DefaultTTSFormat
	}
	if cfg.TTS.TimeoutSeconds <= 0 {
		cfg.TTS.TimeoutSeconds = DefaultProviderTimeout
	}
	if cfg.Discord.CommandPrefix == "" {
		cfg.Discord.CommandPrefix = DefaultCommandPrefix
	}
	if cfg.Store.DBPath == "" {
		cfg.Store.DBPath = filepath.Join(ConfigDir(), "data", "sonant.db")
	}
	if cfg.Listening.DefaultMode == "" {
		cfg.Listening.DefaultMode = DefaultListeningMode
	}
	if cfg.Listening.DefaultThreshold <= 0 || cfg.Listening.DefaultThreshold > 1 {
		cfg.Listening.DefaultThreshold = DefaultListeningThreshold
	}
	if cfg.Retention.ConversationMaxAgeDays <= 0 {
		cfg.Retention.ConversationMaxAgeDays = DefaultRetentionDays
	}
	if cfg.Retention.TempAudioMaxAgeMin <= 0 {
		cfg.Retention.TempAudioMaxAgeMin = DefaultTempAudioMaxAgeMin
	}
	if cfg.Retention.ConversationSweepSpec == "" {
		cfg.Retention.ConversationSweepSpec = DefaultRetentionSpec
	}
	if cfg.Retention.TempAudioSweepSpec == "" {
		cfg.Retention.TempAudioSweepSpec = DefaultTempSweepSpec
	}
	if cfg.Gateway.HistoryLimit <= 0 {
		cfg.Gateway.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.Gateway.ContextTurns <= 0 {
		cfg.Gateway.ContextTurns = DefaultContextTurns
	}
}

// Validate reports fatal configuration problems. Missing provider credentials
// abort startup rather than failing per message.
func (c *Config) Validate() error {
	if c.Provider.APIKey == "" {
		return fmt.Errorf("provider API key not set. Run 'sonant onboard' or set SONANT_API_KEY / OPENAI_API_KEY")
	}
	if c.Discord.Enabled && c.Discord.Token == "" {
		return fmt.Errorf("discord enabled but token not set (SONANT_DISCORD_TOKEN)")
	}
	return nil
}
