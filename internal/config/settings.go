package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Setting keys. Flags use the same names with dashes instead of underscores.
const (
	KeyBotType      = "bot_type"
	KeyConfig       = "config"
	KeyPromptsDir   = "prompts_dir"
	KeyHealthAddr   = "health_addr"
	KeyRoom         = "room"
	KeyRoomPrefix   = "room_prefix"
	KeyMaxJobs      = "max_jobs"
	KeyPollInterval = "poll_interval"
	KeyLogLevel     = "log_level"
	KeyLogFormat    = "log_format"
	KeyAudioCodec   = "audio_codec"
)

var envBindings = map[string]string{
	KeyBotType:      "BOT_TYPE",
	KeyConfig:       "QUALIFIER_CONFIG",
	KeyPromptsDir:   "QUALIFIER_PROMPTS_DIR",
	KeyHealthAddr:   "QUALIFIER_HEALTH_ADDR",
	KeyRoom:         "QUALIFIER_ROOM",
	KeyRoomPrefix:   "QUALIFIER_ROOM_PREFIX",
	KeyMaxJobs:      "QUALIFIER_MAX_JOBS",
	KeyPollInterval: "QUALIFIER_POLL_INTERVAL",
	KeyLogLevel:     "LOG_LEVEL",
	KeyLogFormat:    "LOG_FORMAT",
	KeyAudioCodec:   "QUALIFIER_AUDIO_CODEC",
}

// Settings are the process-level knobs. Precedence is flag, then environment,
// then default. An unset bot type falls back to defaults.bot_type in the bots
// file and then to DefaultBotType.
type Settings struct {
	BotType      string
	ConfigPath   string
	PromptsDir   string
	HealthAddr   string
	Room         string
	RoomPrefix   string
	MaxJobs      int
	PollInterval time.Duration
	LogLevel     string
	LogFormat    string
	AudioCodec   string
}

// NewViper returns a viper instance with defaults and environment bindings set.
func NewViper() *viper.Viper {
	v := viper.New()

	v.SetDefault(KeyConfig, filepath.Join("config", "bots.yaml"))
	v.SetDefault(KeyPromptsDir, "")
	v.SetDefault(KeyHealthAddr, ":8081")
	v.SetDefault(KeyMaxJobs, 4)
	v.SetDefault(KeyPollInterval, 2*time.Second)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "json")
	v.SetDefault(KeyAudioCodec, "opus")

	for key, env := range envBindings {
		// BindEnv only fails when called without a key.
		_ = v.BindEnv(key, env)
	}
	return v
}

// BindFlags binds every flag in fs whose name matches a setting key.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for key := range envBindings {
		f := fs.Lookup(flagName(key))
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", f.Name, err)
		}
	}
	return nil
}

// LoadSettings reads the resolved settings out of v.
func LoadSettings(v *viper.Viper) (*Settings, error) {
	s := &Settings{
		BotType:      v.GetString(KeyBotType),
		ConfigPath:   v.GetString(KeyConfig),
		PromptsDir:   v.GetString(KeyPromptsDir),
		HealthAddr:   v.GetString(KeyHealthAddr),
		Room:         v.GetString(KeyRoom),
		RoomPrefix:   v.GetString(KeyRoomPrefix),
		MaxJobs:      v.GetInt(KeyMaxJobs),
		PollInterval: v.GetDuration(KeyPollInterval),
		LogLevel:     v.GetString(KeyLogLevel),
		LogFormat:    v.GetString(KeyLogFormat),
		AudioCodec:   strings.ToLower(v.GetString(KeyAudioCodec)),
	}

	if s.BotType == "" {
		s.BotType = fileBotType(s.ConfigPath)
	}
	if s.PromptsDir == "" {
		s.PromptsDir = filepath.Join(filepath.Dir(s.ConfigPath), "prompts")
	}
	if s.MaxJobs < 1 {
		return nil, fmt.Errorf("max_jobs must be at least 1, got %d", s.MaxJobs)
	}
	if s.PollInterval <= 0 {
		return nil, fmt.Errorf("poll_interval must be positive, got %s", s.PollInterval)
	}
	return s, nil
}

// fileBotType reads defaults.bot_type from the bots file. A file that cannot
// be read is reported later by whatever loads it.
func fileBotType(path string) string {
	d, err := NewStore(path).Defaults()
	if err != nil || d.BotType == "" {
		return DefaultBotType
	}
	return d.BotType
}

func flagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}
