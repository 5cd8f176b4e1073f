package config

import (
	"errors"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	apperrors "fishmeout-bot/internal/errors"
)

const (
	// DefaultConfigPath is read when present and no explicit path is given.
	DefaultConfigPath = "fishmeout.yaml"

	// DefaultEnvFile is loaded into the process environment when present.
	DefaultEnvFile = ".env"

	// EnvPrefix is the prefix for generic environment variable overrides,
	// e.g. FISHMEOUT_SETUP_INTERPRETER.
	EnvPrefix = "FISHMEOUT"
)

// envBindings are the well-known unprefixed variables.
var envBindings = map[string][]string{
	"telegram.token":            {"BOT_TOKEN"},
	"google.credentials_file":   {"GOOGLE_CREDENTIALS_FILE"},
	"google.knowledge_doc_id":   {"KNOWLEDGE_DOC_ID"},
	"google.learning_sheet_id":  {"LEARNING_SHEET_ID"},
	"storage.path":              {"FISHMEOUT_DB"},
	"log.level":                 {"LOG_LEVEL"},
	"sentry.dsn":                {"SENTRY_DSN"},
	"sentry.environment":        {"SENTRY_ENVIRONMENT"},
	"moderation.openai_api_key": {"OPENAI_API_KEY"},
	"moderation.master_key":     {"FISHMEOUT_MASTER_KEY"},
	"moderation.words_file":     {"MODERATION_WORDS_FILE"},
}

// Loader handles loading configuration from files and environment.
type Loader struct {
	v *viper.Viper

	// EnvFile is a dotenv file loaded before reading the environment.
	// Variables already set in the environment win.
	EnvFile string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, envs := range envBindings {
		_ = v.BindEnv(append([]string{key}, envs...)...)
	}
	setDefaults(v, NewConfig())

	return &Loader{v: v, EnvFile: DefaultEnvFile}
}

// setDefaults registers every key so that AutomaticEnv overrides are seen by
// Unmarshal even when no config file mentions them.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("telegram.token", d.Telegram.Token)
	v.SetDefault("google.credentials_file", d.Google.CredentialsFile)
	v.SetDefault("google.knowledge_doc_id", d.Google.KnowledgeDocID)
	v.SetDefault("google.learning_sheet_id", d.Google.LearningSheetID)
	v.SetDefault("knowledge.min_score", d.Knowledge.MinScore)
	v.SetDefault("knowledge.cache_ttl", d.Knowledge.CacheTTL)
	v.SetDefault("moderation.words_file", d.Moderation.WordsFile)
	v.SetDefault("moderation.openai_api_key", d.Moderation.OpenAIKey)
	v.SetDefault("moderation.master_key", d.Moderation.MasterKey)
	v.SetDefault("moderation.event_limit", d.Moderation.EventLimit)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("sentry.dsn", d.Sentry.DSN)
	v.SetDefault("sentry.environment", d.Sentry.Environment)
	v.SetDefault("setup.interpreter", d.Setup.Interpreter)
	v.SetDefault("setup.package_manager", d.Setup.PackageManager)
	v.SetDefault("setup.manifest", d.Setup.Manifest)
	v.SetDefault("setup.shell_profile", d.Setup.ShellProfile)
	// Left empty so ApplyDefaults can derive it from the interpreter.
	v.SetDefault("setup.bot_command", []string{})
}

// LoadConfig reads the dotenv file, the optional YAML file at path and the
// environment, then applies defaults and validates the result. An empty path
// uses DefaultConfigPath when that file exists.
func (l *Loader) LoadConfig(path string) (*Config, error) {
	if l.EnvFile != "" {
		if err := godotenv.Load(l.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.Wrap(err, apperrors.ErrConfig, "failed to read "+l.EnvFile)
		}
	}

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath
	}
	if _, err := os.Stat(path); err == nil {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrConfig, "failed to read config file").
				WithDetails("path", path)
		}
	} else if explicit {
		return nil, apperrors.Wrap(err, apperrors.ErrConfig, "config file not found").
			WithDetails("path", path)
	}

	cfg := &Config{}
	if err := l.v.Unmarshal(cfg, viperDecodeHook); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrConfig, "failed to parse configuration")
	}
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrConfig, "configuration validation failed")
	}
	return cfg, nil
}

// viperDecodeHook lets durations and space separated commands come from
// strings in files and the environment.
func viperDecodeHook(dc *mapstructure.DecoderConfig) {
	dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(" "),
	)
}
