// Package config provides configuration data structures and loading for
// fishmeout.
package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultCredentialsFile is the service account key read by the bot.
	DefaultCredentialsFile = "fishmeout-credentials.json"
	// DefaultKnowledgeDocID is the Google Doc holding Q:/A: knowledge.
	DefaultKnowledgeDocID = "1uZ0g63V3Zxq8sIXrR3ggGQyArkNiOYseGsaX0hyCr6Y"
	// DefaultLearningSheetID is the Google Sheet collecting unanswered phrases.
	DefaultLearningSheetID = "1sq4zmYnvyWUymfWvv4sRDFdnj31mQKgkGEpQurHHgYk"
	// PlaceholderToken is the value shipped in examples instead of a real token.
	PlaceholderToken = "YOUR_BOT_TOKEN_HERE"
)

// Config is the complete fishmeout configuration.
type Config struct {
	Telegram   TelegramConfig   `mapstructure:"telegram"   yaml:"telegram"`
	Google     GoogleConfig     `mapstructure:"google"     yaml:"google"`
	Knowledge  KnowledgeConfig  `mapstructure:"knowledge"  yaml:"knowledge"`
	Moderation ModerationConfig `mapstructure:"moderation" yaml:"moderation"`
	Storage    StorageConfig    `mapstructure:"storage"    yaml:"storage"`
	Log        LogConfig        `mapstructure:"log"        yaml:"log"`
	Sentry     SentryConfig     `mapstructure:"sentry"     yaml:"sentry"`
	Setup      SetupConfig      `mapstructure:"setup"      yaml:"setup"`
}

// TelegramConfig configures the Bot API client.
type TelegramConfig struct {
	// Token is the bot token, normally taken from BOT_TOKEN.
	Token string `mapstructure:"token" yaml:"token"`
}

// GoogleConfig points at the service account and the two Google documents.
type GoogleConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"  yaml:"credentials_file"`
	KnowledgeDocID  string `mapstructure:"knowledge_doc_id"  yaml:"knowledge_doc_id"`
	LearningSheetID string `mapstructure:"learning_sheet_id" yaml:"learning_sheet_id"`
}

// KnowledgeConfig tunes question matching.
type KnowledgeConfig struct {
	// MinScore is the number of query words that must appear in a question.
	MinScore int `mapstructure:"min_score" yaml:"min_score"`
	// CacheTTL is how long the knowledge document text is reused.
	CacheTTL time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
}

// ModerationConfig configures the content filter.
type ModerationConfig struct {
	// WordsFile optionally extends the built-in word list.
	WordsFile string `mapstructure:"words_file" yaml:"words_file"`
	// OpenAIKey enables the OpenAI moderation endpoint as a second pass.
	OpenAIKey string `mapstructure:"openai_api_key" yaml:"openai_api_key"`
	// MasterKey is the base64 AES key used to encrypt stored flagged text.
	MasterKey string `mapstructure:"master_key" yaml:"master_key"`
	// EventLimit caps stored moderation events per chat. 0 keeps everything.
	EventLimit int `mapstructure:"event_limit" yaml:"event_limit"`
}

// StorageConfig configures the bolt database.
type StorageConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig configures zerolog.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// SentryConfig configures error reporting. An empty DSN disables it.
type SentryConfig struct {
	DSN         string `mapstructure:"dsn"         yaml:"dsn"`
	Environment string `mapstructure:"environment" yaml:"environment"`
}

// SetupConfig configures the bootstrap flow.
type SetupConfig struct {
	// Interpreter must be on PATH before anything is installed.
	Interpreter string `mapstructure:"interpreter" yaml:"interpreter"`
	// PackageManager installs the manifest.
	PackageManager string `mapstructure:"package_manager" yaml:"package_manager"`
	// Manifest is the generated dependency list.
	Manifest string `mapstructure:"manifest" yaml:"manifest"`
	// ShellProfile receives the BOT_TOKEN export. Empty means derive from $SHELL.
	ShellProfile string `mapstructure:"shell_profile" yaml:"shell_profile"`
	// BotCommand is launched at the end of setup.
	BotCommand []string `mapstructure:"bot_command" yaml:"bot_command"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills in every unset value.
func (c *Config) ApplyDefaults() {
	if c.Google.CredentialsFile == "" {
		c.Google.CredentialsFile = DefaultCredentialsFile
	}
	if c.Google.KnowledgeDocID == "" {
		c.Google.KnowledgeDocID = DefaultKnowledgeDocID
	}
	if c.Google.LearningSheetID == "" {
		c.Google.LearningSheetID = DefaultLearningSheetID
	}
	if c.Knowledge.MinScore <= 0 {
		c.Knowledge.MinScore = 2
	}
	if c.Knowledge.CacheTTL == 0 {
		c.Knowledge.CacheTTL = 5 * time.Minute
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "fishmeout.db"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Sentry.Environment == "" {
		c.Sentry.Environment = "production"
	}
	if c.Setup.Interpreter == "" {
		c.Setup.Interpreter = "python3"
	}
	if c.Setup.PackageManager == "" {
		c.Setup.PackageManager = "pip3"
	}
	if c.Setup.Manifest == "" {
		c.Setup.Manifest = "requirements.txt"
	}
	if len(c.Setup.BotCommand) == 0 {
		c.Setup.BotCommand = []string{c.Setup.Interpreter, "bot.py"}
	}
}

// Validate checks values that defaults cannot repair.
func (c *Config) Validate() error {
	if c.Knowledge.CacheTTL < 0 {
		return fmt.Errorf("knowledge.cache_ttl must not be negative, got %s", c.Knowledge.CacheTTL)
	}
	if c.Moderation.EventLimit < 0 {
		return fmt.Errorf("moderation.event_limit must not be negative, got %d", c.Moderation.EventLimit)
	}
	for _, part := range c.Setup.BotCommand {
		if strings.TrimSpace(part) == "" {
			return fmt.Errorf("setup.bot_command contains an empty argument")
		}
	}
	return nil
}

// HasToken reports whether a usable bot token is configured.
func (c *Config) HasToken() bool {
	t := strings.TrimSpace(c.Telegram.Token)
	return t != "" && t != PlaceholderToken
}

// Redacted returns a copy with secrets masked, suitable for printing.
func (c *Config) Redacted() *Config {
	out := *c
	out.Setup.BotCommand = append([]string(nil), c.Setup.BotCommand...)
	out.Telegram.Token = mask(c.Telegram.Token)
	out.Moderation.OpenAIKey = mask(c.Moderation.OpenAIKey)
	out.Moderation.MasterKey = mask(c.Moderation.MasterKey)
	out.Sentry.DSN = mask(c.Sentry.DSN)
	return &out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}
