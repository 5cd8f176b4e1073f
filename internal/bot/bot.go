package bot

import (
	"context"
	"fmt"

	tg "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"fishmeout-bot/internal/config"
	"fishmeout-bot/internal/crypt"
	apperrors "fishmeout-bot/internal/errors"
	"fishmeout-bot/internal/handler"
	"fishmeout-bot/internal/knowledge"
	"fishmeout-bot/internal/logging"
	"fishmeout-bot/internal/moderation"
	sentryutil "fishmeout-bot/internal/sentry"
	"fishmeout-bot/internal/storage"
)

// Run starts the Telegram bot and polls for updates until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config) error {
	if !cfg.HasToken() {
		return apperrors.MissingToken()
	}

	// initialize cipher & storage
	if err := crypt.Init(cfg.Moderation.MasterKey); err != nil {
		return apperrors.Wrap(err, apperrors.ErrConfig, "invalid master key").
			WithSuggestion("Set FISHMEOUT_MASTER_KEY to a base64 encoded 32 byte key, or unset it.")
	}
	if err := storage.Init(cfg.Storage.Path); err != nil {
		return apperrors.Wrap(err, apperrors.ErrStorage, "storage init").WithDetails("path", cfg.Storage.Path)
	}
	defer storage.Close()

	filter, err := NewFilter(cfg.Moderation)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrConfig, "load moderation words").
			WithDetails("path", cfg.Moderation.WordsFile)
	}

	doc, err := knowledge.NewGoogleDoc(ctx, cfg.Google.CredentialsFile, cfg.Google.KnowledgeDocID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrGoogle, "connect to Google Docs").
			WithDetails("credentials", cfg.Google.CredentialsFile)
	}
	sheet, err := knowledge.NewGoogleSheet(ctx, cfg.Google.CredentialsFile, cfg.Google.LearningSheetID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrGoogle, "connect to Google Sheets").
			WithDetails("credentials", cfg.Google.CredentialsFile)
	}
	base := knowledge.NewBase(doc, cfg.Knowledge.MinScore, cfg.Knowledge.CacheTTL)
	learning := knowledge.NewLearningLog(sheet)

	var h *handler.Handler
	b, err := tg.New(cfg.Telegram.Token,
		tg.WithDefaultHandler(func(ctx context.Context, b *tg.Bot, upd *models.Update) {
			h.HandleUpdate(ctx, b, upd)
		}),
		tg.WithErrorsHandler(func(err error) {
			logging.Log.Error().Err(err).Msg("telegram polling error")
		}),
		tg.WithSkipGetMe(),
	)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrTelegram, "failed to create bot")
	}
	me, err := b.GetMe(ctx)
	if err != nil {
		sentryutil.CaptureError(err, map[string]string{"phase": "get_me"})
		return apperrors.Wrap(err, apperrors.ErrTelegram, "failed to identify bot").
			WithSuggestion("Check that BOT_TOKEN is the token @BotFather gave you.")
	}
	h = handler.New(*me, filter, base, learning)
	h.EventLimit = cfg.Moderation.EventLimit

	logging.Log.Info().
		Str("username", me.Username).
		Bool("encryption", crypt.Enabled()).
		Int("words", len(filter.Words())).
		Msg(fmt.Sprintf("Bot started as @%s", me.Username))

	b.Start(ctx)
	logging.Log.Info().Msg("bot stopped")
	return nil
}

// NewFilter builds the moderation filter from the built-in words, the optional
// words file and the optional OpenAI classifier.
func NewFilter(cfg config.ModerationConfig) (*moderation.Filter, error) {
	words := append([]string(nil), moderation.DefaultWords...)
	if cfg.WordsFile != "" {
		extra, err := moderation.LoadWordsFile(cfg.WordsFile)
		if err != nil {
			return nil, err
		}
		words = append(words, extra...)
	}
	f := moderation.NewFilter(words)
	if cfg.OpenAIKey != "" {
		f.WithClassifier(moderation.NewOpenAIClassifier(cfg.OpenAIKey))
	}
	return f, nil
}
