package handler

import (
	"context"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"

	tg "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"fishmeout-bot/internal/logging"
	sentryutil "fishmeout-bot/internal/sentry"
	"fishmeout-bot/internal/storage"
)

const (
	startText = "Hi! I'm a moderation and assistance bot. " +
		"I can detect inappropriate language and answer questions based on my knowledge base. " +
		"Use /help to see all available commands."

	helpText = "🤖 Available commands:\n\n" +
		"/start - Start interacting with the bot\n" +
		"/help - Show this help message\n" +
		"/add_knowledge <question> | <answer> - Add new knowledge to my database (admin only)\n" +
		"/set_welcome <message> - Set a custom welcome message for this group (admin only)\n\n" +
		"I automatically monitor messages for inappropriate content and can answer questions " +
		"when you mention me in a group chat or message me directly."

	// DefaultWelcome is sent when the bot joins a chat without a custom message.
	DefaultWelcome = "Hello! I'm here to help maintain a positive environment. " +
		"I can detect inappropriate language and answer questions based on my knowledge base. " +
		"Use /help to see what I can do."

	notAdminText         = "❌ You need to be an administrator to use this command."
	knowledgeUsageText   = "Please provide knowledge in the format: /add_knowledge Question | Answer"
	knowledgeSepText     = "Please separate question and answer with a | character: /add_knowledge Question | Answer"
	knowledgeAddedText   = "✅ Knowledge added successfully!"
	knowledgeFailedText  = "❌ Failed to add knowledge. Please check logs for details."
	welcomeUsageText     = "Please provide a welcome message: /set_welcome Your welcome message here"
	welcomeSetText       = "✅ Welcome message set successfully!"
	welcomeSaveErrorText = "❌ Failed to save the welcome message. Please check logs for details."
)

// BotAPI is the subset of the Telegram client used by the handler.
type BotAPI interface {
	SendMessage(ctx context.Context, params *tg.SendMessageParams) (*models.Message, error)
	DeleteMessage(ctx context.Context, params *tg.DeleteMessageParams) (bool, error)
	GetChatMember(ctx context.Context, params *tg.GetChatMemberParams) (*models.ChatMember, error)
}

var _ BotAPI = (*tg.Bot)(nil)

// Moderator decides whether text is inappropriate.
type Moderator interface {
	Negative(ctx context.Context, text string) bool
}

// KnowledgeBase answers questions and accepts new ones.
type KnowledgeBase interface {
	Answer(ctx context.Context, query string) (reply string, found bool, err error)
	Add(ctx context.Context, question, answer string) error
}

// Learner records phrases the knowledge base could not answer.
type Learner interface {
	Record(ctx context.Context, phrase, source string) (bool, error)
}

// Handler routes Telegram updates. Storage must be initialized before use.
type Handler struct {
	self      models.User
	mention   *regexp.Regexp
	moderator Moderator
	knowledge KnowledgeBase
	learner   Learner

	// EventLimit caps stored moderation events per chat. 0 keeps everything.
	EventLimit int
}

// New returns a Handler for the bot identified by self.
func New(self models.User, moderator Moderator, knowledge KnowledgeBase, learner Learner) *Handler {
	h := &Handler{
		self:      self,
		moderator: moderator,
		knowledge: knowledge,
		learner:   learner,
	}
	if self.Username != "" {
		h.mention = regexp.MustCompile(`(?i)@` + regexp.QuoteMeta(self.Username) + `\s*`)
	}
	return h
}

// HandleUpdate processes a Telegram update.
func (h *Handler) HandleUpdate(ctx context.Context, b BotAPI, upd *models.Update) {
	if upd == nil || upd.Message == nil {
		return
	}
	msg := upd.Message
	ctx = logging.WithChat(logging.Context(ctx), msg.Chat.ID)
	if msg.From != nil {
		if msg.From.ID == h.self.ID {
			return
		}
		ctx = logging.WithUser(ctx, msg.From.ID)
	}

	if len(msg.NewChatMembers) > 0 {
		h.welcomeNewMembers(ctx, b, msg)
		return
	}
	if msg.Text == "" {
		return
	}

	log := logging.Ctx(ctx)
	log.Debug().Str("event", "telegram_request").Str("snippet", logging.Snippet(msg.Text, 30)).Msg("incoming message")

	if cmd, args, ok := parseCommand(msg, h.self.Username); ok {
		switch cmd {
		case "start":
			h.reply(ctx, b, msg, startText)
		case "help":
			h.reply(ctx, b, msg, helpText)
		case "add_knowledge":
			h.addKnowledge(ctx, b, msg, args)
		case "set_welcome":
			h.setWelcome(ctx, b, msg, args)
		}
		return
	}

	if h.moderator.Negative(ctx, msg.Text) {
		h.flag(ctx, b, msg)
		return
	}

	if msg.Chat.Type == models.ChatTypePrivate || h.mentioned(msg.Text) {
		h.answer(ctx, b, msg)
	}
}

func (h *Handler) mentioned(text string) bool {
	if h.self.Username == "" {
		return false
	}
	return strings.Contains(strings.ToLower(text), "@"+strings.ToLower(h.self.Username))
}

func (h *Handler) flag(ctx context.Context, b BotAPI, msg *models.Message) {
	log := logging.Ctx(ctx)
	chatID := msg.Chat.ID

	var userID int64
	name := "Someone"
	if msg.From != nil {
		userID = msg.From.ID
		name = msg.From.FirstName
	}
	warning := "⚠️ Warning: " + mentionHTML(userID, name) + " used inappropriate language."
	if _, err := b.SendMessage(ctx, &tg.SendMessageParams{
		ChatID:    chatID,
		Text:      warning,
		ParseMode: models.ParseModeHTML,
		ReplyParameters: &models.ReplyParameters{
			MessageID:                msg.ID,
			AllowSendingWithoutReply: true,
		},
	}); err != nil {
		log.Error().Err(err).Msg("send warning failed")
	}

	if _, err := b.DeleteMessage(ctx, &tg.DeleteMessageParams{ChatID: chatID, MessageID: msg.ID}); err != nil {
		log.Warn().Err(err).Msg("delete message failed; is the bot an admin?")
	}

	count, err := storage.IncrementWarnings(chatID, userID)
	if err != nil {
		log.Error().Err(err).Msg("increment warnings failed")
		sentryutil.CaptureError(err, map[string]string{"handler": "flag", "phase": "warnings"})
	}
	ev := storage.Event{ChatID: chatID, UserID: userID, UserName: name, Text: msg.Text, When: time.Now().Unix()}
	if err := storage.AddEvent(ev); err != nil {
		log.Error().Err(err).Msg("store moderation event failed")
		sentryutil.CaptureError(err, map[string]string{"handler": "flag", "phase": "event"})
	} else if err := storage.TrimEvents(chatID, h.EventLimit); err != nil {
		log.Warn().Err(err).Msg("trim moderation events failed")
	}

	log.Info().Str("event", "message_flagged").Int("warnings", count).
		Str("snippet", logging.Snippet(msg.Text, 30)).Msg("flagged and deleted message")
}

func (h *Handler) answer(ctx context.Context, b BotAPI, msg *models.Message) {
	query := msg.Text
	if h.mention != nil {
		query = h.mention.ReplaceAllString(query, "")
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return
	}

	log := logging.Ctx(ctx)
	reply, found, err := h.knowledge.Answer(ctx, query)
	if err != nil {
		sentryutil.CaptureError(err, map[string]string{"handler": "answer", "phase": "knowledge"})
	}
	h.reply(ctx, b, msg, reply)
	log.Info().Str("event", "knowledge_reply").Bool("found", found).Str("snippet", logging.Snippet(query, 30)).Msg("answered question")

	if found || err != nil {
		return
	}
	var userID int64
	if msg.From != nil {
		userID = msg.From.ID
	}
	source := fmt.Sprintf("User: %d, Chat: %d", userID, msg.Chat.ID)
	if _, err := h.learner.Record(ctx, query, source); err != nil {
		sentryutil.CaptureError(err, map[string]string{"handler": "answer", "phase": "learning"})
	}
}

func (h *Handler) addKnowledge(ctx context.Context, b BotAPI, msg *models.Message, args string) {
	if !h.isAdmin(ctx, b, msg) {
		h.reply(ctx, b, msg, notAdminText)
		return
	}
	text := strings.Join(strings.Fields(args), " ")
	if text == "" {
		h.reply(ctx, b, msg, knowledgeUsageText)
		return
	}
	question, answer, ok := strings.Cut(text, "|")
	question, answer = strings.TrimSpace(question), strings.TrimSpace(answer)
	if !ok || question == "" || answer == "" {
		h.reply(ctx, b, msg, knowledgeSepText)
		return
	}
	if err := h.knowledge.Add(ctx, question, answer); err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("error adding to knowledge doc")
		sentryutil.CaptureError(err, map[string]string{"handler": "add_knowledge"})
		h.reply(ctx, b, msg, knowledgeFailedText)
		return
	}
	h.reply(ctx, b, msg, knowledgeAddedText)
}

func (h *Handler) setWelcome(ctx context.Context, b BotAPI, msg *models.Message, args string) {
	if !h.isAdmin(ctx, b, msg) {
		h.reply(ctx, b, msg, notAdminText)
		return
	}
	text := strings.Join(strings.Fields(args), " ")
	if text == "" {
		h.reply(ctx, b, msg, welcomeUsageText)
		return
	}
	if err := storage.SaveWelcome(msg.Chat.ID, text); err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("save welcome failed")
		sentryutil.CaptureError(err, map[string]string{"handler": "set_welcome"})
		h.reply(ctx, b, msg, welcomeSaveErrorText)
		return
	}
	logging.Ctx(ctx).Info().Str("event", "set_welcome").Msg("welcome message updated")
	h.reply(ctx, b, msg, welcomeSetText)
}

func (h *Handler) welcomeNewMembers(ctx context.Context, b BotAPI, msg *models.Message) {
	for _, m := range msg.NewChatMembers {
		if m.ID != h.self.ID {
			continue
		}
		text, err := storage.LoadWelcome(msg.Chat.ID)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				logging.Ctx(ctx).Warn().Err(err).Msg("load welcome failed")
			}
			text = DefaultWelcome
		}
		h.reply(ctx, b, msg, text)
		logging.Ctx(ctx).Info().Str("event", "bot_joined").Msg("sent welcome message")
		return
	}
}

// isAdmin allows private chats and chat owners or administrators.
func (h *Handler) isAdmin(ctx context.Context, b BotAPI, msg *models.Message) bool {
	if msg.Chat.Type == models.ChatTypePrivate {
		return true
	}
	if msg.From == nil {
		return false
	}
	member, err := b.GetChatMember(ctx, &tg.GetChatMemberParams{ChatID: msg.Chat.ID, UserID: msg.From.ID})
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("get chat member failed")
		return false
	}
	return member.Type == models.ChatMemberTypeOwner || member.Type == models.ChatMemberTypeAdministrator
}

func (h *Handler) reply(ctx context.Context, b BotAPI, msg *models.Message, text string) {
	_, err := b.SendMessage(ctx, &tg.SendMessageParams{
		ChatID:          msg.Chat.ID,
		MessageThreadID: msg.MessageThreadID,
		Text:            text,
		ReplyParameters: &models.ReplyParameters{MessageID: msg.ID, AllowSendingWithoutReply: true},
	})
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("send message failed")
	}
}

func mentionHTML(userID int64, name string) string {
	return `<a href="tg://user?id=` + strconv.FormatInt(userID, 10) + `">` + html.EscapeString(name) + `</a>`
}

// parseCommand extracts a leading bot command. Commands addressed to another
// bot (/cmd@other_bot) yield an empty cmd with ok set.
func parseCommand(msg *models.Message, botUsername string) (cmd, args string, ok bool) {
	if msg.Text == "" {
		return "", "", false
	}
	for _, e := range msg.Entities {
		if e.Type != models.MessageEntityTypeBotCommand || e.Offset != 0 || e.Length > len(msg.Text) {
			continue
		}
		cmd = strings.TrimPrefix(msg.Text[:e.Length], "/")
		args = strings.TrimSpace(msg.Text[e.Length:])
		if name, target, found := strings.Cut(cmd, "@"); found {
			if !strings.EqualFold(target, botUsername) {
				return "", args, true
			}
			cmd = name
		}
		return strings.ToLower(cmd), args, true
	}
	return "", "", false
}
