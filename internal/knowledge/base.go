package knowledge

import (
	"context"
	"strings"
	"sync"
	"time"

	"fishmeout-bot/internal/logging"
)

const (
	// ReplyUnknown is sent when no question matches.
	ReplyUnknown = "I don't have information about that yet. I'll save it to learn more."
	// ReplyUnavailable is sent when the document cannot be read.
	ReplyUnavailable = "Sorry, I'm having trouble accessing my knowledge base right now."
)

// Document is the storage behind the knowledge base.
type Document interface {
	// Text returns the full plain text of the document.
	Text(ctx context.Context) (string, error)
	// Append adds text at the end of the document.
	Append(ctx context.Context, text string) error
}

// Base answers questions from a Document, caching its text for ttl.
type Base struct {
	doc      Document
	minScore int
	ttl      time.Duration
	now      func() time.Time

	mu        sync.Mutex
	pairs     []QAPair
	fetchedAt time.Time
	cached    bool
}

// NewBase returns a Base over doc. A ttl of zero disables caching.
func NewBase(doc Document, minScore int, ttl time.Duration) *Base {
	if minScore <= 0 {
		minScore = 2
	}
	return &Base{doc: doc, minScore: minScore, ttl: ttl, now: time.Now}
}

// Pairs returns the parsed document, refreshing the cache when stale.
func (b *Base) Pairs(ctx context.Context) ([]QAPair, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cached && b.ttl > 0 && b.now().Sub(b.fetchedAt) < b.ttl {
		return b.pairs, nil
	}
	text, err := b.doc.Text(ctx)
	if err != nil {
		return nil, err
	}
	b.pairs = ParseQA(text)
	b.fetchedAt = b.now()
	b.cached = true
	return b.pairs, nil
}

// Answer looks up query. found is false for both misses and errors; the reply
// is always suitable to send to the user.
func (b *Base) Answer(ctx context.Context, query string) (reply string, found bool, err error) {
	pairs, err := b.Pairs(ctx)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("error accessing knowledge base")
		return ReplyUnavailable, false, err
	}
	if a, ok := Match(query, pairs, b.minScore); ok {
		return a, true, nil
	}
	return ReplyUnknown, false, nil
}

// Add appends a question and answer to the document.
func (b *Base) Add(ctx context.Context, question, answer string) error {
	question = strings.TrimSpace(question)
	answer = strings.TrimSpace(answer)
	if err := b.doc.Append(ctx, FormatPair(question, answer)); err != nil {
		return err
	}
	b.Invalidate()
	logging.Ctx(ctx).Info().Str("event", "knowledge_added").Str("question", question).Msg("added new knowledge")
	return nil
}

// Invalidate drops the cached document.
func (b *Base) Invalidate() {
	b.mu.Lock()
	b.cached = false
	b.pairs = nil
	b.mu.Unlock()
}
