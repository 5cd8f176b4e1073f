// Package moderation decides whether a chat message contains inappropriate
// language.
package moderation

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"fishmeout-bot/internal/logging"
)

// DefaultWords is the built-in list of negative words.
var DefaultWords = []string{
	"hate", "stupid", "idiot", "moron", "retard", "shit", "fuck", "asshole",
	"bastard", "bitch", "cunt", "damn", "hell", "dumb", "loser",
	"fucking", "ass", "dick", "piss", "cock", "pussy", "fag", "faggot",
	"whore", "slut", "nigger", "nigga", "chink", "spic", "kike", "terrorist",
}

// Classifier is a second opinion consulted for text the word list allows.
type Classifier interface {
	Flagged(ctx context.Context, text string) (bool, error)
}

// Filter matches whole words case-insensitively.
type Filter struct {
	words      []string
	re         *regexp.Regexp
	classifier Classifier
}

// NewFilter builds a filter for the given words. Empty entries and duplicates
// are ignored.
func NewFilter(words []string) *Filter {
	seen := make(map[string]bool, len(words))
	var uniq []string
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		uniq = append(uniq, w)
	}
	sort.Strings(uniq)

	f := &Filter{words: uniq}
	if len(uniq) > 0 {
		quoted := make([]string, len(uniq))
		for i, w := range uniq {
			quoted[i] = regexp.QuoteMeta(w)
		}
		f.re = regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
	}
	return f
}

// WithClassifier returns f with a secondary classifier attached.
func (f *Filter) WithClassifier(c Classifier) *Filter {
	f.classifier = c
	return f
}

// Words returns the normalized word list.
func (f *Filter) Words() []string {
	return append([]string(nil), f.words...)
}

// Check reports whether text contains a listed word.
func (f *Filter) Check(text string) bool {
	if f.re == nil {
		return false
	}
	return f.re.MatchString(strings.ToLower(text))
}

// Negative runs the word list and then the classifier, if any. Classifier
// failures allow the message.
func (f *Filter) Negative(ctx context.Context, text string) bool {
	if f.Check(text) {
		return true
	}
	if f.classifier == nil {
		return false
	}
	flagged, err := f.classifier.Flagged(ctx, text)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("moderation classifier failed")
		return false
	}
	return flagged
}

// LoadWords reads one word per line. Blank lines and lines starting with #
// are skipped.
func LoadWords(r io.Reader) ([]string, error) {
	var words []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	return words, sc.Err()
}

// LoadWordsFile is LoadWords for a path.
func LoadWordsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open words file: %w", err)
	}
	defer f.Close()
	return LoadWords(f)
}
