package knowledge

import (
	"context"
	"strings"
	"time"

	"fishmeout-bot/internal/logging"
)

// Sheet is the storage behind the learning log.
type Sheet interface {
	// FirstColumn returns the values of column A.
	FirstColumn(ctx context.Context) ([]string, error)
	// AppendRow adds a row after the last one.
	AppendRow(ctx context.Context, row []string) error
}

// LearningLog collects phrases the bot could not answer.
type LearningLog struct {
	sheet Sheet
	now   func() time.Time
}

// NewLearningLog returns a log writing to sheet.
func NewLearningLog(sheet Sheet) *LearningLog {
	return &LearningLog{sheet: sheet, now: time.Now}
}

// Record appends phrase and where it came from unless it is already present, compared
// case-insensitively. added reports whether a row was written.
func (l *LearningLog) Record(ctx context.Context, phrase, source string) (added bool, err error) {
	log := logging.Ctx(ctx)
	existing, err := l.sheet.FirstColumn(ctx)
	if err != nil {
		log.Error().Err(err).Msg("error reading learning sheet")
		return false, err
	}
	lower := strings.ToLower(phrase)
	for _, e := range existing {
		if strings.ToLower(e) == lower {
			log.Info().Str("phrase", logging.Snippet(phrase, 30)).Msg("phrase already exists in learning sheet")
			return false, nil
		}
	}
	row := []string{phrase, source, l.now().Format("2006-01-02 15:04:05.000000")}
	if err := l.sheet.AppendRow(ctx, row); err != nil {
		log.Error().Err(err).Msg("error saving to learning sheet")
		return false, err
	}
	log.Info().Str("phrase", logging.Snippet(phrase, 30)).Msg("saved new phrase to learning sheet")
	return true, nil
}
