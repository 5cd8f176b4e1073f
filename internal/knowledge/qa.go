// Package knowledge answers questions from a Q:/A: document and records the
// ones it cannot answer.
package knowledge

import "strings"

// QAPair is one question and its answer.
type QAPair struct {
	Question string
	Answer   string
}

// ParseQA extracts pairs from text laid out as
//
//	Q: question
//	A: answer
//	more answer
//
// Lines following an open question are appended to its answer. A pair is kept
// only when both the question and the answer are non-empty.
func ParseQA(text string) []QAPair {
	var (
		pairs    []QAPair
		question string
		answer   strings.Builder
		open     bool
	)
	flush := func() {
		a := strings.TrimSpace(answer.String())
		if question != "" && a != "" {
			pairs = append(pairs, QAPair{Question: question, Answer: a})
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "Q:"):
			flush()
			question = strings.TrimSpace(line[2:])
			answer.Reset()
			open = question != ""
		case strings.HasPrefix(line, "A:") && open:
			answer.Reset()
			answer.WriteString(strings.TrimSpace(line[2:]))
		case open && line != "":
			answer.WriteByte(' ')
			answer.WriteString(line)
		}
	}
	flush()
	return pairs
}

// Score counts the words of query that occur in question, case-insensitively.
// Repeated query words count each time.
func Score(query, question string) int {
	q := strings.ToLower(question)
	n := 0
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if strings.Contains(q, w) {
			n++
		}
	}
	return n
}

// Match returns the answer of the best scoring pair. Ties keep the earlier
// pair. ok is false when the best score is below minScore.
func Match(query string, pairs []QAPair, minScore int) (answer string, ok bool) {
	best := 0
	for _, p := range pairs {
		if s := Score(query, p.Question); s > best {
			best = s
			answer = p.Answer
		}
	}
	if answer == "" || best < minScore {
		return "", false
	}
	return answer, true
}

// FormatPair renders a pair the way ParseQA reads it back, for appending to
// the end of the document.
func FormatPair(question, answer string) string {
	return "\nQ: " + question + "\nA: " + answer + "\n"
}
