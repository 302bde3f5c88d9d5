package branch

import (
	"strings"
	"time"
	"unicode"

	"github.com/loomworks/loom/pkg/conversation"
)

// stopwords are skipped during topic keyword extraction.
var stopwords = map[string]struct{}{
	"about": {}, "after": {}, "again": {}, "also": {}, "because": {},
	"before": {}, "being": {}, "between": {}, "code": {}, "could": {},
	"doing": {}, "does": {}, "have": {}, "help": {}, "here": {},
	"how": {}, "into": {}, "just": {}, "like": {}, "make": {},
	"making": {}, "more": {}, "need": {}, "other": {}, "over": {},
	"please": {}, "should": {}, "some": {}, "that": {}, "them": {},
	"then": {}, "there": {}, "these": {}, "they": {}, "this": {},
	"using": {}, "want": {}, "what": {}, "when": {}, "where": {},
	"which": {}, "will": {}, "with": {}, "would": {}, "your": {},
}

const maxNameKeywords = 3

// autoName derives a branch name from the most recent user message at or
// before the fork point, falling back to a timestamp when no usable topic
// words exist.
func autoName(history []*conversation.Turn, forkAt int) string {
	for i := len(history) - 1; i >= 0; i-- {
		t := history[i]
		if t.Sequence > forkAt || t.Message.Role != conversation.RoleUser {
			continue
		}
		if name := topicKeywords(t.Message.Content); name != "" {
			return name
		}
		break
	}
	return "branch-" + time.Now().UTC().Format("20060102-150405")
}

// topicKeywords extracts up to three meaningful words from content and joins
// them kebab-case.
func topicKeywords(content string) string {
	fields := strings.FieldsFunc(strings.ToLower(content), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var words []string
	for _, w := range fields {
		if len(w) < 4 {
			continue
		}
		if _, skip := stopwords[w]; skip {
			continue
		}
		words = append(words, w)
		if len(words) == maxNameKeywords {
			break
		}
	}

	return strings.Join(words, "-")
}
