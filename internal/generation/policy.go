package generation

import (
	"regexp"
	"strings"
)

// DefaultClarificationPhrases are the phrases that mark free text as a request for clarification.
var DefaultClarificationPhrases = []string{
	"clarify",
	"specify",
	"could you",
	"please",
	"what do you want",
	"not sure",
	"infer",
}

// ClarificationPolicy decides whether a free-text answer is a clarification request or a query.
//
// Text containing any phrase (case-insensitive substring) is a clarification, unless the text
// has the shape of a grammar statement (SELECT ... FROM ... ;): a statement is never read as
// prose, even when a string literal happens to contain one of the phrases. Prose that merely
// opens with the word "select" is still judged by the phrases.
type ClarificationPolicy struct {
	phrases []string
}

// NewClarificationPolicy builds a policy from phrases. Empty phrases are ignored.
func NewClarificationPolicy(phrases ...string) ClarificationPolicy {
	normalized := make([]string, 0, len(phrases))
	for _, phrase := range phrases {
		phrase = strings.ToLower(strings.TrimSpace(phrase))
		if phrase != "" {
			normalized = append(normalized, phrase)
		}
	}
	return ClarificationPolicy{phrases: normalized}
}

var statementShape = regexp.MustCompile(`(?is)^select\s.+\sfrom\s.+;$`)

// DefaultClarificationPolicy returns the policy built from DefaultClarificationPhrases.
func DefaultClarificationPolicy() ClarificationPolicy {
	return NewClarificationPolicy(DefaultClarificationPhrases...)
}

// Phrases returns the phrases the policy matches.
func (p ClarificationPolicy) Phrases() []string {
	return append([]string(nil), p.phrases...)
}

// IsClarification applies the policy to text.
func (p ClarificationPolicy) IsClarification(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || statementShape.MatchString(trimmed) {
		return false
	}
	lowered := strings.ToLower(trimmed)
	for _, phrase := range p.phrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}
