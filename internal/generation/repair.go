package generation

import (
	"strings"

	"github.com/noah-isme/nl2sql-api/internal/grammar"
)

// KeywordRepairer restores the space the generator sometimes drops between the FROM target
// and the clause keyword that follows it ("FROM ordersWHERE" -> "FROM orders WHERE").
// The fix-up list is enumerated from the grammar's table and clause vocabularies; nothing
// else in the query is touched.
type KeywordRepairer struct {
	replacer *strings.Replacer
}

// NewKeywordRepairer enumerates the fix-ups for g.
func NewKeywordRepairer(g grammar.Grammar) KeywordRepairer {
	pairs := make([]string, 0, len(g.Tables())*len(g.ClauseKeywords())*2)
	for _, table := range g.Tables() {
		for _, clause := range g.ClauseKeywords() {
			pairs = append(pairs, "FROM "+table+clause, "FROM "+table+" "+clause)
		}
	}
	return KeywordRepairer{replacer: strings.NewReplacer(pairs...)}
}

// Repair applies the fix-ups to query.
func (r KeywordRepairer) Repair(query string) string {
	if r.replacer == nil {
		return query
	}
	return r.replacer.Replace(query)
}
