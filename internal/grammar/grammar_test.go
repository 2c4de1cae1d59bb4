package grammar

import (
	"regexp"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClickHouseDefinitionGolden(t *testing.T) {
	g := goldie.New(t)
	g.Assert(t, "clickhouse_grammar", []byte(ClickHouse.Definition()))
}

func TestClickHouseVocabularies(t *testing.T) {
	require.Equal(t, "clickhouse_grammar", ClickHouse.Name())
	require.Equal(t, SyntaxLark, ClickHouse.Syntax())

	assert.True(t, ClickHouse.HasTable("orders"))
	assert.False(t, ClickHouse.HasTable("users"))
	assert.True(t, ClickHouse.HasColumn("total_amount"))
	assert.False(t, ClickHouse.HasColumn("password"))

	for _, table := range ClickHouse.Tables() {
		assert.Contains(t, ClickHouse.Definition(), `"`+table+`"`)
	}
	assert.NotContains(t, ClickHouse.Definition(), "{{")
}

func TestGrammarIsImmutable(t *testing.T) {
	tables := ClickHouse.Tables()
	tables[0] = "users"
	require.True(t, ClickHouse.HasTable("orders"))
	require.False(t, ClickHouse.HasTable("users"))

	clauses := ClickHouse.ClauseKeywords()
	clauses[0] = "DELETE"
	require.Equal(t, "WHERE", ClickHouse.ClauseKeywords()[0])
}

func TestGrammarExcludesWriteStatements(t *testing.T) {
	for _, keyword := range []string{"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "UNION"} {
		assert.False(t, strings.Contains(ClickHouse.Definition(), `"`+keyword+`"`), keyword)
	}
}

func TestLiteralTerminals(t *testing.T) {
	str := regexp.MustCompile(`^'[A-Za-z0-9_ ]*'$`)
	num := regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

	assert.Contains(t, ClickHouse.Definition(), `string_literal: /'[A-Za-z0-9_ ]*'/`)
	assert.Contains(t, ClickHouse.Definition(), `number_literal: /[0-9]+(\.[0-9]+)?/`)

	assert.True(t, str.MatchString("'completed'"))
	assert.False(t, str.MatchString("'x'; DROP TABLE orders; --'"))
	assert.True(t, num.MatchString("30"))
	assert.True(t, num.MatchString("19.99"))
	assert.False(t, num.MatchString("1e10"))
}

func TestNewRendersAlternations(t *testing.T) {
	g := New("tiny", SyntaxLark, []string{"a", "b"}, []string{"x"}, nil, "t: {{tables}}\nc: {{columns}}\n")
	require.Equal(t, "t: \"a\" | \"b\"\nc: \"x\"\n", g.Definition())
}
