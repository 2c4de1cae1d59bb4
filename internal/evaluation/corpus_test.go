package evaluation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultCorpus(t *testing.T) {
	corpus := DefaultCorpus()

	ids := make([]string, 0, len(corpus))
	for _, tc := range corpus {
		ids = append(ids, tc.ID)
	}
	require.Equal(t, []string{"basic-count", "sum-amount", "time-filter", "status-filter", "complex-aggregation"}, ids)
	require.Equal(t, "SELECT COUNT(*) FROM orders WHERE status = 'completed';", corpus[3].ExpectedQuery)
	require.Equal(t, CategoryComplex, corpus[4].Category)

	corpus[0].ID = "mutated"
	require.Equal(t, "basic-count", DefaultCorpus()[0].ID)
}

func TestParseCorpusValidation(t *testing.T) {
	cases := map[string]string{
		"missing id":       "cases:\n  - natural_language_query: q\n    expected_query: SELECT 1;\n    category: basic\n",
		"unknown category": "cases:\n  - id: a\n    natural_language_query: q\n    expected_query: SELECT 1;\n    category: joins\n",
		"missing expected": "cases:\n  - id: a\n    natural_language_query: q\n    category: basic\n",
		"duplicate id":     "cases:\n  - id: a\n    natural_language_query: q\n    expected_query: SELECT 1;\n    category: basic\n  - id: a\n    natural_language_query: q\n    expected_query: SELECT 1;\n    category: basic\n",
		"not yaml":         "cases: [",
	}

	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCorpus([]byte(data))
			require.Error(t, err)
		})
	}
}

func TestParseCorpusClarificationCase(t *testing.T) {
	corpus, err := ParseCorpus([]byte("cases:\n  - id: vague\n    natural_language_query: show me stuff\n    category: basic\n    expect_clarification: true\n"))
	require.NoError(t, err)
	require.True(t, corpus[0].ExpectClarification)
}

func TestLoadCorpus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cases:\n  - id: a\n    natural_language_query: count customers\n    expected_query: SELECT COUNT(*) FROM customers;\n    category: basic\n"), 0o600))

	corpus, err := LoadCorpus(path)
	require.NoError(t, err)
	require.Len(t, corpus, 1)

	_, err = LoadCorpus(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
