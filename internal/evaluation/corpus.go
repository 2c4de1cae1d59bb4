package evaluation

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Category groups corpus cases for the metrics breakdown.
type Category string

const (
	CategoryBasic       Category = "basic"
	CategoryAggregation Category = "aggregation"
	CategoryFiltering   Category = "filtering"
	CategoryComplex     Category = "complex"
)

// Categories lists every known category in reporting order.
var Categories = []Category{CategoryBasic, CategoryAggregation, CategoryFiltering, CategoryComplex}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// TestCase is one labeled corpus entry.
type TestCase struct {
	ID                   string   `yaml:"id" json:"id"`
	NaturalLanguageQuery string   `yaml:"natural_language_query" json:"natural_language_query"`
	ExpectedQuery        string   `yaml:"expected_query" json:"expected_query"`
	Description          string   `yaml:"description" json:"description"`
	Category             Category `yaml:"category" json:"category"`
	// ExpectClarification marks questions that are ambiguous on purpose; a clarification is the
	// correct answer and ExpectedQuery is left empty.
	ExpectClarification bool `yaml:"expect_clarification,omitempty" json:"expect_clarification,omitempty"`
}

type corpusFile struct {
	Cases []TestCase `yaml:"cases"`
}

//go:embed corpus.yaml
var defaultCorpusYAML []byte

var defaultCorpus = sync.OnceValues(func() ([]TestCase, error) {
	return ParseCorpus(defaultCorpusYAML)
})

// DefaultCorpus returns a copy of the embedded corpus.
func DefaultCorpus() []TestCase {
	cases, err := defaultCorpus()
	if err != nil {
		panic(fmt.Sprintf("embedded corpus is invalid: %v", err))
	}
	return append([]TestCase(nil), cases...)
}

// LoadCorpus reads and validates a corpus file.
func LoadCorpus(path string) ([]TestCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	return ParseCorpus(data)
}

// ParseCorpus decodes a yaml corpus and validates every case.
func ParseCorpus(data []byte) ([]TestCase, error) {
	var file corpusFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse corpus: %w", err)
	}

	seen := make(map[string]struct{}, len(file.Cases))
	for i, tc := range file.Cases {
		id := strings.TrimSpace(tc.ID)
		switch {
		case id == "":
			return nil, fmt.Errorf("corpus case %d: id is required", i)
		case strings.TrimSpace(tc.NaturalLanguageQuery) == "":
			return nil, fmt.Errorf("corpus case %q: natural_language_query is required", id)
		case !tc.Category.Valid():
			return nil, fmt.Errorf("corpus case %q: unknown category %q", id, tc.Category)
		case !tc.ExpectClarification && strings.TrimSpace(tc.ExpectedQuery) == "":
			return nil, fmt.Errorf("corpus case %q: expected_query is required", id)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("corpus case %q: duplicate id", id)
		}
		seen[id] = struct{}{}
	}

	return file.Cases, nil
}
