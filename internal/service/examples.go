package service

import (
	"slices"

	"github.com/raphaelgruber/gafscrape/internal/convert"
)

// ExampleResult lists the genes of one organism annotated with an example term.
type ExampleResult struct {
	Name  string   `json:"name"`
	Genes []string `json:"genes"`
}

// ExtractExamples finds, for each term, the genes whose term set contains it.
// Genes keep record order. Terms with no matching gene are omitted. Unnamed
// terms fall back to their ID.
func ExtractExamples(rec *convert.AnnotationRecord, termIDs []string, names convert.TermNames) []ExampleResult {
	examples := make([]ExampleResult, 0, len(termIDs))
	for _, term := range termIDs {
		var genes []string
		for _, g := range rec.IDAliasTerm {
			if slices.Contains(g.Terms, term) {
				genes = append(genes, g.ID)
			}
		}
		if len(genes) == 0 {
			continue
		}

		name := names.Name(term)
		if name == "" {
			name = term
		}
		examples = append(examples, ExampleResult{Name: name, Genes: genes})
	}
	return examples
}
