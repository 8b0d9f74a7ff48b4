// Package convert turns raw ontology (OBO) and gene-association (GAF) text
// into the JSON records consumed by the browser front-end.
package convert

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
)

const scannerBufferSize = 1 << 20 // 1 MB

// ErrNoTerms indicates the ontology text contained no usable [Term] stanzas.
var ErrNoTerms = errors.New("ontology has no terms")

// OntologyOptions controls the shape of the converted ontology.
type OntologyOptions struct {
	// Compress replaces parent term IDs with the index of the parent's entry.
	Compress bool
	// IncludeTermInfo adds per-term metadata aligned with TermParents.
	IncludeTermInfo bool
}

// TermInfo is the human-readable metadata for one term.
type TermInfo struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace,omitempty"`
	Def       string `json:"def,omitempty"`
}

// OntologyRecord is the converted ontology.
//
// Entry n of TermParents is [termID, parent...]. Parents are term ID strings,
// or entry indices (int) when compressed. TermInfo, when present, is aligned
// with TermParents.
type OntologyRecord struct {
	TermParents [][]any    `json:"termParents"`
	TermInfo    []TermInfo `json:"termInfo,omitempty"`
}

// oboTerm is a parsed [Term] stanza.
type oboTerm struct {
	id         string
	name       string
	namespace  string
	def        string
	parents    []string
	isObsolete bool
}

// OntologyToRecord parses OBO text and converts it into an OntologyRecord.
// Obsolete terms are dropped, as are parents that are not defined terms.
func OntologyToRecord(text string, opts OntologyOptions) (*OntologyRecord, error) {
	terms, err := parseOBO(text)
	if err != nil {
		return nil, err
	}
	if len(terms) == 0 {
		return nil, ErrNoTerms
	}

	index := make(map[string]int, len(terms))
	for i, t := range terms {
		index[t.id] = i
	}

	rec := &OntologyRecord{
		TermParents: make([][]any, len(terms)),
	}
	if opts.IncludeTermInfo {
		rec.TermInfo = make([]TermInfo, len(terms))
	}

	for i, t := range terms {
		entry := make([]any, 1, len(t.parents)+1)
		entry[0] = t.id
		for _, p := range t.parents {
			n, ok := index[p]
			if !ok {
				continue
			}
			if opts.Compress {
				entry = append(entry, n)
			} else {
				entry = append(entry, p)
			}
		}
		rec.TermParents[i] = entry

		if opts.IncludeTermInfo {
			rec.TermInfo[i] = TermInfo{Name: t.name, Namespace: t.namespace, Def: t.def}
		}
	}

	return rec, nil
}

// TermID returns the identifier of entry n.
func (r *OntologyRecord) TermID(n int) string {
	if n < 0 || n >= len(r.TermParents) || len(r.TermParents[n]) == 0 {
		return ""
	}
	id, _ := r.TermParents[n][0].(string)
	return id
}

// TermNames builds the term ID to name lookup. It is empty unless the record
// was converted with IncludeTermInfo.
func (r *OntologyRecord) TermNames() TermNames {
	m := make(map[string]string, len(r.TermInfo))
	for n, info := range r.TermInfo {
		if id := r.TermID(n); id != "" {
			m[id] = info.Name
		}
	}
	return TermNames{m: m}
}

// TermNames maps term IDs to names. It is never modified after construction,
// so it is safe to share between goroutines.
type TermNames struct {
	m map[string]string
}

// NewTermNames copies m into a TermNames.
func NewTermNames(m map[string]string) TermNames {
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return TermNames{m: c}
}

// Name returns the name of a term, or "" if unknown.
func (n TermNames) Name(id string) string {
	return n.m[id]
}

// Len returns the number of named terms.
func (n TermNames) Len() int {
	return len(n.m)
}

func parseOBO(text string) ([]oboTerm, error) {
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, scannerBufferSize), scannerBufferSize)

	var (
		terms  []oboTerm
		cur    *oboTerm
		inTerm bool
	)

	flush := func() {
		if cur != nil && cur.id != "" && !cur.isObsolete {
			terms = append(terms, *cur)
		}
		cur = nil
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "!") {
			continue
		}

		if strings.HasPrefix(line, "[") {
			flush()
			inTerm = line == "[Term]"
			if inTerm {
				cur = &oboTerm{}
			}
			continue
		}
		if !inTerm {
			// Header lines and non-Term stanzas
			continue
		}

		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		val = strings.TrimSpace(val)

		switch key {
		case "id":
			cur.id = val
		case "name":
			cur.name = val
		case "namespace":
			cur.namespace = val
		case "def":
			cur.def = parseQuoted(val)
		case "is_a":
			cur.parents = append(cur.parents, firstField(stripComment(val)))
		case "relationship":
			// "part_of GO:0005634"
			rel, target, ok := strings.Cut(stripComment(val), " ")
			if ok && rel == "part_of" {
				cur.parents = append(cur.parents, firstField(target))
			}
		case "is_obsolete":
			cur.isObsolete = val == "true"
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan obo: %w", err)
	}
	flush()

	return terms, nil
}

// stripComment removes a trailing "! comment" from an OBO value.
func stripComment(s string) string {
	v, _, _ := strings.Cut(s, "!")
	return strings.TrimSpace(v)
}

// parseQuoted extracts text between the first pair of double quotes.
func parseQuoted(s string) string {
	start := strings.IndexByte(s, '"')
	if start < 0 {
		return s
	}
	start++
	end := strings.IndexByte(s[start:], '"')
	if end < 0 {
		return s[start:]
	}
	return s[start : start+end]
}

func firstField(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return ""
}
