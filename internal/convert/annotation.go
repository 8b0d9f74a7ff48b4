package convert

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// GAF 2.x column positions.
const (
	gafObjectID  = 1
	gafSymbol    = 2
	gafQualifier = 3
	gafGOID      = 4
	gafSynonym   = 10
	gafMinCols   = 11
)

// ErrMalformedGAF indicates a gene-association line with too few columns.
var ErrMalformedGAF = errors.New("malformed gene association line")

// GeneAnnotation is one gene with its aliases and associated terms.
type GeneAnnotation struct {
	ID      string
	Aliases []string
	Terms   []string
}

// MarshalJSON encodes the gene as an [id, [aliases], [terms]] triple.
func (g GeneAnnotation) MarshalJSON() ([]byte, error) {
	aliases := g.Aliases
	if aliases == nil {
		aliases = []string{}
	}
	terms := g.Terms
	if terms == nil {
		terms = []string{}
	}
	return json.Marshal([]any{g.ID, aliases, terms})
}

// UnmarshalJSON decodes an [id, [aliases], [terms]] triple.
func (g *GeneAnnotation) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 3 {
		return fmt.Errorf("gene annotation: want 3 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &g.ID); err != nil {
		return fmt.Errorf("gene annotation id: %w", err)
	}
	if err := json.Unmarshal(raw[1], &g.Aliases); err != nil {
		return fmt.Errorf("gene annotation aliases: %w", err)
	}
	if err := json.Unmarshal(raw[2], &g.Terms); err != nil {
		return fmt.Errorf("gene annotation terms: %w", err)
	}
	return nil
}

// AnnotationRecord is the converted per-organism gene-association file.
type AnnotationRecord struct {
	IDAliasTerm []GeneAnnotation `json:"idAliasTerm"`
}

// AnnotationToRecord parses GAF text into an AnnotationRecord.
//
// The gene symbol is the primary ID; the database object ID and synonyms are
// aliases. Rows qualified with NOT are ignored. Rows for the same symbol are
// merged, keeping first-seen order. aliasText is optional: each line is a
// symbol followed by whitespace-separated aliases for it.
func AnnotationToRecord(text, aliasText string) (*AnnotationRecord, error) {
	var (
		genes []*geneBuilder
		bySym = make(map[string]*geneBuilder)
	)

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, scannerBufferSize), scannerBufferSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "!") {
			continue
		}

		cols := strings.Split(line, "\t")
		if len(cols) < gafMinCols {
			return nil, fmt.Errorf("%w: line %d has %d columns", ErrMalformedGAF, lineNo, len(cols))
		}
		if strings.Contains(cols[gafQualifier], "NOT") {
			continue
		}

		sym := cols[gafSymbol]
		if sym == "" {
			continue
		}
		g, ok := bySym[sym]
		if !ok {
			g = newGeneBuilder(sym)
			bySym[sym] = g
			genes = append(genes, g)
		}

		g.addAlias(cols[gafObjectID])
		for _, syn := range strings.Split(cols[gafSynonym], "|") {
			g.addAlias(syn)
		}
		g.addTerm(cols[gafGOID])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan gaf: %w", err)
	}

	if aliasText != "" {
		for _, line := range strings.Split(aliasText, "\n") {
			fields := strings.Fields(line)
			if len(fields) < 2 {
				continue
			}
			if g, ok := bySym[fields[0]]; ok {
				for _, a := range fields[1:] {
					g.addAlias(a)
				}
			}
		}
	}

	rec := &AnnotationRecord{IDAliasTerm: make([]GeneAnnotation, len(genes))}
	for i, g := range genes {
		rec.IDAliasTerm[i] = GeneAnnotation{ID: g.id, Aliases: g.aliases, Terms: g.terms}
	}
	return rec, nil
}

type geneBuilder struct {
	id       string
	aliases  []string
	terms    []string
	seenTerm map[string]bool
	seenName map[string]bool
}

func newGeneBuilder(id string) *geneBuilder {
	return &geneBuilder{
		id:       id,
		seenTerm: make(map[string]bool),
		seenName: map[string]bool{id: true},
	}
}

func (g *geneBuilder) addAlias(a string) {
	a = strings.TrimSpace(a)
	if a == "" || g.seenName[a] {
		return
	}
	g.seenName[a] = true
	g.aliases = append(g.aliases, a)
}

func (g *geneBuilder) addTerm(t string) {
	t = strings.TrimSpace(t)
	if t == "" || g.seenTerm[t] {
		return
	}
	g.seenTerm[t] = true
	g.terms = append(g.terms, t)
}
