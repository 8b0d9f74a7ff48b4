package convert

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOBO = `format-version: 1.2
ontology: go

[Term]
id: GO:0008150
name: biological_process
namespace: biological_process
def: "A biological process." [GOC:pdt]

[Term]
id: GO:0006281
name: DNA repair
namespace: biological_process
is_a: GO:0008150 ! biological_process

[Term]
id: GO:0006298
name: mismatch repair
namespace: biological_process
is_a: GO:0006281 ! DNA repair
relationship: part_of GO:0008150 ! biological_process
relationship: regulates GO:0006281 ! DNA repair

[Term]
id: GO:0000001
name: obsolete thing
is_obsolete: true

[Typedef]
id: part_of
name: part of
`

func TestOntologyToRecord(t *testing.T) {
	t.Run("uncompressed", func(t *testing.T) {
		rec, err := OntologyToRecord(testOBO, OntologyOptions{})
		require.NoError(t, err)

		require.Len(t, rec.TermParents, 3, "obsolete term and typedef are dropped")
		assert.Equal(t, []any{"GO:0008150"}, rec.TermParents[0])
		assert.Equal(t, []any{"GO:0006281", "GO:0008150"}, rec.TermParents[1])
		assert.Equal(t, []any{"GO:0006298", "GO:0006281", "GO:0008150"}, rec.TermParents[2])
		assert.Nil(t, rec.TermInfo)
		assert.Equal(t, 0, rec.TermNames().Len())
	})

	t.Run("compressed with info", func(t *testing.T) {
		rec, err := OntologyToRecord(testOBO, OntologyOptions{Compress: true, IncludeTermInfo: true})
		require.NoError(t, err)

		assert.Equal(t, []any{"GO:0006298", 1, 0}, rec.TermParents[2])
		require.Len(t, rec.TermInfo, 3)
		assert.Equal(t, "A biological process.", rec.TermInfo[0].Def)

		names := rec.TermNames()
		assert.Equal(t, "mismatch repair", names.Name("GO:0006298"))
		assert.Equal(t, "DNA repair", names.Name("GO:0006281"))
		assert.Equal(t, "", names.Name("GO:0000001"))
	})

	t.Run("json shape", func(t *testing.T) {
		rec, err := OntologyToRecord(testOBO, OntologyOptions{Compress: true, IncludeTermInfo: true})
		require.NoError(t, err)

		data, err := json.Marshal(rec)
		require.NoError(t, err)
		s := string(data)
		assert.Contains(t, s, `"termParents":[["GO:0008150"],["GO:0006281",0],["GO:0006298",1,0]]`)
		assert.Contains(t, s, `"termInfo":[{"name":"biological_process"`)
	})

	t.Run("no terms", func(t *testing.T) {
		_, err := OntologyToRecord("format-version: 1.2\n", OntologyOptions{})
		assert.ErrorIs(t, err, ErrNoTerms)
	})
}

func TestNewTermNamesCopies(t *testing.T) {
	src := map[string]string{"GO:1": "one"}
	names := NewTermNames(src)
	src["GO:1"] = "changed"
	assert.Equal(t, "one", names.Name("GO:1"))
}

// gafLine builds a 17-column GAF 2.2 line.
func gafLine(objectID, symbol, qualifier, goID, synonyms string) string {
	cols := []string{
		"TestDB", objectID, symbol, qualifier, goID, "PMID:1", "IDA", "", "P",
		symbol + " protein", synonyms, "protein", "taxon:10090", "20240101", "TestDB", "", "",
	}
	return strings.Join(cols, "\t")
}

func TestAnnotationToRecord(t *testing.T) {
	gaf := strings.Join([]string{
		"!gaf-version: 2.2",
		"!generated-by: test",
		gafLine("P1", "G1", "involved_in", "GO:0006298", "g1a|g1b"),
		gafLine("P2", "G2", "enables", "GO:0003674", ""),
		gafLine("P1", "G1", "involved_in", "GO:0000027", "g1a"),
		gafLine("P1", "G1", "involved_in", "GO:0006298", ""),
		gafLine("P3", "G3", "NOT|involved_in", "GO:0006298", ""),
		"",
	}, "\n")

	rec, err := AnnotationToRecord(gaf, "")
	require.NoError(t, err)

	require.Len(t, rec.IDAliasTerm, 2, "NOT rows are skipped")
	g1 := rec.IDAliasTerm[0]
	assert.Equal(t, "G1", g1.ID)
	assert.Equal(t, []string{"P1", "g1a", "g1b"}, g1.Aliases)
	assert.Equal(t, []string{"GO:0006298", "GO:0000027"}, g1.Terms)

	g2 := rec.IDAliasTerm[1]
	assert.Equal(t, "G2", g2.ID)
	assert.Equal(t, []string{"P2"}, g2.Aliases)
}

func TestAnnotationToRecordAliases(t *testing.T) {
	gaf := gafLine("P1", "G1", "", "GO:1", "") + "\n"
	rec, err := AnnotationToRecord(gaf, "G1 UP_1 P1\nUNKNOWN X\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"P1", "UP_1"}, rec.IDAliasTerm[0].Aliases)
}

func TestAnnotationToRecordMalformed(t *testing.T) {
	_, err := AnnotationToRecord("!header\nshort\tline\n", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedGAF)
	assert.Contains(t, err.Error(), "line 2")
}

func TestAnnotationRecordJSON(t *testing.T) {
	rec := &AnnotationRecord{IDAliasTerm: []GeneAnnotation{
		{ID: "G1", Aliases: []string{"P1"}, Terms: []string{"GO:1"}},
		{ID: "G2"},
	}}

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"idAliasTerm":[["G1",["P1"],["GO:1"]],["G2",[],[]]]}`, string(data))

	var back AnnotationRecord
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "G1", back.IDAliasTerm[0].ID)
	assert.Equal(t, []string{"GO:1"}, back.IDAliasTerm[0].Terms)

	var bad GeneAnnotation
	assert.Error(t, json.Unmarshal([]byte(`["only-id"]`), &bad))
}
