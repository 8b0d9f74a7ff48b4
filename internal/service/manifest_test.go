package service

import (
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/raphaelgruber/gafscrape/internal/convert"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractExamples(t *testing.T) {
	rec := &convert.AnnotationRecord{IDAliasTerm: []convert.GeneAnnotation{
		{ID: "G1", Terms: []string{"GO:0006298"}},
		{ID: "G2", Terms: []string{"GO:0003674"}},
	}}
	names := convert.NewTermNames(map[string]string{
		"GO:0006298": "mismatch repair",
		"GO:0000027": "ribosomal large subunit assembly",
	})

	examples := ExtractExamples(rec, []string{"GO:0006298", "GO:0000027"}, names)

	require.Len(t, examples, 1, "terms without genes are suppressed")
	assert.Equal(t, ExampleResult{Name: "mismatch repair", Genes: []string{"G1"}}, examples[0])
}

func TestExtractExamplesKeepsRecordOrder(t *testing.T) {
	rec := &convert.AnnotationRecord{IDAliasTerm: []convert.GeneAnnotation{
		{ID: "zeta", Terms: []string{"GO:1", "GO:2"}},
		{ID: "alpha", Terms: []string{"GO:2"}},
		{ID: "mid", Terms: []string{"GO:3", "GO:2"}},
	}}

	examples := ExtractExamples(rec, []string{"GO:2", "GO:9"}, convert.NewTermNames(nil))
	require.Len(t, examples, 1)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, examples[0].Genes)
	assert.Equal(t, "GO:2", examples[0].Name, "unnamed term falls back to its ID")
}

func TestExtractExamplesEmpty(t *testing.T) {
	examples := ExtractExamples(&convert.AnnotationRecord{}, []string{"GO:1"}, convert.NewTermNames(nil))
	assert.NotNil(t, examples)
	assert.Empty(t, examples)

	data, err := json.Marshal(examples)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestBuildManifestOrdering(t *testing.T) {
	entries := []ManifestEntry{
		{ID: "zfin", Name: "Danio rerio"},
		{ID: "fb", Name: "Drosophila melanogaster"},
		{ID: "sgd", Name: "Saccharomyces cerevisiae"},
		{ID: "mgi", Name: "Mus musculus"},
		{ID: "b", Name: "Dup"},
		{ID: "a", Name: "Dup"},
	}
	want := []string{"zfin", "fb", "a", "b", "mgi", "sgd"}

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		shuffled := append([]ManifestEntry(nil), entries...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		m := BuildManifest(shuffled)
		got := make([]string, len(m.Organisms))
		for j, o := range m.Organisms {
			got[j] = o.ID
		}
		assert.Equal(t, want, got)
	}
}

func TestBuildManifestDoesNotMutateInput(t *testing.T) {
	entries := []ManifestEntry{{ID: "b", Name: "B"}, {ID: "a", Name: "A"}}
	BuildManifest(entries)
	assert.Equal(t, "b", entries[0].ID)
}

func TestWriteManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), ManifestFile)
	m := BuildManifest([]ManifestEntry{{
		ID:   "mgi",
		Name: "Mus musculus",
		Ontologies: []OntologyPairing{{
			Name:     OntologyName,
			Ontology: "go/go-basic.json",
			Assocs:   "gaf/mgi.json",
			Examples: []ExampleResult{{Name: "mismatch repair", Genes: []string{"Msh2"}}},
		}},
	}})

	require.NoError(t, WriteManifest(path, m))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"organisms":[{"name":"Mus musculus","ontologies":[{
		"name":"Gene Ontology (basic)","ontology":"go/go-basic.json","assocs":"gaf/mgi.json",
		"examples":[{"name":"mismatch repair","genes":["Msh2"]}]}]}]}`, string(data))

	// No temp files left behind
	files, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestLayout(t *testing.T) {
	l := Layout{DeployDir: "web", DownloadDir: "download"}

	assert.Equal(t, "go/go-basic.json", l.OntologyPath("http://geneontology.org/ontology/go-basic.obo"))
	assert.Equal(t, "go/go.json", l.OntologyPath("http://mirror/go.obo.gz"))
	assert.Equal(t, "gaf/mgi.json", l.AnnotationPath("mgi"))
	assert.Equal(t, filepath.Join("web", "gaf", "mgi.json"), l.Abs("gaf/mgi.json"))
	assert.Equal(t, filepath.Join("web", ManifestFile), l.ManifestPath())
}

func TestBootstrapIdempotent(t *testing.T) {
	root := t.TempDir()
	l := Layout{DeployDir: filepath.Join(root, "web"), DownloadDir: filepath.Join(root, "download")}

	require.NoError(t, Bootstrap(l))
	require.NoError(t, os.WriteFile(filepath.Join(l.DeployDir, "keep.txt"), []byte("x"), 0o644))
	require.NoError(t, Bootstrap(l))

	assert.DirExists(t, filepath.Join(l.DeployDir, OntologySubdir))
	assert.DirExists(t, filepath.Join(l.DeployDir, AnnotationSubdir))
	assert.DirExists(t, l.DownloadDir)
	assert.FileExists(t, filepath.Join(l.DeployDir, "keep.txt"))
}
