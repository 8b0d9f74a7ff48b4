package service

import (
	"sort"
)

// OntologyName labels the ontology pairing in every manifest entry.
const OntologyName = "Gene Ontology (basic)"

// OntologyPairing points at one ontology file, one annotation file, and the
// example queries for that combination.
type OntologyPairing struct {
	Name     string          `json:"name"`
	Ontology string          `json:"ontology"`
	Assocs   string          `json:"assocs"`
	Examples []ExampleResult `json:"examples"`
}

// ManifestEntry describes one organism's datasets.
type ManifestEntry struct {
	ID         string            `json:"-"`
	Name       string            `json:"name"`
	Ontologies []OntologyPairing `json:"ontologies"`
}

// Manifest is the top-level index read by the front-end.
type Manifest struct {
	Organisms []ManifestEntry `json:"organisms"`
}

// BuildManifest orders entries by display name, breaking ties by resource ID.
// The result does not depend on the order entries arrive in.
func BuildManifest(entries []ManifestEntry) Manifest {
	organisms := make([]ManifestEntry, len(entries))
	copy(organisms, entries)
	sort.SliceStable(organisms, func(i, j int) bool {
		if organisms[i].Name != organisms[j].Name {
			return organisms[i].Name < organisms[j].Name
		}
		return organisms[i].ID < organisms[j].ID
	})
	return Manifest{Organisms: organisms}
}

// WriteManifest writes the manifest JSON to path, replacing any previous one
// only once the new file is complete.
func WriteManifest(path string, m Manifest) error {
	return writeJSON(path, m)
}
