package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrMetadata indicates the annotation metadata feed could not be parsed.
var ErrMetadata = errors.New("invalid annotation metadata")

// ResourceDescriptor is one organism entry from the metadata feed.
type ResourceDescriptor struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	GAFFilename string `json:"gaf_filename"`
}

// metadataSchema checks the fields the pipeline relies on. IDs become file
// names, so they are restricted to a safe character set.
const metadataSchema = `{
  "type": "object",
  "required": ["resources"],
  "properties": {
    "resources": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "label", "gaf_filename"],
        "properties": {
          "id": {"type": "string", "pattern": "^[A-Za-z0-9][A-Za-z0-9_.-]*$"},
          "label": {"type": "string"},
          "gaf_filename": {"type": "string", "minLength": 1}
        }
      }
    }
  }
}`

var metadataSchemaLoader = gojsonschema.NewStringLoader(metadataSchema)

// assignmentPrefix matches "global_go_annotation_metadata =" or "var x =".
var assignmentPrefix = regexp.MustCompile(`^(?:var\s+|let\s+|const\s+)?[A-Za-z_$][\w$.]*\s*=$`)

// ParseMetadata extracts the resource list from the metadata feed. The feed is
// a JavaScript assignment of a JSON object ("name = {...};"); bare JSON is also
// accepted. The object is validated before use.
func ParseMetadata(text string) ([]ResourceDescriptor, error) {
	body, err := stripAssignment(text)
	if err != nil {
		return nil, err
	}

	result, err := gojsonschema.Validate(metadataSchemaLoader, gojsonschema.NewStringLoader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMetadata, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
		}
		return nil, fmt.Errorf("%w: %s", ErrMetadata, strings.Join(msgs, "; "))
	}

	var doc struct {
		Resources []ResourceDescriptor `json:"resources"`
	}
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMetadata, err)
	}
	return doc.Resources, nil
}

func stripAssignment(text string) (string, error) {
	text = strings.TrimSpace(text)
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return "", fmt.Errorf("%w: no object found", ErrMetadata)
	}

	if prefix := strings.TrimSpace(text[:start]); prefix != "" && !assignmentPrefix.MatchString(prefix) {
		return "", fmt.Errorf("%w: unexpected content before object: %q", ErrMetadata, prefix)
	}
	if suffix := strings.TrimSpace(text[end+1:]); suffix != "" && suffix != ";" {
		return "", fmt.Errorf("%w: unexpected content after object: %q", ErrMetadata, suffix)
	}
	return text[start : end+1], nil
}

// SkipResource reports whether a resource is deliberately left out: the
// all-taxa UniProt aggregate, complex and RNA variants, and the JCVI catalog.
// It depends only on id.
func SkipResource(id string) bool {
	return strings.HasPrefix(id, "goa_uniprot_all") ||
		strings.HasSuffix(id, "_complex") ||
		strings.HasSuffix(id, "_rna") ||
		id == "jcvi"
}

// Excluder applies SkipResource plus configured ID prefixes.
type Excluder struct {
	prefixes []string
}

// NewExcluder creates an Excluder with extra ID prefixes to skip.
func NewExcluder(extraPrefixes []string) Excluder {
	var prefixes []string
	for _, p := range extraPrefixes {
		if p = strings.TrimSpace(p); p != "" {
			prefixes = append(prefixes, p)
		}
	}
	return Excluder{prefixes: prefixes}
}

// Skip reports whether the resource ID is excluded.
func (e Excluder) Skip(id string) bool {
	if SkipResource(id) {
		return true
	}
	for _, p := range e.prefixes {
		if strings.HasPrefix(id, p) {
			return true
		}
	}
	return false
}

// FilterResources splits resources into included and excluded, preserving order.
func FilterResources(resources []ResourceDescriptor, ex Excluder) (included, excluded []ResourceDescriptor) {
	for _, r := range resources {
		if ex.Skip(r.ID) {
			excluded = append(excluded, r)
		} else {
			included = append(included, r)
		}
	}
	return included, excluded
}
