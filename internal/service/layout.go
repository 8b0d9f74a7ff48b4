package service

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Output subdirectories and files, relative to the deploy directory.
const (
	OntologySubdir   = "go"
	AnnotationSubdir = "gaf"
	ManifestFile     = "datasets.json"
)

const writerBufferSize = 256 * 1024 // 256 KB

// outputFileMode lets a web server running as another user read the deploy tree.
const outputFileMode = 0o644

// Layout locates pipeline inputs and outputs on disk.
// Paths recorded in the manifest are relative to DeployDir and use forward slashes.
type Layout struct {
	DeployDir   string
	DownloadDir string
}

// OntologyPath returns the manifest path of the converted ontology for goURL
// ("go/go-basic.json" for ".../go-basic.obo").
func (l Layout) OntologyPath(goURL string) string {
	name := path.Base(goURL)
	name = strings.TrimSuffix(name, ".gz")
	name = strings.TrimSuffix(name, path.Ext(name)) + ".json"
	return path.Join(OntologySubdir, name)
}

// AnnotationPath returns the manifest path of a resource's converted annotations.
func (l Layout) AnnotationPath(resourceID string) string {
	return path.Join(AnnotationSubdir, resourceID+".json")
}

// ManifestPath returns the filesystem path of the manifest.
func (l Layout) ManifestPath() string {
	return filepath.Join(l.DeployDir, ManifestFile)
}

// Abs converts a manifest-relative path into a filesystem path.
func (l Layout) Abs(rel string) string {
	return filepath.Join(l.DeployDir, filepath.FromSlash(rel))
}

// Bootstrap creates the output and download directories if they are missing.
// It is a no-op when they already exist.
func Bootstrap(l Layout) error {
	dirs := []string{
		filepath.Join(l.DeployDir, OntologySubdir),
		filepath.Join(l.DeployDir, AnnotationSubdir),
		l.DownloadDir,
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", d, err)
		}
	}
	return nil
}

// writeJSON encodes v to a temp file beside dest and renames it into place.
func writeJSON(dest string, v any) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	defer os.Remove(tmp.Name())

	bw := bufio.NewWriterSize(tmp, writerBufferSize)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		return fmt.Errorf("encode %s: %w", dest, err)
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", dest, err)
	}
	if err := tmp.Chmod(outputFileMode); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod %s: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("rename %s: %w", dest, err)
	}
	return nil
}
