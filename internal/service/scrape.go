// Package service assembles the gene-annotation dataset: it converts the
// ontology and each organism's annotations, extracts example queries, and
// writes the manifest.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raphaelgruber/gafscrape/internal/convert"
	"github.com/raphaelgruber/gafscrape/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// ErrResourceFailed wraps the error of a single failed resource pipeline.
var ErrResourceFailed = errors.New("resource failed")

const defaultConcurrency = 4

// Fetcher returns the decompressed content of a URL. fetch.Cache satisfies it.
type Fetcher interface {
	Acquire(ctx context.Context, url string) (string, error)
}

// Recorder receives run statistics. metrics.Collector satisfies it.
type Recorder interface {
	RecordTiming(op string, duration time.Duration)
	RecordResource(status string)
}

type nopRecorder struct{}

func (nopRecorder) RecordTiming(string, time.Duration) {}
func (nopRecorder) RecordResource(string)              {}

// Sources are the upstream locations the pipeline reads from.
type Sources struct {
	GOURL        string
	GAFURLPrefix string
	MetadataURL  string
}

// ScrapeService runs the dataset assembly pipeline.
type ScrapeService struct {
	fetcher      Fetcher
	layout       Layout
	sources      Sources
	exampleTerms []string
	excluder     Excluder
	recorder     Recorder
}

// NewScrapeService creates a new scrape service. recorder may be nil.
func NewScrapeService(fetcher Fetcher, layout Layout, sources Sources, exampleTerms []string, excluder Excluder, recorder Recorder) *ScrapeService {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &ScrapeService{
		fetcher:      fetcher,
		layout:       layout,
		sources:      sources,
		exampleTerms: exampleTerms,
		excluder:     excluder,
		recorder:     recorder,
	}
}

// ScrapeOptions configures a run.
type ScrapeOptions struct {
	// Concurrency caps simultaneous resource pipelines (default 4)
	Concurrency int
	// KeepGoing writes a manifest over the resources that succeeded instead
	// of aborting on the first failure
	KeepGoing bool
	// DryRun resolves the resource list without converting anything
	DryRun bool
	// Progress is called after each resource pipeline finishes (optional)
	Progress func(Progress)
}

// Progress reports one finished resource pipeline.
type Progress struct {
	Resource string
	Done     int
	Total    int
	Err      error
}

// ResourceFailure records a resource that failed under KeepGoing.
type ResourceFailure struct {
	Resource ResourceDescriptor
	Err      error
}

// ScrapeResult summarizes a run.
type ScrapeResult struct {
	Included     []ResourceDescriptor
	Excluded     []ResourceDescriptor
	Failed       []ResourceFailure
	Manifest     Manifest
	ManifestPath string // empty for dry runs
}

// OntologyArtifact is the converted ontology shared by every resource pipeline.
type OntologyArtifact struct {
	// Path is the manifest-relative location of the ontology JSON
	Path string
	// Names is read-only once built
	Names convert.TermNames
}

// Run executes the pipeline: ontology, metadata, per-resource fan-out, manifest.
// Without KeepGoing, any resource failure aborts the run and no manifest is written.
func (s *ScrapeService) Run(ctx context.Context, opts ScrapeOptions) (*ScrapeResult, error) {
	if err := Bootstrap(s.layout); err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	result := &ScrapeResult{}

	var onto *OntologyArtifact
	if !opts.DryRun {
		var err error
		onto, err = s.LoadOntology(ctx)
		if err != nil {
			return nil, fmt.Errorf("ontology: %w", err)
		}
	}

	resources, err := s.LoadResources(ctx)
	if err != nil {
		return nil, err
	}
	result.Included, result.Excluded = FilterResources(resources, s.excluder)
	for range result.Excluded {
		s.recorder.RecordResource(metrics.StatusExcluded)
	}
	slog.Info("resources resolved", "included", len(result.Included), "excluded", len(result.Excluded))

	if opts.DryRun {
		return result, nil
	}

	entries, failures, err := s.processAll(ctx, result.Included, onto, opts)
	if err != nil {
		return nil, err
	}
	result.Failed = failures

	result.Manifest = BuildManifest(entries)
	result.ManifestPath = s.layout.ManifestPath()
	if err := WriteManifest(result.ManifestPath, result.Manifest); err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}

	slog.Info("manifest written", "path", result.ManifestPath, "organisms", len(result.Manifest.Organisms), "failed", len(failures))
	return result, nil
}

// processAll runs the resource pipelines with bounded concurrency and joins
// on all of them.
func (s *ScrapeService) processAll(ctx context.Context, resources []ResourceDescriptor, onto *OntologyArtifact, opts ScrapeOptions) ([]ManifestEntry, []ResourceFailure, error) {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	slog.Info("starting resource processing", "resources", len(resources), "concurrency", concurrency, "keep_going", opts.KeepGoing)

	var (
		done       atomic.Int32
		failuresMu sync.Mutex
		failures   []ResourceFailure
	)
	results := make([]*ManifestEntry, len(resources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, r := range resources {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			entry, err := s.ProcessResource(gctx, r, onto)
			if err != nil && errors.Is(err, context.Canceled) && gctx.Err() != nil {
				// Aborted by a sibling failure or the caller, not failed itself
				return err
			}
			n := int(done.Add(1))
			if opts.Progress != nil {
				opts.Progress(Progress{Resource: r.ID, Done: n, Total: len(resources), Err: err})
			}

			if err != nil {
				s.recorder.RecordResource(metrics.StatusFailed)
				err = fmt.Errorf("%w: %s: %w", ErrResourceFailed, r.ID, err)
				if opts.KeepGoing && ctx.Err() == nil {
					slog.Warn("resource failed, continuing", "resource", r.ID, "error", err)
					failuresMu.Lock()
					failures = append(failures, ResourceFailure{Resource: r, Err: err})
					failuresMu.Unlock()
					return nil
				}
				return err
			}

			s.recorder.RecordResource(metrics.StatusOK)
			results[i] = entry
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	entries := make([]ManifestEntry, 0, len(resources))
	for _, e := range results {
		if e != nil {
			entries = append(entries, *e)
		}
	}
	return entries, failures, nil
}

// LoadOntology fetches and converts the ontology, writes it to the deploy
// directory, and returns its path with the term-name lookup.
func (s *ScrapeService) LoadOntology(ctx context.Context) (*OntologyArtifact, error) {
	text, err := s.fetcher.Acquire(ctx, s.sources.GOURL)
	if err != nil {
		return nil, err
	}

	slog.Info("processing ontology", "url", s.sources.GOURL)
	start := time.Now()
	rec, err := convert.OntologyToRecord(text, convert.OntologyOptions{Compress: true, IncludeTermInfo: true})
	if err != nil {
		return nil, fmt.Errorf("convert: %w", err)
	}
	s.recorder.RecordTiming(metrics.OpConvertOntology, time.Since(start))

	rel := s.layout.OntologyPath(s.sources.GOURL)
	if err := s.write(rel, rec); err != nil {
		return nil, err
	}

	names := rec.TermNames()
	slog.Info("ontology written", "path", rel, "terms", len(rec.TermParents))
	return &OntologyArtifact{Path: rel, Names: names}, nil
}

// LoadResources fetches and parses the annotation metadata feed.
func (s *ScrapeService) LoadResources(ctx context.Context) ([]ResourceDescriptor, error) {
	text, err := s.fetcher.Acquire(ctx, s.sources.MetadataURL)
	if err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}
	resources, err := ParseMetadata(text)
	if err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}
	return resources, nil
}

// ResourceURL returns the annotation file URL for a resource.
func (s *ScrapeService) ResourceURL(r ResourceDescriptor) string {
	return s.sources.GAFURLPrefix + r.GAFFilename
}

// ProcessResource fetches and converts one organism's annotations, extracts
// its examples, writes the converted file, and returns its manifest entry.
func (s *ScrapeService) ProcessResource(ctx context.Context, r ResourceDescriptor, onto *OntologyArtifact) (*ManifestEntry, error) {
	text, err := s.fetcher.Acquire(ctx, s.ResourceURL(r))
	if err != nil {
		return nil, err
	}

	slog.Info("processing resource", "resource", r.ID, "file", r.GAFFilename)
	start := time.Now()
	rec, err := convert.AnnotationToRecord(text, "")
	if err != nil {
		return nil, fmt.Errorf("convert %s: %w", r.GAFFilename, err)
	}
	s.recorder.RecordTiming(metrics.OpConvertAnnotation, time.Since(start))

	examples := ExtractExamples(rec, s.exampleTerms, onto.Names)

	rel := s.layout.AnnotationPath(r.ID)
	if err := s.write(rel, rec); err != nil {
		return nil, err
	}

	slog.Debug("resource written", "resource", r.ID, "genes", len(rec.IDAliasTerm), "examples", len(examples))
	return &ManifestEntry{
		ID:   r.ID,
		Name: r.Label,
		Ontologies: []OntologyPairing{{
			Name:     OntologyName,
			Ontology: onto.Path,
			Assocs:   rel,
			Examples: examples,
		}},
	}, nil
}

func (s *ScrapeService) write(rel string, v any) error {
	start := time.Now()
	if err := writeJSON(s.layout.Abs(rel), v); err != nil {
		return err
	}
	s.recorder.RecordTiming(metrics.OpWrite, time.Since(start))
	return nil
}
