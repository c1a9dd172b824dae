package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"runtime"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"blogpipe/internal/diag"
	"blogpipe/internal/domain/content"
	domainerr "blogpipe/internal/domain/errors"
)

type Options struct {
	SourceDir    string
	IncludeDraft bool
	Workers      int
	Sink         diag.Sink
	Log          zerolog.Logger
}

type result struct {
	doc  content.Document
	skip bool
}

func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// ParseDocument builds a loaded document from raw file contents.
func ParseDocument(path string, raw []byte, sink diag.Sink) content.Document {
	id := IDFromPath(path)
	meta, body := ExtractMetadata(id, raw, sink)
	return content.Document{
		ID:   id,
		Meta: meta,
		Body: string(body),
		Source: content.BodyRef{
			SourcePath:  path,
			ContentHash: HashBytes(raw),
		},
		Loaded: true,
	}
}

// Load reads every markdown file under opt.SourceDir. Files that cannot be
// read are reported as load failures and skipped; only a failure to walk the
// source tree is returned as an error. Documents come back in source path
// order.
func Load(ctx context.Context, opt Options) ([]content.Document, error) {
	files, err := DiscoverSource(opt.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", opt.SourceDir, err)
	}
	sink := diag.Or(opt.Sink)

	workers := opt.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	jobs := make(chan SourceFile)
	results := make(chan result)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sf := range jobs {
				raw, readErr := os.ReadFile(sf.Path)
				if readErr != nil {
					sink.Report(diag.Diagnostic{
						Kind:   diag.KindLoadFailure,
						DocID:  IDFromPath(sf.Path),
						Detail: readErr.Error(),
					})
					results <- result{skip: true}
					continue
				}
				doc := ParseDocument(sf.Path, raw, sink)
				if doc.ID == "" {
					sink.Report(diag.Diagnostic{
						Kind:   diag.KindMalformedMetadata,
						DocID:  sf.Path,
						Detail: "file name yields an empty identifier",
					})
					results <- result{skip: true}
					continue
				}
				if doc.Meta.Draft && !opt.IncludeDraft {
					results <- result{skip: true}
					continue
				}
				results <- result{doc: doc}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, f := range files {
			select {
			case jobs <- f:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	var out []content.Document
	for r := range results {
		if r.skip {
			continue
		}
		out = append(out, r.doc)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Source.SourcePath < out[j].Source.SourcePath })
	opt.Log.Debug().Int("files", len(files)).Int("documents", len(out)).Msg("ingest complete")
	return out, nil
}

// FileBodies loads bodies of catalog-only documents from their source file.
type FileBodies struct{}

func (FileBodies) LoadBody(ctx context.Context, doc content.Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if doc.Source.SourcePath == "" {
		return "", &domainerr.UnavailableError{ID: doc.ID, Err: fmt.Errorf("no source path")}
	}
	raw, err := os.ReadFile(doc.Source.SourcePath)
	if err != nil {
		return "", &domainerr.UnavailableError{ID: doc.ID, Err: err}
	}
	// metadata problems were reported when the catalog was built
	_, body := ExtractMetadata(doc.ID, raw, diag.Discard)
	return string(body), nil
}
