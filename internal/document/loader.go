package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// LoaderConfig controls which files are collected and how failures are handled.
type LoaderConfig struct {
	// Extensions limits the files taken from the directory. Empty means every
	// extension with a registered extractor.
	Extensions []string
	// Workers is the size of the extraction pool for a single Load call.
	Workers int
	// SkipFailed drops documents that failed extraction instead of keeping them with empty text.
	SkipFailed bool
}

type Loader struct {
	cfg        LoaderConfig
	extractors Extractors
	logger     *zap.Logger
}

type extraction struct {
	doc Document
	err *ExtractionError
}

func NewLoader(cfg LoaderConfig, extractors Extractors, logger *zap.Logger) *Loader {
	if extractors == nil {
		extractors = DefaultExtractors()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = max(runtime.NumCPU()/2, 1)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Loader{cfg: cfg, extractors: extractors, logger: logger}
}

// Files returns the candidate files of dir in name order.
func (l *Loader) Files(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	allowed := make(map[string]struct{}, len(l.cfg.Extensions))
	for _, ext := range l.cfg.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = struct{}{}
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if _, ok := l.extractors[ext]; !ok {
			continue
		}
		if len(allowed) > 0 {
			if _, ok := allowed[ext]; !ok {
				continue
			}
		}

		files = append(files, filepath.Join(dir, entry.Name()))
	}

	return files, nil
}

// Extract runs the extractor registered for the file extension.
func (l *Loader) Extract(ctx context.Context, path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	extractor, ok := l.extractors[ext]
	if !ok {
		return "", fmt.Errorf("%w: %s", errNoExtractor, ext)
	}

	text, err := extractor.Extract(ctx, path)
	if err != nil {
		return "", err
	}

	return strings.ToValidUTF8(text, "�"), nil
}

// Load extracts every candidate file of dir. A failed file never aborts the batch:
// it is reported in Batch.Failures and, unless SkipFailed is set, kept with empty text.
func (l *Loader) Load(ctx context.Context, dir string) (*Batch, error) {
	files, err := l.Files(dir)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	pool, err := ants.NewPool(l.cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("creating extraction pool: %w", err)
	}
	defer pool.Release()

	results := make([]extraction, len(files))

	var wg sync.WaitGroup
	for i, path := range files {
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			results[i] = l.extract(ctx, path)
		})
		if submitErr != nil {
			wg.Done()
			results[i] = extraction{
				doc: Document{ID: filepath.Base(path)},
				err: &ExtractionError{ID: filepath.Base(path), Path: path, Err: submitErr},
			}
		}
	}
	wg.Wait()

	batch := &Batch{Documents: make([]Document, 0, len(files))}
	for _, res := range results {
		if res.err != nil {
			batch.Failures = append(batch.Failures, res.err)
			l.logger.Warn("document extraction failed",
				zap.String("document_id", res.err.ID),
				zap.Error(res.err.Err),
			)
			if l.cfg.SkipFailed {
				continue
			}
		}
		batch.Documents = append(batch.Documents, res.doc)
	}

	l.logger.Debug("documents loaded",
		zap.String("dir", dir),
		zap.Int("files", len(files)),
		zap.Int("documents", batch.Len()),
		zap.Int("failed", len(batch.Failures)),
	)

	return batch, nil
}

func (l *Loader) extract(ctx context.Context, path string) (res extraction) {
	id := filepath.Base(path)

	// The pool swallows panics, so they are turned into failures here.
	defer func() {
		if r := recover(); r != nil {
			res = extraction{
				doc: Document{ID: id},
				err: &ExtractionError{ID: id, Path: path, Err: fmt.Errorf("extractor panic: %v", r)},
			}
		}
	}()

	text, err := l.Extract(ctx, path)
	if err != nil {
		return extraction{
			doc: Document{ID: id},
			err: &ExtractionError{ID: id, Path: path, Err: err},
		}
	}

	if strings.TrimSpace(text) == "" {
		l.logger.Debug("document has no extractable text", zap.String("document_id", id))
	}

	return extraction{doc: Document{ID: id, Text: text}}
}
