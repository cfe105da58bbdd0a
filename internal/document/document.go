package document

import (
	"context"
	"fmt"
)

// Document is a single candidate: an identifier (usually the file name) and its extracted text.
type Document struct {
	ID   string `json:"id" yaml:"id"`
	Text string `json:"-" yaml:"-"`
}

// Extractor turns a file into plain text.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// ExtractionError describes a document whose text could not be extracted.
type ExtractionError struct {
	ID   string
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.ID, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Batch is the ordered set of documents collected for one match operation.
type Batch struct {
	Documents []Document
	Failures  []*ExtractionError
}

func (b *Batch) Len() int {
	return len(b.Documents)
}

func (b *Batch) IDs() []string {
	ids := make([]string, 0, len(b.Documents))
	for _, doc := range b.Documents {
		ids = append(ids, doc.ID)
	}
	return ids
}

func (b *Batch) FindByID(id string) *Document {
	for i := range b.Documents {
		if b.Documents[i].ID == id {
			return &b.Documents[i]
		}
	}
	return nil
}

// Exclude removes documents with the given ids and returns the removed ids.
// The relative order of the remaining documents is preserved.
func (b *Batch) Exclude(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}

	targets := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		targets[id] = struct{}{}
	}

	var excluded []string
	kept := b.Documents[:0]
	for _, doc := range b.Documents {
		if _, ok := targets[doc.ID]; ok {
			excluded = append(excluded, doc.ID)
			continue
		}
		kept = append(kept, doc)
	}
	b.Documents = kept

	return excluded
}
