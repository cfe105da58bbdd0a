package filtering

import (
	"context"
	"crypto/sha256"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/cv-matcher/internal/document"
)

type duplicatesFilter struct {
	enabled bool
	reason  string
	logger  *zap.Logger
}

// NewDuplicates creates a filter that keeps only the first of documents with identical text.
func NewDuplicates(enabled bool, logger *zap.Logger) Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &duplicatesFilter{enabled: enabled, logger: logger}
}

func (f *duplicatesFilter) Name() string { return "duplicates" }

func (f *duplicatesFilter) Disable(reason string) {
	f.enabled = false
	f.reason = reason
}

func (f *duplicatesFilter) IsEnabled() bool { return f.enabled }

func (f *duplicatesFilter) Validate() error { return nil }

func (f *duplicatesFilter) Apply(_ context.Context, b *document.Batch) (*document.Batch, Step, error) {
	initial := b.Len()
	seen := make(map[[sha256.Size]byte]string, initial)

	var duplicates []string
	for _, doc := range b.Documents {
		// Empty documents are failed extractions, not duplicates of each other.
		normalized := strings.Join(strings.Fields(doc.Text), " ")
		if normalized == "" {
			continue
		}

		hash := sha256.Sum256([]byte(normalized))
		if first, ok := seen[hash]; ok {
			f.logger.Debug("duplicate document", zap.String("document_id", doc.ID), zap.String("duplicate_of", first))
			duplicates = append(duplicates, doc.ID)
			continue
		}
		seen[hash] = doc.ID
	}

	removed := b.Exclude(duplicates)
	return b, Step{Initial: initial, Dropped: len(removed), Left: b.Len()}, nil
}

func (f *duplicatesFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.enabled, Reason: f.reason}
}
