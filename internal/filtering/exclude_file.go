package filtering

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"time"
)

// ExcludedDocuments is the content of an exclude file: documents that should not
// take part in future matches, e.g. candidates already contacted.
type ExcludedDocuments struct {
	Items []*ExcludedDocument
}

type ExcludedDocument struct {
	ID         string
	Reason     string  `json:",omitempty"`
	Score      float64 `json:",omitempty"`
	ExcludedAt time.Time
}

// LoadExcluded reads an exclude file. A missing or empty file yields an empty list.
func LoadExcluded(path string) (*ExcludedDocuments, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &ExcludedDocuments{}, nil
		}
		return nil, err
	}

	if len(data) == 0 {
		return &ExcludedDocuments{}, nil
	}

	var excluded ExcludedDocuments
	if err := json.Unmarshal(data, &excluded); err != nil {
		return nil, err
	}
	return &excluded, nil
}

func (e *ExcludedDocuments) Append(items ...*ExcludedDocument) {
	e.Items = append(e.Items, items...)
}

func (e *ExcludedDocuments) IDs() []string {
	ids := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		ids = append(ids, item.ID)
	}
	return ids
}

func (e *ExcludedDocuments) ToFile(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(e)
}

// AppendToFile adds a document to the exclude file at path.
func AppendToFile(path string, item *ExcludedDocument) error {
	excluded, err := LoadExcluded(path)
	if err != nil {
		return err
	}

	if item.ExcludedAt.IsZero() {
		item.ExcludedAt = time.Now().UTC()
	}
	excluded.Append(item)

	return excluded.ToFile(path)
}
