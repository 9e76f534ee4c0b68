package loaders

import (
	"context"
	"os"
	"path/filepath"

	"astro/internal/rag/interfaces"
	"astro/internal/rag/schema"
)

// TextLoader implements the Loader interface for plain text formats
// (.txt, .md, .csv and similar).
type TextLoader struct{}

// NewTextLoader creates a new TextLoader.
func NewTextLoader() *TextLoader {
	return &TextLoader{}
}

// Load reads a text file from the given path and returns it as a single Document.
func (l *TextLoader) Load(ctx context.Context, path string) ([]*schema.Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	doc := &schema.Document{
		Text: string(content),
		Metadata: map[string]interface{}{
			"file_name": filepath.Base(path),
		},
	}

	return []*schema.Document{doc}, nil
}

// compile-time check to ensure TextLoader implements the Loader interface
var _ interfaces.Loader = (*TextLoader)(nil)
