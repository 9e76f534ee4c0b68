package loaders

import (
	"fmt"
	"path/filepath"
	"strings"

	"astro/internal/rag/interfaces"
)

// SupportedExtensions lists the file extensions the ingestion pipeline accepts.
var SupportedExtensions = []string{".txt", ".md", ".csv", ".pdf", ".docx", ".pptx", ".xlsx"}

// Supported reports whether files with the given extension can be ingested.
func Supported(ext string) bool {
	ext = strings.ToLower(ext)
	for _, e := range SupportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// ForPath returns the loader responsible for the file at the given path,
// dispatching on the file extension.
func ForPath(path string) (interfaces.Loader, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".csv":
		return NewTextLoader(), nil
	case ".pdf":
		return NewPdfLoader(), nil
	case ".docx":
		return NewDocxLoader(), nil
	case ".pptx":
		return NewPptxLoader(), nil
	case ".xlsx":
		return NewXlsxLoader(), nil
	default:
		return nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
	}
}
