package runs

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/JaimeStill/sectional/internal/extraction"
	"github.com/JaimeStill/sectional/internal/fields"
)

var pdfMagic = []byte("%PDF-")

// Extract reads form fields from an uploaded PDF or JSON field list. The
// format is taken from the content, falling back to the file extension.
func Extract(filename string, data []byte) ([]fields.Field, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", ErrInvalidFile)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	trimmed := bytes.TrimSpace(data)

	switch {
	case bytes.HasPrefix(data, pdfMagic) || ext == ".pdf":
		doc, err := extraction.ParsePDF(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
		}
		return doc.Fields, nil
	case ext == ".json" || bytes.HasPrefix(trimmed, []byte("[")) || bytes.HasPrefix(trimmed, []byte("{")):
		fs, err := extraction.ParseJSON(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
		}
		return fs, nil
	}
	return nil, fmt.Errorf("%w: unsupported format %q", ErrInvalidFile, filename)
}
