package extraction

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/JaimeStill/sectional/internal/fields"
)

// Load reads fields from path, choosing the reader by file extension.
func Load(path string) ([]fields.Field, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadJSON(path)
	case ".pdf":
		doc, err := LoadPDF(path)
		if err != nil {
			return nil, err
		}
		return doc.Fields, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
}
