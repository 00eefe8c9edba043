package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/sectional/internal/fields"
)

// record is the tolerant wire shape of one field. Geometry may arrive as
// "rect" or "geometry", either as an object or as [x1, y1, x2, y2].
type record struct {
	ID       json.RawMessage `json:"id"`
	Name     string          `json:"name"`
	Value    fields.Value    `json:"value"`
	Page     json.Number     `json:"page"`
	Label    string          `json:"label"`
	Tooltip  string          `json:"tooltip"`
	Type     string          `json:"type"`
	Rect     json.RawMessage `json:"rect"`
	Geometry json.RawMessage `json:"geometry"`
}

type wrapped struct {
	Fields []record `json:"fields"`
}

// LoadJSON reads a field dump from path.
func LoadJSON(path string) ([]fields.Field, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fields %s: %w", path, err)
	}
	return ParseJSON(data)
}

// ParseJSON decodes either a bare field array or an object with a "fields"
// array. Fields without an ID receive a generated one.
func ParseJSON(data []byte) ([]fields.Field, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidInput)
	}

	var recs []record
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &recs); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
	case '{':
		var w wrapped
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		recs = w.Fields
	default:
		return nil, fmt.Errorf("%w: expected an array or object", ErrInvalidInput)
	}

	out := make([]fields.Field, 0, len(recs))
	for i, r := range recs {
		f, err := r.field()
		if err != nil {
			return nil, fmt.Errorf("%w: field %d: %w", ErrInvalidInput, i, err)
		}
		out = append(out, f)
	}
	return out, nil
}

func (r record) field() (fields.Field, error) {
	f := fields.Field{
		ID:    rawID(r.ID),
		Name:  r.Name,
		Value: r.Value,
		Label: r.Label,
		Type:  fields.ParseKind(r.Type),
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Label == "" {
		f.Label = r.Tooltip
	}

	if r.Page != "" {
		page, err := strconv.ParseFloat(r.Page.String(), 64)
		if err != nil {
			return f, fmt.Errorf("page %q: %w", r.Page, err)
		}
		f.Page = int(page)
	}

	raw := r.Rect
	if len(raw) == 0 || string(raw) == "null" {
		raw = r.Geometry
	}
	rect, err := parseRect(raw)
	if err != nil {
		return f, err
	}
	f.Rect = rect
	return f, nil
}

func rawID(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	if unq, err := strconv.Unquote(s); err == nil {
		return unq
	}
	return s
}

func parseRect(raw json.RawMessage) (*fields.Geometry, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	if raw[0] == '[' {
		var corners []float64
		if err := json.Unmarshal(raw, &corners); err != nil {
			return nil, fmt.Errorf("rect: %w", err)
		}
		if len(corners) != 4 {
			return nil, fmt.Errorf("rect: want 4 coordinates, got %d", len(corners))
		}
		x1, y1 := min(corners[0], corners[2]), min(corners[1], corners[3])
		x2, y2 := max(corners[0], corners[2]), max(corners[1], corners[3])
		return &fields.Geometry{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}, nil
	}

	var g fields.Geometry
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("rect: %w", err)
	}
	return &g, nil
}
