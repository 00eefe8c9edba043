// Package fields defines the records shared by every stage of the categorization
// pipeline: raw extracted fields, their mutable categorized counterparts, and the
// owned section map that holds them.
package fields

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind is the form-control type reported by the extraction collaborator.
type Kind string

// Known form-control kinds.
const (
	KindText      Kind = "text"
	KindCheckbox  Kind = "checkbox"
	KindDropdown  Kind = "dropdown"
	KindRadio     Kind = "radio"
	KindDate      Kind = "date"
	KindList      Kind = "list"
	KindSignature Kind = "signature"
	KindUnknown   Kind = "unknown"
)

// ParseKind normalizes the type tags emitted by PDF tooling ("PDFTextField",
// "textfield", "CheckBox", ...) into a Kind.
func ParseKind(s string) Kind {
	t := strings.ToLower(strings.TrimSpace(s))
	t = strings.TrimPrefix(t, "pdf")
	switch {
	case t == "":
		return KindUnknown
	case strings.Contains(t, "check"):
		return KindCheckbox
	case strings.Contains(t, "radio"):
		return KindRadio
	case strings.Contains(t, "dropdown"), strings.Contains(t, "combo"):
		return KindDropdown
	case strings.Contains(t, "list"):
		return KindList
	case strings.Contains(t, "date"):
		return KindDate
	case strings.Contains(t, "sign"):
		return KindSignature
	case strings.Contains(t, "text"):
		return KindText
	}
	return KindUnknown
}

// Geometry is a widget bounding box in page coordinates.
type Geometry struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the midpoint of the box.
func (g Geometry) Center() (float64, float64) {
	return g.X + g.Width/2, g.Y + g.Height/2
}

// Field is an immutable extracted form field.
type Field struct {
	ID    string    `json:"id"`
	Name  string    `json:"name"`
	Value Value     `json:"value,omitzero"`
	Page  int       `json:"page"`
	Label string    `json:"label,omitempty"`
	Type  Kind      `json:"type,omitempty"`
	Rect  *Geometry `json:"rect,omitempty"`
}

// Text returns the label and value text joined for keyword matching.
func (f *Field) Text() string {
	v := f.Value.String()
	switch {
	case f.Label == "":
		return v
	case v == "":
		return f.Label
	}
	return f.Label + " " + v
}

// Value is an optional field value holding text, a boolean, or a list.
type Value struct {
	Text *string
	Bool *bool
	List []string
}

// TextValue wraps s as a Value.
func TextValue(s string) Value { return Value{Text: &s} }

// BoolValue wraps b as a Value.
func BoolValue(b bool) Value { return Value{Bool: &b} }

// IsZero reports whether no value is present.
func (v Value) IsZero() bool {
	return v.Text == nil && v.Bool == nil && v.List == nil
}

// String renders the value as plain text.
func (v Value) String() string {
	switch {
	case v.Text != nil:
		return *v.Text
	case v.Bool != nil:
		return fmt.Sprintf("%t", *v.Bool)
	case v.List != nil:
		return strings.Join(v.List, " ")
	}
	return ""
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch {
	case v.Text != nil:
		return json.Marshal(*v.Text)
	case v.Bool != nil:
		return json.Marshal(*v.Bool)
	case v.List != nil:
		return json.Marshal(v.List)
	}
	return []byte("null"), nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	*v = Value{}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch t := raw.(type) {
	case nil:
	case string:
		v.Text = &t
	case bool:
		v.Bool = &t
	case float64:
		s := strings.TrimSuffix(fmt.Sprintf("%f", t), ".000000")
		v.Text = &s
	case []any:
		list := make([]string, 0, len(t))
		for _, item := range t {
			list = append(list, fmt.Sprint(item))
		}
		v.List = list
	default:
		s := string(data)
		v.Text = &s
	}
	return nil
}
