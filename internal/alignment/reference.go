package alignment

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"
)

// Reference is the externally supplied expectation for one section.
type Reference struct {
	Fields      int `json:"fields"`
	Entries     int `json:"entries,omitempty"`
	Subsections int `json:"subsections,omitempty"`
}

// References maps section numbers to their expectations. Encoded as
// {"<n>": {fields, entries, subsections}}.
type References map[int]Reference

// Sections returns the referenced section numbers in ascending order,
// excluding the unknown bucket.
func (r References) Sections() []int {
	ids := make([]int, 0, len(r))
	for id := range r {
		if id > 0 {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Expected returns the expected field count of section.
func (r References) Expected(section int) int {
	return r[section].Fields
}

// Total returns the sum of expected field counts.
func (r References) Total() int {
	total := 0
	for _, id := range r.Sections() {
		total += r[id].Fields
	}
	return total
}

// Empty reports whether there is nothing to align against.
func (r References) Empty() bool {
	for _, id := range r.Sections() {
		if r[id].Fields > 0 {
			return false
		}
	}
	return true
}

// FieldCounts builds references from a plain {section: fields} table.
func FieldCounts(counts map[int]int) References {
	refs := make(References, len(counts))
	for id, n := range counts {
		refs[id] = Reference{Fields: n}
	}
	return refs
}

// UnmarshalJSON accepts {"<n>": {fields, ...}} as well as the shorthand
// {"<n>": fields}.
func (r *References) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidReferences, err)
	}

	out := make(References, len(raw))
	for _, key := range slices.Sorted(maps.Keys(raw)) {
		id, err := strconv.Atoi(key)
		if err != nil || id < 0 {
			return fmt.Errorf("%w: section key %q", ErrInvalidReferences, key)
		}

		var ref Reference
		if err := json.Unmarshal(raw[key], &ref); err != nil {
			var n int
			if err := json.Unmarshal(raw[key], &n); err != nil {
				return fmt.Errorf("%w: section %s: %w", ErrInvalidReferences, key, err)
			}
			ref.Fields = n
		}
		if ref.Fields < 0 {
			return fmt.Errorf("%w: section %s has negative field count", ErrInvalidReferences, key)
		}
		out[id] = ref
	}
	*r = out
	return nil
}

// LoadReferences reads a reference table from path.
func LoadReferences(path string) (References, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read references: %w", err)
	}
	return ParseReferences(data)
}

// ParseReferences decodes a reference table.
func ParseReferences(data []byte) (References, error) {
	var refs References
	if err := json.Unmarshal(data, &refs); err != nil {
		return nil, err
	}
	return refs, nil
}
