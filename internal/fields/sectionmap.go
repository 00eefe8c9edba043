package fields

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
)

// SectionMap owns the categorized records of one document. Each record is
// listed under exactly one section; reassignment moves it between lists in a
// single operation. A SectionMap is not safe for concurrent use: pipeline
// stages hand it to one another rather than share it.
type SectionMap struct {
	lists map[int][]*Categorized
	where map[string]int
}

// NewSectionMap returns an empty map.
func NewSectionMap() *SectionMap {
	return &SectionMap{
		lists: make(map[int][]*Categorized),
		where: make(map[string]int),
	}
}

// FromFields builds a map with every field unclassified. Fields without an ID,
// or whose ID repeats, receive a positional ID so that identity stays unique.
func FromFields(fs []Field) *SectionMap {
	m := NewSectionMap()
	for i, f := range fs {
		if f.ID == "" || m.Has(f.ID) {
			f.ID = m.freeID(i)
		}
		m.Insert(NewCategorized(f))
	}
	return m
}

// freeID returns the first unused positional ID for index i.
func (m *SectionMap) freeID(i int) string {
	id := fmt.Sprintf("field-%d", i)
	for n := 1; m.Has(id); n++ {
		id = fmt.Sprintf("field-%d-%d", i, n)
	}
	return id
}

// Insert places c under c.Section. If a record with the same ID is already
// held it is replaced, wherever it lives.
func (m *SectionMap) Insert(c *Categorized) {
	if prev, ok := m.where[c.ID]; ok {
		m.remove(prev, c.ID)
	}
	if c.Section < 0 {
		c.Section = Unknown
	}
	c.Confidence = ClampConfidence(c.Confidence)
	m.lists[c.Section] = append(m.lists[c.Section], c)
	m.where[c.ID] = c.Section
}

// Has reports whether id is held.
func (m *SectionMap) Has(id string) bool {
	_, ok := m.where[id]
	return ok
}

// Get returns the record for id.
func (m *SectionMap) Get(id string) (*Categorized, bool) {
	section, ok := m.where[id]
	if !ok {
		return nil, false
	}
	for _, c := range m.lists[section] {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}

// Assign applies a to the record id, moving it to a.Section. It reports false
// when id is unknown.
func (m *SectionMap) Assign(id string, a Assignment) bool {
	c, ok := m.Get(id)
	if !ok {
		return false
	}
	if a.Section < 0 {
		a.Section = Unknown
	}
	from := c.Section
	c.apply(a)
	if from != a.Section {
		m.remove(from, id)
		m.lists[a.Section] = append(m.lists[a.Section], c)
		m.where[id] = a.Section
	}
	return true
}

// Reset returns id to the unknown bucket with zero confidence.
func (m *SectionMap) Reset(id string) bool {
	return m.Assign(id, Assignment{Section: Unknown})
}

// Fields returns the records of section in insertion order. The slice is a
// copy; the records are shared.
func (m *SectionMap) Fields(section int) []*Categorized {
	return slices.Clone(m.lists[section])
}

// Unknown returns the records still in the unknown bucket.
func (m *SectionMap) Unknown() []*Categorized {
	return m.Fields(Unknown)
}

// Count returns the number of records in section.
func (m *SectionMap) Count(section int) int {
	return len(m.lists[section])
}

// Counts returns the record count of every non-empty section.
func (m *SectionMap) Counts() map[int]int {
	counts := make(map[int]int, len(m.lists))
	for section, list := range m.lists {
		if len(list) > 0 {
			counts[section] = len(list)
		}
	}
	return counts
}

// Sections returns the non-empty section numbers in ascending order.
func (m *SectionMap) Sections() []int {
	keys := make([]int, 0, len(m.lists))
	for section, list := range m.lists {
		if len(list) > 0 {
			keys = append(keys, section)
		}
	}
	slices.Sort(keys)
	return keys
}

// Len returns the number of distinct records.
func (m *SectionMap) Len() int {
	return len(m.where)
}

// All returns every record ordered by section, then insertion.
func (m *SectionMap) All() []*Categorized {
	all := make([]*Categorized, 0, len(m.where))
	for _, section := range m.Sections() {
		all = append(all, m.lists[section]...)
	}
	return all
}

// Clone returns a deep copy that shares nothing with m.
func (m *SectionMap) Clone() *SectionMap {
	cp := &SectionMap{
		lists: make(map[int][]*Categorized, len(m.lists)),
		where: maps.Clone(m.where),
	}
	for section, list := range m.lists {
		if len(list) == 0 {
			continue
		}
		cloned := make([]*Categorized, len(list))
		for i, c := range list {
			cloned[i] = c.Clone()
		}
		cp.lists[section] = cloned
	}
	return cp
}

// Dedupe enforces single membership. A record listed under several sections
// is kept in the highest non-zero section and purged elsewhere; repeats within
// one list collapse to the first occurrence. It returns the number of purged
// list entries.
func (m *SectionMap) Dedupe() int {
	homes := make(map[string]int)
	for section, list := range m.lists {
		for _, c := range list {
			cur, seen := homes[c.ID]
			if !seen || preferSection(section, cur) {
				homes[c.ID] = section
			}
		}
	}

	purged := 0
	for section, list := range m.lists {
		kept := list[:0]
		seen := make(map[string]bool, len(list))
		for _, c := range list {
			if homes[c.ID] != section || seen[c.ID] {
				purged++
				continue
			}
			seen[c.ID] = true
			c.Section = section
			kept = append(kept, c)
		}
		clear(list[len(kept):])
		if len(kept) == 0 {
			delete(m.lists, section)
			continue
		}
		m.lists[section] = kept
	}

	m.where = homes
	return purged
}

// preferSection reports whether a should win over b when a record appears in
// both: any known section beats unknown, and among known sections the higher
// number wins.
func preferSection(a, b int) bool {
	if a == Unknown {
		return false
	}
	if b == Unknown {
		return true
	}
	return a > b
}

func (m *SectionMap) remove(section int, id string) {
	list := m.lists[section]
	for i, c := range list {
		if c.ID == id {
			m.lists[section] = slices.Delete(list, i, i+1)
			break
		}
	}
	if len(m.lists[section]) == 0 {
		delete(m.lists, section)
	}
	if m.where[id] == section {
		delete(m.where, id)
	}
}

// MarshalJSON encodes the map as {"0": [...], "1": [...]}. The unknown bucket
// is always present.
func (m *SectionMap) MarshalJSON() ([]byte, error) {
	out := map[string][]*Categorized{
		"0": m.Fields(Unknown),
	}
	if out["0"] == nil {
		out["0"] = []*Categorized{}
	}
	for section, list := range m.lists {
		if len(list) > 0 {
			out[strconv.Itoa(section)] = list
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the shape written by MarshalJSON. The list key wins
// over any section recorded inside an element, and duplicated records are
// resolved through Dedupe.
func (m *SectionMap) UnmarshalJSON(data []byte) error {
	var raw map[string][]*Categorized
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*m = *NewSectionMap()
	for key, list := range raw {
		section, err := strconv.Atoi(key)
		if err != nil || section < 0 {
			return fmt.Errorf("invalid section key %q", key)
		}
		for _, c := range list {
			if c == nil {
				continue
			}
			c.Section = section
			c.Confidence = ClampConfidence(c.Confidence)
			m.lists[section] = append(m.lists[section], c)
		}
	}
	m.Dedupe()
	return nil
}
