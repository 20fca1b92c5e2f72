// Package diff computes structural differences between two states of the
// same artifact collection. Every function is pure and deterministic: the
// same inputs always produce the same output, in the same order.
package diff

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// Change is a key whose value differs between before and after.
type Change struct {
	Key    string `json:"key"`
	Before any    `json:"before"`
	After  any    `json:"after"`
}

// ObjectDiff is the difference between two keyed records. Keys holding a
// plain object on both sides are diffed recursively into Nested instead of
// being reported in Changed.
type ObjectDiff struct {
	Added   []string              `json:"added,omitempty"`
	Removed []string              `json:"removed,omitempty"`
	Changed []Change              `json:"changed,omitempty"`
	Nested  map[string]ObjectDiff `json:"nested,omitempty"`
}

// IsEmpty reports whether the two records were equal.
func (d ObjectDiff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0 && len(d.Nested) == 0
}

// Paths flattens the diff into dotted key paths, sorted.
func (d ObjectDiff) Paths() []string {
	var out []string
	out = append(out, d.Added...)
	out = append(out, d.Removed...)
	for _, c := range d.Changed {
		out = append(out, c.Key)
	}
	for k, nd := range d.Nested {
		for _, p := range nd.Paths() {
			out = append(out, k+"."+p)
		}
	}
	sort.Strings(out)
	return out
}

// Objects compares two plain records.
func Objects(before, after map[string]any) ObjectDiff {
	var d ObjectDiff

	for _, k := range sortedKeys(after) {
		if _, ok := before[k]; !ok {
			d.Added = append(d.Added, k)
		}
	}
	for _, k := range sortedKeys(before) {
		av, ok := after[k]
		if !ok {
			d.Removed = append(d.Removed, k)
			continue
		}
		bv := before[k]
		bm, bIsMap := bv.(map[string]any)
		am, aIsMap := av.(map[string]any)
		if bIsMap && aIsMap {
			if nd := Objects(bm, am); !nd.IsEmpty() {
				if d.Nested == nil {
					d.Nested = make(map[string]ObjectDiff)
				}
				d.Nested[k] = nd
			}
			continue
		}
		if !Equal(bv, av) {
			d.Changed = append(d.Changed, Change{Key: k, Before: bv, After: av})
		}
	}
	return d
}

// Equal is structural value equality. Arrays compare element by element.
func Equal(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// Item is a record of a collection together with its identifier.
type Item struct {
	ID    string         `json:"id"`
	Value map[string]any `json:"value"`
}

// ItemChange is a record present on both sides whose fields differ.
type ItemChange struct {
	ID     string         `json:"id"`
	Before map[string]any `json:"before"`
	After  map[string]any `json:"after"`
	Fields ObjectDiff     `json:"fields"`
}

// CollectionDiff partitions two collections by identifier.
type CollectionDiff struct {
	Added   []Item       `json:"added"`
	Removed []Item       `json:"removed"`
	Changed []ItemChange `json:"changed"`
}

// IsEmpty reports whether both collections hold the same records.
func (d CollectionDiff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Collections compares two sequences of keyed records. Added and Changed
// follow the order of after, Removed follows the order of before. A record
// without idKey matches an equal id-less record on the other side; each
// record is matched at most once, so Collections(x, x, k) is always empty.
func Collections(before, after []map[string]any, idKey string) CollectionDiff {
	d := CollectionDiff{
		Added:   []Item{},
		Removed: []Item{},
		Changed: []ItemChange{},
	}

	beforeByID := make(map[string]map[string]any, len(before))
	for _, rec := range before {
		if id, ok := idOf(rec, idKey); ok {
			beforeByID[id] = rec
		}
	}
	afterByID := make(map[string]map[string]any, len(after))
	for _, rec := range after {
		if id, ok := idOf(rec, idKey); ok {
			afterByID[id] = rec
		}
	}

	var unkeyed []map[string]any
	for _, rec := range before {
		if _, ok := idOf(rec, idKey); !ok {
			unkeyed = append(unkeyed, rec)
		}
	}
	matched := make([]bool, len(unkeyed))

	seen := make(map[string]bool, len(after))
	for _, rec := range after {
		id, ok := idOf(rec, idKey)
		if !ok {
			if !claim(unkeyed, matched, rec) {
				d.Added = append(d.Added, Item{Value: rec})
			}
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		prev, existed := beforeByID[id]
		if !existed {
			d.Added = append(d.Added, Item{ID: id, Value: rec})
			continue
		}
		cur := afterByID[id]
		if !Equal(prev, cur) {
			d.Changed = append(d.Changed, ItemChange{ID: id, Before: prev, After: cur, Fields: Objects(prev, cur)})
		}
	}

	n := 0
	seen = make(map[string]bool, len(before))
	for _, rec := range before {
		id, ok := idOf(rec, idKey)
		if !ok {
			if !matched[n] {
				d.Removed = append(d.Removed, Item{Value: rec})
			}
			n++
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, kept := afterByID[id]; !kept {
			d.Removed = append(d.Removed, Item{ID: id, Value: rec})
		}
	}
	return d
}

// claim marks the first unmatched record of pool equal to rec.
func claim(pool []map[string]any, matched []bool, rec map[string]any) bool {
	for i, cand := range pool {
		if !matched[i] && Equal(cand, rec) {
			matched[i] = true
			return true
		}
	}
	return false
}

// Records diffs two typed collections by converting each record to its
// JSON object form. idKey names the JSON field holding the identifier.
func Records[T any](before, after []T, idKey string) (CollectionDiff, error) {
	b, err := toMaps(before)
	if err != nil {
		return CollectionDiff{}, fmt.Errorf("convert before: %w", err)
	}
	a, err := toMaps(after)
	if err != nil {
		return CollectionDiff{}, fmt.Errorf("convert after: %w", err)
	}
	return Collections(b, a, idKey), nil
}

// ToMap converts a struct to its JSON object form.
func ToMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func toMaps[T any](items []T) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		m, err := ToMap(it)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func idOf(rec map[string]any, idKey string) (string, bool) {
	v, ok := rec[idKey]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, s != ""
	}
	return fmt.Sprint(v), true
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
