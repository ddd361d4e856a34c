package record

import (
	"sort"
	"strings"
)

// Row is a single flattened pipeline row: a document (or an expanded slice of
// one) addressed by dotted field paths. Nested objects are map[string]any and
// nested arrays are []any, as produced by encoding/json.
type Row map[string]any

// Get resolves a dotted path. The second return distinguishes an explicit
// null (nil, true) from a missing field (nil, false). Paths that descend into
// an array value stop short and report missing; arrays are addressed whole.
func (r Row) Get(path string) (any, bool) {
	var cur any = map[string]any(r)
	for path != "" {
		head, rest, _ := strings.Cut(path, ".")
		m, ok := cur.(map[string]any)
		if !ok {
			if rm, ok := cur.(Row); ok {
				m = map[string]any(rm)
			} else {
				return nil, false
			}
		}
		cur, ok = m[head]
		if !ok {
			return nil, false
		}
		path = rest
	}
	return cur, true
}

// Values collects every value reachable at a dotted path, descending into
// each element of any array along the way. Explicit nulls are included,
// missing branches contribute nothing. This is the document-level companion
// to Get: Get addresses a flattened row, Values addresses the unexpanded
// document.
func (r Row) Values(path string) []any {
	return collectValues(map[string]any(r), path)
}

func collectValues(v any, path string) []any {
	switch t := v.(type) {
	case Row:
		return collectValues(map[string]any(t), path)
	case map[string]any:
		if path == "" {
			return []any{t}
		}
		head, rest, _ := strings.Cut(path, ".")
		e, ok := t[head]
		if !ok {
			return nil
		}
		return collectValues(e, rest)
	case []any:
		var out []any
		for _, e := range t {
			out = append(out, collectValues(e, path)...)
		}
		return out
	default:
		if path != "" {
			return nil
		}
		return []any{t}
	}
}

// Set stores a value at a dotted path, creating intermediate objects.
func (r Row) Set(path string, v any) {
	m := map[string]any(r)
	for {
		head, rest, found := strings.Cut(path, ".")
		if !found {
			m[head] = v
			return
		}
		next, ok := m[head].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[head] = next
		}
		m = next
		path = rest
	}
}

// Number resolves a path to a float64. Missing, null, and non-numeric values
// all report false; a row that fails Number never matches a numeric predicate.
func (r Row) Number(path string) (float64, bool) {
	v, ok := r.Get(path)
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// String resolves a path to a string value.
func (r Row) String(path string) (string, bool) {
	v, ok := r.Get(path)
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Bool resolves a path to a boolean value.
func (r Row) Bool(path string) (bool, bool) {
	v, ok := r.Get(path)
	if !ok || v == nil {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// Array resolves a path to an array value. Missing, null, and non-array
// values report false.
func (r Row) Array(path string) ([]any, bool) {
	v, ok := r.Get(path)
	if !ok || v == nil {
		return nil, false
	}
	a, ok := v.([]any)
	return a, ok
}

// Clone deep-copies the row. Scalars are shared (immutable), containers are
// copied so stages never alias each other's structure.
func (r Row) Clone() Row {
	return Row(cloneValue(map[string]any(r)).(map[string]any))
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = cloneValue(e)
		}
		return m
	case Row:
		return cloneValue(map[string]any(t))
	case []any:
		a := make([]any, len(t))
		for i, e := range t {
			a[i] = cloneValue(e)
		}
		return a
	default:
		return v
	}
}

// CloneExcept deep-copies the row like Clone but leaves the value at the
// given dotted path out of the copy. Expansion uses it so replacing an array
// with one of its elements does not first copy the whole array.
func (r Row) CloneExcept(path string) Row {
	return Row(cloneExcept(map[string]any(r), strings.Split(path, ".")).(map[string]any))
}

func cloneExcept(v any, parts []string) any {
	m, ok := v.(map[string]any)
	if !ok || len(parts) == 0 {
		return cloneValue(v)
	}
	out := make(map[string]any, len(m))
	for k, e := range m {
		if k == parts[0] {
			if len(parts) == 1 {
				continue
			}
			out[k] = cloneExcept(e, parts[1:])
			continue
		}
		out[k] = cloneValue(e)
	}
	return out
}

// Project copies only the allow-listed dotted paths into a new row. Paths
// crossing an array descend into every element, so "questions.answers.value"
// keeps value inside each answer of each question and drops sibling fields.
// Array length is always preserved: an element missing the requested field
// stays as an empty object. A path whose terminal container was already
// populated by a deeper path does not widen it back to the full subtree, so
// listing both "questions" and "questions.category" keeps category only.
// Missing paths are skipped.
func (r Row) Project(fields []string) Row {
	ordered := make([]string, len(fields))
	copy(ordered, fields)
	// Deepest first, so terminal paths never clobber narrowed containers.
	sort.SliceStable(ordered, func(i, j int) bool {
		return strings.Count(ordered[i], ".") > strings.Count(ordered[j], ".")
	})
	out := make(map[string]any, len(fields))
	for _, f := range ordered {
		projectPath(map[string]any(r), out, strings.Split(f, "."))
	}
	return Row(out)
}

func projectPath(src, dst map[string]any, parts []string) {
	head := parts[0]
	v, ok := src[head]
	if !ok {
		return
	}
	if len(parts) == 1 {
		if _, exists := dst[head]; !exists {
			dst[head] = v
		}
		return
	}
	switch t := v.(type) {
	case map[string]any:
		sub, ok := dst[head].(map[string]any)
		if !ok {
			sub = make(map[string]any)
			dst[head] = sub
		}
		projectPath(t, sub, parts[1:])
	case []any:
		prev, _ := dst[head].([]any)
		if prev == nil {
			prev = make([]any, len(t))
			for i := range prev {
				prev[i] = make(map[string]any)
			}
			dst[head] = prev
		}
		for i, e := range t {
			em, ok := e.(map[string]any)
			if !ok {
				continue
			}
			if pm, ok := prev[i].(map[string]any); ok {
				projectPath(em, pm, parts[1:])
			}
		}
	}
}
