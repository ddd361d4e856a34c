package schema

import (
	"fmt"
	"strings"
)

// Schema describes the nested-array shape of a document: the ordered list of
// array-valued paths, outermost first. Everything not under an array path is
// a root scalar.
type Schema struct {
	arrays []string
}

// New validates and creates a Schema. Array paths must be ordered outermost
// first and each nested path must extend the previous one or start a new
// root-level array.
func New(arrays []string) (Schema, error) {
	for i, p := range arrays {
		if p == "" {
			return Schema{}, fmt.Errorf("array path %d is empty", i)
		}
		for j := 0; j < i; j++ {
			if strings.HasPrefix(arrays[j], p+".") {
				return Schema{}, fmt.Errorf("array path %q must precede nested path %q", p, arrays[j])
			}
		}
	}
	return Schema{arrays: arrays}, nil
}

// MustNew calls New and panics on error.
func MustNew(arrays []string) Schema {
	s, err := New(arrays)
	if err != nil {
		panic(err)
	}
	return s
}

// ArrayPaths returns the array paths, outermost first.
func (s Schema) ArrayPaths() []string {
	out := make([]string, len(s.arrays))
	copy(out, s.arrays)
	return out
}

// Owner returns the innermost array path that contains the given field, or
// "" when the field is a root scalar.
func (s Schema) Owner(field string) string {
	owner := ""
	for _, p := range s.arrays {
		if strings.HasPrefix(field, p+".") && len(p) > len(owner) {
			owner = p
		}
	}
	return owner
}

// BelowUnexpanded reports whether the field still sits under an array that is
// not in the expanded set. A predicate on such a field cannot run before the
// owning expansion without changing its meaning.
func (s Schema) BelowUnexpanded(field string, expanded map[string]bool) bool {
	for _, p := range s.arrays {
		if strings.HasPrefix(field, p+".") && !expanded[p] {
			return true
		}
	}
	return false
}

// Contacts is the shape of a contact document: questions, each holding
// answers, each holding loop instances.
func Contacts() Schema {
	return MustNew([]string{
		"questions",
		"questions.answers",
		"questions.answers.loop_instances",
	})
}
