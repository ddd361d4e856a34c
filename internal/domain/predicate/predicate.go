// Package predicate provides a boolean expression tree over flattened rows.
//
// Evaluation is null-propagating: a comparison whose field is missing or null
// is false, never an error. Negation is ordinary boolean negation on top of
// that, which matches store-side $nor-style exclusion semantics.
package predicate

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/docpipe/internal/domain/record"
)

// Op is a comparison operator.
type Op string

const (
	OpEq  Op = "eq"
	OpNe  Op = "ne"
	OpLt  Op = "lt"
	OpLte Op = "lte"
	OpGt  Op = "gt"
	OpGte Op = "gte"
)

// Expr is a boolean expression over row fields.
type Expr interface {
	// Eval reports whether the row matches.
	Eval(r record.Row) bool
	// Fields returns every field path the expression references.
	Fields() []string
	// String renders a debug form of the expression.
	String() string
}

// Compare matches a field against a literal with a comparison operator.
type Compare struct {
	Field string
	Op    Op
	Value any
}

// Eval implements Expr.
func (c Compare) Eval(r record.Row) bool {
	v, ok := r.Get(c.Field)
	if !ok || v == nil {
		return false
	}
	cmp, ok := compareValues(v, c.Value)
	if !ok {
		return false
	}
	return c.holds(cmp)
}

func (c Compare) holds(cmp int) bool {
	switch c.Op {
	case OpEq:
		return cmp == 0
	case OpNe:
		return cmp != 0
	case OpLt:
		return cmp < 0
	case OpLte:
		return cmp <= 0
	case OpGt:
		return cmp > 0
	case OpGte:
		return cmp >= 0
	default:
		return false
	}
}

// Fields implements Expr.
func (c Compare) Fields() []string { return []string{c.Field} }

func (c Compare) String() string {
	return fmt.Sprintf("%s %s %v", c.Field, c.Op, c.Value)
}

// In matches a field against any of a set of literals.
type In struct {
	Field  string
	Values []any
}

// Eval implements Expr.
func (i In) Eval(r record.Row) bool {
	v, ok := r.Get(i.Field)
	if !ok || v == nil {
		return false
	}
	for _, want := range i.Values {
		if cmp, ok := compareValues(v, want); ok && cmp == 0 {
			return true
		}
	}
	return false
}

// Fields implements Expr.
func (i In) Fields() []string { return []string{i.Field} }

func (i In) String() string {
	parts := make([]string, len(i.Values))
	for j, v := range i.Values {
		parts[j] = fmt.Sprint(v)
	}
	return fmt.Sprintf("%s in (%s)", i.Field, strings.Join(parts, ","))
}

// Exists matches rows where the field is present and non-null.
type Exists struct {
	Field string
}

// Eval implements Expr.
func (e Exists) Eval(r record.Row) bool {
	v, ok := r.Get(e.Field)
	return ok && v != nil
}

// Fields implements Expr.
func (e Exists) Fields() []string { return []string{e.Field} }

func (e Exists) String() string { return e.Field + " exists" }

// And matches when every child matches. An empty And matches everything.
type And struct {
	Exprs []Expr
}

// Eval implements Expr.
func (a And) Eval(r record.Row) bool {
	for _, e := range a.Exprs {
		if !e.Eval(r) {
			return false
		}
	}
	return true
}

// Fields implements Expr.
func (a And) Fields() []string { return childFields(a.Exprs) }

func (a And) String() string { return joinChildren(a.Exprs, " and ") }

// Or matches when any child matches. An empty Or matches nothing.
type Or struct {
	Exprs []Expr
}

// Eval implements Expr.
func (o Or) Eval(r record.Row) bool {
	for _, e := range o.Exprs {
		if e.Eval(r) {
			return true
		}
	}
	return false
}

// Fields implements Expr.
func (o Or) Fields() []string { return childFields(o.Exprs) }

func (o Or) String() string { return joinChildren(o.Exprs, " or ") }

// Not inverts its child.
type Not struct {
	Expr Expr
}

// Eval implements Expr.
func (n Not) Eval(r record.Row) bool { return !n.Expr.Eval(r) }

// Fields implements Expr.
func (n Not) Fields() []string { return n.Expr.Fields() }

func (n Not) String() string { return "not (" + n.Expr.String() + ")" }

// EvalNested evaluates an expression against an unexpanded document with
// existential semantics: a leaf over an array-nested path matches when any
// element along the path satisfies it, the way the store matches dotted
// paths. Each leaf quantifies independently; there is no correlation to a
// single element. Negation and the boolean connectives stay ordinary.
func EvalNested(e Expr, r record.Row) bool {
	switch t := e.(type) {
	case Compare:
		for _, v := range r.Values(t.Field) {
			if v == nil {
				continue
			}
			if cmp, ok := compareValues(v, t.Value); ok && t.holds(cmp) {
				return true
			}
		}
		return false
	case In:
		for _, v := range r.Values(t.Field) {
			if v == nil {
				continue
			}
			for _, want := range t.Values {
				if cmp, ok := compareValues(v, want); ok && cmp == 0 {
					return true
				}
			}
		}
		return false
	case Exists:
		for _, v := range r.Values(t.Field) {
			if v != nil {
				return true
			}
		}
		return false
	case And:
		for _, child := range t.Exprs {
			if !EvalNested(child, r) {
				return false
			}
		}
		return true
	case Or:
		for _, child := range t.Exprs {
			if EvalNested(child, r) {
				return true
			}
		}
		return false
	case Not:
		return !EvalNested(t.Expr, r)
	default:
		return e.Eval(r)
	}
}

// Conjuncts flattens nested Ands into a flat conjunct list. A non-And
// expression is its own single conjunct.
func Conjuncts(e Expr) []Expr {
	a, ok := e.(And)
	if !ok {
		return []Expr{e}
	}
	var out []Expr
	for _, child := range a.Exprs {
		out = append(out, Conjuncts(child)...)
	}
	return out
}

// compareValues orders two values of compatible types. Numbers compare
// numerically, strings lexically, bools as equality only.
func compareValues(a, b any) (int, bool) {
	if af, ok := asNumber(a); ok {
		bf, ok := asNumber(b)
		if !ok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	switch at := a.(type) {
	case string:
		bt, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(at, bt), true
	case bool:
		bt, ok := b.(bool)
		if !ok {
			return 0, false
		}
		if at == bt {
			return 0, true
		}
		return 1, true
	default:
		return 0, false
	}
}

func asNumber(v any) (float64, bool) {
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

func childFields(exprs []Expr) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range exprs {
		for _, f := range e.Fields() {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out
}

func joinChildren(exprs []Expr, sep string) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = "(" + e.String() + ")"
	}
	return strings.Join(parts, sep)
}
