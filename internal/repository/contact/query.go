package contact

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/docpipe/internal/domain/predicate"
	"github.com/kailas-cloud/docpipe/internal/plan"
)

// queryAliases maps document field paths to the FT index aliases declared at
// index creation. Dotted JSONPath sources get flat aliases so query syntax
// stays simple.
var queryAliases = map[string]string{
	plan.FieldInitiative: "initiative_id",
	plan.FieldCategory:   "question_category",
	plan.FieldAnswer:     "answer_value",
}

// renderQuery renders an index-eligible predicate as an FT.SEARCH query.
// The classifier only emits conjunctions of comparisons and In sets over
// indexed fields, so anything else here is a planning bug.
func renderQuery(e predicate.Expr) (string, error) {
	switch t := e.(type) {
	case predicate.And:
		parts := make([]string, 0, len(t.Exprs))
		for _, child := range t.Exprs {
			p, err := renderQuery(child)
			if err != nil {
				return "", err
			}
			parts = append(parts, p)
		}
		return strings.Join(parts, " "), nil

	case predicate.Compare:
		return renderCompare(t)

	case predicate.In:
		return renderIn(t)

	default:
		return "", fmt.Errorf("predicate %q is not renderable as an index query", e.String())
	}
}

func renderCompare(c predicate.Compare) (string, error) {
	alias, ok := queryAliases[c.Field]
	if !ok {
		return "", fmt.Errorf("field %q has no index alias", c.Field)
	}

	if s, ok := c.Value.(string); ok {
		if c.Op != predicate.OpEq {
			return "", fmt.Errorf("tag field %q supports equality only, got %s", c.Field, c.Op)
		}
		return fmt.Sprintf("@%s:{%s}", alias, escapeTag(s)), nil
	}

	n, ok := asFloat(c.Value)
	if !ok {
		return "", fmt.Errorf("field %q: unsupported literal %v", c.Field, c.Value)
	}
	v := formatFloat(n)
	switch c.Op {
	case predicate.OpEq:
		return fmt.Sprintf("@%s:[%s %s]", alias, v, v), nil
	case predicate.OpLt:
		return fmt.Sprintf("@%s:[-inf (%s]", alias, v), nil
	case predicate.OpLte:
		return fmt.Sprintf("@%s:[-inf %s]", alias, v), nil
	case predicate.OpGt:
		return fmt.Sprintf("@%s:[(%s +inf]", alias, v), nil
	case predicate.OpGte:
		return fmt.Sprintf("@%s:[%s +inf]", alias, v), nil
	default:
		return "", fmt.Errorf("numeric field %q: unsupported operator %s", c.Field, c.Op)
	}
}

func renderIn(in predicate.In) (string, error) {
	alias, ok := queryAliases[in.Field]
	if !ok {
		return "", fmt.Errorf("field %q has no index alias", in.Field)
	}
	if len(in.Values) == 0 {
		return "", fmt.Errorf("field %q: empty In set", in.Field)
	}

	if _, isStr := in.Values[0].(string); isStr {
		tags := make([]string, len(in.Values))
		for i, v := range in.Values {
			s, ok := v.(string)
			if !ok {
				return "", fmt.Errorf("field %q: mixed In literals", in.Field)
			}
			tags[i] = escapeTag(s)
		}
		return fmt.Sprintf("@%s:{%s}", alias, strings.Join(tags, "|")), nil
	}

	ranges := make([]string, len(in.Values))
	for i, v := range in.Values {
		n, ok := asFloat(v)
		if !ok {
			return "", fmt.Errorf("field %q: unsupported literal %v", in.Field, v)
		}
		ranges[i] = fmt.Sprintf("@%s:[%s %s]", alias, formatFloat(n), formatFloat(n))
	}
	if len(ranges) == 1 {
		return ranges[0], nil
	}
	return "(" + strings.Join(ranges, "|") + ")", nil
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// escapeTag escapes RediSearch TAG special characters.
func escapeTag(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case ',', '.', '<', '>', '{', '}', '[', ']', '"', '\'', ':', ';',
			'!', '@', '#', '$', '%', '^', '&', '*', '(', ')', '-', '+',
			'=', '~', '|', ' ', '/', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
