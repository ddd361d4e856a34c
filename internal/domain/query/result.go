package query

import (
	"github.com/kailas-cloud/docpipe/internal/domain/record"
)

// Detail is one contributing flattened row inside a group, in arrival order.
type Detail struct {
	ContactID     string   `json:"contact_id"`
	LastName      string   `json:"last_name"`
	Category      int      `json:"category"`
	AnswerValue   float64  `json:"answer_value"`
	LoopValue     *float64 `json:"loop_value,omitempty"`
	CriteriaLabel *string  `json:"criteria_label"`
}

// Group is one assembled output record: all surviving rows sharing an answer
// value, with first-seen scalars attached.
type Group struct {
	AnswerValue   float64  `json:"answer_value"`
	Count         int      `json:"count"`
	CriteriaLabel *string  `json:"criteria_label"`
	Details       []Detail `json:"details"`
}

// Field names the group stage emits and the assembly consumes.
const (
	GroupKeyField   = "key"
	GroupCountField = "count"
	GroupRowsField  = "rows"
	GroupFirstField = "first"
)

// AssembleGroups converts group-stage rows into the final result records.
// Row order is preserved; the sort stage has already fixed it.
func AssembleGroups(rows []record.Row) []Group {
	groups := make([]Group, 0, len(rows))
	for _, row := range rows {
		g := Group{}
		if v, ok := row.Number(GroupKeyField); ok {
			g.AnswerValue = v
		}
		if n, ok := row.Number(GroupCountField); ok {
			g.Count = int(n)
		}
		if label, ok := row.String(GroupFirstField + ".criteria_label"); ok {
			g.CriteriaLabel = &label
		}
		if members, ok := row.Array(GroupRowsField); ok {
			g.Details = make([]Detail, 0, len(members))
			for _, m := range members {
				mm, ok := m.(map[string]any)
				if !ok {
					continue
				}
				g.Details = append(g.Details, detailFromRow(record.Row(mm)))
			}
		}
		groups = append(groups, g)
	}
	return groups
}

func detailFromRow(r record.Row) Detail {
	d := Detail{}
	d.ContactID, _ = r.String("id")
	d.LastName, _ = r.String("last_name")
	if c, ok := r.Number("questions.category"); ok {
		d.Category = int(c)
	}
	if v, ok := r.Number("questions.answers.value"); ok {
		d.AnswerValue = v
	}
	if lv, ok := r.Number("questions.answers.loop_instances.value"); ok {
		d.LoopValue = &lv
	}
	if label, ok := r.String("criteria_label"); ok {
		d.CriteriaLabel = &label
	}
	return d
}
