package criteria

// Version is one revision of a criteria definition.
type Version struct {
	Revision int    `json:"revision"`
	Label    string `json:"label"`
}

// Definition is a secondary-collection entity keyed by (value, initiative).
type Definition struct {
	Value      float64   `json:"value"`
	Initiative string    `json:"initiative_id"`
	Label      string    `json:"label"`
	Versions   []Version `json:"versions,omitempty"`
}

// Reduce collapses one or more matching definitions into the label the
// pipeline attaches. Precedence is fixed: the first element of the first
// match's versions array wins, falling back to the top-level label.
// Ambiguity beyond that ordering is intentionally not re-derived here.
func Reduce(matches []Definition) (string, bool) {
	if len(matches) == 0 {
		return "", false
	}
	first := matches[0]
	if len(first.Versions) > 0 {
		return first.Versions[0].Label, true
	}
	return first.Label, true
}
