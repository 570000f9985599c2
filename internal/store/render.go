package store

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ToText renders r as a markdown pipe-table with a header row, a `---`
// separator row, and a trailing "(N rows)" line. Empty results render
// only the trailing line.
func (r *Result) ToText() string {
	if len(r.Rows) == 0 {
		return "(0 rows)"
	}
	var b strings.Builder
	b.WriteString("| ")
	b.WriteString(strings.Join(r.Columns, " | "))
	b.WriteString(" |\n|")
	for range r.Columns {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, row := range r.Rows {
		b.WriteString("| ")
		cells := make([]string, len(r.Columns))
		for i, c := range r.Columns {
			cells[i] = cellText(row[c])
		}
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString(" |\n")
	}
	fmt.Fprintf(&b, "(%d rows)", len(r.Rows))
	return b.String()
}

func cellText(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

// ToJSON renders r as {"columns": [...], "rows": [...]}.
func (r *Result) ToJSON() ([]byte, error) {
	return json.Marshal(struct {
		Columns []string `json:"columns"`
		Rows    []Row    `json:"rows"`
	}{Columns: r.Columns, Rows: r.Rows})
}
