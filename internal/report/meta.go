package report

import (
	"sort"

	"reports/internal/table"
)

// metaColumns is the header of the meta artifact.
var metaColumns = table.NewColumns(
	table.Column{Key: "column", Name: "column"},
	table.Column{Key: "var_name", Name: "question.var_name"},
	table.Column{Key: "choice_val", Name: "choice.val"},
	table.Column{Key: "choice_id", Name: "choice.id"},
	table.Column{Key: "choice_name", Name: "choice.name"},
)

// metaTable dedupes meta rows by column name, last writer wins, and orders
// them by column name.
func metaTable(meta []MetaRow) []table.Row {
	byColumn := make(map[string]MetaRow, len(meta))
	for _, m := range meta {
		byColumn[m.Column] = m
	}
	names := make([]string, 0, len(byColumn))
	for name := range byColumn {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]table.Row, len(names))
	for i, name := range names {
		m := byColumn[name]
		rows[i] = table.Row{
			"column":      m.Column,
			"var_name":    m.VarName,
			"choice_val":  m.ChoiceValue,
			"choice_id":   m.ChoiceID,
			"choice_name": m.ChoiceName,
		}
	}
	return rows
}
