package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/stemsi/una-transcript/internal/model"
)

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(out)
	return t
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderRecord prints the identity block followed by one table per semester.
func renderRecord(out io.Writer, rec *model.StudentRecord) {
	fmt.Fprintf(out, "%s  %s\n", rec.ID, rec.Name)
	fmt.Fprintf(out, "%s  %s\n\n", rec.OrientationProfile, rec.ProfileLabel)

	for _, key := range rec.Semesters.Keys() {
		sem, _ := rec.Semesters.Get(key)

		t := newTable(out)
		t.SetTitle(key)
		t.AppendHeader(table.Row{"Module", "Course", "Credit", "TP", "CC", "Exam", "Catch-up", "Final", "Decision"})
		for _, mod := range sem.Modules {
			for _, c := range mod.Courses {
				t.AppendRow(table.Row{mod.ID, c.Name, c.Credit, c.TP, c.CC, c.FinalCheck, c.Catchup, c.Final, c.Decision})
			}
			t.AppendRow(table.Row{mod.ID, "Module average", "", "", "", "", "", mod.Average, mod.Decision})
			t.AppendSeparator()
		}
		t.AppendFooter(table.Row{"", "Semester", sem.Summary.TotalCredits, "", "", "", "", sem.Summary.Average, sem.Summary.Decision})
		t.Render()
		fmt.Fprintln(out)
	}
}
