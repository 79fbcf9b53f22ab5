package extractor

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/stemsi/una-transcript/internal/model"
	"github.com/stemsi/una-transcript/internal/normalize"
)

// Report lists what the markup did not contain while a semester was extracted.
// A non-empty report means the record was built from partial data.
type Report struct {
	Missing        []string
	SkippedCourses int
	SkippedModules int
}

// Degraded reports whether any field fell back to its default.
func (r *Report) Degraded() bool {
	return len(r.Missing) > 0 || r.SkippedModules > 0
}

func (r *Report) require(f normalize.Field, name string) normalize.Field {
	if !f.IsFound() {
		r.Missing = append(r.Missing, name)
	}
	return f
}

// ExtractSemester reads the currently rendered results table.
func ExtractSemester(doc *goquery.Document) (model.SemesterRecord, Report) {
	var rep Report

	rec := model.SemesterRecord{
		Summary: extractSummary(doc, &rep),
		Modules: make([]model.ModuleRecord, 0),
	}

	doc.Find(ModulesBody).First().ChildrenFiltered("tr").Each(func(i int, row *goquery.Selection) {
		mod, ok := extractModule(row, i, &rep)
		if !ok {
			rep.SkippedModules++
			return
		}
		rec.Modules = append(rec.Modules, mod)
	})

	return rec, rep
}

// ExtractSemesterHTML is ExtractSemester over raw markup.
func ExtractSemesterHTML(html string) (model.SemesterRecord, Report, error) {
	doc, err := Parse(html)
	if err != nil {
		return model.SemesterRecord{}, Report{}, err
	}
	rec, rep := ExtractSemester(doc)
	return rec, rep, nil
}

// extractSummary reads the outer table footer: average, total credits, decision.
// Module footers live inside ModulesBody and are excluded.
func extractSummary(doc *goquery.Document, rep *Report) model.SemesterSummary {
	footer := doc.Find("tfoot").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Closest(ModulesBody).Length() == 0
	}).First()

	if footer.Length() == 0 {
		rep.Missing = append(rep.Missing, "summary")
		return model.SemesterSummary{}
	}

	cells := spanTexts(footer)
	return model.SemesterSummary{
		Average:      rep.require(normalize.At(cells, 0), "summary.average").Text(),
		TotalCredits: rep.require(normalize.At(cells, 1), "summary.totalCredits").Text(),
		Decision:     rep.require(normalize.At(cells, 2), "summary.decision").Text(),
	}
}

func extractModule(row *goquery.Selection, index int, rep *Report) (model.ModuleRecord, bool) {
	prefix := fmt.Sprintf("module[%d]", index)
	mod := model.ModuleRecord{Courses: make([]model.CourseRecord, 0)}

	footer := row.Find("tfoot").First()
	hasFooter := footer.Length() > 0
	if hasFooter {
		cells := spanTexts(footer)
		mod.Average = rep.require(normalize.At(cells, 1), prefix+".average").Text()
		mod.Decision = rep.require(normalize.At(cells, 2), prefix+".decision").Text()
	} else {
		rep.Missing = append(rep.Missing, prefix+".footer")
	}
	mod.ID = moduleID(row, footer)
	if mod.ID == "" {
		rep.Missing = append(rep.Missing, prefix+".id")
	}

	row.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		course := extractCourse(spanTexts(tr))
		if !course.Valid() {
			rep.SkippedCourses++
			return
		}
		mod.Courses = append(mod.Courses, course)
	})

	if !hasFooter && len(mod.Courses) == 0 {
		return mod, false
	}
	return mod, true
}

// moduleID reads the module label from the footer and falls back to the first
// label anywhere in the module's nested table. Both layouts have been served
// by the portal.
func moduleID(row, footer *goquery.Selection) string {
	label := footer.Find(labelSpan).First()
	if label.Length() == 0 {
		label = row.Find("table " + labelSpan).First()
	}
	if label.Length() == 0 {
		return ""
	}
	text := strings.Replace(label.Text(), moduleLabel, "", 1)
	return strings.TrimSpace(text)
}

func extractCourse(cells []string) model.CourseRecord {
	return model.CourseRecord{
		Name:       normalize.At(cells, 0).Text(),
		Credit:     normalize.At(cells, 1).Score(),
		TP:         normalize.At(cells, 2).Score(),
		CC:         normalize.At(cells, 3).Score(),
		FinalCheck: normalize.At(cells, 4).Score(),
		Catchup:    normalize.At(cells, 5).Score(),
		Final:      normalize.At(cells, 6).Score(),
		Decision:   normalize.At(cells, 7).Text(),
	}
}
