package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/una-transcript/internal/cache"
	"github.com/stemsi/una-transcript/internal/config"
	"github.com/stemsi/una-transcript/internal/model"
	"github.com/stemsi/una-transcript/internal/scraper"
	"github.com/stemsi/una-transcript/internal/service"
	"github.com/stretchr/testify/require"
)

func sampleRecord() *model.StudentRecord {
	var semesters model.SemesterSet
	semesters.Put("S1", model.SemesterRecord{
		Summary: model.SemesterSummary{Average: "13,75", TotalCredits: "30", Decision: "Validé"},
		Modules: []model.ModuleRecord{{
			ID: "MI101", Average: "13,75", Decision: "V",
			Courses: []model.CourseRecord{{Name: "Analyse 1", Credit: 3, Final: 12, Decision: "V"}},
		}},
	})
	semesters.Put("S2", model.SemesterRecord{Modules: []model.ModuleRecord{{ID: "MI201"}}})
	return model.NewStudentRecord(model.StudentProfile{ID: "C12345", Name: "Ahmed Salem Cheikh"}, semesters)
}

func TestRenderRecord(t *testing.T) {
	var buf bytes.Buffer
	renderRecord(&buf, sampleRecord())
	out := buf.String()

	require.Contains(t, out, "C12345  Ahmed Salem Cheikh")
	require.Contains(t, out, "Analyse 1")
	require.Contains(t, out, "MI201")
	require.Less(t, strings.Index(out, "S1"), strings.Index(out, "S2"))
}

func TestWriteJSONKeepsSemesterOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, sampleRecord()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, "C12345", decoded["id"])
	require.Less(t, strings.Index(buf.String(), `"S1"`), strings.Index(buf.String(), `"S2"`))
}

type unknownStudents struct{}

func (unknownStudents) Scrape(ctx context.Context, id string) (*model.StudentRecord, error) {
	if id == "12345" {
		return sampleRecord(), nil
	}
	return nil, fmt.Errorf("C%s: %w", id, scraper.ErrStudentNotFound)
}

func TestRenderBatchJSONReportsFailures(t *testing.T) {
	results := []service.BatchResult{
		{ID: "12345", Record: sampleRecord()},
		{ID: "99999", Err: fmt.Errorf("C99999: %w", scraper.ErrStudentNotFound)},
	}

	var buf bytes.Buffer
	err := renderBatch(&buf, results, true)
	require.EqualError(t, err, "1 of 2 students failed")

	var entries []batchEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entries))
	require.Len(t, entries, 2)
	require.Equal(t, "12345", entries[0].ID)
	require.NotNil(t, entries[0].Record)
	require.Empty(t, entries[0].Error)
	require.Equal(t, "99999", entries[1].ID)
	require.Nil(t, entries[1].Record)
	require.Equal(t, "C99999: student not found", entries[1].Error)
}

func TestRenderBatchTableReportsFailures(t *testing.T) {
	results := []service.BatchResult{
		{ID: "99999", Err: fmt.Errorf("C99999: %w", scraper.ErrStudentNotFound)},
	}

	var buf bytes.Buffer
	err := renderBatch(&buf, results, false)
	require.EqualError(t, err, "1 of 1 students failed")
	require.Contains(t, buf.String(), "student not found")
}

func TestBatchCommandFailsWhenEveryStudentFails(t *testing.T) {
	cfg = &config.Config{MaxTabs: 2}
	transcripts = service.NewTranscriptService(unknownStudents{}, cache.New(time.Hour, 0), zerolog.Nop())
	asJSON = true
	t.Cleanup(func() {
		cfg, transcripts, asJSON = nil, nil, false
	})

	var buf bytes.Buffer
	batchCmd.SetOut(&buf)
	batchCmd.SetContext(context.Background())
	t.Cleanup(func() { batchCmd.SetOut(nil) })

	err := batchCmd.RunE(batchCmd, []string{"99999", "88888"})
	require.EqualError(t, err, "2 of 2 students failed")
	require.NotContains(t, buf.String(), "null")
	require.Contains(t, buf.String(), `"error": "C99999: student not found"`)
	require.Contains(t, buf.String(), `"error": "C88888: student not found"`)
}
