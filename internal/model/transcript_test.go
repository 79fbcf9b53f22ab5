package model

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

func TestSemesterSetKeepsInsertionOrder(t *testing.T) {
	var set SemesterSet
	set.Put("S3", SemesterRecord{Summary: SemesterSummary{Average: "11"}})
	set.Put("S1", SemesterRecord{Summary: SemesterSummary{Average: "12"}})
	set.Put("S3", SemesterRecord{Summary: SemesterSummary{Average: "13"}})

	require.Equal(t, []string{"S3", "S1"}, set.Keys())

	got, ok := set.Get("S3")
	require.True(t, ok)
	require.Equal(t, "13", got.Summary.Average)

	data, err := json.Marshal(set)
	require.NoError(t, err)
	require.Equal(t,
		`{"S3":{"summary":{"average":"13","totalCredits":"","decision":""},"modules":null},`+
			`"S1":{"summary":{"average":"12","totalCredits":"","decision":""},"modules":null}}`,
		string(data))
}

func TestSemesterSetEmptyMarshalsAsObject(t *testing.T) {
	data, err := json.Marshal(StudentRecord{ID: "C1"})
	require.NoError(t, err)
	require.Contains(t, string(data), `"semesters":{}`)
}

func TestStudentRecordJSONRoundTrip(t *testing.T) {
	var semesters SemesterSet
	semesters.Put("20231", SemesterRecord{
		Summary: SemesterSummary{Average: "12,40", TotalCredits: "30", Decision: "Validé"},
		Modules: []ModuleRecord{{
			ID:       "M101",
			Average:  "12,40",
			Decision: "V",
			Courses: []CourseRecord{
				{Name: "Analyse 1", Credit: 3, Final: 12, Decision: "V"},
			},
		}},
	})
	semesters.Put("20232", SemesterRecord{Modules: []ModuleRecord{{ID: "M201", Courses: []CourseRecord{}}}})

	original := NewStudentRecord(StudentProfile{ID: "C12345", Name: "Ahmed"}, semesters)

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded StudentRecord
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, []string{"20231", "20232"}, decoded.Semesters.Keys())

	diff := cmp.Diff(*original, decoded, cmp.AllowUnexported(SemesterSet{}), cmpopts.EquateEmpty())
	require.Empty(t, diff)
}

func TestSemesterSetRejectsNonObject(t *testing.T) {
	var set SemesterSet
	require.Error(t, json.Unmarshal([]byte(`["S1"]`), &set))
}

func TestCourseRecordValid(t *testing.T) {
	require.True(t, CourseRecord{Name: "Algèbre", Decision: "V"}.Valid())
	require.False(t, CourseRecord{Name: "Algèbre"}.Valid())
	require.False(t, CourseRecord{Decision: "V"}.Valid())
}
