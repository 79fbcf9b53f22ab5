package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// StudentProfile is the identity block printed above the results table.
type StudentProfile struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	OrientationProfile string `json:"orientationProfile"`
	ProfileLabel       string `json:"profileLabel"`
}

// CourseRecord is one course ("matière") row inside a module.
type CourseRecord struct {
	Name       string  `json:"name"`
	Credit     float64 `json:"credit"`
	TP         float64 `json:"tp"`
	CC         float64 `json:"cc"`
	FinalCheck float64 `json:"finalCheck"`
	Catchup    float64 `json:"catchup"`
	Final      float64 `json:"final"`
	Decision   string  `json:"decision"`
}

// Valid reports whether the row carries enough data to be kept.
func (c CourseRecord) Valid() bool {
	return c.Name != "" && c.Decision != ""
}

// ModuleRecord groups courses under a module footer.
type ModuleRecord struct {
	ID       string         `json:"id"`
	Average  string         `json:"average"`
	Decision string         `json:"decision"`
	Courses  []CourseRecord `json:"courses"`
}

// SemesterSummary is the results table footer.
type SemesterSummary struct {
	Average      string `json:"average"`
	TotalCredits string `json:"totalCredits"`
	Decision     string `json:"decision"`
}

// SemesterRecord is everything rendered for one selector option.
type SemesterRecord struct {
	Summary SemesterSummary `json:"summary"`
	Modules []ModuleRecord  `json:"modules"`
}

// StudentRecord is the aggregated transcript returned to callers.
// It is never mutated once stored in the cache.
type StudentRecord struct {
	ID                 string      `json:"id"`
	Name               string      `json:"name"`
	OrientationProfile string      `json:"orientationProfile"`
	ProfileLabel       string      `json:"profileLabel"`
	Semesters          SemesterSet `json:"semesters"`
}

// NewStudentRecord assembles a record from a resolved profile.
func NewStudentRecord(p StudentProfile, semesters SemesterSet) *StudentRecord {
	return &StudentRecord{
		ID:                 p.ID,
		Name:               p.Name,
		OrientationProfile: p.OrientationProfile,
		ProfileLabel:       p.ProfileLabel,
		Semesters:          semesters,
	}
}

// SemesterSet is a string-keyed mapping that remembers insertion order.
// It serializes as a JSON object whose keys follow the selector option order.
type SemesterSet struct {
	keys  []string
	items map[string]SemesterRecord
}

// Put inserts or replaces a semester. Replacing keeps the original position.
func (s *SemesterSet) Put(key string, rec SemesterRecord) {
	if s.items == nil {
		s.items = make(map[string]SemesterRecord)
	}
	if _, exists := s.items[key]; !exists {
		s.keys = append(s.keys, key)
	}
	s.items[key] = rec
}

// Get returns the semester stored under key.
func (s SemesterSet) Get(key string) (SemesterRecord, bool) {
	rec, ok := s.items[key]
	return rec, ok
}

// Keys returns semester keys in insertion order.
func (s SemesterSet) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Len returns the number of semesters.
func (s SemesterSet) Len() int {
	return len(s.keys)
}

// MarshalJSON writes the semesters as an ordered JSON object.
func (s SemesterSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range s.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(s.items[key])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, preserving its key order.
func (s *SemesterSet) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*s = SemesterSet{}
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("semesters: expected object, got %v", tok)
	}

	out := SemesterSet{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("semesters: expected key, got %v", tok)
		}
		var rec SemesterRecord
		if err := dec.Decode(&rec); err != nil {
			return fmt.Errorf("semesters[%s]: %w", key, err)
		}
		out.Put(key, rec)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*s = out
	return nil
}
