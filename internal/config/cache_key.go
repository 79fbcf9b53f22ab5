package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// TranscriptKey returns the in-memory cache key for a student's transcript.
// The raw student ID is the key; the portal prefix is never part of it.
func (r *CacheKeyStruct) TranscriptKey(studentID string) string {
	return studentID
}

// PortalQuery returns the search string typed into the portal's search box.
func (r *CacheKeyStruct) PortalQuery(prefix, studentID string) string {
	return fmt.Sprintf("%s%s", prefix, studentID)
}

var CacheKey = NewCacheKeyStruct()

type WorkerKeyStruct struct {
	PrewarmQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PrewarmQueue: "scrape:prewarm_queue",
}
