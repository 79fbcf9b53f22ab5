package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
)

// CacheControl lets clients reuse responses for as long as the server
// itself would. Transcripts are personal, so shared caches are excluded.
// Handlers serving an older entry shorten it with SetMaxAge, and error
// responses override it with no-store.
func CacheControl(ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		SetMaxAge(c, ttl)
		c.Next()
	}
}

// SetMaxAge sets a private max-age of d, rounded down to whole seconds.
func SetMaxAge(c *gin.Context, d time.Duration) {
	if d < 0 {
		d = 0
	}
	c.Header("Cache-Control", fmt.Sprintf("private, max-age=%d", int(d/time.Second)))
}
