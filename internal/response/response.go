package response

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ErrorBody is the JSON body of every failed request.
type ErrorBody struct {
	Error     string            `json:"error"`
	Code      ErrCode           `json:"code"`
	RequestID string            `json:"request_id"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// ────────────────────────────────────────────────────────────────────────────
// Helper builders
// ────────────────────────────────────────────────────────────────────────────

// Success sends data as the JSON body, without an envelope. Transcripts are
// returned exactly as assembled.
func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}

// Fail sends an error response with an error code and no field-level details.
func Fail(c *gin.Context, statusCode int, code ErrCode) {
	c.JSON(statusCode, buildError(c, code, nil))
}

// FailWithFields sends an error response with field-level validation details.
func FailWithFields(c *gin.Context, statusCode int, code ErrCode, fields map[string]string) {
	c.JSON(statusCode, buildError(c, code, fields))
}

// AbortFail aborts the middleware chain and sends an error response.
func AbortFail(c *gin.Context, statusCode int, code ErrCode) {
	c.AbortWithStatusJSON(statusCode, buildError(c, code, nil))
}

// ────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ────────────────────────────────────────────────────────────────────────────

func buildError(c *gin.Context, code ErrCode, fields map[string]string) ErrorBody {
	c.Header("Cache-Control", "no-store")
	return ErrorBody{
		Error:     GetMessage(code),
		Code:      code,
		RequestID: RequestID(c),
		Fields:    fields,
	}
}

// RequestID returns the ID assigned by RequestIDMiddleware.
func RequestID(c *gin.Context) string {
	reqID, _ := c.Get(ContextKeyRequestID)
	id, ok := reqID.(string)
	if !ok || id == "" {
		id = uuid.New().String() // Fallback if middleware not applied
	}
	return id
}
