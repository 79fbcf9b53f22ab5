package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Validation ────────────────────────────────────────────────────
	ErrInvalidStudentID ErrCode = "INVALID_STUDENT_ID"
	ErrValidation       ErrCode = "VALIDATION_ERROR"
	ErrInvalidPayload   ErrCode = "INVALID_PAYLOAD"

	// ─── Transcripts ───────────────────────────────────────────────────
	ErrStudentNotFound ErrCode = "STUDENT_NOT_FOUND"
	ErrTranscriptEmpty ErrCode = "TRANSCRIPT_EMPTY"
	ErrScrapeTimeout   ErrCode = "SCRAPE_TIMEOUT"

	// ─── Features ──────────────────────────────────────────────────────
	ErrPrewarmDisabled ErrCode = "PREWARM_DISABLED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Validation ────────────────────────────────────────────────────
	case ErrInvalidStudentID:
		return "Invalid student ID. Please provide a valid numeric ID."
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Transcripts ───────────────────────────────────────────────────
	case ErrStudentNotFound:
		return "Student not found."
	case ErrTranscriptEmpty:
		return "No semester data found for this student."
	case ErrScrapeTimeout:
		return "The results portal did not respond in time."

	// ─── Features ──────────────────────────────────────────────────────
	case ErrPrewarmDisabled:
		return "Prewarming requires a Redis connection."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
