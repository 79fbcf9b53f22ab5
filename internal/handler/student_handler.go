package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/una-transcript/internal/middleware"
	"github.com/stemsi/una-transcript/internal/model"
	"github.com/stemsi/una-transcript/internal/response"
	"github.com/stemsi/una-transcript/internal/scraper"
	"github.com/stemsi/una-transcript/internal/service"
	"github.com/stemsi/una-transcript/internal/validator"
)

// StudentHandler serves transcripts.
type StudentHandler struct {
	transcripts *service.TranscriptService
	log         zerolog.Logger
}

// NewStudentHandler creates a new StudentHandler.
func NewStudentHandler(transcripts *service.TranscriptService, log zerolog.Logger) *StudentHandler {
	return &StudentHandler{
		transcripts: transcripts,
		log:         log.With().Str("component", "student_handler").Logger(),
	}
}

// GetStudent godoc
// GET /student/:id
// Returns the student's transcript, scraping the portal on a cache miss.
// ?refresh=true forces a new scrape and replaces the cached entry.
func (h *StudentHandler) GetStudent(c *gin.Context) {
	var uri model.StudentURI
	if fields := validator.BindURI(c, &uri); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrInvalidStudentID, fields)
		return
	}

	refresh, _ := strconv.ParseBool(c.Query("refresh"))

	var (
		rec *model.StudentRecord
		hit bool
		err error
	)
	if refresh {
		rec, err = h.transcripts.Refresh(c.Request.Context(), uri.ID)
	} else {
		rec, hit, err = h.transcripts.GetTranscript(c.Request.Context(), uri.ID)
	}
	if err != nil {
		h.fail(c, uri.ID, err)
		return
	}

	if hit {
		c.Header("X-Cache", "HIT")
		// Clients must not keep the entry past the server's own expiry.
		if exp, ok := h.transcripts.ExpiresAt(uri.ID); ok {
			middleware.SetMaxAge(c, time.Until(exp))
		} else {
			middleware.SetMaxAge(c, 0)
		}
	} else {
		c.Header("X-Cache", "MISS")
	}
	response.Success(c, http.StatusOK, rec)
}

// EvictStudent godoc
// DELETE /student/:id/cache
func (h *StudentHandler) EvictStudent(c *gin.Context) {
	var uri model.StudentURI
	if fields := validator.BindURI(c, &uri); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrInvalidStudentID, fields)
		return
	}

	existed, err := h.transcripts.Evict(uri.ID)
	if err != nil {
		h.fail(c, uri.ID, err)
		return
	}

	h.log.Info().Str("student_id", uri.ID).Bool("existed", existed).Msg("Transcript evicted")
	c.Status(http.StatusNoContent)
}

// GetCacheStats godoc
// GET /cache-stats
func (h *StudentHandler) GetCacheStats(c *gin.Context) {
	response.Success(c, http.StatusOK, h.transcripts.CacheStats())
}

// fail maps a transcript error onto its HTTP status and error code.
func (h *StudentHandler) fail(c *gin.Context, id string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidStudentID):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidStudentID)
	case errors.Is(err, scraper.ErrStudentNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrStudentNotFound)
	case errors.Is(err, scraper.ErrEmptyTranscript):
		response.Fail(c, http.StatusBadGateway, response.ErrTranscriptEmpty)
	case errors.Is(err, scraper.ErrTimeout):
		h.log.Warn().Err(err).Str("student_id", id).Msg("Scrape timed out")
		response.Fail(c, http.StatusGatewayTimeout, response.ErrScrapeTimeout)
	default:
		h.log.Error().Err(err).Str("student_id", id).Msg("Failed to get transcript")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
