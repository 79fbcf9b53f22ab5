package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/una-transcript/internal/model"
	"github.com/stemsi/una-transcript/internal/response"
	"github.com/stemsi/una-transcript/internal/validator"
	"github.com/stemsi/una-transcript/internal/worker"
)

// PrewarmHandler queues students to be scraped in the background.
type PrewarmHandler struct {
	queue *worker.PrewarmQueue
	log   zerolog.Logger
}

// NewPrewarmHandler creates a PrewarmHandler. A nil queue disables the endpoint.
func NewPrewarmHandler(queue *worker.PrewarmQueue, log zerolog.Logger) *PrewarmHandler {
	return &PrewarmHandler{
		queue: queue,
		log:   log.With().Str("component", "prewarm_handler").Logger(),
	}
}

// Enqueue godoc
// POST /students/prewarm
func (h *PrewarmHandler) Enqueue(c *gin.Context) {
	if h.queue == nil {
		response.Fail(c, http.StatusServiceUnavailable, response.ErrPrewarmDisabled)
		return
	}

	var req model.PrewarmRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.queue.Enqueue(c.Request.Context(), req.IDs...); err != nil {
		h.log.Error().Err(err).Int("count", len(req.IDs)).Msg("Failed to enqueue prewarm")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{"queued": len(req.IDs)})
}
