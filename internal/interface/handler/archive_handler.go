package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"flightstream-service/internal/domain/repository"
	"flightstream-service/pkg/logger"
)

// ArchiveHandler serves flight events read back from the archive
type ArchiveHandler struct {
	archive repository.FlightEventRepository
	logger  logger.Logger
}

// NewArchiveHandler creates a new archive handler. A nil archive answers
// every lookup with 503.
func NewArchiveHandler(archive repository.FlightEventRepository, logger logger.Logger) *ArchiveHandler {
	return &ArchiveHandler{
		archive: archive,
		logger:  logger.With("component", "archive_handler"),
	}
}

// ByKey returns the archived event stored under the key
func (h *ArchiveHandler) ByKey(c *gin.Context) {
	if h == nil || h.archive == nil {
		RespondError(c, http.StatusServiceUnavailable, "archive_disabled", "flight archive is not configured")
		return
	}

	key := strings.TrimSpace(c.Param("key"))
	event, err := h.archive.FindByKey(c.Request.Context(), key)
	if err != nil {
		h.logger.Error("Failed to read archived flight", "key", key, "error", err)
		RespondError(c, http.StatusInternalServerError, "archive_error", "failed to read archived flight")
		return
	}
	if event == nil {
		RespondError(c, http.StatusNotFound, "not_found", "no archived flight for key "+key)
		return
	}
	RespondOK(c, event)
}
