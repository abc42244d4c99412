package saga

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/jwalitptl/filevault-api/pkg/errors"

	"github.com/jwalitptl/filevault-api/internal/handler"
	"github.com/jwalitptl/filevault-api/internal/middleware"
	sagaService "github.com/jwalitptl/filevault-api/internal/service/saga"
)

// Handler exposes read-only observability of saga instances. Workflow
// completion is never reported synchronously; callers poll here.
type Handler struct {
	orchestrator *sagaService.Orchestrator
}

func NewHandler(orchestrator *sagaService.Orchestrator) *Handler {
	return &Handler{orchestrator: orchestrator}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	sagas := r.Group("/sagas")
	{
		sagas.GET("/:id", h.GetInstance)
	}
}

func (h *Handler) GetInstance(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid saga instance id", middleware.TraceID(c)))
		return
	}

	instance, err := h.orchestrator.GetSagaInstance(c.Request.Context(), id)
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && appErr.Code == apperrors.ErrNotFound {
			c.JSON(http.StatusNotFound, handler.NewErrorResponse(appErr.Message, middleware.TraceID(c)))
			return
		}
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse("failed to load saga instance", middleware.TraceID(c)))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(instance))
}
