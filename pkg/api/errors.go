package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/traceforge/tracepilot/ent"
	"github.com/traceforge/tracepilot/pkg/services"
)

// respondError maps a service-layer error to an HTTP status and JSON body,
// following the Kind table in spec.md §7.
func respondError(c *gin.Context, err error) {
	var validErr *services.ValidationError
	if errors.As(err, &validErr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": validErr.Error()})
		return
	}

	var badReq *services.BadRequest
	if errors.As(err, &badReq) {
		c.JSON(http.StatusBadRequest, gin.H{"error": badReq.Error()})
		return
	}

	if errors.Is(err, services.ErrNotFound) || ent.IsNotFound(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
		return
	}
	if errors.Is(err, services.ErrAlreadyExists) || ent.IsConstraintError(err) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "resource already exists"})
		return
	}

	slog.Error("unhandled api error", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
