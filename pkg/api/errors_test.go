package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/traceforge/tracepilot/pkg/services"
)

func respondErrorRec(err error) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	respondError(c, err)
	return rec
}

func TestRespondError_ValidationErrorIs422(t *testing.T) {
	rec := respondErrorRec(services.NewValidationError("name", "is required"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRespondError_BadRequestIs400(t *testing.T) {
	rec := respondErrorRec(services.NewBadRequest("no test cases found for task %s", "task-1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRespondError_NotFoundIs404(t *testing.T) {
	rec := respondErrorRec(services.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRespondError_AlreadyExistsIs400(t *testing.T) {
	rec := respondErrorRec(services.ErrAlreadyExists)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRespondError_UnknownErrorIs500(t *testing.T) {
	rec := respondErrorRec(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
