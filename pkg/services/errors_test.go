package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError_MessageAndDetection(t *testing.T) {
	err := NewValidationError("model", "must not be empty")
	assert.True(t, IsValidationError(err))
	assert.False(t, IsBadRequest(err))
	assert.Contains(t, err.Error(), "model")
	assert.Contains(t, err.Error(), "must not be empty")
}

func TestBadRequest_MessageAndDetection(t *testing.T) {
	err := NewBadRequest("no test cases found for task %s", "t1")
	assert.True(t, IsBadRequest(err))
	assert.False(t, IsValidationError(err))
	assert.Equal(t, "no test cases found for task t1", err.Error())
}

func TestIsValidationError_FalseForUnrelatedError(t *testing.T) {
	assert.False(t, IsValidationError(fmt.Errorf("some other error")))
	assert.False(t, IsBadRequest(fmt.Errorf("some other error")))
}
