package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesSentinelCopies(t *testing.T) {
	err := ErrNotFound.WithMessage("Reporte no encontrado.").WithDetail("id", 7)

	assert.True(t, stderrors.Is(err, ErrNotFound))
	assert.False(t, stderrors.Is(err, ErrValidation))
	assert.True(t, IsNotFound(fmt.Errorf("lookup: %w", err)))
}

func TestWithDetailDoesNotMutateSentinel(t *testing.T) {
	_ = ErrValidation.WithDetail("field", "producto")
	assert.Empty(t, ErrValidation.Details)
}

func TestRetryClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"validation is fatal", ErrValidation, false},
		{"conflict is fatal", ErrConflict, false},
		{"internal is retryable", ErrInternal, true},
		{"explicit fatal", ErrServiceUnavailable.AsFatal(), false},
		{"explicit retryable", ErrValidation.AsRetryable(), true},
		{"plain error defaults to retryable", stderrors.New("boom"), true},
		{"wrapped fatal", fmt.Errorf("store: %w", ErrInternal.AsFatal()), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

func TestToErrorResponse(t *testing.T) {
	resp := ToErrorResponse(ErrValidation.WithMessage("Estado no válido."))
	assert.Equal(t, "Estado no válido.", resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.ErrorCode)
	assert.Nil(t, resp.Details)

	resp = ToErrorResponse(stderrors.New("unexpected"))
	assert.Equal(t, "INTERNAL_ERROR", resp.ErrorCode)

	assert.Equal(t, http.StatusBadRequest, ToHTTPStatus(ErrValidation))
	assert.Equal(t, http.StatusInternalServerError, ToHTTPStatus(stderrors.New("x")))
}

func TestRecoverPanic(t *testing.T) {
	assert.Nil(t, RecoverPanic(nil))

	err := RecoverPanic("kaboom")
	var appErr *Error
	assert.True(t, stderrors.As(err, &appErr))
	assert.True(t, appErr.IsFatal())
	assert.Equal(t, true, appErr.Details["panic"])
}
