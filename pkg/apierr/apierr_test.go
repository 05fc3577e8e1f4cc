package apierr

import (
	"net/http"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataFor(t *testing.T) {
	tests := []struct {
		code   Code
		status int
	}{
		{CodeValidation, http.StatusBadRequest},
		{CodeNotFound, http.StatusNotFound},
		{CodeInsufficientStock, http.StatusConflict},
		{CodeStaleAvailability, http.StatusConflict},
		{CodeIllegalState, http.StatusConflict},
		{CodePaymentFailed, http.StatusUnprocessableEntity},
		{CodeDependency, http.StatusServiceUnavailable},
		{Code("SOMETHING_ELSE"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.status, MetadataFor(tt.code).HTTPStatus)
		})
	}
}

func TestAs(t *testing.T) {
	cause := errors.New("boom")
	wrapped := errors.Wrap(Wrap(CodeDependency, cause, "gateway down"), "create order")

	got := As(wrapped)
	require.NotNil(t, got)
	assert.Equal(t, CodeDependency, got.Code())
	assert.Equal(t, "gateway down", got.Message())
	assert.ErrorIs(t, wrapped, cause)

	assert.Nil(t, As(cause))
}

func TestWithDetails(t *testing.T) {
	err := New(CodeValidation, "bad body").WithDetails(map[string]string{"quantity": "is required"})
	assert.Equal(t, map[string]string{"quantity": "is required"}, err.Details())
	assert.Equal(t, "VALIDATION_ERROR: bad body", err.Error())
}
