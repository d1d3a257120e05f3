package errs

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{BadRequest("nope"), http.StatusBadRequest},
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{ErrNotFound, http.StatusNotFound},
		{ErrInternal, http.StatusInternalServerError},
		{fmt.Errorf("anything else"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusCode(tc.err))
	}
}

func TestStatusCode_WrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("verify: %w", ErrUnauthorized)
	assert.Equal(t, http.StatusUnauthorized, StatusCode(wrapped))

	wrappedBad := fmt.Errorf("store: %w", BadRequest("bad input"))
	assert.Equal(t, http.StatusBadRequest, StatusCode(wrappedBad))
}

func TestBadRequest_Message(t *testing.T) {
	err := BadRequest("Status must be deleted")
	assert.EqualError(t, err, "Status must be deleted")
	assert.True(t, IsBadRequest(err))
	assert.False(t, IsBadRequest(ErrNotFound))
}
