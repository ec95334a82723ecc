package errors

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppErrorIncludesInternalDetail(t *testing.T) {
	cause := stderrors.New("disk full")
	err := ErrStorage.WithInternal(cause)

	require.Contains(t, err.Error(), "disk full")
	require.ErrorIs(t, err, cause)
}

func TestWithInternalDoesNotMutateSentinel(t *testing.T) {
	cause := stderrors.New("socket closed")
	wrapped := ErrUpstreamUnavailable.WithInternal(cause)

	require.Nil(t, ErrUpstreamUnavailable.Internal)
	require.Equal(t, cause, wrapped.Internal)
	require.Equal(t, ErrUpstreamUnavailable.Code, wrapped.Code)
}

func TestFromErrorPreservesAppErrors(t *testing.T) {
	require.Equal(t, ErrUnknownSyncTag, FromError(ErrUnknownSyncTag))

	generic := FromError(stderrors.New("boom"))
	require.Equal(t, ErrInternalServer.Code, generic.Code)
	require.Equal(t, http.StatusInternalServerError, generic.StatusCode)
}

func TestFromErrorNil(t *testing.T) {
	require.Nil(t, FromError(nil))
}

func TestNewBadRequest(t *testing.T) {
	err := NewBadRequest("'query' is required as a string")
	require.Equal(t, http.StatusBadRequest, err.StatusCode)
	require.Equal(t, "'query' is required as a string", err.Message)
}
