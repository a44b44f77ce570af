package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ploke-dev/rele/internal/releerr"
)

func TestMapError_NilReturnsNil(t *testing.T) {
	require.Nil(t, MapError(nil))
}

func TestMapError_ReleErrorMapsByCategory(t *testing.T) {
	err := releerr.DomainError(releerr.CodeProposalNotFound, "no such proposal", nil)
	mapped := MapError(err)
	require.Equal(t, ErrCodeDomain, mapped.Code)
	require.Contains(t, mapped.Message, "no such proposal")
}

func TestMapError_UnknownErrorMapsToInternal(t *testing.T) {
	mapped := MapError(assert.AnError)
	require.Equal(t, ErrCodeInternalError, mapped.Code)
}

func TestNewInvalidParamsError(t *testing.T) {
	err := NewInvalidParamsError("bad input")
	require.Equal(t, ErrCodeInvalidParams, err.Code)
	require.Equal(t, "bad input", err.Message)
}

func TestNewMethodNotFoundError(t *testing.T) {
	err := NewMethodNotFoundError("unknown_tool")
	require.Equal(t, ErrCodeMethodNotFound, err.Code)
	require.Contains(t, err.Message, "unknown_tool")
}
