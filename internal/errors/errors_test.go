package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocError_ErrorFormat(t *testing.T) {
	err := BadIndexFormat("invalid cache format")
	assert.Equal(t, "[ERR_201_BAD_INDEX_FORMAT] invalid cache format", err.Error())
}

func TestDocError_UnwrapChainsCause(t *testing.T) {
	cause := fmt.Errorf("underlying failure")
	err := RemoteFetchFailed("https://example.com/u/r.git", cause)

	assert.ErrorIs(t, err, cause)
}

func TestDocError_IsMatchesByCode(t *testing.T) {
	err := SessionNotFound("abc")
	target := New(ErrCodeSessionNotFound, "other message", nil)

	assert.True(t, stderrors.Is(err, target))
	assert.False(t, stderrors.Is(err, EmptySources()))
}

func TestCategoryDerivedFromCode(t *testing.T) {
	assert.Equal(t, CategoryConfig, EmptySources().Category)
	assert.Equal(t, CategoryIO, BadIndexFormat("x").Category)
	assert.Equal(t, CategoryNetwork, LLMError("x", nil).Category)
	assert.Equal(t, CategoryValidation, ParseError("a.py", nil).Category)
}

func TestSeverity_RetrievalFatalLLMDowngraded(t *testing.T) {
	assert.True(t, IsFatal(EmptySources()))
	assert.True(t, IsFatal(VersionMismatch(1, 2)))
	assert.True(t, IsFatal(RemoteFetchFailed("x", nil)))
	assert.False(t, IsFatal(LLMError("x", nil)))
	assert.False(t, IsFatal(ParseError("a.py", nil)))
}

func TestGetCode(t *testing.T) {
	require.Equal(t, ErrCodePathMissing, GetCode(PathMissing("sub")))
	assert.Empty(t, GetCode(fmt.Errorf("plain")))
	assert.Empty(t, GetCode(nil))
}

func TestWithDetail(t *testing.T) {
	err := ParseError("a.py", nil).WithDetail("line", "12")
	assert.Equal(t, "12", err.Details["line"])
}
