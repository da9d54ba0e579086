package constraint

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFieldName(t *testing.T) {
	for _, name := range []string{"email", "user_name", "firstName", "_private", "a__b", "émoji✓"} {
		assert.NoError(t, ValidateFieldName(name, 0), name)
	}
}

func TestValidateFieldNameReserved(t *testing.T) {
	for _, name := range []string{"__name__", "__private__", "____"} {
		err := ValidateFieldName(name, 3)
		require.Error(t, err, name)
		assert.ErrorIs(t, err, ErrConstraint)
		assert.Contains(t, err.Error(), "__name__ pattern")
	}
}

func TestValidateFieldNameEmpty(t *testing.T) {
	err := ValidateFieldName("", 0)
	require.ErrorIs(t, err, ErrConstraint)
	assert.Contains(t, err.Error(), "cannot be empty")
}

func TestValidateFieldNameWhitespace(t *testing.T) {
	for _, name := range []string{" name", "name ", "\tname\n"} {
		err := ValidateFieldName(name, 0)
		require.ErrorIs(t, err, ErrConstraint, name)
		assert.Contains(t, err.Error(), "whitespace")
	}
}

func TestValidateFieldNameTooLong(t *testing.T) {
	assert.NoError(t, ValidateFieldName(strings.Repeat("a", MaxFieldNameBytes), 0))

	err := ValidateFieldName(strings.Repeat("a", MaxFieldNameBytes+1), 0)
	require.ErrorIs(t, err, ErrConstraint)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestValidateDepth(t *testing.T) {
	assert.NoError(t, ValidateDepth(0, "data"))
	assert.NoError(t, ValidateDepth(10, "data"))
	assert.NoError(t, ValidateDepth(MaxNestingDepth-1, "data"))

	err := ValidateDepth(MaxNestingDepth, "data")
	require.ErrorIs(t, err, ErrConstraint)

	var cerr *Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, MaxNestingDepth, cerr.Depth)
	assert.Equal(t, "data", cerr.Path)

	assert.ErrorIs(t, ValidateDepth(MaxNestingDepth+5, ""), ErrConstraint)
}
