package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coffee-backend/internal/apperr"
	"coffee-backend/internal/models"
)

func TestStructReportsJSONFieldNames(t *testing.T) {
	err := Struct(models.UpsertEmployeeInput{Name: "Dana", Email: "not-an-email", Role: "owner"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	e, ok := apperr.As(err)
	require.True(t, ok)
	fields, ok := e.Details["fields"].(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "Invalid email format", fields["email"])
	assert.Equal(t, "Must be one of: employee finance admin", fields["role"])
	assert.NotContains(t, fields, "name")
}

func TestStructAcceptsValidInput(t *testing.T) {
	assert.NoError(t, Struct(models.UpsertEmployeeInput{Name: "Dana", Email: "dana@example.com", Role: "finance"}))
}
