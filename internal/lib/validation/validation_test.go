package validation

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signup struct {
	Username string `json:"username" validate:"required,min=2,max=20,username"`
	Email    string `json:"email" validate:"required,email"`
}

func TestNew_UsesJSONNames(t *testing.T) {
	err := New().Struct(signup{Username: "a b", Email: "x@y.z"})
	require.Error(t, err)

	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	require.Len(t, verrs, 1)
	assert.Equal(t, "username", verrs[0].Field())
	assert.Equal(t, "username", verrs[0].ActualTag())
}

func TestNew_Username(t *testing.T) {
	v := New()

	assert.NoError(t, v.Struct(signup{Username: "alice_01", Email: "a@x.com"}))
	assert.Error(t, v.Struct(signup{Username: "al!ce", Email: "a@x.com"}))
	assert.Error(t, v.Struct(signup{Username: "a", Email: "a@x.com"}))
}
