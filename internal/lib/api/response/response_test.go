package response

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Email   string `validate:"required,email"`
	Code    string `validate:"len=6,numeric"`
	Content string `validate:"min=10"`
}

func TestValidationError(t *testing.T) {
	err := validator.New().Struct(sample{Email: "nope", Code: "12345a", Content: "short"})
	require.Error(t, err)

	res := ValidationError(err.(validator.ValidationErrors))

	assert.False(t, res.Success)
	assert.Equal(t,
		"field Email is not a valid email, field Code must contain only digits, field Content must be at least 10 characters",
		res.Message,
	)
}

func TestOKAndError(t *testing.T) {
	assert.Equal(t, Response{Success: true, Message: "done"}, OK("done"))
	assert.Equal(t, Response{Success: false, Message: "boom"}, Error("boom"))
}
