package dtos

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name string `validate:"required"`
	Note string `validate:"max=3"`
}

func TestValidationDetails(t *testing.T) {
	err := validator.New().Struct(sample{Note: "toolong"})
	details := ValidationDetails(err)
	require.Len(t, details, 2)

	assert.Equal(t, "Name", details[0].Field)
	assert.Equal(t, "validation_required", details[0].Code)
	assert.Equal(t, "validation_max", details[1].Code)
	assert.Contains(t, details[1].Message, "must not exceed 3")
}

func TestValidationDetails_OtherError(t *testing.T) {
	assert.Nil(t, ValidationDetails(errors.New("boom")))
	assert.Nil(t, ValidationDetails(nil))
}
