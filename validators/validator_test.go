package validators

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Content string `validate:"required,max=5"`
	Status  string `validate:"omitempty,oneof=accepted rejected"`
}

func TestValidate(t *testing.T) {
	v := NewValidator()

	require.NoError(t, v.Validate(sample{Content: "hi"}))

	err := v.Validate(sample{})
	require.Error(t, err)
	assert.Equal(t, "Content is required", Describe(err))

	err = v.Validate(sample{Content: "too long", Status: "maybe"})
	require.Error(t, err)
	assert.Contains(t, Describe(err), "Content must satisfy max=5")
	assert.Contains(t, Describe(err), "Status must be one of: accepted rejected")
}

func TestDescribe_PlainError(t *testing.T) {
	assert.Equal(t, "boom", Describe(errors.New("boom")))
}
