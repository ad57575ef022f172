package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name" validate:"required"`
	Size  int    `json:"size" validate:"gte=8,lte=96"`
	Link  string `json:"link,omitempty" validate:"omitempty,url"`
	Owner string `validate:"omitempty,uuid"`
}

func TestValidate_OK(t *testing.T) {
	v := New()
	assert.NoError(t, v.Validate(sample{Name: "a", Size: 25, Link: "http://x.example", Owner: "6ba7b810-9dad-11d1-80b4-00c04fd430c8"}))
}

func TestValidate_FieldErrors(t *testing.T) {
	v := New()
	err := v.Validate(sample{Size: 200, Link: "not a url", Owner: "nope"})
	require.Error(t, err)

	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "is required", verr.Fields["name"])
	assert.Equal(t, "must be less than or equal to 96", verr.Fields["size"])
	assert.Equal(t, "must be a valid URL", verr.Fields["link"])
	assert.Equal(t, "must be a valid UUID", verr.Fields["Owner"])
	assert.Contains(t, err.Error(), "validation failed: ")
}

func TestVar(t *testing.T) {
	v := New()
	assert.NoError(t, v.Var("https://sync.example.com", "url"))
	assert.Error(t, v.Var("::", "url"))
}
