package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Kind string `json:"kind" validate:"required,content_kind"`
	ID   string `json:"id" validate:"required,max=5"`
	Mode string `validate:"omitempty,oneof=fast slow"`
}

func TestValidate_Valid(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(&sample{Kind: "movie", ID: "tt1"}))
	assert.NoError(t, v.Validate(&sample{Kind: "Series", ID: "tt1", Mode: "fast"}))
}

func TestValidate_Errors(t *testing.T) {
	v := New()

	err := v.Validate(&sample{Kind: "anime", ID: "toolong", Mode: "medium"})
	require.Error(t, err)

	var errs ValidationErrors
	require.ErrorAs(t, err, &errs)
	require.Len(t, errs, 3)

	assert.Equal(t, "kind", errs[0].Field)
	assert.Equal(t, "content_kind", errs[0].Tag)
	assert.Equal(t, `kind must be "movie" or "series"`, errs[0].Message)

	assert.Equal(t, "id", errs[1].Field)
	assert.Equal(t, "id must be at most 5 characters", errs[1].Message)

	assert.Equal(t, "Mode", errs[2].Field)
	assert.Equal(t, "Mode must be one of: fast slow", errs[2].Message)
}

func TestValidate_Required(t *testing.T) {
	err := New().Validate(&sample{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "kind is required")
	assert.Contains(t, err.Error(), "id is required")
}
