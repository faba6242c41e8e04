package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Date  string `json:"date" validate:"required,isodate"`
	Type  string `json:"type" validate:"omitempty,roomtype"`
	Tag   string `json:"tag" validate:"omitempty,doctag"`
	State string `form:"state" validate:"omitempty,apstate"`
	Slot  int    `json:"slot" validate:"min=0"`
}

func newValidate(t *testing.T) *validator.Validate {
	t.Helper()
	v := validator.New()
	require.NoError(t, Register(v))
	return v
}

func TestCustomTags(t *testing.T) {
	v := newValidate(t)

	assert.NoError(t, v.Struct(sample{Date: "2024-01-10", Type: "xray", Tag: "invoice", State: "confirmed"}))

	err := v.Struct(sample{Date: "10/01/2024", Type: "kitchen", Tag: "photo", State: "lost", Slot: -1})
	require.Error(t, err)

	fields := Describe(err)
	got := make(map[string]string, len(fields))
	for _, f := range fields {
		got[f.Field] = f.Message
	}
	assert.Equal(t, "must be a date in YYYY-MM-DD format", got["date"])
	assert.Contains(t, got["type"], "general")
	assert.Contains(t, got["tag"], "prescription")
	assert.Contains(t, got["state"], "requested")
	assert.Equal(t, "must be at least 0", got["slot"])
}

func TestDescribeIgnoresOtherErrors(t *testing.T) {
	assert.Nil(t, Describe(assert.AnError))
}
