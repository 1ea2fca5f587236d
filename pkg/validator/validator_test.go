package validator

import (
	"encoding/json"
	"testing"

	playground "github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type slotInput struct {
	Date  string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Start string `json:"start_time" validate:"omitempty,clock"`
	Role  string `json:"role" validate:"omitempty,oneof=customer provider"`
}

func newValidate(t *testing.T) *playground.Validate {
	v := playground.New()
	require.NoError(t, RegisterOn(v))
	return v
}

func TestClockTag(t *testing.T) {
	v := newValidate(t)

	assert.NoError(t, v.Struct(slotInput{Start: "09:30"}))
	assert.NoError(t, v.Struct(slotInput{Start: "09:30:15"}))
	assert.NoError(t, v.Struct(slotInput{}))

	err := v.Struct(slotInput{Start: "25:00"})
	require.Error(t, err)
	assert.Equal(t, "start_time must be in HH:MM format", Describe(err))
}

func TestDescribe(t *testing.T) {
	v := newValidate(t)

	assert.Equal(t, "date must be in YYYY-MM-DD format", Describe(v.Struct(slotInput{Date: "01/02/2030"})))
	assert.Equal(t, "role must be one of: customer, provider", Describe(v.Struct(slotInput{Role: "admin"})))

	var target struct {
		ID int64 `json:"booking_id"`
	}
	err := json.Unmarshal([]byte(`{"booking_id":"x"}`), &target)
	assert.Equal(t, "booking_id must be a int64", Describe(err))

	assert.Equal(t, "Invalid request body", Describe(assert.AnError))

	err = json.Unmarshal([]byte(`{]`), &target)
	assert.Equal(t, "Malformed JSON body", Describe(err))
}

func TestRegisterIsIdempotent(t *testing.T) {
	require.NoError(t, Register())
	require.NoError(t, Register())
}
