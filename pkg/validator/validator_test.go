package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type sample struct {
	Name string `json:"full_name" validate:"required,min=2"`
	Role string `json:"role" validate:"role"`
	Code string `json:"referral_code" validate:"referral_code"`
}

func TestValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.Nil(t, Validate(sample{Name: "Abebe", Role: "agent", Code: "ABC234"}))
	})

	t.Run("json names in errors", func(t *testing.T) {
		errs := Validate(sample{Role: "root", Code: "abc"})
		assert.Equal(t, "This field is required", errs["full_name"])
		assert.Contains(t, errs["role"], "Invalid role")
		assert.Equal(t, "Invalid referral code format", errs["referral_code"])
	})

	t.Run("ambiguous characters rejected", func(t *testing.T) {
		errs := Validate(sample{Name: "Abebe", Code: "ABCDE0"})
		assert.Contains(t, errs, "referral_code")
	})
}

func TestMessage(t *testing.T) {
	msg := Message(map[string]string{"b": "two", "a": "one"})
	assert.Equal(t, "a: one; b: two", msg)
}
