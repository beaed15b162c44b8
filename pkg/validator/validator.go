package validator

import (
	"errors"
	"reflect"
	"slices"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return slices.Contains([]string{"user", "agent", "admin", ""}, fl.Field().String())
	})
	_ = validate.RegisterValidation("referral_code", func(fl validator.FieldLevel) bool {
		code := fl.Field().String()
		if code == "" {
			return true
		}
		if len(code) != 6 {
			return false
		}
		for _, r := range code {
			if !strings.ContainsRune("ABCDEFGHJKLMNPQRSTUVWXYZ23456789", r) {
				return false
			}
		}
		return true
	})
}

// Validate returns a field -> message map, or nil when s is valid.
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"_": err.Error()}
	}

	out := make(map[string]string, len(verrs))
	for _, e := range verrs {
		field := e.Field()
		switch e.Tag() {
		case "required":
			out[field] = "This field is required"
		case "min":
			out[field] = "Value is too short (min: " + e.Param() + ")"
		case "max":
			out[field] = "Value is too long (max: " + e.Param() + ")"
		case "gt", "gte":
			out[field] = "Value must be at least " + e.Param()
		case "e164":
			out[field] = "Invalid phone number"
		case "role":
			out[field] = "Invalid role. Must be: user, agent, or admin"
		case "referral_code":
			out[field] = "Invalid referral code format"
		default:
			out[field] = "Invalid value"
		}
	}
	return out
}

// Message flattens a Validate result into one deterministic line.
func Message(errs map[string]string) string {
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+errs[k])
	}
	return strings.Join(parts, "; ")
}
