// Package validator plugs the API's custom tags into gin's binding validator
// and turns binding failures into client-facing messages.
package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	playground "github.com/go-playground/validator/v10"

	"github.com/slotbook/booking-api/internal/model"
)

var (
	registerOnce sync.Once
	registerErr  error
)

// Register installs the "clock" tag and json field naming on gin's default
// validator. It is safe to call more than once.
func Register() error {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*playground.Validate)
		if !ok {
			registerErr = fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
			return
		}
		registerErr = RegisterOn(v)
	})
	return registerErr
}

// RegisterOn installs the custom tags on v.
func RegisterOn(v *playground.Validate) error {
	v.RegisterTagNameFunc(jsonName)
	return v.RegisterValidation("clock", validateClock)
}

func jsonName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "" || name == "-" {
		return fld.Name
	}
	return name
}

// validateClock accepts HH:MM and HH:MM:SS.
func validateClock(fl playground.FieldLevel) bool {
	_, _, err := model.ParseClock(fl.Field().String())
	return err == nil
}

// Describe renders a binding error as one message.
func Describe(err error) string {
	var verrs playground.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "required":
			return fmt.Sprintf("%s is required", fe.Field())
		case "email":
			return fmt.Sprintf("%s must be a valid email", fe.Field())
		case "oneof":
			return fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
		case "datetime":
			return fmt.Sprintf("%s must be in YYYY-MM-DD format", fe.Field())
		case "clock":
			return fmt.Sprintf("%s must be in HH:MM format", fe.Field())
		case "gt":
			return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
		default:
			return fmt.Sprintf("%s is invalid", fe.Field())
		}
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return fmt.Sprintf("%s must be a %s", typeErr.Field, typeErr.Type.String())
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return "Malformed JSON body"
	}
	return "Invalid request body"
}
