package interaction

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
}

// ValidationError is a user-facing option error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Invalid %s: %s", e.Field, e.Message)
}

// DecodeOptions converts a raw options bag into T. Unknown options, wrong
// types and failed `validate` tags are reported as *ValidationError.
func DecodeOptions[T any](raw map[string]any) (T, error) {
	var out T
	if raw == nil {
		raw = map[string]any{}
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return out, &ValidationError{Field: "options", Message: "could not be read"}
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, decodeError(err)
	}

	if err := validate.Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return out, fieldError(verrs[0])
		}
		return out, &ValidationError{Field: "options", Message: err.Error()}
	}
	return out, nil
}

func decodeError(err error) *ValidationError {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &ValidationError{Field: typeErr.Field, Message: "must be a " + kindName(typeErr.Type)}
	}
	if name, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		return &ValidationError{Field: strings.Trim(name, `"`), Message: "is not a recognized option"}
	}
	return &ValidationError{Field: "options", Message: "could not be read"}
}

func kindName(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "whole number"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "true or false value"
	default:
		return "text value"
	}
}

func fieldError(fe validator.FieldError) *ValidationError {
	field := fe.Field()
	isString := fe.Kind() == reflect.String
	var msg string
	switch fe.Tag() {
	case "required":
		msg = "is required"
	case "oneof":
		msg = "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "min":
		if isString {
			msg = "must be at least " + fe.Param() + " characters"
		} else {
			msg = "must be at least " + fe.Param()
		}
	case "max":
		if isString {
			msg = "must be at most " + fe.Param() + " characters"
		} else {
			msg = "must be at most " + fe.Param()
		}
	case "gte":
		msg = "must be at least " + fe.Param()
	case "lte":
		msg = "must be at most " + fe.Param()
	case "alphanum":
		msg = "must contain only letters and digits"
	case "numeric":
		msg = "must be a number"
	case "url", "http_url":
		msg = "must be a valid URL"
	default:
		msg = "is not valid"
	}
	return &ValidationError{Field: field, Message: msg}
}
