package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateStruct runs the struct's validate tags and returns a field to
// failed-rule map suitable for the error envelope, or nil when valid.
func ValidateStruct(v any) map[string]any {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return map[string]any{"error": err.Error()}
	}

	details := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = fe.Tag()
	}
	return details
}

func WriteValidationError(w http.ResponseWriter, details map[string]any) {
	WriteErrorEnvelope(w, http.StatusBadRequest, CodeValidationFailed, "validation failed", details, "")
}

func ValidateUUID(s string) bool {
	if s == "" {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// PathSegments strips prefix from the path and splits the remainder on "/".
// Returns nil when the path does not start with the prefix or has no
// remainder.
func PathSegments(path, prefix string) []string {
	if !strings.HasPrefix(path, prefix) {
		return nil
	}
	remaining := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if remaining == "" {
		return nil
	}
	return strings.Split(remaining, "/")
}
