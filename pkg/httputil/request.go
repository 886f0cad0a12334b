package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/inkwell/pkg/apperr"
)

// ParseJSON decodes JSON from the request body into the destination
func ParseJSON(r *http.Request, dest interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// ParseJSONOrError decodes JSON and writes error response on failure
func ParseJSONOrError(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := ParseJSON(r, dest); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return false
	}
	return true
}

// ParsePathString extracts a string path parameter
func ParsePathString(r *http.Request, key string) (string, error) {
	str := strings.TrimSpace(mux.Vars(r)[key])
	if str == "" {
		return "", apperr.Validationf("missing path parameter: %s", key)
	}
	return str, nil
}

// ParsePathStringOrError extracts a string path parameter and writes error on failure
func ParsePathStringOrError(w http.ResponseWriter, r *http.Request, key string) (string, bool) {
	val, err := ParsePathString(r, key)
	if err != nil {
		WriteBadRequest(w, apperr.PublicMessage(err))
		return "", false
	}
	return val, true
}

// ParseQueryInt extracts and parses an integer query parameter
func ParseQueryInt(r *http.Request, key string, defaultVal int) (int, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return defaultVal, nil
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return 0, apperr.Validationf("invalid integer for query param %s: %s", key, str)
	}
	return val, nil
}

// Validator is a function that validates a value and returns an error message if invalid
type Validator func() (bool, string)

// Validate runs validators in order and returns the first failure as a Validation error
func Validate(validators ...Validator) error {
	for _, validator := range validators {
		if valid, msg := validator(); !valid {
			return apperr.Validation(msg)
		}
	}
	return nil
}

// Required fails with message when value is blank
func Required(value, message string) Validator {
	return func() (bool, string) {
		return strings.TrimSpace(value) != "", message
	}
}

// MaxLength fails with message when value exceeds max characters
func MaxLength(value string, max int, message string) Validator {
	return func() (bool, string) {
		return len([]rune(value)) <= max, message
	}
}
