package apiframework

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Encode writes v as JSON with the given status code.
func Encode(w http.ResponseWriter, r *http.Request, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// Decode reads the request body into T. An empty body maps to
// ErrEmptyRequestBody so handlers can surface a 400 instead of an EOF.
func Decode[T any](r *http.Request) (T, error) {
	var v T
	if r.Body == nil {
		return v, ErrEmptyRequestBody
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return v, fmt.Errorf("read request body: %w", err)
	}
	if len(body) == 0 {
		return v, ErrEmptyRequestBody
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return v, fmt.Errorf("%w: %w", ErrUnprocessableEntity, err)
	}
	return v, nil
}

// GetPathParam reads a {param} path value; doc is carried for tooling.
func GetPathParam(r *http.Request, name string, doc string) string {
	_ = doc
	return r.PathValue(name)
}

// GetQueryParam reads a query parameter, falling back to defaultValue when
// absent; doc is carried for tooling.
func GetQueryParam(r *http.Request, name string, defaultValue string, doc string) string {
	_ = doc
	if v := r.URL.Query().Get(name); v != "" {
		return v
	}
	return defaultValue
}

// wireError is the JSON error envelope, OpenAI-style, so clients decode a
// single shape regardless of which handler produced the failure.
type wireError struct {
	Error struct {
		Message string  `json:"message"`
		Type    string  `json:"type"`
		Param   *string `json:"param,omitempty"`
		Code    string  `json:"code"`
	} `json:"error"`
}

// Error maps err to an HTTP status via the operation-aware taxonomy and
// writes the JSON error envelope. Returns the original error so handlers
// can `return serverops.Error(...)` if they want to.
func Error(w http.ResponseWriter, r *http.Request, err error, op Operation) error {
	status := mapErrorToStatus(op, err)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		apiErr = NewAPIError(err, err.Error(), "")
	}

	errorType := apiErr.errorType
	errorCode := apiErr.errorCode
	if errorType == "" {
		errorType, errorCode = getErrorTypeAndCode(status)
	}

	var payload wireError
	payload.Error.Message = apiErr.message
	payload.Error.Type = errorType
	payload.Error.Code = errorCode
	if apiErr.param != "" {
		p := apiErr.param
		payload.Error.Param = &p
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
	return err
}
