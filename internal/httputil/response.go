package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/willGauntletAi/tiktok-sub000/internal/monitoring"
)

// DefaultMaxBodyBytes bounds request bodies read by DecodeJSONBody.
const DefaultMaxBodyBytes = 32 << 20

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
	// Problems lists individual validation failures, when there are several.
	Problems []string `json:"problems,omitempty"`
}

// WriteJSONError writes a JSON error response with the given status code and message.
func WriteJSONError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorResponse{Error: msg})
}

// WriteJSONProblems writes an error response listing each problem.
func WriteJSONProblems(w http.ResponseWriter, status int, msg string, problems []error) {
	resp := ErrorResponse{Error: msg}
	for _, p := range problems {
		resp.Problems = append(resp.Problems, p.Error())
	}
	WriteJSON(w, status, resp)
}

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		monitoring.Logf("[httputil] failed to encode json response: %v", err)
	}
}

// WriteJSONOK writes a successful JSON response (200 OK).
func WriteJSONOK(w http.ResponseWriter, data interface{}) {
	WriteJSON(w, http.StatusOK, data)
}

// MethodNotAllowed writes a 405 Method Not Allowed response.
func MethodNotAllowed(w http.ResponseWriter) {
	WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// BadRequest writes a 400 Bad Request response with the given message.
func BadRequest(w http.ResponseWriter, msg string) {
	WriteJSONError(w, http.StatusBadRequest, msg)
}

// InternalServerError writes a 500 Internal Server Error response.
func InternalServerError(w http.ResponseWriter, msg string) {
	WriteJSONError(w, http.StatusInternalServerError, msg)
}

// NotFound writes a 404 Not Found response.
func NotFound(w http.ResponseWriter, msg string) {
	WriteJSONError(w, http.StatusNotFound, msg)
}

// BodyError is returned by DecodeJSONBody. Status is the reply code the
// handler should use.
type BodyError struct {
	Status int
	Msg    string
}

func (e *BodyError) Error() string {
	return e.Msg
}

// DecodeJSONBody decodes the request body into v, reading at most maxBytes
// (DefaultMaxBodyBytes when maxBytes <= 0). Unknown fields and trailing data
// are rejected.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, v interface{}, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.As(err, &maxErr):
			return &BodyError{Status: http.StatusRequestEntityTooLarge, Msg: fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit)}
		case errors.Is(err, io.EOF):
			return &BodyError{Status: http.StatusBadRequest, Msg: "request body is empty"}
		case errors.As(err, &syntaxErr):
			return &BodyError{Status: http.StatusBadRequest, Msg: fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset)}
		case errors.As(err, &typeErr):
			return &BodyError{Status: http.StatusBadRequest, Msg: fmt.Sprintf("invalid value for field %q", typeErr.Field)}
		default:
			return &BodyError{Status: http.StatusBadRequest, Msg: err.Error()}
		}
	}
	if dec.More() {
		return &BodyError{Status: http.StatusBadRequest, Msg: "request body must contain a single JSON object"}
	}
	return nil
}

// WriteBodyError replies with the status carried by a DecodeJSONBody error.
func WriteBodyError(w http.ResponseWriter, err error) {
	var be *BodyError
	if errors.As(err, &be) {
		WriteJSONError(w, be.Status, be.Msg)
		return
	}
	BadRequest(w, err.Error())
}
