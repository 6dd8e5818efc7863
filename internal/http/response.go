package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"expensetracker/internal/log"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// JSONResponse builds a JSON response with optional headers.
type JSONResponse struct {
	status  int
	headers map[string]string
	body    any
}

func NewJSONResponse(body any) *JSONResponse {
	return &JSONResponse{status: http.StatusOK, headers: map[string]string{}, body: body}
}

func (b *JSONResponse) Status(code int) *JSONResponse {
	b.status = code
	return b
}

func (b *JSONResponse) Header(name, value string) *JSONResponse {
	b.headers[name] = value
	return b
}

// Write encodes the body. A 204 is sent without one.
func (b *JSONResponse) Write(w http.ResponseWriter, r *http.Request) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.status == http.StatusNoContent {
		w.WriteHeader(b.status)
		return
	}
	data, err := json.Marshal(b.body)
	if err != nil {
		log.FromContext(r.Context()).WithComponent(log.ComponentHTTP).ErrorContext(r.Context(),
			"Failed to encode response", log.FieldError, err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.status)
	_, _ = w.Write(append(data, '\n'))
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	NewJSONResponse(body).Status(status).Write(w, r)
}

// ErrorResponse creates a standard error response.
func ErrorResponse(status int, message string) *JSONResponse {
	return NewJSONResponse(errorBody{Error: message}).Status(status)
}

func badRequest(w http.ResponseWriter, r *http.Request, err error) {
	ErrorResponse(http.StatusBadRequest, err.Error()).Write(w, r)
}

func notFound(w http.ResponseWriter, r *http.Request, msg string) {
	ErrorResponse(http.StatusNotFound, msg).Write(w, r)
}

func unprocessable(w http.ResponseWriter, r *http.Request, field string, err error) {
	NewJSONResponse(errorBody{Error: err.Error(), Field: field}).
		Status(http.StatusUnprocessableEntity).
		Write(w, r)
}

// internalError logs err and answers with a generic message.
func internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	log.FromContext(r.Context()).WithComponent(log.ComponentHTTP).Log(r.Context(), slog.LevelError,
		msg, log.FieldError, err)
	ErrorResponse(http.StatusInternalServerError, msg).Write(w, r)
}

func serviceUnavailable(w http.ResponseWriter, r *http.Request, msg string, err error) {
	log.FromContext(r.Context()).WithComponent(log.ComponentHTTP).WarnContext(r.Context(),
		msg, log.FieldError, err)
	ErrorResponse(http.StatusServiceUnavailable, msg).Write(w, r)
}

// isClientError reports whether err came from malformed JSON rather than a
// domain value.
func isClientError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var maxErr *http.MaxBytesError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.As(err, &maxErr)
}
