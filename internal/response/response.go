package response

import (
	"encoding/json"
	"net/http"
)

type ResponseWriter interface {
	Write(w http.ResponseWriter, status int)
}

// JSONResponse for API endpoints
type JSONResponse struct {
	Body any
}

func (r *JSONResponse) Write(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(r.Body)
}

// ErrorResponse is the body of every API error.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

func (r *ErrorResponse) Write(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(r)
}

type PlainResponse struct {
	Message string
}

func (r *PlainResponse) Write(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(r.Message))
}

// Convenience functions for common patterns
func JSON(body any) ResponseWriter {
	return &JSONResponse{Body: body}
}

func Error(code, message, hint string) ResponseWriter {
	return &ErrorResponse{Code: code, Message: message, Hint: hint}
}

func Plain(message string) ResponseWriter {
	return &PlainResponse{Message: message}
}
