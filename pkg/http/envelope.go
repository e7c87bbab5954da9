package http

import (
	"encoding/json"
	"net/http"
)

// Envelope is the JSON shape of every API response.
type Envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// SuccessData is the payload of a successful response.
type SuccessData struct {
	Message  string `json:"message"`
	Redirect string `json:"redirect,omitempty"`
	Token    string `json:"token,omitempty"`
}

// FailureData is the payload of a failed response. Code is a broad
// machine-readable category; Message is deliberately generic.
type FailureData struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// WriteSuccess writes a success envelope with an optional redirect target.
func WriteSuccess(w http.ResponseWriter, statusCode int, data SuccessData) {
	writeEnvelope(w, statusCode, Envelope{Success: true, Data: data})
}

// WriteData writes a success envelope around an arbitrary payload.
func WriteData(w http.ResponseWriter, statusCode int, data any) {
	writeEnvelope(w, statusCode, Envelope{Success: true, Data: data})
}

// WriteFailure writes a failure envelope with the given status code.
func WriteFailure(w http.ResponseWriter, statusCode int, code, message string) {
	writeEnvelope(w, statusCode, Envelope{Success: false, Data: FailureData{Message: message, Code: code}})
}

func writeEnvelope(w http.ResponseWriter, statusCode int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	// Log encoding errors but don't expose them to the client
	_ = json.NewEncoder(w).Encode(env)
}

// Common failure writers for consistency
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteFailure(w, http.StatusBadRequest, "bad_request", message)
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteFailure(w, http.StatusUnauthorized, "unauthorized", message)
}

func WriteForbidden(w http.ResponseWriter, message string) {
	WriteFailure(w, http.StatusForbidden, "forbidden", message)
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteFailure(w, http.StatusNotFound, "not_found", message)
}

func WriteTooManyRequests(w http.ResponseWriter, code, message string) {
	WriteFailure(w, http.StatusTooManyRequests, code, message)
}

func WriteInternalError(w http.ResponseWriter, message string) {
	WriteFailure(w, http.StatusInternalServerError, "internal_error", message)
}
