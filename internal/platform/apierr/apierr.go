// Package apierr carries an HTTP status and a machine-readable code from the
// domain layer to the response.
package apierr

import (
	"encoding/json"
	"errors"
	"net/http"
)

type Error struct {
	Status int
	Code   string
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Err.Error()
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func BadRequest(code string) *Error { return New(http.StatusBadRequest, code, nil) }
func Unauthorized() *Error          { return New(http.StatusUnauthorized, "unauthorized", nil) }
func Forbidden(code string) *Error  { return New(http.StatusForbidden, code, nil) }
func NotFound(code string) *Error   { return New(http.StatusNotFound, code, nil) }
func Conflict(code string) *Error   { return New(http.StatusConflict, code, nil) }
func Internal(err error) *Error     { return New(http.StatusInternalServerError, "internal", err) }

type body struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Write renders err as {"error": code}. Errors that are not *Error become a
// 500 "internal" without leaking their text.
func Write(w http.ResponseWriter, err error) {
	var e *Error
	if !errors.As(err, &e) {
		e = Internal(err)
	}
	WriteJSON(w, e.Status, body{Error: e.Code, Fields: e.Fields})
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
