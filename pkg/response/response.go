// path: backend/pkg/response/response.go
package response

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// Envelope is the {success, message?, data?} wrapper every non-health
// response uses, success or failure. Code carries the domain ErrorCode
// string (e.g. POST_NOT_FOUND) on failure responses, for programmatic
// callers that want to branch without string-matching Message.
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// JSON writes a JSON response
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logrus.WithError(err).Error("response: failed to encode JSON body")
	}
}

// Error writes the {success: false, message, code} envelope. code is the
// domain ErrorCode string (e.g. POST_NOT_FOUND), surfaced for
// programmatic callers alongside the human-readable message.
func Error(w http.ResponseWriter, status int, message string, code string, err error) {
	errorMsg := message
	if err != nil {
		logrus.WithError(err).WithField("status", status).Warn("response: request failed")
		errorMsg = err.Error()
	}

	JSON(w, status, Envelope{Success: false, Message: errorMsg, Code: code})
}

// ErrorWithRetryAfter writes a 429 error envelope and sets Retry-After to
// the number of whole seconds until resetAt (floored at 1s).
func ErrorWithRetryAfter(w http.ResponseWriter, message, code string, err error, resetAt time.Time) {
	wait := time.Until(resetAt)
	if wait < time.Second {
		wait = time.Second
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())))
	Error(w, http.StatusTooManyRequests, message, code, err)
}

// Success writes the {success, data} envelope.
func Success(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusOK, Envelope{Success: true, Data: data})
}

// Created writes the {success, data} envelope with a 201 status.
func Created(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(Envelope{Success: true, Data: data}); err != nil {
		logrus.WithError(err).Error("response: failed to encode JSON body")
	}
}

// NoContent writes a 204 with no body.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
