// Package httpapi wires the domain services to HTTP, grounded on the
// starting codebase's internal/handlers shape (one handler struct per
// resource, chi.URLParam + use-case Execute + error-to-status switch)
// but flattened: this repo's services are called directly rather than
// through a use-case-per-endpoint application layer.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/vouse/postqueue/pkg/response"
)

var validate = validator.New()

// decodeAndValidate decodes the request body into v and checks it
// against v's `validate` struct tags, the same two-step shape the
// starting codebase's middleware.ValidateStruct used.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		badRequest(w, "INVALID_BODY", "request body is not valid JSON")
		return false
	}
	if err := validate.Struct(v); err != nil {
		badRequest(w, "VALIDATION_FAILED", err.Error())
		return false
	}
	return true
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func badRequest(w http.ResponseWriter, code, message string) {
	response.Error(w, http.StatusBadRequest, message, code, nil)
}

func internalError(w http.ResponseWriter, code string, err error) {
	response.Error(w, http.StatusInternalServerError, "internal error", code, err)
}
