package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gofrs/uuid/v5"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/and161185/cosmetics-shop/internal/errs"
)

// maxBody caps request bodies.
const maxBody = 1 << 20

// Envelope is the uniform response body.
type Envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    any               `json:"data,omitempty"`
	Errors  []errs.FieldError `json:"errors,omitempty"`
	Error   string            `json:"error,omitempty"` // development only
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func ok(w http.ResponseWriter, msg string, data any) {
	writeJSON(w, http.StatusOK, Envelope{Success: true, Message: msg, Data: data})
}

func created(w http.ResponseWriter, msg string, data any) {
	writeJSON(w, http.StatusCreated, Envelope{Success: true, Message: msg, Data: data})
}

func failMsg(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Envelope{Success: false, Message: msg})
}

// statusOf maps an error chain onto an HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, errs.ErrValidation),
		errors.Is(err, errs.ErrAlreadyExists),
		errors.Is(err, errs.ErrProductUnavailable):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrUnauthorized),
		errors.Is(err, errs.ErrInvalidCredentials),
		errors.Is(err, errs.ErrAccountDisabled),
		errors.Is(err, errs.ErrTokenExpired),
		errors.Is(err, errs.ErrTokenInvalid),
		errors.Is(err, errs.ErrTokenRevoked):
		return http.StatusUnauthorized
	case errors.Is(err, errs.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

var fallback = map[int]string{
	http.StatusBadRequest:      "Bad request",
	http.StatusUnauthorized:    "Authentication failed",
	http.StatusForbidden:       "Insufficient permissions",
	http.StatusNotFound:        "Not found",
	http.StatusTooManyRequests: "Too many requests",
}

// fail is the only place where errors become responses.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	env := Envelope{Success: false}

	if code == http.StatusInternalServerError {
		a.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		env.Message = "Internal server error"
		if a.dev {
			env.Error = err.Error()
		}
		writeJSON(w, code, env)
		return
	}

	if ve, isVE := errs.AsValidation(err); isVE {
		env.Message = ve.Message()
		env.Errors = ve.Fields
	} else if msg, has := errs.PublicMessage(err); has {
		env.Message = msg
	} else {
		env.Message = fallback[code]
	}
	writeJSON(w, code, env)
}

var errBadJSON = errs.Invalid("Invalid JSON body")

// decode reads a JSON body into dst. An empty body leaves dst untouched.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return errBadJSON
	}
	return nil
}

// pathID parses a uuid path variable.
func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.FromString(mux.Vars(r)[name])
	if err != nil {
		return uuid.Nil, errs.Field(name, "Invalid "+name)
	}
	return id, nil
}
