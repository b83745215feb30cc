package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/llmgate/llmgate/internal/errs"
)

// errorDetail is the body of the error envelope:
// {"detail": {"error": <kind>, "message":...,...}}. Structured-response
// errors additionally carry xml and return_class.
type errorDetail struct {
	Error       string `json:"error"`
	Message     string `json:"message"`
	XML         string `json:"xml,omitempty"`
	ReturnClass string `json:"return_class,omitempty"`
	Retries     int    `json:"retries,omitempty"`
}

type errorEnvelope struct {
	Detail errorDetail `json:"detail"`
}

// statusForKind maps the closed error taxonomy to an HTTP
// status for this completeness-only boundary; it is not itself part of the
// dispatch core.
func statusForKind(k errs.Kind) int {
	switch k {
	case errs.Credentials:
		return http.StatusUnauthorized
	case errs.ModelNotFound:
		return http.StatusNotFound
	case errs.Conversion:
		return http.StatusUnprocessableEntity
	case errs.Throttling:
		return http.StatusTooManyRequests
	case errs.Timeout:
		return http.StatusGatewayTimeout
	case errs.StructuredResponse:
		return http.StatusUnprocessableEntity
	case errs.ServiceCall:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as the error envelope, classifying it
// against the closed taxonomy when possible and falling back to a generic
// service_call envelope for any error that is not an *errs.Error.
func writeError(w http.ResponseWriter, err error) {
	var se *errs.Error
	if !errs.As(err, &se) {
		writeJSON(w, http.StatusBadGateway, errorEnvelope{Detail: errorDetail{
			Error:   string(errs.ServiceCall),
			Message: err.Error(),
		}})
		return
	}
	writeJSON(w, statusForKind(se.Kind), errorEnvelope{Detail: errorDetail{
		Error:       string(se.Kind),
		Message:     se.Message,
		XML:         se.XML,
		ReturnClass: se.ReturnClass,
		Retries:     se.Retries,
	}})
}

func errUnauthorized(message string) error {
	return errs.New(errs.Credentials, "%s", message)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
