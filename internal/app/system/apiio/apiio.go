// internal/app/system/apiio/apiio.go
package apiio

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Error kinds carried in the "kind" field of every error body.
const (
	KindValidation = "validation"
	KindTransient  = "transient"
	KindNotFound   = "not_found"
	KindAuth       = "auth"
)

// MaxBodyBytes caps request bodies read by Decode.
const MaxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error  string            `json:"error"`
	Kind   string            `json:"kind"`
	Fields map[string]string `json:"fields,omitempty"`
}

// InvalidError is returned by Decode for a malformed or invalid body.
type InvalidError struct {
	Msg    string
	Fields map[string]string
}

func (e *InvalidError) Error() string { return e.Msg }

// Decode reads a JSON body into dst and validates its struct tags.
func Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return &InvalidError{Msg: "request body is empty"}
		}
		return &InvalidError{Msg: "malformed JSON body"}
	}
	return Validate(dst)
}

// Validate runs the validator over v.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return &InvalidError{Msg: "invalid input"}
	}
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[fe.Field()] = describe(fe)
	}
	return &InvalidError{Msg: "validation failed", Fields: fields}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "len":
		return fmt.Sprintf("must be %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return "must be one of: " + fe.Param()
	case "number", "numeric":
		return "must contain only digits"
	case "alphanum":
		return "must contain only letters and digits"
	default:
		return "failed " + fe.Tag()
	}
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes the error envelope.
func WriteError(w http.ResponseWriter, status int, kind, msg string) {
	WriteJSON(w, status, ErrorBody{Error: msg, Kind: kind})
}

// WriteInvalid writes a 400 for an error returned by Decode or Validate.
func WriteInvalid(w http.ResponseWriter, err error) {
	var ie *InvalidError
	if errors.As(err, &ie) {
		WriteJSON(w, http.StatusBadRequest, ErrorBody{Error: ie.Msg, Kind: KindValidation, Fields: ie.Fields})
		return
	}
	WriteError(w, http.StatusBadRequest, KindValidation, err.Error())
}

// WriteUnavailable writes a 503 transient error. The cause is logged by the
// caller, not echoed to the client.
func WriteUnavailable(w http.ResponseWriter) {
	WriteError(w, http.StatusServiceUnavailable, KindTransient, "service temporarily unavailable")
}
