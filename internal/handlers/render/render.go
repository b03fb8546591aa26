package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/nkiryanov/videotube/internal/apperrors"
)

const (
	ValidationErrorType = "validation_failed"
	DecodingErrorType   = "decoding_failed"
	ServiceErrorType    = "service_error"
	AuthErrorType       = "auth_error"
)

// Reason codes of 401 responses. Clients branch on them, e.g. refresh on "token_expired"
const (
	ReasonNoCredential     = "no_credential"
	ReasonMalformedToken   = "malformed_token"
	ReasonTokenExpired     = "token_expired"
	ReasonSignatureInvalid = "signature_invalid"
	ReasonUserNotFound     = "user_not_found"
	ReasonRefreshMismatch  = "refresh_mismatch"
	ReasonPasswordMismatch = "password_mismatch"
)

var validate = newValidator()

type Struct any

type ErrorResponse struct {
	Error   string            `json:"error"`
	Reason  string            `json:"reason,omitempty"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func JSON(w http.ResponseWriter, data any) {
	jsonWithStatus(w, data, http.StatusOK)
}

// Render data with non 200 status, e.g. 201 Created
func JSONStatus(w http.ResponseWriter, data any, code int) {
	jsonWithStatus(w, data, code)
}

// Render ServiceError
func ServiceError(w http.ResponseWriter, error string, code int) {
	response := ErrorResponse{
		Error:   ServiceErrorType,
		Message: error,
	}

	jsonWithStatus(w, response, code)
}

// Render 401 with machine readable reason
func AuthError(w http.ResponseWriter, reason string, message string) {
	response := ErrorResponse{
		Error:   AuthErrorType,
		Reason:  reason,
		Message: message,
	}

	jsonWithStatus(w, response, http.StatusUnauthorized)
}

// AuthReason maps authentication failure to reason code
// Returns false if err is not an authentication failure (e.g. storage error)
func AuthReason(err error) (string, bool) {
	switch {
	case errors.Is(err, apperrors.ErrNoCredential):
		return ReasonNoCredential, true
	case errors.Is(err, apperrors.ErrTokenExpired):
		return ReasonTokenExpired, true
	case errors.Is(err, apperrors.ErrSignatureInvalid):
		return ReasonSignatureInvalid, true
	case errors.Is(err, apperrors.ErrMalformedToken):
		return ReasonMalformedToken, true
	case errors.Is(err, apperrors.ErrUserNotFound):
		return ReasonUserNotFound, true
	case errors.Is(err, apperrors.ErrRefreshMismatch):
		return ReasonRefreshMismatch, true
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		return ReasonPasswordMismatch, true
	default:
		return "", false
	}
}

// Render json DecodeError
func DecodeError(w http.ResponseWriter, err error) {
	response := ErrorResponse{
		Error:   DecodingErrorType,
		Message: "",
	}

	// Try to provide more specific error message based on error type
	switch err := err.(type) {
	case *json.UnmarshalTypeError:
		response.Message = fmt.Sprintf("Invalid data type for field '%s'", err.Field)
	default:
		response.Message = fmt.Sprintf("Failed to parse JSON: %s", err.Error())
	}

	jsonWithStatus(w, response, http.StatusBadRequest)
}

// Render ValidationErrors
func ValidationErrors(w http.ResponseWriter, errs validator.ValidationErrors) {
	response := ErrorResponse{
		Error:   ValidationErrorType,
		Message: "Request validation failed",
		Fields:  make(map[string]string, len(errs)),
	}

	// Create user-friendly error messages based on validation tag
	for _, fieldError := range errs {
		var message string
		switch fieldError.Tag() {
		case "required":
			message = "This field is required"
		case "min":
			message = fmt.Sprintf("Value is too short (minimum %s)", fieldError.Param())
		case "max":
			message = fmt.Sprintf("Value is too long (maximum %s)", fieldError.Param())
		case "email":
			message = "Invalid email address"
		default:
			message = "Invalid value"
		}

		response.Fields[fieldError.Field()] = message
	}

	jsonWithStatus(w, response, http.StatusBadRequest)
}

// BindAndValidate decodes JSON request body into type T and validates it using struct tags.
// Returns the decoded value and writes appropriate error responses for decoding or validation failures.
func BindAndValidate[T Struct](w http.ResponseWriter, r *http.Request) (T, error) {
	var value T

	err := json.NewDecoder(r.Body).Decode(&value)
	if err != nil {
		DecodeError(w, err)
		return value, err
	}

	err = validate.Struct(value)
	if err != nil {
		// pretty sure cast will be ok cause expecting T is valid struct
		errs := err.(validator.ValidationErrors)
		ValidationErrors(w, errs)
		return value, err
	}

	return value, nil
}

// renderJSONWithStatus sends data as json and enforces status code
func jsonWithStatus(w http.ResponseWriter, data any, code int) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)

	if err := enc.Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(buf.Bytes())
}
