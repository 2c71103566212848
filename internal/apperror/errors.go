// Package apperror defines the error taxonomy shared by the webhook receiver.
//
// Every error is a *goerrors.Error carrying a category, the HTTP status the
// request boundary should answer with, and a stable text code. Callers test
// for a kind with Is or with one of the grouping helpers.
package apperror

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes.
const (
	CodeConfig             = "CONFIG_ERROR"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeInvalidMethod      = "INVALID_METHOD"
	CodeMissingEvent       = "MISSING_EVENT"
	CodeMissingSignature   = "MISSING_SIGNATURE"
	CodeMalformedSignature = "MALFORMED_SIGNATURE"
	CodeInvalidSignature   = "INVALID_SIGNATURE"
	CodeMissingField       = "MISSING_FIELD"
	CodeMalformedPayload   = "MALFORMED_PAYLOAD"
	CodeNoResponse         = "NO_RESPONSE"
	CodeMissingDataKey     = "MISSING_DATA_KEY"
)

var validationCodes = map[string]bool{
	CodeInvalidToken:       true,
	CodeInvalidMethod:      true,
	CodeMissingEvent:       true,
	CodeMissingSignature:   true,
	CodeMalformedSignature: true,
	CodeInvalidSignature:   true,
}

func newError(message string, category goerrors.Category, status int, textCode string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, category).
		WithCode(status).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// Config reports a startup configuration problem. The process cannot serve.
func Config(message string) error {
	return newError(message, goerrors.CategoryValidation, http.StatusInternalServerError, CodeConfig, nil)
}

// InvalidToken reports a secondary hash token mismatch.
func InvalidToken() error {
	return newError("Invalid hash token.", goerrors.CategoryAuth, http.StatusForbidden, CodeInvalidToken, nil)
}

// InvalidMethod reports a request method other than POST.
func InvalidMethod(method string) error {
	return newError("Invalid request method \""+method+"\", expected POST.", goerrors.CategoryBadInput,
		http.StatusMethodNotAllowed, CodeInvalidMethod, map[string]any{"method": method})
}

func MissingEvent() error {
	return newError("Missing event name.", goerrors.CategoryBadInput, http.StatusBadRequest, CodeMissingEvent, nil)
}

func MissingSignature() error {
	return newError("Missing signature.", goerrors.CategoryAuth, http.StatusUnauthorized, CodeMissingSignature, nil)
}

func MalformedSignature() error {
	return newError("Malformed signature header, expected \"<algorithm>=<digest>\".", goerrors.CategoryAuth,
		http.StatusUnauthorized, CodeMalformedSignature, nil)
}

// InvalidSignature is deliberately free of detail about which part mismatched.
func InvalidSignature() error {
	return newError("Invalid signature.", goerrors.CategoryAuth, http.StatusUnauthorized, CodeInvalidSignature, nil)
}

// MissingField reports an absent notification metadata entry or payload path.
func MissingField(field string) error {
	return newError("Missing required field \""+field+"\".", goerrors.CategoryBadInput,
		http.StatusBadRequest, CodeMissingField, map[string]any{"field": field})
}

// MalformedPayload wraps a body parse failure.
func MalformedPayload(cause error) error {
	if cause == nil {
		return newError("Malformed payload.", goerrors.CategoryBadInput, http.StatusBadRequest, CodeMalformedPayload, nil)
	}
	err := goerrors.Wrap(cause, goerrors.CategoryBadInput, "Malformed payload: "+cause.Error()).
		WithCode(http.StatusBadRequest).
		WithTextCode(CodeMalformedPayload)
	return err
}

// NoResponse reports a handler that returned without setting a response.
func NoResponse() error {
	return newError("No response was set for the notification.", goerrors.CategoryInternal,
		http.StatusInternalServerError, CodeNoResponse, nil)
}

// MissingDataKey reports a structured response built without its "data" entry.
func MissingDataKey() error {
	return newError("Response data must contain a \"data\" key.", goerrors.CategoryInternal,
		http.StatusInternalServerError, CodeMissingDataKey, nil)
}

// As extracts the rich error envelope from err.
func As(err error) (*goerrors.Error, bool) {
	if err == nil {
		return nil, false
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return nil, false
	}
	return rich, true
}

// Is reports whether err carries the given text code.
func Is(err error, textCode string) bool {
	rich, ok := As(err)
	return ok && rich.TextCode == textCode
}

// IsValidation reports whether err is one of the request validation failures.
func IsValidation(err error) bool {
	rich, ok := As(err)
	return ok && validationCodes[rich.TextCode]
}

// IsInternal reports whether err is a programmer or unexpected fault.
func IsInternal(err error) bool {
	rich, ok := As(err)
	if !ok {
		return true
	}
	return rich.Category == goerrors.CategoryInternal
}
