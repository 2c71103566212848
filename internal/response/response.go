// Package response implements the value returned to the webhook caller.
//
// A Response carries a numeric code, a status label and an arbitrary data
// payload. Code 0 is success: it derives the "success" label and HTTP 200.
// Any other code derives "error" and HTTP 400 unless explicitly overridden.
package response

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/derafu/github/internal/apperror"
)

const (
	// CodeSuccess is the success sentinel.
	CodeSuccess = 0

	StatusSuccess = "success"
	StatusError   = "error"

	// DataKey is the entry a structured response must carry.
	DataKey = "data"
)

// Response is immutable; the With* methods return modified copies.
type Response struct {
	data     any
	code     int
	status   string
	httpCode int
}

// New wraps data as a successful response.
func New(data any) Response {
	return Response{data: data, code: CodeSuccess}
}

// Error builds a failed response with message as data.
func Error(message string, code int) Response {
	return Response{data: message, code: code}
}

// FromMap builds a response from its structured form. The map must contain
// "data"; "code", "status" and "http_code" optionally override the derived
// values.
func FromMap(m map[string]any) (Response, error) {
	data, ok := m[DataKey]
	if !ok {
		return Response{}, apperror.MissingDataKey()
	}

	r := Response{data: data, code: CodeSuccess}
	if v, ok := m["code"]; ok {
		code, err := toInt(v)
		if err != nil {
			return Response{}, fmt.Errorf("response code: %w", err)
		}
		r.code = code
	}
	if v, ok := m["status"]; ok {
		status, isString := v.(string)
		if !isString {
			return Response{}, fmt.Errorf("response status must be a string, got %T", v)
		}
		r.status = status
	}
	if v, ok := m["http_code"]; ok {
		httpCode, err := toInt(v)
		if err != nil {
			return Response{}, fmt.Errorf("response http_code: %w", err)
		}
		r.httpCode = httpCode
	}
	return r, nil
}

// Wrap converts a handler supplied value into a Response. Accepted values are
// Response, *Response, string and map[string]any.
func Wrap(v any) (Response, error) {
	switch typed := v.(type) {
	case Response:
		return typed, nil
	case *Response:
		if typed == nil {
			return Response{}, fmt.Errorf("response is nil")
		}
		return *typed, nil
	case string:
		return New(typed), nil
	case map[string]any:
		return FromMap(typed)
	default:
		return Response{}, fmt.Errorf("unsupported response value %T", v)
	}
}

// FromError converts an error into the response sent to the caller. Known
// application errors keep their message and status; anything else becomes a
// generic failure.
func FromError(err error) Response {
	rich, ok := apperror.As(err)
	if !ok || rich.Code == 0 {
		return Error("Unexpected error while processing the notification.", http.StatusInternalServerError).
			WithHTTPCode(http.StatusInternalServerError)
	}
	return Error(rich.Message, rich.Code).WithHTTPCode(rich.Code)
}

// WithStatus overrides the derived status label.
func (r Response) WithStatus(status string) Response {
	r.status = status
	return r
}

// WithHTTPCode overrides the derived HTTP status.
func (r Response) WithHTTPCode(code int) Response {
	r.httpCode = code
	return r
}

func (r Response) Data() any { return r.data }

func (r Response) Code() int { return r.code }

// Status returns the explicit status or derives it from the code.
func (r Response) Status() string {
	if r.status != "" {
		return r.status
	}
	if r.code == CodeSuccess {
		return StatusSuccess
	}
	return StatusError
}

// HTTPCode returns the explicit HTTP status or derives it from the code.
func (r Response) HTTPCode() int {
	if r.httpCode != 0 {
		return r.httpCode
	}
	if r.code == CodeSuccess {
		return http.StatusOK
	}
	return http.StatusBadRequest
}

// ToMap returns the canonical structured form.
func (r Response) ToMap() map[string]any {
	return map[string]any{
		"code":      r.Code(),
		"http_code": r.HTTPCode(),
		"status":    r.Status(),
		"data":      r.data,
	}
}

type wireResponse struct {
	Code     int    `json:"code"`
	HTTPCode int    `json:"http_code"`
	Status   string `json:"status"`
	Data     any    `json:"data"`
}

// MarshalJSON encodes {code, http_code, status, data} in that order.
func (r Response) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireResponse{
		Code:     r.Code(),
		HTTPCode: r.HTTPCode(),
		Status:   r.Status(),
		Data:     r.data,
	})
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, err
		}
		return int(i), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}
