// Package apierr gives the ops HTTP surface one error envelope instead of
// ad hoc gin.H{"error": ...} bodies. Status/Code/Err shape, Unwrap()-able
// so callers can still errors.Is/As through it.
package apierr

import "fmt"

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("ops api error (%d)", e.Status)
	}
	return "ops api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// Body is the JSON shape written for every non-2xx ops API response.
type Body struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}
