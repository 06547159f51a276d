package mocker

import "errors"

// Code is the stable, caller-visible identifier of a control failure.
type Code string

const (
	CodeMockNotEnabled Code = "MOCK_NOT_ENABLED"
	CodeCheckMockError Code = "CHECK_MOCK_ERROR"
	CodeStartMockError Code = "START_MOCK_ERROR"
	CodeStopMockError  Code = "STOP_MOCK_ERROR"
	CodeInvalidSpeed   Code = "INVALID_SPEED"
	CodeInvalidRequest Code = "INVALID_REQUEST"
	CodeTrackNotFound  Code = "TRACK_NOT_FOUND"
)

type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code Code, msg string, err error) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf returns the code carried by err, or "" for uncoded errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
