package models

import (
	"errors"
	"fmt"
)

// ErrorCode - 기계가 읽을 수 있는 오류 코드
type ErrorCode string

const (
	ErrCodeInvalidTarget      ErrorCode = "INVALID_TARGET"      // 애니메이션 대상 태그 없음
	ErrCodeInvalidDestination ErrorCode = "INVALID_DESTINATION" // 목적지 좌표 누락/비정상
	ErrCodeDegeneratePolygon  ErrorCode = "DEGENERATE_POLYGON"  // 꼭짓점 3개 미만
	ErrCodeStaleReference     ErrorCode = "STALE_REFERENCE"     // 사라진 디바이스 참조
	ErrCodeDeviceNotFound     ErrorCode = "DEVICE_NOT_FOUND"
	ErrCodeFloorNotFound      ErrorCode = "FLOOR_NOT_FOUND"
	ErrCodeInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrCodeUpstream           ErrorCode = "UPSTREAM_ERROR" // 외부 디바이스 API 실패
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// Error is an error carrying an ErrorCode and an optional cause.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is match two *Error values by code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Code == e.Code && t.Message == ""
	}
	return false
}

// NewError creates an *Error with a formatted message.
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates an *Error around cause.
func WrapError(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Sentinels for errors.Is checks; they match any *Error with the same code.
var (
	ErrInvalidTarget      = &Error{Code: ErrCodeInvalidTarget}
	ErrInvalidDestination = &Error{Code: ErrCodeInvalidDestination}
	ErrDegeneratePolygon  = &Error{Code: ErrCodeDegeneratePolygon}
	ErrStaleReference     = &Error{Code: ErrCodeStaleReference}
	ErrDeviceNotFound     = &Error{Code: ErrCodeDeviceNotFound}
	ErrFloorNotFound      = &Error{Code: ErrCodeFloorNotFound}
	ErrInvalidInput       = &Error{Code: ErrCodeInvalidInput}
)

// IsCode reports whether any error in err's chain has the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// CodeOf extracts the first ErrorCode in err's chain, or "" if there is none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns the message without the code prefix.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
