// Package apperr holds the error taxonomy shared by the repository, the
// search engine and the narration machine.
package apperr

import (
	"errors"
	"fmt"
)

const (
	CodeValidation            = "VALIDATION_ERROR"
	CodeNotFound              = "NOT_FOUND"
	CodeCapabilityUnavailable = "CAPABILITY_UNAVAILABLE"
	CodeStaleSession          = "STALE_SESSION_DISCARDED"
	CodeForbidden             = "FORBIDDEN"
)

type DomainError struct {
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(code, message string, details any) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// Validation reports a missing or malformed input field. details is usually
// the offending field name.
func Validation(message string, details any) *DomainError {
	return domainError(CodeValidation, message, details)
}

func NotFound(message string, details any) *DomainError {
	return domainError(CodeNotFound, message, details)
}

func CapabilityUnavailable(message string) *DomainError {
	return domainError(CodeCapabilityUnavailable, message, nil)
}

func StaleSession(sessionID uint64) *DomainError {
	return domainError(CodeStaleSession, "event for inactive narration session", sessionID)
}

func Forbidden(message string) *DomainError {
	return domainError(CodeForbidden, message, nil)
}

// Code returns the DomainError code found in err's chain, or "".
func Code(err error) string {
	var de *DomainError
	if errors.As(err, &de) && de != nil {
		return de.Code
	}
	return ""
}

func IsValidation(err error) bool { return Code(err) == CodeValidation }

func IsNotFound(err error) bool { return Code(err) == CodeNotFound }

func IsCapabilityUnavailable(err error) bool { return Code(err) == CodeCapabilityUnavailable }

func IsForbidden(err error) bool { return Code(err) == CodeForbidden }
