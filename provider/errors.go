package provider

import (
	"errors"
	"fmt"
)

// Code is a machine-readable provider error discriminator.
type Code string

const (
	CodeUnknown            Code = ""
	CodeInvalidCredentials Code = "invalid_credentials"
	CodeEmailNotConfirmed  Code = "email_not_confirmed"
	CodeOTPExpired         Code = "otp_expired"
	CodeUserExists         Code = "user_already_exists"
	CodeWeakPassword       Code = "weak_password"
	CodeRateLimited        Code = "over_request_rate_limit"
	CodeSessionMissing     Code = "session_not_found"
	CodeValidation         Code = "validation_failed"
	CodeUnavailable        Code = "service_unavailable"
)

// Error is an authentication rejection reported by a provider.
type Error struct {
	Code    Code
	Message string
	Status  int
	Err     error
}

// NewError returns an *Error with the given code and message.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message == "" && e.Code != CodeUnknown {
		return string(e.Code)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches another *Error by code so callers can write
// errors.Is(err, provider.NewError(provider.CodeOTPExpired, "")).
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) || other == nil {
		return false
	}
	return other.Code != CodeUnknown && other.Code == e.Code
}

// CodeOf extracts the provider code from err, or CodeUnknown.
func CodeOf(err error) Code {
	var pe *Error
	if errors.As(err, &pe) && pe != nil {
		return pe.Code
	}
	return CodeUnknown
}

// Unavailable wraps a transport failure as a CodeUnavailable error.
func Unavailable(err error) *Error {
	return &Error{
		Code:    CodeUnavailable,
		Message: fmt.Sprintf("auth provider unavailable: %v", err),
		Err:     err,
	}
}
