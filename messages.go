package storeauth

import (
	"errors"
	"strings"

	"github.com/MrEthical07/storeauth/provider"
)

// User-facing operation messages.
const (
	MessageInvalidCredentials = "Incorrect email or password."
	MessageEmailNotConfirmed  = "Please verify your email before signing in."
	MessageInvalidCode        = "The code is invalid or has expired."
	MessageUserExists         = "An account with this email already exists."
	MessageRateLimited        = "Too many attempts. Please try again later."
	MessageGeneric            = "Something went wrong. Please try again."
)

var codeMessages = map[provider.Code]string{
	provider.CodeInvalidCredentials: MessageInvalidCredentials,
	provider.CodeEmailNotConfirmed:  MessageEmailNotConfirmed,
	provider.CodeOTPExpired:         MessageInvalidCode,
	provider.CodeUserExists:         MessageUserExists,
	provider.CodeRateLimited:        MessageRateLimited,
	provider.CodeUnavailable:        MessageGeneric,
}

// phraseMessages covers providers that report rejections as text only.
var phraseMessages = []struct {
	phrase  string
	code    provider.Code
	message string
}{
	{"invalid login credentials", provider.CodeInvalidCredentials, MessageInvalidCredentials},
	{"email not confirmed", provider.CodeEmailNotConfirmed, MessageEmailNotConfirmed},
}

// normalizeError maps err onto the uniform operation error. Coded provider
// rejections get fixed messages, uncoded ones are matched by phrase, other
// provider messages pass through verbatim and everything else is generic.
func normalizeError(err error) *OperationError {
	if err == nil {
		return nil
	}

	var pe *provider.Error
	isProvider := errors.As(err, &pe) && pe != nil

	if isProvider && pe.Code != provider.CodeUnknown {
		if msg, ok := codeMessages[pe.Code]; ok {
			return &OperationError{Message: msg, Code: pe.Code, Err: err}
		}
	}

	lower := strings.ToLower(err.Error())
	for _, m := range phraseMessages {
		if strings.Contains(lower, m.phrase) {
			return &OperationError{Message: m.message, Code: m.code, Err: err}
		}
	}

	if isProvider && strings.TrimSpace(pe.Message) != "" {
		return &OperationError{Message: pe.Message, Code: pe.Code, Err: err}
	}
	return &OperationError{Message: MessageGeneric, Code: provider.CodeOf(err), Err: err}
}
