package gotrue

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/MrEthical07/storeauth/provider"
)

// apiError covers both error shapes the auth API returns.
type apiError struct {
	Code             int    `json:"code"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

var knownCodes = map[string]provider.Code{
	"invalid_credentials":        provider.CodeInvalidCredentials,
	"invalid_grant":              provider.CodeInvalidCredentials,
	"email_not_confirmed":        provider.CodeEmailNotConfirmed,
	"otp_expired":                provider.CodeOTPExpired,
	"user_already_exists":        provider.CodeUserExists,
	"email_exists":               provider.CodeUserExists,
	"weak_password":              provider.CodeWeakPassword,
	"over_request_rate_limit":    provider.CodeRateLimited,
	"over_email_send_rate_limit": provider.CodeRateLimited,
	"over_sms_send_rate_limit":   provider.CodeRateLimited,
	"session_not_found":          provider.CodeSessionMissing,
	"refresh_token_not_found":    provider.CodeSessionMissing,
	"validation_failed":          provider.CodeValidation,
}

// decodeError turns a non-2xx response into a *provider.Error.
func decodeError(resp *http.Response) *provider.Error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var payload apiError
	_ = json.Unmarshal(body, &payload)

	msg := firstNonEmpty(payload.Msg, payload.Message, payload.ErrorDescription, payload.Error)
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	code, ok := knownCodes[payload.ErrorCode]
	if !ok {
		code, ok = knownCodes[payload.Error]
	}
	switch {
	case ok:
	case resp.StatusCode == http.StatusTooManyRequests:
		code = provider.CodeRateLimited
	case resp.StatusCode >= 500:
		code = provider.CodeUnavailable
	}

	// Older deployments report several failures as invalid_grant.
	if payload.ErrorCode == "" && code == provider.CodeInvalidCredentials {
		lower := strings.ToLower(msg)
		switch {
		case strings.Contains(lower, "refresh token"):
			code = provider.CodeSessionMissing
		case strings.Contains(lower, "email not confirmed"):
			code = provider.CodeEmailNotConfirmed
		}
	}

	return &provider.Error{Code: code, Message: msg, Status: resp.StatusCode}
}

// breakerSuccessful keeps auth rejections and caller cancellations from
// tripping the breaker.
func breakerSuccessful(err error) bool {
	if err == nil {
		return true
	}
	var pe *provider.Error
	if errors.As(err, &pe) {
		if pe.Code == provider.CodeUnavailable || pe.Status >= 500 {
			return isCallerCancel(pe.Err)
		}
		return true
	}
	return isCallerCancel(err)
}

func breakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return provider.Unavailable(err)
	}
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
