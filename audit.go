package storeauth

import (
	"context"
	"io"

	internalaudit "github.com/MrEthical07/storeauth/internal/audit"
	"github.com/sirupsen/logrus"
)

// AuditEvent is one auth lifecycle record.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the store's dispatcher goroutine.
type AuditSink = internalaudit.Sink

// AuditSinkFunc adapts a function to [AuditSink].
type AuditSinkFunc = internalaudit.SinkFunc

// NoOpSink drops audit events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink writes audit events into a buffered channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// LogrusSink writes each event as a structured log entry.
type LogrusSink = internalaudit.LogrusSink

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

func NewLogrusSink(logger logrus.FieldLogger) *LogrusSink {
	return internalaudit.NewLogrusSink(logger)
}

// FanoutSink delivers each event to every non-nil sink in order.
func FanoutSink(sinks ...AuditSink) AuditSink {
	return internalaudit.Fanout(sinks...)
}

// Audit event types.
const (
	AuditBootstrapComplete    = "bootstrap_complete"
	AuditBootstrapTimeout     = "bootstrap_timeout"
	AuditCredentialsPurged    = "credentials_purged"
	AuditSessionCleared       = "session_cleared"
	AuditProfileFallback      = "profile_fallback"
	AuditSignIn               = "sign_in"
	AuditSignUp               = "sign_up"
	AuditSignUpConfirm        = "sign_up_confirm"
	AuditSignOut              = "sign_out"
	AuditPasswordResetRequest = "password_reset_request"
	AuditPasswordResetConfirm = "password_reset_confirm"
	AuditCodeResend           = "code_resend"
)

func (s *Store) emitAudit(ctx context.Context, event AuditEvent) {
	if s.audit == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	if md := requestMetadata(ctx); md != nil {
		if event.Metadata == nil {
			event.Metadata = md
		} else {
			for k, v := range md {
				if _, ok := event.Metadata[k]; !ok {
					event.Metadata[k] = v
				}
			}
		}
	}
	s.audit.Emit(ctx, event)
}

// AuditDropped reports how many audit events were dropped because the
// dispatcher buffer was full.
func (s *Store) AuditDropped() uint64 {
	if s == nil || s.audit == nil {
		return 0
	}
	return s.audit.Dropped()
}
