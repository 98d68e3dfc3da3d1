package internaldefs

import (
	"github.com/MrEthical07/storeauth"
)

// CounterDef binds a store counter to its exported name.
type CounterDef struct {
	ID   storeauth.MetricID
	Name string
	Help string
}

// HistogramDef binds a store histogram to its exported name.
type HistogramDef struct {
	ID   storeauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: storeauth.MetricBootstrapCompleted, Name: "storeauth_bootstrap_completed_total", Help: "Bootstraps that finished loading."},
	{ID: storeauth.MetricBootstrapTimeout, Name: "storeauth_bootstrap_timeout_total", Help: "Bootstraps ended by the safety timer."},
	{ID: storeauth.MetricStaleCredentialPurged, Name: "storeauth_stale_credential_purged_total", Help: "Expired persisted credentials removed at startup."},
	{ID: storeauth.MetricCorruptCredentialPurged, Name: "storeauth_corrupt_credential_purged_total", Help: "Unparseable persisted credentials removed at startup."},
	{ID: storeauth.MetricEventReceived, Name: "storeauth_event_received_total", Help: "Auth events delivered by the provider."},
	{ID: storeauth.MetricEventDuplicateInitial, Name: "storeauth_event_duplicate_initial_total", Help: "Repeated INITIAL_SESSION events ignored."},
	{ID: storeauth.MetricSessionCleared, Name: "storeauth_session_cleared_total", Help: "Session state clears."},
	{ID: storeauth.MetricProfileLookupAttempt, Name: "storeauth_profile_lookup_attempt_total", Help: "Profile store lookups."},
	{ID: storeauth.MetricProfileLookupFailure, Name: "storeauth_profile_lookup_failure_total", Help: "Profile store lookups that failed or found no row."},
	{ID: storeauth.MetricProfileResolved, Name: "storeauth_profile_resolved_total", Help: "Profiles loaded from the profile store."},
	{ID: storeauth.MetricProfileFallback, Name: "storeauth_profile_fallback_total", Help: "Profiles synthesized from identity attributes."},
	{ID: storeauth.MetricProfileCanceled, Name: "storeauth_profile_canceled_total", Help: "Profile resolutions stopped by cancellation."},
	{ID: storeauth.MetricProfileDiscarded, Name: "storeauth_profile_discarded_total", Help: "Resolved profiles dropped because the session changed."},
	{ID: storeauth.MetricSignInSuccess, Name: "storeauth_sign_in_success_total", Help: "Successful password sign-ins."},
	{ID: storeauth.MetricSignInFailure, Name: "storeauth_sign_in_failure_total", Help: "Failed password sign-ins."},
	{ID: storeauth.MetricSignUpSuccess, Name: "storeauth_sign_up_success_total", Help: "Accepted sign-ups."},
	{ID: storeauth.MetricSignUpFailure, Name: "storeauth_sign_up_failure_total", Help: "Rejected sign-ups."},
	{ID: storeauth.MetricSignUpConfirmSuccess, Name: "storeauth_sign_up_confirm_success_total", Help: "Successful sign-up code confirmations."},
	{ID: storeauth.MetricSignUpConfirmFailure, Name: "storeauth_sign_up_confirm_failure_total", Help: "Failed sign-up code confirmations."},
	{ID: storeauth.MetricSignOut, Name: "storeauth_sign_out_total", Help: "Sign-out operations."},
	{ID: storeauth.MetricSignOutProviderFailure, Name: "storeauth_sign_out_provider_failure_total", Help: "Sign-outs where the provider call failed."},
	{ID: storeauth.MetricPasswordResetRequest, Name: "storeauth_password_reset_request_total", Help: "Password reset code requests."},
	{ID: storeauth.MetricPasswordResetConfirmSuccess, Name: "storeauth_password_reset_confirm_success_total", Help: "Successful password reset confirmations."},
	{ID: storeauth.MetricPasswordResetConfirmFailure, Name: "storeauth_password_reset_confirm_failure_total", Help: "Failed password reset confirmations."},
	{ID: storeauth.MetricCodeResend, Name: "storeauth_code_resend_total", Help: "Verification code resend requests."},
	{ID: storeauth.MetricOperationPanic, Name: "storeauth_operation_panic_total", Help: "Operations that recovered from a panic."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: storeauth.MetricProfileResolveLatency, Name: "storeauth_profile_resolve_latency_seconds", Help: "Profile resolution latency histogram."},
}

// HistogramBounds are the upper bucket bounds in seconds.
var HistogramBounds = []string{
	"0.01",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"2.5",
	"+Inf",
}

// HistogramBoundSuffix mirrors HistogramBounds in instrument-name form.
var HistogramBoundSuffix = []string{
	"0_01",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"2_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed 8-bucket array, zero-filling
// missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
