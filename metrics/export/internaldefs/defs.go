package internaldefs

import (
	portfolioAuth "github.com/MrEthical07/portfolioAuth"
)

// BucketCount is the number of latency buckets, +Inf included.
const BucketCount = 8

type CounterDef struct {
	ID   portfolioAuth.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   portfolioAuth.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: portfolioAuth.MetricAuthenticateSuccess, Name: "portfolioauth_authenticate_success_total", Help: "Successful authentications."},
	{ID: portfolioAuth.MetricAuthenticateFailure, Name: "portfolioauth_authenticate_failure_total", Help: "Failed authentications."},
	{ID: portfolioAuth.MetricAuthenticateRateLimited, Name: "portfolioauth_authenticate_rate_limited_total", Help: "Authentications refused by the login throttle."},
	{ID: portfolioAuth.MetricAuthorizeGuest, Name: "portfolioauth_authorize_guest_total", Help: "Authorizations without credentials."},
	{ID: portfolioAuth.MetricAuthorizeSuccess, Name: "portfolioauth_authorize_success_total", Help: "Access tokens accepted."},
	{ID: portfolioAuth.MetricAuthorizeInvalid, Name: "portfolioauth_authorize_invalid_total", Help: "Access tokens rejected as invalid or expired."},
	{ID: portfolioAuth.MetricRenewSuccess, Name: "portfolioauth_renew_success_total", Help: "Successful credential renewals."},
	{ID: portfolioAuth.MetricRenewFailure, Name: "portfolioauth_renew_failure_total", Help: "Failed credential renewals."},
	{ID: portfolioAuth.MetricRenewRaceLost, Name: "portfolioauth_renew_race_lost_total", Help: "Renewals that lost a concurrent rotation of the same session."},
	{ID: portfolioAuth.MetricRenewRateLimited, Name: "portfolioauth_renew_rate_limited_total", Help: "Renewals refused by the hourly budget."},
	{ID: portfolioAuth.MetricFingerprintMismatch, Name: "portfolioauth_fingerprint_mismatch_total", Help: "Renewals whose client fingerprint changed."},
	{ID: portfolioAuth.MetricSessionCreated, Name: "portfolioauth_session_created_total", Help: "Sessions created at authentication."},
	{ID: portfolioAuth.MetricSessionEvicted, Name: "portfolioauth_session_evicted_total", Help: "Sessions evicted by the per-user cap."},
	{ID: portfolioAuth.MetricSessionRevoked, Name: "portfolioauth_session_revoked_total", Help: "Sessions removed by logout."},
	{ID: portfolioAuth.MetricSessionBanned, Name: "portfolioauth_session_banned_total", Help: "Sessions moved to the banned namespace."},
	{ID: portfolioAuth.MetricLogout, Name: "portfolioauth_logout_total", Help: "Single-device logouts."},
	{ID: portfolioAuth.MetricLogoutAll, Name: "portfolioauth_logout_all_total", Help: "Logout-everywhere operations."},
	{ID: portfolioAuth.MetricAccessDenied, Name: "portfolioauth_access_denied_total", Help: "Guard calls refused for insufficient role."},
	{ID: portfolioAuth.MetricGuardFallback, Name: "portfolioauth_guard_fallback_total", Help: "Guard calls that continued as the fallback context."},
}

var HistogramDefs = []HistogramDef{
	{ID: portfolioAuth.MetricGuardLatency, Name: "portfolioauth_guard_latency_seconds", Help: "Guard authorization latency."},
}

// HistogramBounds are the bucket upper bounds in seconds.
var HistogramBounds = [BucketCount]string{
	"0.001",
	"0.002",
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"+Inf",
}

// NormalizeBuckets copies raw into a fixed-size array, padding with zeros.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	copy(out[:], raw)
	return out
}

func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i, v := range raw {
		running += v
		out[i] = running
	}
	return out
}
