package internaldefs

import (
	"strconv"

	"github.com/MrEthical07/rolegate"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   rolegate.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram.
type HistogramDef struct {
	ID   rolegate.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const AuditDroppedName = "rolegate_audit_dropped_total"

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: rolegate.MetricSignInSuccess, Name: "rolegate_sign_in_success_total", Help: "Successful sign-ins."},
	{ID: rolegate.MetricSignInFailure, Name: "rolegate_sign_in_failure_total", Help: "Failed sign-ins."},
	{ID: rolegate.MetricSignInRateLimited, Name: "rolegate_sign_in_rate_limited_total", Help: "Throttled sign-in attempts."},
	{ID: rolegate.MetricPasswordRehashed, Name: "rolegate_password_rehashed_total", Help: "Password hashes upgraded on sign-in."},
	{ID: rolegate.MetricMint, Name: "rolegate_mint_total", Help: "Claims minted outside sign-in."},
	{ID: rolegate.MetricRevalidateValid, Name: "rolegate_revalidate_valid_total", Help: "Revalidations that found the session valid."},
	{ID: rolegate.MetricRevalidateRequiresLogout, Name: "rolegate_revalidate_requires_logout_total", Help: "Revalidations that flagged the session."},
	{ID: rolegate.MetricRevalidateInvalid, Name: "rolegate_revalidate_invalid_total", Help: "Revalidations that rejected the session."},
	{ID: rolegate.MetricTokenRejected, Name: "rolegate_token_rejected_total", Help: "Session tokens that failed verification."},
	{ID: rolegate.MetricTokenReissued, Name: "rolegate_token_reissued_total", Help: "Session tokens re-signed after revalidation."},
	{ID: rolegate.MetricAuthorizationDenied, Name: "rolegate_authorization_denied_total", Help: "Permission checks that denied."},
	{ID: rolegate.MetricRoleCreated, Name: "rolegate_role_created_total", Help: "Roles created."},
	{ID: rolegate.MetricPermissionsReplaced, Name: "rolegate_permissions_replaced_total", Help: "Role permission replacements."},
	{ID: rolegate.MetricRoleDeleted, Name: "rolegate_role_deleted_total", Help: "Roles deleted."},
	{ID: rolegate.MetricRoleDeleteRejected, Name: "rolegate_role_delete_rejected_total", Help: "Role deletions rejected as protected or in use."},
	{ID: rolegate.MetricRoleAssigned, Name: "rolegate_role_assigned_total", Help: "Role assignments."},
	{ID: rolegate.MetricIdentityCreated, Name: "rolegate_identity_created_total", Help: "Identities created."},
	{ID: rolegate.MetricIdentityDisabled, Name: "rolegate_identity_disabled_total", Help: "Identities disabled."},
	{ID: rolegate.MetricIdentityDeleted, Name: "rolegate_identity_deleted_total", Help: "Identities deleted."},
}

// HistogramDefs lists the latency histograms.
var HistogramDefs = []HistogramDef{
	{ID: rolegate.MetricRevalidateLatency, Name: "rolegate_revalidate_latency_seconds", Help: "Session revalidation latency."},
}

// BucketCount is the number of histogram buckets, the last one unbounded.
const BucketCount = len(rolegate.HistogramBoundsSeconds) + 1

// UpperBounds returns the finite bucket bounds in seconds.
func UpperBounds() []float64 {
	out := make([]float64, len(rolegate.HistogramBoundsSeconds))
	copy(out, rolegate.HistogramBoundsSeconds[:])
	return out
}

// BoundLabels returns the "le" value of every bucket, the last being "+Inf".
func BoundLabels() []string {
	out := make([]string, 0, BucketCount)
	for _, b := range rolegate.HistogramBoundsSeconds {
		out = append(out, strconv.FormatFloat(b, 'f', -1, 64))
	}
	return append(out, "+Inf")
}

// NormalizeBuckets copies raw into a fixed-size array, padding with zeros.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
