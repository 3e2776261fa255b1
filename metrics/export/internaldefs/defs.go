package internaldefs

import (
	goPortal "github.com/MrEthical07/goPortal"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   goPortal.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram for exporters.
type HistogramDef struct {
	ID   goPortal.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter exported for dispatcher drops.
const AuditDroppedName = "portal_audit_dropped_total"

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: goPortal.MetricAuthorizeSuccess, Name: "portal_authorize_success_total", Help: "Callbacks that established a session."},
	{ID: goPortal.MetricAuthorizeMissingCode, Name: "portal_authorize_missing_code_total", Help: "Callbacks without an authorization code."},
	{ID: goPortal.MetricAuthorizeTokenExchangeFailed, Name: "portal_authorize_token_exchange_failed_total", Help: "Code exchanges rejected by the provider."},
	{ID: goPortal.MetricAuthorizeProfileFetchFailed, Name: "portal_authorize_profile_fetch_failed_total", Help: "Failed profile fetches."},
	{ID: goPortal.MetricAuthorizeMembershipFetchFailed, Name: "portal_authorize_membership_fetch_failed_total", Help: "Failed membership fetches."},
	{ID: goPortal.MetricAuthorizeSessionStoreFailed, Name: "portal_authorize_session_store_failed_total", Help: "Sessions that could not be stored."},
	{ID: goPortal.MetricCallbackRateLimited, Name: "portal_callback_rate_limited_total", Help: "Callbacks refused by the failure throttle."},
	{ID: goPortal.MetricSessionCreated, Name: "portal_session_created_total", Help: "Created sessions."},
	{ID: goPortal.MetricSessionDestroyed, Name: "portal_session_destroyed_total", Help: "Sessions destroyed on logout."},
	{ID: goPortal.MetricLogoutFailure, Name: "portal_logout_failure_total", Help: "Logouts that could not reach the session store."},
	{ID: goPortal.MetricSessionLookupMiss, Name: "portal_session_lookup_miss_total", Help: "Session lookups for unknown or expired sessions."},
	{ID: goPortal.MetricCatalogListSuccess, Name: "portal_catalog_list_success_total", Help: "Successful product listings."},
	{ID: goPortal.MetricCatalogListFailure, Name: "portal_catalog_list_failure_total", Help: "Failed product listings."},
	{ID: goPortal.MetricCheckoutSuccess, Name: "portal_checkout_success_total", Help: "Created checkout sessions."},
	{ID: goPortal.MetricCheckoutFailure, Name: "portal_checkout_failure_total", Help: "Checkout sessions rejected by the payment provider."},
	{ID: goPortal.MetricCheckoutInvalidPrice, Name: "portal_checkout_invalid_price_total", Help: "Checkout requests without a price id."},
}

// HistogramDefs lists every exported latency histogram.
var HistogramDefs = []HistogramDef{
	{ID: goPortal.MetricAuthorizeLatency, Name: "portal_authorize_latency_seconds", Help: "Callback latency including provider calls."},
	{ID: goPortal.MetricCatalogListLatency, Name: "portal_catalog_list_latency_seconds", Help: "Product listing latency."},
}

// HistogramBounds are the upper bucket bounds in seconds, matching the
// engine's millisecond buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix spells HistogramBounds for use inside metric names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, zero-filling missing
// buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into le-style running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
