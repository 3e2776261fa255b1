package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goPortal "github.com/MrEthical07/goPortal"
)

type fakeSource struct {
	snapshot goPortal.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() goPortal.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                      { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goPortal.MetricsSnapshot{
			Counters:   map[goPortal.MetricID]uint64{},
			Histograms: map[goPortal.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderIncludesCountersAndHistograms(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goPortal.MetricsSnapshot{
			Counters: map[goPortal.MetricID]uint64{
				goPortal.MetricAuthorizeSuccess:             7,
				goPortal.MetricAuthorizeTokenExchangeFailed: 2,
			},
			Histograms: map[goPortal.MetricID][]uint64{
				goPortal.MetricAuthorizeLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	for _, want := range []string{
		"portal_authorize_success_total 7",
		"portal_authorize_token_exchange_failed_total 2",
		"portal_checkout_success_total 0",
		`portal_authorize_latency_seconds_bucket{le="0.005"} 1`,
		`portal_authorize_latency_seconds_bucket{le="+Inf"} 36`,
		"portal_authorize_latency_seconds_count 36",
		"portal_audit_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "portal_catalog_list_latency_seconds") {
		t.Fatal("histograms missing from the snapshot must not be rendered")
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goPortal.MetricsSnapshot{
			Counters:   map[goPortal.MetricID]uint64{goPortal.MetricSessionCreated: 1},
			Histograms: map[goPortal.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/metrics", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for POST, got %d", rec.Code)
	}
}
