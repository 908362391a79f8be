package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordLoad(t *testing.T) {
	m := New("test_load")

	m.RecordLoad("interstitial", "success", 120*time.Millisecond)
	m.RecordLoad("interstitial", "success", 80*time.Millisecond)
	m.RecordLoad("rewarded", "NO_FILL", 300*time.Millisecond)

	if got := testutil.ToFloat64(m.LoadsTotal.WithLabelValues("interstitial", "success")); got != 2 {
		t.Errorf("expected 2 interstitial successes, got %v", got)
	}
	if got := testutil.ToFloat64(m.LoadsTotal.WithLabelValues("rewarded", "NO_FILL")); got != 1 {
		t.Errorf("expected 1 rewarded no-fill, got %v", got)
	}
}

func TestRecordRouterEvents(t *testing.T) {
	m := New("test_router")

	m.RecordRouterEvent("interstitial", "ready")
	m.RecordRouterDropped("interstitial", "ready")
	m.RecordRouterDropped("interstitial", "ready")

	if got := testutil.ToFloat64(m.RouterEvents.WithLabelValues("interstitial", "ready")); got != 1 {
		t.Errorf("expected 1 routed event, got %v", got)
	}
	if got := testutil.ToFloat64(m.RouterDropped.WithLabelValues("interstitial", "ready")); got != 2 {
		t.Errorf("expected 2 dropped events, got %v", got)
	}
}

func TestRecordPartnerError(t *testing.T) {
	m := New("test_partner")

	m.RecordPartnerError(1001)
	m.RecordPartnerError(1001)

	if got := testutil.ToFloat64(m.PartnerErrors.WithLabelValues("1001")); got != 2 {
		t.Errorf("expected 2 partner errors for code 1001, got %v", got)
	}
}

func TestRecordConsentSignal(t *testing.T) {
	m := New("test_consent")

	m.RecordConsentSignal("gdpr", true)
	m.RecordConsentSignal("ccpa", false)

	if got := testutil.ToFloat64(m.ConsentSignals.WithLabelValues("gdpr", "yes")); got != 1 {
		t.Errorf("expected 1 gdpr grant, got %v", got)
	}
	if got := testutil.ToFloat64(m.ConsentSignals.WithLabelValues("ccpa", "no")); got != 1 {
		t.Errorf("expected 1 ccpa denial, got %v", got)
	}
}

func TestDefaultIsSingleton(t *testing.T) {
	if Default() != Default() {
		t.Error("expected Default to return the same instance")
	}
}
