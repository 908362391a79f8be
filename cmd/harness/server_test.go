package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/thenexusengine/tne_adwave/internal/adapter"
	"github.com/thenexusengine/tne_adwave/internal/adwave/adwavetest"
	"github.com/thenexusengine/tne_adwave/internal/mediation"
)

func newTestHarness(t *testing.T, sdk *adwavetest.SDK) *Harness {
	t.Helper()

	a := adapter.New(sdk)
	cfg := mediation.PartnerConfiguration{Credentials: map[string]string{"app_key": "harness-key"}}
	if _, err := a.SetUp(context.Background(), cfg); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	return newHarness(&HarnessConfig{Port: "0", Timeout: 2 * time.Second}, a)
}

func TestHandleHealth(t *testing.T) {
	h := newTestHarness(t, adwavetest.New())

	rec := httptest.NewRecorder()
	h.handleHealth(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid health body: %v", err)
	}
	if body["status"] != "ok" || body["adapter"] == "" {
		t.Errorf("unexpected health body: %v", body)
	}
}

func TestHandleLoad(t *testing.T) {
	sdk := adwavetest.New()
	sdk.AutoFill = true
	h := newTestHarness(t, sdk)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/load", strings.NewReader(`{"format":"interstitial","placement":"home"}`))
	h.handleLoad(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid load body: %v", err)
	}
	if body["placement"] != "home" || body["format"] != "interstitial" {
		t.Errorf("unexpected load body: %v", body)
	}
}

func TestHandleLoad_BadRequests(t *testing.T) {
	h := newTestHarness(t, adwavetest.New())

	tests := []struct {
		name   string
		method string
		body   string
		want   int
	}{
		{"wrong method", "GET", "", http.StatusMethodNotAllowed},
		{"bad json", "POST", "{", http.StatusBadRequest},
		{"missing placement", "POST", `{"format":"interstitial"}`, http.StatusBadRequest},
		{"unknown format", "POST", `{"format":"banner","placement":"home"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, "/load", strings.NewReader(tt.body))
			h.handleLoad(rec, req)

			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestHandleShow_NotReady(t *testing.T) {
	h := newTestHarness(t, adwavetest.New())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/show", strings.NewReader(`{"format":"rewarded","placement":"bonus"}`))
	h.handleShow(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for a not-ready placement, got %d", rec.Code)
	}
}
