package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/thenexusengine/tne_adwave/internal/adapter"
	"github.com/thenexusengine/tne_adwave/internal/adwave/demand"
	"github.com/thenexusengine/tne_adwave/internal/errortypes"
	"github.com/thenexusengine/tne_adwave/internal/mediation"
	"github.com/thenexusengine/tne_adwave/internal/metrics"
	"github.com/thenexusengine/tne_adwave/pkg/logger"
)

// Harness drives a single adapter instance over HTTP so load and show flows
// can be exercised against a real demand endpoint.
type Harness struct {
	cfg     *HarnessConfig
	adapter *adapter.Adapter
	server  *http.Server
	log     zerolog.Logger
}

// NewHarness wires the demand client into an adapter and sets it up with the
// configured app key.
func NewHarness(cfg *HarnessConfig) (*Harness, error) {
	a := adapter.New(demand.New(cfg.Demand))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	partnerCfg := mediation.PartnerConfiguration{
		Credentials: map[string]string{"app_key": cfg.AppKey},
	}
	if _, err := a.SetUp(ctx, partnerCfg); err != nil {
		return nil, err
	}

	return newHarness(cfg, a), nil
}

// newHarness assembles the HTTP surface around an already set-up adapter
func newHarness(cfg *HarnessConfig, a *adapter.Adapter) *Harness {
	h := &Harness{
		cfg:     cfg,
		adapter: a,
		log:     logger.Log.With().Str("component", "harness").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/load", h.handleLoad)
	mux.HandleFunc("/show", h.handleShow)

	h.server = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return h
}

// Start begins serving HTTP requests
func (h *Harness) Start() error {
	h.log.Info().Str("port", h.cfg.Port).Msg("harness listening")
	if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the harness
func (h *Harness) Shutdown(ctx context.Context) error {
	if err := h.server.Shutdown(ctx); err != nil {
		return err
	}
	return h.adapter.Close()
}

func (h *Harness) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"adapter": adapter.AdapterVersion,
		"partner": adapter.PartnerSDKVersion,
	})
}

type adRequest struct {
	Format    string `json:"format"`
	Placement string `json:"placement"`
}

func (h *Harness) handleLoad(w http.ResponseWriter, r *http.Request) {
	req, format, ok := h.parseAdRequest(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.Timeout)
	defer cancel()

	loadReq := mediation.AdLoadRequest{
		ID:        time.Now().Format("20060102T150405.000"),
		Format:    format,
		Placement: req.Placement,
	}
	ad, err := h.adapter.Load(ctx, loadReq, &loggingListener{log: h.log})
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"placement": ad.Placement,
		"format":    string(ad.Format),
	})
}

func (h *Harness) handleShow(w http.ResponseWriter, r *http.Request) {
	req, format, ok := h.parseAdRequest(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.Timeout)
	defer cancel()

	ad := mediation.PartnerAd{
		Format:    format,
		Placement: req.Placement,
		Details:   map[string]string{},
	}
	if _, err := h.adapter.Show(ctx, ad); err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "shown"})
}

func (h *Harness) parseAdRequest(w http.ResponseWriter, r *http.Request) (adRequest, mediation.AdFormat, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return adRequest{}, "", false
	}

	var req adRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Placement == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return adRequest{}, "", false
	}

	switch req.Format {
	case "interstitial":
		return req, mediation.FormatInterstitial, true
	case "rewarded":
		return req, mediation.FormatRewarded, true
	default:
		http.Error(w, "unknown ad format", http.StatusBadRequest)
		return adRequest{}, "", false
	}
}

func (h *Harness) writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	switch {
	case errortypes.IsCode(err, errortypes.CodeNoFill):
		status = http.StatusNoContent
	case errortypes.IsCode(err, errortypes.CodeAdNotReady),
		errortypes.IsCode(err, errortypes.CodeLoadAborted),
		errortypes.IsCode(err, errortypes.CodeUnsupportedFormat):
		status = http.StatusConflict
	case errortypes.IsCode(err, errortypes.CodeAdRequestTimeout):
		status = http.StatusGatewayTimeout
	}

	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}
	http.Error(w, err.Error(), status)
}

// loggingListener reports host lifecycle callbacks to the harness log
type loggingListener struct {
	log zerolog.Logger
}

func (l *loggingListener) OnPartnerAdImpression(ad mediation.PartnerAd) {
	l.log.Info().Str("placement", ad.Placement).Msg("impression")
}

func (l *loggingListener) OnPartnerAdClicked(ad mediation.PartnerAd) {
	l.log.Info().Str("placement", ad.Placement).Msg("clicked")
}

func (l *loggingListener) OnPartnerAdDismissed(ad mediation.PartnerAd, err error) {
	l.log.Info().Str("placement", ad.Placement).Err(err).Msg("dismissed")
}

func (l *loggingListener) OnPartnerAdRewarded(ad mediation.PartnerAd) {
	l.log.Info().Str("placement", ad.Placement).Msg("rewarded")
}
