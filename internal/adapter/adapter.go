// Package adapter implements the Catalyst partner adapter for the AdWave
// demand-only SDK. The adapter translates the host's lifecycle calls
// (setup, consent, load, show, invalidate) into AdWave calls and bridges
// AdWave's global callbacks back into per-request results through the
// callback router.
package adapter

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/thenexusengine/tne_adwave/internal/adwave"
	"github.com/thenexusengine/tne_adwave/internal/errortypes"
	"github.com/thenexusengine/tne_adwave/internal/events"
	"github.com/thenexusengine/tne_adwave/internal/mediation"
	"github.com/thenexusengine/tne_adwave/internal/metrics"
	"github.com/thenexusengine/tne_adwave/internal/router"
	"github.com/thenexusengine/tne_adwave/pkg/logger"
)

// Adapter metadata reported to the host framework
const (
	PartnerID          = "adwave"
	PartnerDisplayName = "AdWave"
	// AdapterVersion is the version of this adapter build
	AdapterVersion = "1.3.2"
	// PartnerSDKVersion is the AdWave SDK version the adapter drives
	PartnerSDKVersion = adwave.Version
)

// appKeyCredential is the single required credential in the partner
// configuration
const appKeyCredential = "app_key"

// Config holds adapter configuration
type Config struct {
	// TelemetryURL enables the lifecycle event recorder when non-empty
	TelemetryURL string
	// TelemetryBufferSize is the event buffer size before a background flush
	TelemetryBufferSize int
}

// DefaultConfig returns the default adapter configuration.
// ADWAVE_TELEMETRY_URL and ADWAVE_TELEMETRY_BUFFER environment variables
// override the defaults.
func DefaultConfig() Config {
	bufferSize := 100
	if raw := os.Getenv("ADWAVE_TELEMETRY_BUFFER"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			bufferSize = n
		}
	}
	return Config{
		TelemetryURL:        os.Getenv("ADWAVE_TELEMETRY_URL"),
		TelemetryBufferSize: bufferSize,
	}
}

// Adapter is the Catalyst partner adapter for AdWave
type Adapter struct {
	sdk      adwave.SDK
	router   *router.Router
	metrics  *metrics.Metrics
	recorder *events.Recorder // nil when telemetry is disabled
	log      zerolog.Logger

	mu         sync.Mutex
	registered bool
}

// New creates an adapter with the default configuration
func New(sdk adwave.SDK) *Adapter {
	return NewWithConfig(sdk, DefaultConfig())
}

// NewWithConfig creates an adapter with explicit configuration
func NewWithConfig(sdk adwave.SDK, cfg Config) *Adapter {
	var recorder *events.Recorder
	if cfg.TelemetryURL != "" {
		recorder = events.NewRecorder(cfg.TelemetryURL, cfg.TelemetryBufferSize)
	}
	return newAdapter(sdk, metrics.Default(), recorder)
}

// newAdapter wires the adapter with explicit collaborators
func newAdapter(sdk adwave.SDK, m *metrics.Metrics, recorder *events.Recorder) *Adapter {
	return &Adapter{
		sdk:      sdk,
		router:   router.New(m),
		metrics:  m,
		recorder: recorder,
		log:      logger.Log.With().Str("component", "adapter").Logger(),
	}
}

// SetUp initializes the partner SDK. The router is registered as AdWave's
// global listener exactly once, before the first Init call; a missing or
// blank app key fails without touching the partner SDK.
func (a *Adapter) SetUp(ctx context.Context, cfg mediation.PartnerConfiguration) (map[string]string, error) {
	appKey := strings.TrimSpace(cfg.Credential(appKeyCredential))
	if appKey == "" {
		return nil, errortypes.NewSetupFailure("missing app_key credential")
	}

	a.mu.Lock()
	if !a.registered {
		a.sdk.SetInterstitialListener(a.router)
		a.sdk.SetRewardedListener(a.router)
		a.registered = true
	}
	a.mu.Unlock()

	if err := a.sdk.Init(ctx, appKey); err != nil {
		return nil, errortypes.Wrap(errortypes.CodeSetupFailure, "partner SDK initialization failed", err)
	}

	a.log.Info().Msg("adwave adapter set up")
	return map[string]string{}, nil
}

// Invalidate releases the host's reference to a loaded ad. AdWave exposes no
// ad object to tear down, so this always succeeds.
func (a *Adapter) Invalidate(ad mediation.PartnerAd) (mediation.PartnerAd, error) {
	a.log.Debug().
		Str("ad_format", string(ad.Format)).
		Str("placement", ad.Placement).
		Msg("invalidate")
	return ad, nil
}

// FetchBidderInformation returns bidding tokens for programmatic auctions.
// AdWave has no token support; the result is always empty.
func (a *Adapter) FetchBidderInformation(_ context.Context, _ mediation.AdLoadRequest) (map[string]string, error) {
	return map[string]string{}, nil
}

// SetGDPR forwards the GDPR applicability and consent decision. AdWave only
// accepts a definitive consent value, so nothing is forwarded until the
// regulation applies and the user has decided.
func (a *Adapter) SetGDPR(applies *bool, status mediation.ConsentStatus) {
	if applies == nil || !*applies {
		a.log.Debug().Msg("gdpr does not apply, skipping consent forward")
		return
	}
	if status == mediation.ConsentUnknown {
		a.log.Debug().Msg("gdpr consent unknown, skipping consent forward")
		return
	}

	granted := status == mediation.ConsentGranted
	a.sdk.SetConsent(granted)
	a.metrics.RecordConsentSignal("gdpr", granted)
}

// SetCCPA forwards the CCPA/USP opt-out. AdWave takes the inverted
// do-not-sell flag.
func (a *Adapter) SetCCPA(granted bool, _ string) {
	doNotSell := "true"
	if granted {
		doNotSell = "false"
	}
	a.sdk.SetMetaData(adwave.MetaDoNotSell, doNotSell)
	a.metrics.RecordConsentSignal("ccpa", granted)
}

// SetCOPPA forwards the child-directed flag
func (a *Adapter) SetCOPPA(isChild bool) {
	a.sdk.SetMetaData(adwave.MetaChildDirected, strconv.FormatBool(isChild))
	a.metrics.RecordConsentSignal("coppa", !isChild)
}

// Close flushes and stops the telemetry recorder
func (a *Adapter) Close() error {
	if a.recorder == nil {
		return nil
	}
	return a.recorder.Close()
}

// resultLabel maps an operation outcome to a metrics/telemetry label
func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	var ae *errortypes.AdapterError
	if errors.As(err, &ae) {
		return string(ae.Code)
	}
	return "error"
}

// partnerCode extracts the AdWave error code from a mapped error, 0 when
// none is present
func partnerCode(err error) int {
	var pe *adwave.Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return 0
}
