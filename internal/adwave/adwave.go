// Package adwave defines the AdWave demand-only SDK surface the adapter
// drives. AdWave exposes a single global listener per ad format and
// fire-and-forget load/show entry points; completion is reported only
// through the listener callbacks.
package adwave

import (
	"context"
	"fmt"
)

// Version is the AdWave SDK version this adapter is built against
const Version = "7.4.1"

// Error codes emitted by the AdWave SDK
const (
	CodeInitFailure    = 1000
	CodeNoFill         = 1001
	CodeNoConnection   = 1002
	CodeEmptyPayload   = 1003
	CodeInvalidPayload = 1004
	CodeAuctionFailed  = 1005
	CodeTimeout        = 1006
	// CodeCapped means the placement hit its frequency cap; treated as no fill
	CodeCapped   = 1007
	CodeNotReady = 1008
	CodeInternal = 1099
)

// Metadata keys recognized by SetMetaData
const (
	// MetaDoNotSell carries the CCPA/USP opt-out flag ("true" = user opted out)
	MetaDoNotSell = "do_not_sell"
	// MetaChildDirected carries the COPPA child-directed flag
	MetaChildDirected = "is_child_directed"
)

// Error is an error reported by the AdWave SDK
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("adwave error %d: %s", e.Code, e.Message)
}

// InterstitialListener is AdWave's single global interstitial listener.
// The SDK holds exactly one; every interstitial event for every placement
// is delivered to it.
type InterstitialListener interface {
	OnInterstitialAdReady(placement string)
	OnInterstitialAdLoadFailed(placement string, err *Error)
	OnInterstitialAdOpened(placement string)
	OnInterstitialAdClosed(placement string)
	OnInterstitialAdShowFailed(placement string, err *Error)
	OnInterstitialAdClicked(placement string)
}

// RewardedListener is AdWave's single global rewarded video listener
type RewardedListener interface {
	OnRewardedAdReady(placement string)
	OnRewardedAdLoadFailed(placement string, err *Error)
	OnRewardedAdOpened(placement string)
	OnRewardedAdClosed(placement string)
	OnRewardedAdShowFailed(placement string, err *Error)
	OnRewardedAdClicked(placement string)
	OnRewardedAdRewarded(placement string)
}

// SDK is the AdWave demand-only API surface. Load and show calls return
// immediately; results arrive on the global listeners, possibly from a
// different goroutine.
type SDK interface {
	// Init initializes the SDK in demand-only mode with the app key
	Init(ctx context.Context, appKey string) error

	SetInterstitialListener(l InterstitialListener)
	SetRewardedListener(l RewardedListener)

	LoadInterstitial(placement string)
	ShowInterstitial(placement string)
	IsInterstitialReady(placement string) bool

	LoadRewarded(placement string)
	ShowRewarded(placement string)
	IsRewardedReady(placement string) bool

	// SetConsent forwards the GDPR consent decision
	SetConsent(granted bool)
	// SetMetaData forwards a privacy metadata flag
	SetMetaData(key, value string)
}
