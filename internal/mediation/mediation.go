// Package mediation defines the Catalyst host framework contracts a partner
// adapter consumes and satisfies: the load request and configuration value
// objects the host hands in, and the ad handle and listener vocabulary it
// expects back.
package mediation

// AdFormat identifies the ad format of a load or show request
type AdFormat string

const (
	FormatInterstitial AdFormat = "interstitial"
	FormatRewarded     AdFormat = "rewarded"
	FormatBanner       AdFormat = "banner"
)

// PartnerAd is the handle returned to the host for a loaded ad. AdWave
// exposes no ad object of its own, so the handle carries only the placement
// identifier and an empty details map; it is a reference, not an owned
// resource.
type PartnerAd struct {
	Placement string
	Format    AdFormat
	Details   map[string]string
}

// AdLoadRequest is the host's request to load one ad
type AdLoadRequest struct {
	// ID is the host-side identifier for this request, used in logs and
	// telemetry only.
	ID string
	// Format is the requested ad format
	Format AdFormat
	// Placement is the partner-scoped placement identifier
	Placement string
}

// AdListener receives lifecycle events for a single loaded ad. The host
// framework supplies one listener per load request.
type AdListener interface {
	OnPartnerAdImpression(ad PartnerAd)
	OnPartnerAdClicked(ad PartnerAd)
	// OnPartnerAdDismissed reports the ad leaving the screen; err is non-nil
	// when the dismissal was caused by a show failure.
	OnPartnerAdDismissed(ad PartnerAd, err error)
	OnPartnerAdRewarded(ad PartnerAd)
}

// PartnerConfiguration carries the partner credentials supplied at setup
type PartnerConfiguration struct {
	Credentials map[string]string
}

// Credential returns the named credential, or "" when absent
func (c PartnerConfiguration) Credential(key string) string {
	return c.Credentials[key]
}

// ConsentStatus is the tri-state GDPR consent signal
type ConsentStatus int

const (
	ConsentUnknown ConsentStatus = iota
	ConsentGranted
	ConsentDenied
)

// String returns the lowercase name of the consent status
func (s ConsentStatus) String() string {
	switch s {
	case ConsentGranted:
		return "granted"
	case ConsentDenied:
		return "denied"
	default:
		return "unknown"
	}
}
