// Package router demultiplexes AdWave's global per-format callbacks to the
// per-placement listener that owns each in-flight request.
//
// AdWave holds exactly one listener per ad format while the host issues many
// concurrent per-placement requests, each expecting its own completion
// signal. The Router is registered once as the global listener and fans
// every inbound event out by (format, placement). Events with no owning
// listener are dropped with a diagnostic; they are stale, not fatal.
package router

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/thenexusengine/tne_adwave/internal/adwave"
	"github.com/thenexusengine/tne_adwave/internal/mediation"
	"github.com/thenexusengine/tne_adwave/internal/metrics"
	"github.com/thenexusengine/tne_adwave/pkg/logger"
)

// ErrAlreadySubscribed is returned when a placement already has a pending
// listener for the format. The caller must treat it as a load collision and
// fail fast without calling into the partner SDK.
var ErrAlreadySubscribed = errors.New("placement already has a pending listener")

// AdEventListener receives the routed events for one (format, placement)
// request. OnAdRewarded only fires for rewarded requests.
type AdEventListener interface {
	OnAdReady(placement string)
	OnAdLoadFailed(placement string, err *adwave.Error)
	OnAdOpened(placement string)
	OnAdClosed(placement string)
	OnAdShowFailed(placement string, err *adwave.Error)
	OnAdClicked(placement string)
	OnAdRewarded(placement string)
}

// ShowCompletion resolves one suspended show call. The router takes the pair
// out of its map before invoking either callback, so each pair fires at most
// once even if the partner double-fires the event.
type ShowCompletion struct {
	OnSuccess func()
	OnFailure func(err *adwave.Error)
}

type showKey struct {
	format    mediation.AdFormat
	placement string
}

// Router owns the global AdWave listener slots and the per-placement
// listener maps. Interstitial and rewarded placements are independent
// namespaces; the same placement string may be pending in both at once.
type Router struct {
	mu           sync.Mutex
	interstitial map[string]AdEventListener
	rewarded     map[string]AdEventListener
	show         map[showKey]*ShowCompletion

	metrics *metrics.Metrics
	log     zerolog.Logger
}

// New creates a router. The router must be registered with the partner SDK
// exactly once, during adapter setup.
func New(m *metrics.Metrics) *Router {
	return &Router{
		interstitial: make(map[string]AdEventListener),
		rewarded:     make(map[string]AdEventListener),
		show:         make(map[showKey]*ShowCompletion),
		metrics:      m,
		log:          logger.Router(),
	}
}

// Subscribe registers a listener for (format, placement). A placement may
// have at most one pending listener per format; a second subscription
// returns ErrAlreadySubscribed and leaves the first untouched.
func (r *Router) Subscribe(format mediation.AdFormat, placement string, l AdEventListener) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, err := r.bucket(format)
	if err != nil {
		return err
	}
	if _, exists := bucket[placement]; exists {
		return ErrAlreadySubscribed
	}
	bucket[placement] = l
	return nil
}

// Contains reports whether (format, placement) has a pending listener
func (r *Router) Contains(format mediation.AdFormat, placement string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, err := r.bucket(format)
	if err != nil {
		return false
	}
	_, exists := bucket[placement]
	return exists
}

// BeginShow binds a single-use completion pair for the next opened or
// show-failed event on (format, placement). A new show call for the same key
// replaces any pair left over from an abandoned one.
func (r *Router) BeginShow(format mediation.AdFormat, placement string, c *ShowCompletion) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.show[showKey{format: format, placement: placement}] = c
}

// bucket must be called with r.mu held
func (r *Router) bucket(format mediation.AdFormat) (map[string]AdEventListener, error) {
	switch format {
	case mediation.FormatInterstitial:
		return r.interstitial, nil
	case mediation.FormatRewarded:
		return r.rewarded, nil
	default:
		return nil, fmt.Errorf("no listener map for format %q", format)
	}
}

// lookup finds the listener without removing it
func (r *Router) lookup(format mediation.AdFormat, placement string) (AdEventListener, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, err := r.bucket(format)
	if err != nil {
		return nil, false
	}
	l, ok := bucket[placement]
	return l, ok
}

// take removes and returns the listener in one critical section
func (r *Router) take(format mediation.AdFormat, placement string) (AdEventListener, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, err := r.bucket(format)
	if err != nil {
		return nil, false
	}
	l, ok := bucket[placement]
	if ok {
		delete(bucket, placement)
	}
	return l, ok
}

// takeShow removes and returns the show completion pair in one critical
// section
func (r *Router) takeShow(format mediation.AdFormat, placement string) (*ShowCompletion, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := showKey{format: format, placement: placement}
	c, ok := r.show[key]
	if ok {
		delete(r.show, key)
	}
	return c, ok
}

func (r *Router) routed(format mediation.AdFormat, event string) {
	r.metrics.RecordRouterEvent(string(format), event)
}

func (r *Router) dropped(format mediation.AdFormat, placement, event string) {
	r.metrics.RecordRouterDropped(string(format), event)
	r.log.Warn().
		Str("ad_format", string(format)).
		Str("placement", placement).
		Str("event", event).
		Msg("dropping partner event with no pending listener")
}

// ready routes a load-success event. The entry stays subscribed so later
// show-phase events for the same placement still resolve.
func (r *Router) ready(format mediation.AdFormat, placement string) {
	l, ok := r.lookup(format, placement)
	if !ok {
		r.dropped(format, placement, "ready")
		return
	}
	r.routed(format, "ready")
	l.OnAdReady(placement)
}

// loadFailed routes a terminal load failure and evicts the entry
func (r *Router) loadFailed(format mediation.AdFormat, placement string, err *adwave.Error) {
	l, ok := r.take(format, placement)
	if !ok {
		r.dropped(format, placement, "load_failed")
		return
	}
	r.routed(format, "load_failed")
	l.OnAdLoadFailed(placement, err)
}

// opened routes the displayed event and resolves any bound show completion
func (r *Router) opened(format mediation.AdFormat, placement string) {
	if l, ok := r.lookup(format, placement); ok {
		r.routed(format, "opened")
		l.OnAdOpened(placement)
	} else {
		r.dropped(format, placement, "opened")
	}

	if c, ok := r.takeShow(format, placement); ok && c.OnSuccess != nil {
		c.OnSuccess()
	}
}

// closed routes the dismissal event and evicts the entry
func (r *Router) closed(format mediation.AdFormat, placement string) {
	l, ok := r.take(format, placement)
	if !ok {
		r.dropped(format, placement, "closed")
		return
	}
	r.routed(format, "closed")
	l.OnAdClosed(placement)
}

// showFailed routes a show failure, evicts the entry, and fails any bound
// show completion
func (r *Router) showFailed(format mediation.AdFormat, placement string, err *adwave.Error) {
	if l, ok := r.take(format, placement); ok {
		r.routed(format, "show_failed")
		l.OnAdShowFailed(placement, err)
	} else {
		r.dropped(format, placement, "show_failed")
	}

	if c, ok := r.takeShow(format, placement); ok && c.OnFailure != nil {
		c.OnFailure(err)
	}
}

func (r *Router) clicked(format mediation.AdFormat, placement string) {
	l, ok := r.lookup(format, placement)
	if !ok {
		r.dropped(format, placement, "clicked")
		return
	}
	r.routed(format, "clicked")
	l.OnAdClicked(placement)
}

func (r *Router) reward(format mediation.AdFormat, placement string) {
	l, ok := r.lookup(format, placement)
	if !ok {
		r.dropped(format, placement, "rewarded")
		return
	}
	r.routed(format, "rewarded")
	l.OnAdRewarded(placement)
}

// AdWave interstitial listener entry points

func (r *Router) OnInterstitialAdReady(placement string) {
	r.ready(mediation.FormatInterstitial, placement)
}

func (r *Router) OnInterstitialAdLoadFailed(placement string, err *adwave.Error) {
	r.loadFailed(mediation.FormatInterstitial, placement, err)
}

func (r *Router) OnInterstitialAdOpened(placement string) {
	r.opened(mediation.FormatInterstitial, placement)
}

func (r *Router) OnInterstitialAdClosed(placement string) {
	r.closed(mediation.FormatInterstitial, placement)
}

func (r *Router) OnInterstitialAdShowFailed(placement string, err *adwave.Error) {
	r.showFailed(mediation.FormatInterstitial, placement, err)
}

func (r *Router) OnInterstitialAdClicked(placement string) {
	r.clicked(mediation.FormatInterstitial, placement)
}

// AdWave rewarded listener entry points

func (r *Router) OnRewardedAdReady(placement string) {
	r.ready(mediation.FormatRewarded, placement)
}

func (r *Router) OnRewardedAdLoadFailed(placement string, err *adwave.Error) {
	r.loadFailed(mediation.FormatRewarded, placement, err)
}

func (r *Router) OnRewardedAdOpened(placement string) {
	r.opened(mediation.FormatRewarded, placement)
}

func (r *Router) OnRewardedAdClosed(placement string) {
	r.closed(mediation.FormatRewarded, placement)
}

func (r *Router) OnRewardedAdShowFailed(placement string, err *adwave.Error) {
	r.showFailed(mediation.FormatRewarded, placement, err)
}

func (r *Router) OnRewardedAdClicked(placement string) {
	r.clicked(mediation.FormatRewarded, placement)
}

func (r *Router) OnRewardedAdRewarded(placement string) {
	r.reward(mediation.FormatRewarded, placement)
}

var (
	_ adwave.InterstitialListener = (*Router)(nil)
	_ adwave.RewardedListener     = (*Router)(nil)
)
