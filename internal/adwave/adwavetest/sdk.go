// Package adwavetest provides an in-memory AdWave SDK for tests. It records
// every call and lets tests drive the global listener callbacks directly,
// or fill synchronously via AutoFill.
package adwavetest

import (
	"context"
	"sync"

	"github.com/thenexusengine/tne_adwave/internal/adwave"
)

// Call records one SDK invocation
type Call struct {
	Method    string
	Placement string
	Key       string
	Value     string
}

// SDK is a scripted adwave.SDK implementation
type SDK struct {
	mu           sync.Mutex
	interstitial adwave.InterstitialListener
	rewarded     adwave.RewardedListener

	ready map[string]bool // "<format>/<placement>" -> ready
	calls []Call

	// AutoFill makes each load fire its ready callback synchronously and
	// mark the placement ready
	AutoFill bool
	// FailLoadWith, when set, makes each load fire load-failed with this
	// error instead of filling
	FailLoadWith *adwave.Error
	// InitErr, when set, is returned from Init
	InitErr error
}

// New creates an empty scripted SDK
func New() *SDK {
	return &SDK{ready: make(map[string]bool)}
}

func (s *SDK) record(c Call) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, c)
}

// Calls returns a copy of all recorded calls
func (s *SDK) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount returns how many times the named method was invoked
func (s *SDK) CallCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (s *SDK) Init(_ context.Context, appKey string) error {
	s.record(Call{Method: "Init", Value: appKey})
	return s.InitErr
}

func (s *SDK) SetInterstitialListener(l adwave.InterstitialListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interstitial = l
}

func (s *SDK) SetRewardedListener(l adwave.RewardedListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rewarded = l
}

// SetReady overrides the readiness state for a placement
func (s *SDK) SetReady(format, placement string, ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready[format+"/"+placement] = ready
}

func (s *SDK) isReady(format, placement string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready[format+"/"+placement]
}

func (s *SDK) LoadInterstitial(placement string) {
	s.record(Call{Method: "LoadInterstitial", Placement: placement})
	switch {
	case s.FailLoadWith != nil:
		s.FireInterstitialLoadFailed(placement, s.FailLoadWith)
	case s.AutoFill:
		s.SetReady("interstitial", placement, true)
		s.FireInterstitialReady(placement)
	}
}

func (s *SDK) ShowInterstitial(placement string) {
	s.record(Call{Method: "ShowInterstitial", Placement: placement})
}

func (s *SDK) IsInterstitialReady(placement string) bool {
	return s.isReady("interstitial", placement)
}

func (s *SDK) LoadRewarded(placement string) {
	s.record(Call{Method: "LoadRewarded", Placement: placement})
	switch {
	case s.FailLoadWith != nil:
		s.FireRewardedLoadFailed(placement, s.FailLoadWith)
	case s.AutoFill:
		s.SetReady("rewarded", placement, true)
		s.FireRewardedReady(placement)
	}
}

func (s *SDK) ShowRewarded(placement string) {
	s.record(Call{Method: "ShowRewarded", Placement: placement})
}

func (s *SDK) IsRewardedReady(placement string) bool {
	return s.isReady("rewarded", placement)
}

func (s *SDK) SetConsent(granted bool) {
	value := "false"
	if granted {
		value = "true"
	}
	s.record(Call{Method: "SetConsent", Value: value})
}

func (s *SDK) SetMetaData(key, value string) {
	s.record(Call{Method: "SetMetaData", Key: key, Value: value})
}

// Listener accessors used by the Fire helpers

func (s *SDK) interstitialListener() adwave.InterstitialListener {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interstitial
}

func (s *SDK) rewardedListener() adwave.RewardedListener {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rewarded
}

// Fire helpers invoke the registered global listeners the way the real SDK
// would. They are no-ops when no listener is registered.

func (s *SDK) FireInterstitialReady(placement string) {
	if l := s.interstitialListener(); l != nil {
		l.OnInterstitialAdReady(placement)
	}
}

func (s *SDK) FireInterstitialLoadFailed(placement string, err *adwave.Error) {
	if l := s.interstitialListener(); l != nil {
		l.OnInterstitialAdLoadFailed(placement, err)
	}
}

func (s *SDK) FireInterstitialOpened(placement string) {
	if l := s.interstitialListener(); l != nil {
		l.OnInterstitialAdOpened(placement)
	}
}

func (s *SDK) FireInterstitialClosed(placement string) {
	if l := s.interstitialListener(); l != nil {
		l.OnInterstitialAdClosed(placement)
	}
}

func (s *SDK) FireInterstitialShowFailed(placement string, err *adwave.Error) {
	if l := s.interstitialListener(); l != nil {
		l.OnInterstitialAdShowFailed(placement, err)
	}
}

func (s *SDK) FireInterstitialClicked(placement string) {
	if l := s.interstitialListener(); l != nil {
		l.OnInterstitialAdClicked(placement)
	}
}

func (s *SDK) FireRewardedReady(placement string) {
	if l := s.rewardedListener(); l != nil {
		l.OnRewardedAdReady(placement)
	}
}

func (s *SDK) FireRewardedLoadFailed(placement string, err *adwave.Error) {
	if l := s.rewardedListener(); l != nil {
		l.OnRewardedAdLoadFailed(placement, err)
	}
}

func (s *SDK) FireRewardedOpened(placement string) {
	if l := s.rewardedListener(); l != nil {
		l.OnRewardedAdOpened(placement)
	}
}

func (s *SDK) FireRewardedClosed(placement string) {
	if l := s.rewardedListener(); l != nil {
		l.OnRewardedAdClosed(placement)
	}
}

func (s *SDK) FireRewardedShowFailed(placement string, err *adwave.Error) {
	if l := s.rewardedListener(); l != nil {
		l.OnRewardedAdShowFailed(placement, err)
	}
}

func (s *SDK) FireRewardedClicked(placement string) {
	if l := s.rewardedListener(); l != nil {
		l.OnRewardedAdClicked(placement)
	}
}

func (s *SDK) FireRewardedRewarded(placement string) {
	if l := s.rewardedListener(); l != nil {
		l.OnRewardedAdRewarded(placement)
	}
}

var _ adwave.SDK = (*SDK)(nil)
