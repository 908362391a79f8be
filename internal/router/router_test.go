package router

import (
	"errors"
	"sync"
	"testing"

	"github.com/thenexusengine/tne_adwave/internal/adwave"
	"github.com/thenexusengine/tne_adwave/internal/mediation"
	"github.com/thenexusengine/tne_adwave/internal/metrics"
)

// recordingListener captures routed events for assertions
type recordingListener struct {
	mu         sync.Mutex
	ready      int
	loadFailed int
	opened     int
	closed     int
	showFailed int
	clicked    int
	rewarded   int
	lastErr    *adwave.Error
}

func (l *recordingListener) OnAdReady(string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ready++
}

func (l *recordingListener) OnAdLoadFailed(_ string, err *adwave.Error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loadFailed++
	l.lastErr = err
}

func (l *recordingListener) OnAdOpened(string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.opened++
}

func (l *recordingListener) OnAdClosed(string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed++
}

func (l *recordingListener) OnAdShowFailed(_ string, err *adwave.Error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.showFailed++
	l.lastErr = err
}

func (l *recordingListener) OnAdClicked(string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clicked++
}

func (l *recordingListener) OnAdRewarded(string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rewarded++
}

func (l *recordingListener) counts() (ready, loadFailed, opened, closed, showFailed, clicked, rewarded int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ready, l.loadFailed, l.opened, l.closed, l.showFailed, l.clicked, l.rewarded
}

func newTestRouter() *Router {
	return New(metrics.New("router_test"))
}

func TestSubscribe_Collision(t *testing.T) {
	r := newTestRouter()

	if err := r.Subscribe(mediation.FormatInterstitial, "p1", &recordingListener{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := r.Subscribe(mediation.FormatInterstitial, "p1", &recordingListener{})
	if !errors.Is(err, ErrAlreadySubscribed) {
		t.Fatalf("expected ErrAlreadySubscribed, got %v", err)
	}

	if !r.Contains(mediation.FormatInterstitial, "p1") {
		t.Error("expected first subscription to survive the collision")
	}
}

func TestSubscribe_FormatsAreIndependentNamespaces(t *testing.T) {
	r := newTestRouter()

	if err := r.Subscribe(mediation.FormatInterstitial, "p1", &recordingListener{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Subscribe(mediation.FormatRewarded, "p1", &recordingListener{}); err != nil {
		t.Fatalf("expected same placement in another format to subscribe, got %v", err)
	}

	if !r.Contains(mediation.FormatInterstitial, "p1") || !r.Contains(mediation.FormatRewarded, "p1") {
		t.Error("expected both entries to be present")
	}
}

func TestSubscribe_UnsupportedFormat(t *testing.T) {
	r := newTestRouter()

	if err := r.Subscribe(mediation.FormatBanner, "p1", &recordingListener{}); err == nil {
		t.Error("expected error for unsupported format")
	}
	if r.Contains(mediation.FormatBanner, "p1") {
		t.Error("expected no entry for unsupported format")
	}
}

func TestReady_NonDestructive(t *testing.T) {
	r := newTestRouter()
	l := &recordingListener{}
	if err := r.Subscribe(mediation.FormatInterstitial, "p1", l); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r.OnInterstitialAdReady("p1")

	ready, _, _, _, _, _, _ := l.counts()
	if ready != 1 {
		t.Errorf("expected 1 ready event, got %d", ready)
	}
	if !r.Contains(mediation.FormatInterstitial, "p1") {
		t.Error("ready must leave the entry in place for show-phase events")
	}
}

func TestLoadFailed_Evicts(t *testing.T) {
	r := newTestRouter()
	l := &recordingListener{}
	if err := r.Subscribe(mediation.FormatRewarded, "p2", l); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	partnerErr := &adwave.Error{Code: adwave.CodeNoFill, Message: "no fill"}
	r.OnRewardedAdLoadFailed("p2", partnerErr)

	_, loadFailed, _, _, _, _, _ := l.counts()
	if loadFailed != 1 {
		t.Errorf("expected 1 load-failed event, got %d", loadFailed)
	}
	if r.Contains(mediation.FormatRewarded, "p2") {
		t.Error("load-failed must evict the entry")
	}

	// A second failure for the same placement finds no listener and is dropped
	r.OnRewardedAdLoadFailed("p2", partnerErr)
	_, loadFailed, _, _, _, _, _ = l.counts()
	if loadFailed != 1 {
		t.Errorf("expected the stale event to be dropped, got %d deliveries", loadFailed)
	}
}

func TestClosed_Evicts(t *testing.T) {
	r := newTestRouter()
	l := &recordingListener{}
	if err := r.Subscribe(mediation.FormatInterstitial, "p1", l); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r.OnInterstitialAdOpened("p1")
	r.OnInterstitialAdClosed("p1")

	_, _, opened, closed, _, _, _ := l.counts()
	if opened != 1 || closed != 1 {
		t.Errorf("expected opened=1 closed=1, got opened=%d closed=%d", opened, closed)
	}
	if r.Contains(mediation.FormatInterstitial, "p1") {
		t.Error("closed must evict the entry")
	}
}

func TestClickedAndRewarded_NonDestructive(t *testing.T) {
	r := newTestRouter()
	l := &recordingListener{}
	if err := r.Subscribe(mediation.FormatRewarded, "p3", l); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r.OnRewardedAdClicked("p3")
	r.OnRewardedAdRewarded("p3")

	_, _, _, _, _, clicked, rewarded := l.counts()
	if clicked != 1 || rewarded != 1 {
		t.Errorf("expected clicked=1 rewarded=1, got clicked=%d rewarded=%d", clicked, rewarded)
	}
	if !r.Contains(mediation.FormatRewarded, "p3") {
		t.Error("clicked and rewarded must not evict the entry")
	}
}

func TestStaleEvents_DoNotPanic(t *testing.T) {
	r := newTestRouter()

	// No subscriptions at all: every event is a log-only no-op
	r.OnInterstitialAdReady("ghost")
	r.OnInterstitialAdLoadFailed("ghost", &adwave.Error{Code: adwave.CodeNoFill})
	r.OnInterstitialAdOpened("ghost")
	r.OnInterstitialAdClosed("ghost")
	r.OnInterstitialAdShowFailed("ghost", &adwave.Error{Code: adwave.CodeInternal})
	r.OnInterstitialAdClicked("ghost")
	r.OnRewardedAdRewarded("ghost")
}

func TestOpened_ResolvesShowCompletionOnce(t *testing.T) {
	r := newTestRouter()
	l := &recordingListener{}
	if err := r.Subscribe(mediation.FormatInterstitial, "p1", l); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	successes := 0
	r.BeginShow(mediation.FormatInterstitial, "p1", &ShowCompletion{
		OnSuccess: func() { successes++ },
		OnFailure: func(*adwave.Error) { t.Error("unexpected failure callback") },
	})

	// Partner SDKs have historically double-fired opened
	r.OnInterstitialAdOpened("p1")
	r.OnInterstitialAdOpened("p1")

	if successes != 1 {
		t.Errorf("expected the completion to fire exactly once, got %d", successes)
	}

	_, _, opened, _, _, _, _ := l.counts()
	if opened != 2 {
		t.Errorf("expected both opened events forwarded to the listener, got %d", opened)
	}
}

func TestShowFailed_EvictsAndFailsCompletion(t *testing.T) {
	r := newTestRouter()
	l := &recordingListener{}
	if err := r.Subscribe(mediation.FormatRewarded, "p3", l); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var gotErr *adwave.Error
	r.BeginShow(mediation.FormatRewarded, "p3", &ShowCompletion{
		OnSuccess: func() { t.Error("unexpected success callback") },
		OnFailure: func(err *adwave.Error) { gotErr = err },
	})

	partnerErr := &adwave.Error{Code: adwave.CodeInternal, Message: "render failure"}
	r.OnRewardedAdShowFailed("p3", partnerErr)

	if gotErr == nil || gotErr.Code != adwave.CodeInternal {
		t.Errorf("expected completion failure with code %d, got %v", adwave.CodeInternal, gotErr)
	}
	if r.Contains(mediation.FormatRewarded, "p3") {
		t.Error("show-failed must evict the entry")
	}

	_, _, _, _, showFailed, _, _ := l.counts()
	if showFailed != 1 {
		t.Errorf("expected 1 show-failed delivery, got %d", showFailed)
	}
}

func TestBeginShow_RebindReplacesStalePair(t *testing.T) {
	r := newTestRouter()
	if err := r.Subscribe(mediation.FormatInterstitial, "p1", &recordingListener{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	staleFired := false
	r.BeginShow(mediation.FormatInterstitial, "p1", &ShowCompletion{
		OnSuccess: func() { staleFired = true },
	})

	current := 0
	r.BeginShow(mediation.FormatInterstitial, "p1", &ShowCompletion{
		OnSuccess: func() { current++ },
	})

	r.OnInterstitialAdOpened("p1")

	if staleFired {
		t.Error("stale completion pair must not fire after rebind")
	}
	if current != 1 {
		t.Errorf("expected the rebound pair to fire once, got %d", current)
	}
}

func TestConcurrentSubscribeAndRoute(t *testing.T) {
	r := newTestRouter()

	var wg sync.WaitGroup
	placements := []string{"a", "b", "c", "d", "e", "f", "g", "h"}

	for _, p := range placements {
		wg.Add(2)
		go func(p string) {
			defer wg.Done()
			l := &recordingListener{}
			if err := r.Subscribe(mediation.FormatInterstitial, p, l); err != nil {
				t.Errorf("subscribe %s: %v", p, err)
			}
		}(p)
		go func(p string) {
			defer wg.Done()
			// May race ahead of the subscribe; either routed or dropped is fine
			r.OnInterstitialAdReady(p)
			r.OnInterstitialAdClosed(p)
		}(p)
	}

	wg.Wait()
}
