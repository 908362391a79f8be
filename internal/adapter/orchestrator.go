package adapter

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/thenexusengine/tne_adwave/internal/adwave"
	"github.com/thenexusengine/tne_adwave/internal/errortypes"
	"github.com/thenexusengine/tne_adwave/internal/mediation"
	"github.com/thenexusengine/tne_adwave/internal/router"
	"github.com/thenexusengine/tne_adwave/pkg/logger"
)

// loadResult is the single terminal outcome of one load call
type loadResult struct {
	err error
}

// pendingLoad is the per-request listener subscribed with the router for one
// load. Terminal load events resolve the buffered done channel at most once;
// show-phase events are forwarded to the host's listener.
type pendingLoad struct {
	ad           mediation.PartnerAd
	hostListener mediation.AdListener
	once         sync.Once
	done         chan loadResult
}

func newPendingLoad(ad mediation.PartnerAd, hostListener mediation.AdListener) *pendingLoad {
	return &pendingLoad{
		ad:           ad,
		hostListener: hostListener,
		done:         make(chan loadResult, 1),
	}
}

// resolve completes the load exactly once. Late or duplicate terminal events
// land in the buffered channel's already-consumed slot guard and are dropped.
func (p *pendingLoad) resolve(err error) {
	p.once.Do(func() {
		p.done <- loadResult{err: err}
	})
}

func (p *pendingLoad) OnAdReady(string) {
	p.resolve(nil)
}

func (p *pendingLoad) OnAdLoadFailed(_ string, err *adwave.Error) {
	p.resolve(errortypes.MapPartnerError(err))
}

func (p *pendingLoad) OnAdOpened(string) {
	if p.hostListener != nil {
		p.hostListener.OnPartnerAdImpression(p.ad)
	}
}

func (p *pendingLoad) OnAdClicked(string) {
	if p.hostListener != nil {
		p.hostListener.OnPartnerAdClicked(p.ad)
	}
}

func (p *pendingLoad) OnAdClosed(string) {
	if p.hostListener != nil {
		p.hostListener.OnPartnerAdDismissed(p.ad, nil)
	}
}

func (p *pendingLoad) OnAdShowFailed(_ string, err *adwave.Error) {
	if p.hostListener != nil {
		p.hostListener.OnPartnerAdDismissed(p.ad, errortypes.MapPartnerError(err))
	}
}

func (p *pendingLoad) OnAdRewarded(string) {
	if p.hostListener != nil {
		p.hostListener.OnPartnerAdRewarded(p.ad)
	}
}

var _ router.AdEventListener = (*pendingLoad)(nil)

// Load requests an ad from AdWave and blocks until the placement's terminal
// load event arrives or ctx is done. A load for a placement that already has
// one in flight fails fast with LOAD_ABORTED and makes no partner call.
func (a *Adapter) Load(ctx context.Context, req mediation.AdLoadRequest, hostListener mediation.AdListener) (mediation.PartnerAd, error) {
	start := time.Now()

	if req.Format != mediation.FormatInterstitial && req.Format != mediation.FormatRewarded {
		return mediation.PartnerAd{}, errortypes.NewUnsupportedFormat(string(req.Format))
	}
	if strings.TrimSpace(req.Placement) == "" {
		return mediation.PartnerAd{}, errortypes.NewInvalidRequest("placement is empty")
	}

	log := logger.FromContext(logger.WithPlacement(logger.WithRequestID(ctx, req.ID), req.Placement))

	ad := mediation.PartnerAd{
		Placement: req.Placement,
		Format:    req.Format,
		Details:   map[string]string{},
	}

	if a.router.Contains(req.Format, req.Placement) {
		a.metrics.RecordLoadCollision(string(req.Format))
		log.Warn().Msg("rejecting load, placement already in flight")
		return mediation.PartnerAd{}, errortypes.NewLoadAborted(req.Placement)
	}

	pending := newPendingLoad(ad, hostListener)
	if err := a.router.Subscribe(req.Format, req.Placement, pending); err != nil {
		// Lost a race with a concurrent load for the same placement
		a.metrics.RecordLoadCollision(string(req.Format))
		return mediation.PartnerAd{}, errortypes.NewLoadAborted(req.Placement)
	}

	a.loadAd(req.Format, req.Placement)

	var loadErr error
	select {
	case res := <-pending.done:
		loadErr = res.err
	case <-ctx.Done():
		// The router entry stays subscribed; a late terminal event resolves
		// into the buffered channel and is discarded
		loadErr = errortypes.Wrap(errortypes.CodeAdRequestTimeout, "load cancelled before a terminal partner event", ctx.Err())
	}

	a.finishLoad(req, loadErr, time.Since(start))
	if loadErr != nil {
		return mediation.PartnerAd{}, loadErr
	}

	log.Debug().Dur("elapsed", time.Since(start)).Msg("ad loaded")
	return ad, nil
}

// Show displays a loaded ad and blocks until AdWave reports opened or
// show-failed, or ctx is done. A placement with no ready ad fails with
// AD_NOT_READY and makes no partner call.
func (a *Adapter) Show(ctx context.Context, ad mediation.PartnerAd) (mediation.PartnerAd, error) {
	start := time.Now()

	if ad.Format != mediation.FormatInterstitial && ad.Format != mediation.FormatRewarded {
		return mediation.PartnerAd{}, errortypes.NewUnsupportedFormat(string(ad.Format))
	}
	if strings.TrimSpace(ad.Placement) == "" {
		return mediation.PartnerAd{}, errortypes.NewInvalidRequest("placement is empty")
	}

	if !a.isReady(ad.Format, ad.Placement) {
		err := errortypes.NewAdNotReady(ad.Placement)
		a.finishShow(ad, err, time.Since(start))
		return mediation.PartnerAd{}, err
	}

	done := make(chan error, 1)
	var once sync.Once
	a.router.BeginShow(ad.Format, ad.Placement, &router.ShowCompletion{
		OnSuccess: func() {
			once.Do(func() { done <- nil })
		},
		OnFailure: func(err *adwave.Error) {
			once.Do(func() { done <- errortypes.MapPartnerError(err) })
		},
	})

	a.showAd(ad.Format, ad.Placement)

	var showErr error
	select {
	case err := <-done:
		showErr = err
	case <-ctx.Done():
		// The completion pair stays bound until the next show rebinds it; a
		// late opened/show-failed event fires into the buffered channel and
		// is discarded
		showErr = errortypes.Wrap(errortypes.CodeAdRequestTimeout, "show cancelled before opened or show-failed", ctx.Err())
	}

	a.finishShow(ad, showErr, time.Since(start))
	if showErr != nil {
		return mediation.PartnerAd{}, showErr
	}
	return ad, nil
}

func (a *Adapter) loadAd(format mediation.AdFormat, placement string) {
	if format == mediation.FormatRewarded {
		a.sdk.LoadRewarded(placement)
		return
	}
	a.sdk.LoadInterstitial(placement)
}

func (a *Adapter) showAd(format mediation.AdFormat, placement string) {
	if format == mediation.FormatRewarded {
		a.sdk.ShowRewarded(placement)
		return
	}
	a.sdk.ShowInterstitial(placement)
}

func (a *Adapter) isReady(format mediation.AdFormat, placement string) bool {
	if format == mediation.FormatRewarded {
		return a.sdk.IsRewardedReady(placement)
	}
	return a.sdk.IsInterstitialReady(placement)
}

func (a *Adapter) finishLoad(req mediation.AdLoadRequest, err error, elapsed time.Duration) {
	result := resultLabel(err)
	a.metrics.RecordLoad(string(req.Format), result, elapsed)
	if code := partnerCode(err); code != 0 {
		a.metrics.RecordPartnerError(code)
	}
	if a.recorder != nil {
		a.recorder.RecordLoad(req.ID, req.Placement, string(req.Format), result, elapsed, partnerCode(err))
	}
}

func (a *Adapter) finishShow(ad mediation.PartnerAd, err error, elapsed time.Duration) {
	result := resultLabel(err)
	a.metrics.RecordShow(string(ad.Format), result, elapsed)
	if code := partnerCode(err); code != 0 {
		a.metrics.RecordPartnerError(code)
	}
	if a.recorder != nil {
		a.recorder.RecordShow(ad.Placement, string(ad.Format), result, elapsed, partnerCode(err))
	}
}
