// Package demand implements the AdWave demand-only REST client. It is the
// adwave.SDK implementation used by headless hosts and integration tests;
// mobile hosts inject the platform SDK binding instead.
package demand

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/thenexusengine/tne_adwave/internal/adwave"
	"github.com/thenexusengine/tne_adwave/pkg/logger"
)

// maxResponseSize limits demand response size to prevent OOM from a
// misbehaving endpoint
const maxResponseSize = 1024 * 1024 // 1MB

const (
	formatInterstitial = "interstitial"
	formatRewarded     = "rewarded"
)

// Config holds demand client configuration
type Config struct {
	// Endpoint is the AdWave demand API base URL
	Endpoint string
	// Timeout bounds each ad request
	Timeout time.Duration
}

// DefaultConfig returns the default demand configuration.
// ADWAVE_ENDPOINT and ADWAVE_TIMEOUT_MS environment variables override the
// defaults.
func DefaultConfig() Config {
	timeout := 10 * time.Second
	if raw := os.Getenv("ADWAVE_TIMEOUT_MS"); raw != "" {
		if d, err := time.ParseDuration(raw + "ms"); err == nil && d > 0 {
			timeout = d
		}
	}
	return Config{
		Endpoint: getEnvOrDefault("ADWAVE_ENDPOINT", "https://demand.adwave.io"),
		Timeout:  timeout,
	}
}

// getEnvOrDefault returns the environment variable value or a default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// cachedAd is a loaded, not-yet-shown ad
type cachedAd struct {
	Markup        string
	ImpressionURL string
}

type adKey struct {
	format    string
	placement string
}

// Client speaks the AdWave demand-only REST API and reports results through
// the global per-format listeners, matching the SDK's callback contract.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        zerolog.Logger

	mu           sync.Mutex
	appKey       string
	interstitial adwave.InterstitialListener
	rewarded     adwave.RewardedListener
	ads          map[adKey]cachedAd
	consent      *bool
	metadata     map[string]string
}

// New creates a demand client with a pooled transport. Connection and TLS
// session reuse keep repeat requests to the demand endpoint cheap.
func New(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg = DefaultConfig()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,

		TLSClientConfig: &tls.Config{
			ClientSessionCache: tls.NewLRUClientSessionCache(100),
			MinVersion:         tls.VersionTLS12,
		},

		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		log:      logger.Partner(),
		ads:      make(map[adKey]cachedAd),
		metadata: make(map[string]string),
	}
}

// Init validates the app key against the demand endpoint
func (c *Client) Init(ctx context.Context, appKey string) error {
	if appKey == "" {
		return &adwave.Error{Code: adwave.CodeInitFailure, Message: "app key is empty"}
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.cfg.Endpoint+"/v1/status?app_key="+appKey, nil)
	if err != nil {
		return &adwave.Error{Code: adwave.CodeInitFailure, Message: err.Error()}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &adwave.Error{Code: adwave.CodeInitFailure, Message: fmt.Sprintf("status check failed: %v", err)}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))

	if resp.StatusCode != http.StatusOK {
		return &adwave.Error{Code: adwave.CodeInitFailure, Message: fmt.Sprintf("status check returned %d", resp.StatusCode)}
	}

	c.mu.Lock()
	c.appKey = appKey
	c.mu.Unlock()

	c.log.Info().Msg("adwave demand client initialized")
	return nil
}

func (c *Client) SetInterstitialListener(l adwave.InterstitialListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interstitial = l
}

func (c *Client) SetRewardedListener(l adwave.RewardedListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rewarded = l
}

func (c *Client) LoadInterstitial(placement string) {
	go c.load(formatInterstitial, placement)
}

func (c *Client) ShowInterstitial(placement string) {
	go c.show(formatInterstitial, placement)
}

func (c *Client) IsInterstitialReady(placement string) bool {
	return c.isReady(formatInterstitial, placement)
}

func (c *Client) LoadRewarded(placement string) {
	go c.load(formatRewarded, placement)
}

func (c *Client) ShowRewarded(placement string) {
	go c.show(formatRewarded, placement)
}

func (c *Client) IsRewardedReady(placement string) bool {
	return c.isReady(formatRewarded, placement)
}

func (c *Client) SetConsent(granted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consent = &granted
}

func (c *Client) SetMetaData(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metadata[key] = value
}

func (c *Client) isReady(format, placement string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.ads[adKey{format: format, placement: placement}]
	return ok
}

// adRequest is the demand API request body
type adRequest struct {
	AppKey    string            `json:"app_key"`
	Placement string            `json:"placement"`
	AdFormat  string            `json:"ad_format"`
	Consent   *bool             `json:"consent,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// adResponse is the demand API response body
type adResponse struct {
	Markup        string `json:"markup"`
	ImpressionURL string `json:"impression_url"`
}

// load fetches an ad and reports the result through the load callbacks
func (c *Client) load(format, placement string) {
	ad, loadErr := c.fetchAd(format, placement)
	if loadErr != nil {
		c.log.Debug().
			Str("ad_format", format).
			Str("placement", placement).
			Int("code", loadErr.Code).
			Msg("ad load failed")
		c.fireLoadFailed(format, placement, loadErr)
		return
	}

	c.mu.Lock()
	c.ads[adKey{format: format, placement: placement}] = ad
	c.mu.Unlock()

	c.fireReady(format, placement)
}

func (c *Client) fetchAd(format, placement string) (cachedAd, *adwave.Error) {
	c.mu.Lock()
	reqBody := adRequest{
		AppKey:    c.appKey,
		Placement: placement,
		AdFormat:  format,
		Consent:   c.consent,
	}
	if len(c.metadata) > 0 {
		reqBody.Metadata = make(map[string]string, len(c.metadata))
		for k, v := range c.metadata {
			reqBody.Metadata[k] = v
		}
	}
	c.mu.Unlock()

	body, err := json.Marshal(reqBody)
	if err != nil {
		return cachedAd{}, &adwave.Error{Code: adwave.CodeInternal, Message: err.Error()}
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.Endpoint+"/v1/ad", bytes.NewReader(body))
	if err != nil {
		return cachedAd{}, &adwave.Error{Code: adwave.CodeInternal, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return cachedAd{}, &adwave.Error{Code: adwave.CodeTimeout, Message: "ad request timed out"}
		}
		return cachedAd{}, &adwave.Error{Code: adwave.CodeNoConnection, Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return cachedAd{}, &adwave.Error{Code: adwave.CodeNoConnection, Message: err.Error()}
	}
	if len(data) > maxResponseSize {
		return cachedAd{}, &adwave.Error{Code: adwave.CodeInvalidPayload, Message: "response too large"}
	}

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return cachedAd{}, &adwave.Error{Code: adwave.CodeNoFill, Message: "no fill for placement"}
	case resp.StatusCode == http.StatusTooManyRequests:
		return cachedAd{}, &adwave.Error{Code: adwave.CodeCapped, Message: "placement is capped"}
	case resp.StatusCode >= 500:
		return cachedAd{}, &adwave.Error{Code: adwave.CodeAuctionFailed, Message: fmt.Sprintf("demand endpoint returned %d", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return cachedAd{}, &adwave.Error{Code: adwave.CodeInternal, Message: fmt.Sprintf("demand endpoint returned %d", resp.StatusCode)}
	}

	var parsed adResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return cachedAd{}, &adwave.Error{Code: adwave.CodeInvalidPayload, Message: "malformed bid payload"}
	}
	if parsed.Markup == "" {
		return cachedAd{}, &adwave.Error{Code: adwave.CodeEmptyPayload, Message: "empty bid payload"}
	}

	return cachedAd{Markup: parsed.Markup, ImpressionURL: parsed.ImpressionURL}, nil
}

// show consumes the cached ad, fires the impression beacon, and reports the
// lifecycle through the show callbacks. A shown ad is gone; the next show
// needs a fresh load.
func (c *Client) show(format, placement string) {
	c.mu.Lock()
	key := adKey{format: format, placement: placement}
	ad, ok := c.ads[key]
	if ok {
		delete(c.ads, key)
	}
	c.mu.Unlock()

	if !ok {
		c.fireShowFailed(format, placement, &adwave.Error{Code: adwave.CodeNotReady, Message: "no loaded ad for placement"})
		return
	}

	if ad.ImpressionURL != "" {
		if err := c.fireBeacon(ad.ImpressionURL); err != nil {
			c.log.Debug().Err(err).Str("placement", placement).Msg("impression beacon failed")
			c.fireShowFailed(format, placement, &adwave.Error{Code: adwave.CodeNoConnection, Message: "impression beacon failed"})
			return
		}
	}

	c.fireOpened(format, placement)
	if format == formatRewarded {
		c.fireRewarded(placement)
	}
	c.fireClosed(format, placement)
}

func (c *Client) fireBeacon(url string) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))

	if resp.StatusCode >= 400 {
		return fmt.Errorf("beacon returned %d", resp.StatusCode)
	}
	return nil
}

// Listener snapshot helpers. A nil listener means events are dropped; the
// adapter registers its router before any load is issued.

func (c *Client) listeners() (adwave.InterstitialListener, adwave.RewardedListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interstitial, c.rewarded
}

func (c *Client) fireReady(format, placement string) {
	il, rl := c.listeners()
	switch {
	case format == formatInterstitial && il != nil:
		il.OnInterstitialAdReady(placement)
	case format == formatRewarded && rl != nil:
		rl.OnRewardedAdReady(placement)
	}
}

func (c *Client) fireLoadFailed(format, placement string, err *adwave.Error) {
	il, rl := c.listeners()
	switch {
	case format == formatInterstitial && il != nil:
		il.OnInterstitialAdLoadFailed(placement, err)
	case format == formatRewarded && rl != nil:
		rl.OnRewardedAdLoadFailed(placement, err)
	}
}

func (c *Client) fireOpened(format, placement string) {
	il, rl := c.listeners()
	switch {
	case format == formatInterstitial && il != nil:
		il.OnInterstitialAdOpened(placement)
	case format == formatRewarded && rl != nil:
		rl.OnRewardedAdOpened(placement)
	}
}

func (c *Client) fireClosed(format, placement string) {
	il, rl := c.listeners()
	switch {
	case format == formatInterstitial && il != nil:
		il.OnInterstitialAdClosed(placement)
	case format == formatRewarded && rl != nil:
		rl.OnRewardedAdClosed(placement)
	}
}

func (c *Client) fireShowFailed(format, placement string, err *adwave.Error) {
	il, rl := c.listeners()
	switch {
	case format == formatInterstitial && il != nil:
		il.OnInterstitialAdShowFailed(placement, err)
	case format == formatRewarded && rl != nil:
		rl.OnRewardedAdShowFailed(placement, err)
	}
}

func (c *Client) fireRewarded(placement string) {
	_, rl := c.listeners()
	if rl != nil {
		rl.OnRewardedAdRewarded(placement)
	}
}

var _ adwave.SDK = (*Client)(nil)
