// Package spapi is a rate-limited client for Amazon's Catalog and Pricing
// SP-API operations: batch offer fetches, single-ASIN retries, and the
// product-record assembly (image dedup, category path) that Phase 1 of
// the sync engine depends on.
package spapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nuco-0416/ecauto-sub000/internal/config"
	"github.com/nuco-0416/ecauto-sub000/internal/logger"
	"github.com/nuco-0416/ecauto-sub000/internal/notify"
	"github.com/nuco-0416/ecauto-sub000/internal/ratelimit"
	"github.com/nuco-0416/ecauto-sub000/internal/shutdown"
)

const (
	marketplaceID    = "A1VC38T7YXB528"
	batchSize        = 20
	maxSingleRetries = 3
)

// catalogBaseURL and lwaTokenURL are vars, not consts, so tests can point
// the client at an httptest.Server.
var (
	catalogBaseURL = "https://sellingpartnerapi-fe.amazon.com"
	lwaTokenURL    = "https://api.amazon.com/auth/o2/token"
)

// Client is a rate-limited SP-API client, one per process. It holds a
// tuned http.Client (large keep-alive pool, sized for bulk batch calls)
// and serializes quota waits through a shared ratelimit.Limiter rather
// than its own semaphore, since SP-API quota is enforced per-call rather
// than per-concurrent-connection.
type Client struct {
	http      *http.Client
	limiter   *ratelimit.Limiter
	creds     config.AmazonCredentials
	notify    notify.Notifier
	debugASIN string

	mu    sync.Mutex
	token tokenState

	quotaNotifyOnce sync.Once
	quotaCount      atomic.Int64
}

// New builds a Client. limiter should already be seeded with the catalog
// and batch intervals from config.RateIntervals.
func New(creds config.AmazonCredentials, limiter *ratelimit.Limiter, notifier notify.Notifier, debugASIN string) *Client {
	// Bulk batch calls reuse a small set of persistent connections better
	// than per-stream multiplexing does for this access pattern, so the
	// pool is sized generously and kept warm.
	transport := &http.Transport{
		MaxIdleConns:        200,
		MaxIdleConnsPerHost: 100,
		MaxConnsPerHost:     0,
		IdleConnTimeout:     120 * time.Second,
	}
	return &Client{
		http: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
		limiter:   limiter,
		creds:     creds,
		notify:    notifier,
		debugASIN: debugASIN,
	}
}

// ensureToken refreshes the cached LWA access token when it is within 5
// minutes of expiry (or absent).
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token.accessToken != "" && time.Now().Before(c.token.expiresAt) {
		return c.token.accessToken, nil
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {c.creds.RefreshToken},
		"client_id":     {c.creds.LWAAppID},
		"client_secret": {c.creds.LWAClientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, lwaTokenURL, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("spapi: token refresh: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("spapi: token refresh status %d: %s", resp.StatusCode, string(body))
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("spapi: decode token response: %w", err)
	}

	c.token.accessToken = tok.AccessToken
	c.token.expiresAt = time.Now().Add(time.Duration(tok.ExpiresIn-300) * time.Second)
	return c.token.accessToken, nil
}

// quotaExceededErr marks a 429/QuotaExceeded response so callers can tell
// it apart from a permanent error.
type quotaExceededErr struct{ msg string }

func (e *quotaExceededErr) Error() string { return e.msg }

func isQuotaExceeded(err error) bool {
	_, ok := err.(*quotaExceededErr)
	return ok
}

// noteQuotaExceeded fires the one-time quota notification and bumps the
// aggregate counter.
func (c *Client) noteQuotaExceeded() {
	c.quotaCount.Add(1)
	c.quotaNotifyOnce.Do(func() {
		if c.notify != nil {
			c.notify.Notify("quota_exceeded", "SP-API quota exceeded", "first QuotaExceeded observed this run", notify.LevelWarn)
		}
		logger.Warn("SPAPI", "QuotaExceeded observed (further occurrences suppressed from notification, still counted)")
	})
}

// QuotaExceededCount reports how many QuotaExceeded responses this client
// has observed over its lifetime.
func (c *Client) QuotaExceededCount() int64 {
	return c.quotaCount.Load()
}

func (c *Client) doJSON(ctx context.Context, method, url string, body interface{}, out interface{}) error {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("x-amz-access-token", token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("spapi: request: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted:
		if out != nil {
			return json.Unmarshal(respBody, out)
		}
		return nil
	case http.StatusTooManyRequests:
		c.noteQuotaExceeded()
		return &quotaExceededErr{msg: "quota exceeded"}
	default:
		return fmt.Errorf("spapi: status %d: %s", resp.StatusCode, string(respBody))
	}
}

// GetProductInfo fetches one ASIN's catalog record. Returns (nil, nil) if
// Amazon reports the ASIN unknown.
func (c *Client) GetProductInfo(tok *shutdown.Token, asin string) (*ProductInfo, error) {
	if !c.limiter.Wait(tok, ratelimit.ClassCatalog) {
		return nil, fmt.Errorf("spapi: interrupted waiting for catalog quota")
	}

	u := fmt.Sprintf("%s/catalog/2022-04-01/items/%s?marketplaceIds=%s&includedData=attributes,summaries,images,salesRanks",
		catalogBaseURL, asin, marketplaceID)

	var raw catalogItemResponse
	if err := c.doJSON(tok.Context(), http.MethodGet, u, nil, &raw); err != nil {
		return nil, err
	}
	return buildProductInfo(asin, raw), nil
}

// GetProductPrice is the single-ASIN variant of GetPricesBatch, retrying
// up to maxSingleRetries times on QuotaExceeded with a fixed back-off
// cancellable by tok.
func (c *Client) GetProductPrice(tok *shutdown.Token, asin string) (OfferResult, error) {
	results, err := c.GetPricesBatch(tok, []string{asin})
	if err != nil {
		return OfferResult{}, err
	}
	r, ok := results[asin]
	if !ok {
		return OfferResult{ASIN: asin, Status: OfferEmptyPayload}, nil
	}
	if r.Status != OfferAPIError {
		return r, nil
	}

	b := backoff.NewConstantBackOff(2 * time.Second)
	attempt := 0
	for attempt < maxSingleRetries {
		if !tok.Sleep(b.NextBackOff()) {
			return OfferResult{}, fmt.Errorf("spapi: interrupted during retry")
		}
		attempt++
		results, err = c.GetPricesBatch(tok, []string{asin})
		if err != nil {
			return OfferResult{}, err
		}
		r = results[asin]
		if r.Status != OfferAPIError {
			return r, nil
		}
	}
	return r, nil
}

// GetPricesBatch partitions asins into batches of at most 20, waits for
// the per-batch quota between batches, and returns every ASIN's scored
// offer outcome.
func (c *Client) GetPricesBatch(tok *shutdown.Token, asins []string) (map[string]OfferResult, error) {
	out := make(map[string]OfferResult, len(asins))

	for start := 0; start < len(asins); start += batchSize {
		end := start + batchSize
		if end > len(asins) {
			end = len(asins)
		}
		batch := asins[start:end]

		if !c.limiter.Wait(tok, ratelimit.ClassBatch) {
			return out, fmt.Errorf("spapi: interrupted waiting for batch quota")
		}

		results, err := c.fetchOfferBatch(tok.Context(), batch)
		if err != nil {
			for _, a := range batch {
				out[a] = OfferResult{ASIN: a, Status: OfferAPIError, Err: err}
			}
			continue
		}
		for asin, r := range results {
			out[asin] = r
			if asin == c.debugASIN && c.debugASIN != "" {
				logger.Info("SPAPI", fmt.Sprintf("DEBUG_ASIN %s => status=%s price=%d", asin, r.Status, r.Price))
			}
		}
	}
	return out, nil
}

func (c *Client) fetchOfferBatch(ctx context.Context, asins []string) (map[string]OfferResult, error) {
	type requestEntry struct {
		URI           string `json:"uri"`
		Method        string `json:"method"`
		MarketplaceID string `json:"MarketplaceId"`
		ItemCondition string `json:"ItemCondition"`
	}
	entries := make([]requestEntry, len(asins))
	for i, asin := range asins {
		entries[i] = requestEntry{
			URI:           fmt.Sprintf("/products/pricing/v0/items/%s/offers", asin),
			Method:        "GET",
			MarketplaceID: marketplaceID,
			ItemCondition: "New",
		}
	}
	payload := map[string]interface{}{"requests": entries}

	var raw batchOffersResponse
	u := catalogBaseURL + "/batches/products/pricing/v0/itemOffers"
	if err := c.doJSON(ctx, http.MethodPost, u, payload, &raw); err != nil {
		if isQuotaExceeded(err) {
			out := make(map[string]OfferResult, len(asins))
			for _, a := range asins {
				out[a] = OfferResult{ASIN: a, Status: OfferAPIError, Err: err}
			}
			return out, nil
		}
		return nil, err
	}

	out := make(map[string]OfferResult, len(asins))
	for i, resp := range raw.Responses {
		if i >= len(asins) {
			break
		}
		asin := asins[i]
		if resp.StatusCode != 200 {
			out[asin] = OfferResult{ASIN: asin, Status: OfferAPIError}
			continue
		}
		out[asin] = resultFromOffers(asin, resp.offers())
	}
	for _, a := range asins {
		if _, ok := out[a]; !ok {
			out[a] = OfferResult{ASIN: a, Status: OfferEmptyPayload}
		}
	}
	return out, nil
}
