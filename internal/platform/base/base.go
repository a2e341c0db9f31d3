// Package base implements the platform.Adapter contract for BASE
// (api.thebase.in/1): OAuth bearer refresh keyed per account, owner-scoped
// proxy selection, and the add/edit/delete/detail/add_image endpoint
// mapping. Its OAuth refresh-before-call shape and proxy wiring follow
// this repository's own SP-API client. The targeted price, quantity and
// visibility updates send only identifier plus the changed field and rely
// on BASE's documented partial-update behavior (fields left out of an
// edit stay untouched); TestUpdateItemPartial checks the form UpdatePrice
// sends. UpdateItem sends the full item form.
package base

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/nuco-0416/ecauto-sub000/internal/config"
	"github.com/nuco-0416/ecauto-sub000/internal/logger"
	"github.com/nuco-0416/ecauto-sub000/internal/platform"
	"github.com/nuco-0416/ecauto-sub000/internal/ratelimit"
	"github.com/nuco-0416/ecauto-sub000/internal/shutdown"
	"github.com/nuco-0416/ecauto-sub000/internal/store"
)

// apiBaseURL and oauthTokenURL are vars so tests can redirect the adapter
// at an httptest.Server.
var (
	apiBaseURL    = "https://api.thebase.in/1"
	oauthTokenURL = "https://api.thebase.in/1/oauth/token"
)

// tokenStaleAfter is how long a saved BASE access token is trusted before
// the adapter proactively refreshes it.
const tokenStaleAfter = 55 * time.Minute

func init() {
	platform.Register("base", New)
}

// Adapter is the BASE implementation of platform.Adapter.
type Adapter struct {
	accountID string
	account   config.Account
	http      *http.Client
	store     *store.Store
	limiter   *ratelimit.Limiter
}

// New constructs a BASE Adapter scoped to accountID, resolving its proxy
// through deps.Proxy at construction time (BASE accounts do not change
// proxy mid-run).
func New(accountID string, deps platform.Deps) (platform.Adapter, error) {
	if deps.Book == nil {
		return nil, fmt.Errorf("base: account book is required")
	}
	acct, ok := deps.Book.Accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("base: unknown account %q", accountID)
	}

	transport := &http.Transport{}
	proxyURL, err := deps.Proxy.Resolve(acct.OwnerID, accountID, "")
	if err != nil {
		return nil, fmt.Errorf("base: resolve proxy: %w", err)
	}
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("base: parse proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(u)
	}

	return &Adapter{
		accountID: accountID,
		account:   acct,
		http:      &http.Client{Transport: transport, Timeout: 30 * time.Second},
		store:     deps.Store,
		limiter:   deps.Limiter,
	}, nil
}

// Platform implements platform.Adapter.
func (a *Adapter) Platform() string { return "base" }

// AccountID implements platform.Adapter.
func (a *Adapter) AccountID() string { return a.accountID }

// RateLimitError marks a BASE hour_api_limit response so the queue worker
// can record `failed` with a retain-for-next-cycle policy instead of
// treating it as a permanent error.
type RateLimitError struct {
	Message string
}

func (e *RateLimitError) Error() string { return "base: hour_api_limit: " + e.Message }

func (a *Adapter) ensureToken(ctx context.Context) (string, error) {
	tok, err := a.store.GetToken(a.accountID, "base")
	if err != nil {
		return "", fmt.Errorf("base: load token: %w", err)
	}
	if tok != nil && time.Since(tok.SavedAt) < tokenStaleAfter {
		return tok.AccessToken, nil
	}

	refreshToken := a.account.Credentials["refresh_token"]
	if tok != nil && tok.RefreshToken != "" {
		refreshToken = tok.RefreshToken
	}
	if refreshToken == "" {
		return "", fmt.Errorf("base: account %s has no refresh token configured", a.accountID)
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {a.account.Credentials["client_id"]},
		"client_secret": {a.account.Credentials["client_secret"]},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, oauthTokenURL, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("base: token refresh: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("base: token refresh status %d: %s", resp.StatusCode, string(body))
	}

	var parsed struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("base: decode token response: %w", err)
	}
	if parsed.RefreshToken == "" {
		parsed.RefreshToken = refreshToken
	}

	if err := a.store.SaveToken(store.CredentialToken{
		AccountID:    a.accountID,
		Platform:     "base",
		AccessToken:  parsed.AccessToken,
		RefreshToken: parsed.RefreshToken,
		TokenType:    parsed.TokenType,
		ExpiresIn:    parsed.ExpiresIn,
	}); err != nil {
		return "", fmt.Errorf("base: save token: %w", err)
	}
	return parsed.AccessToken, nil
}

func (a *Adapter) do(ctx context.Context, method, path string, payload url.Values, out interface{}) error {
	if method != http.MethodGet && a.limiter != nil {
		if !a.limiter.Wait(shutdown.NewWithContext(ctx), ratelimit.ClassBaseWrite) {
			return fmt.Errorf("base: interrupted waiting for write quota")
		}
	}

	token, err := a.ensureToken(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	target := apiBaseURL + path
	if method == http.MethodGet {
		if payload != nil {
			target += "?" + payload.Encode()
		}
	} else if payload != nil {
		body = bytes.NewBufferString(payload.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if method != http.MethodGet {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("base: request %s: %w", path, err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	var errBody struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.Unmarshal(respBody, &errBody)

	if errBody.Error.Type == "hour_api_limit" {
		logger.Warn("BASE", fmt.Sprintf("account=%s path=%s hour_api_limit: %s", a.accountID, path, errBody.Error.Message))
		return &RateLimitError{Message: errBody.Error.Message}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("base: %s status %d: %s", path, resp.StatusCode, string(respBody))
	}
	if out != nil {
		return json.Unmarshal(respBody, out)
	}
	return nil
}

// UploadItem implements platform.Uploader.
func (a *Adapter) UploadItem(ctx context.Context, item platform.Item) (platform.Result, error) {
	form := itemForm(item)
	var resp struct {
		Item struct {
			ItemID int64 `json:"item_id"`
		} `json:"item"`
	}
	if err := a.do(ctx, http.MethodPost, "/items/add", form, &resp); err != nil {
		return resultFromErr(err), nil
	}
	return platform.Ok(fmt.Sprintf("%d", resp.Item.ItemID)), nil
}

// UpdateItem implements platform.Updater. It re-sends the item's full
// content (title, detail, price, stock); callers that only want to touch
// a single field should use the targeted updaters (UpdatePrice,
// UpdateQuantity, UpdateVisibility), which send just that field and rely
// on BASE's partial-update guarantee to leave everything else untouched.
func (a *Adapter) UpdateItem(ctx context.Context, sku string, item platform.Item) (platform.Result, error) {
	form := itemForm(item)
	form.Set("identifier", sku)
	if err := a.do(ctx, http.MethodPost, "/items/edit", form, nil); err != nil {
		return resultFromErr(err), nil
	}
	return platform.Ok(""), nil
}

// DeleteItem implements platform.Deleter.
func (a *Adapter) DeleteItem(ctx context.Context, platformItemID string) (platform.Result, error) {
	form := url.Values{"item_id": {platformItemID}}
	if err := a.do(ctx, http.MethodPost, "/items/delete", form, nil); err != nil {
		return resultFromErr(err), nil
	}
	return platform.Ok(platformItemID), nil
}

// UpdatePrice implements platform.PriceUpdater via the same partial-update
// edit endpoint, touching only price.
func (a *Adapter) UpdatePrice(ctx context.Context, sku string, priceJPY int64) (platform.Result, error) {
	form := url.Values{"identifier": {sku}, "price": {fmt.Sprintf("%d", priceJPY)}}
	if err := a.do(ctx, http.MethodPost, "/items/edit", form, nil); err != nil {
		return resultFromErr(err), nil
	}
	return platform.Ok(""), nil
}

// UpdateQuantity implements platform.QuantityUpdater.
func (a *Adapter) UpdateQuantity(ctx context.Context, sku string, quantity int) (platform.Result, error) {
	form := url.Values{"identifier": {sku}, "stock": {fmt.Sprintf("%d", quantity)}}
	if err := a.do(ctx, http.MethodPost, "/items/edit", form, nil); err != nil {
		return resultFromErr(err), nil
	}
	return platform.Ok(""), nil
}

// UpdateVisibility implements platform.VisibilityUpdater. BASE models
// visibility as the item's "visible" flag (1 public, 0 hidden).
func (a *Adapter) UpdateVisibility(ctx context.Context, sku string, visible bool) (platform.Result, error) {
	v := "0"
	if visible {
		v = "1"
	}
	form := url.Values{"identifier": {sku}, "visible": {v}}
	if err := a.do(ctx, http.MethodPost, "/items/edit", form, nil); err != nil {
		return resultFromErr(err), nil
	}
	return platform.Ok(""), nil
}

// GetItem implements platform.Getter.
func (a *Adapter) GetItem(ctx context.Context, platformItemID string) (platform.Item, error) {
	var resp struct {
		Item struct {
			ItemID      int64  `json:"item_id"`
			Identifier  string `json:"identifier"`
			Title       string `json:"title"`
			Detail      string `json:"detail"`
			Price       int64  `json:"price"`
			Stock       int    `json:"stock"`
			Images      []struct {
				Origin string `json:"origin"`
			} `json:"images"`
		} `json:"item"`
	}
	if err := a.do(ctx, http.MethodGet, "/items/detail/"+platformItemID, nil, &resp); err != nil {
		return platform.Item{}, err
	}
	images := make([]string, 0, len(resp.Item.Images))
	for _, img := range resp.Item.Images {
		images = append(images, img.Origin)
	}
	return platform.Item{
		SKU:         resp.Item.Identifier,
		Title:       resp.Item.Title,
		Description: resp.Item.Detail,
		PriceJPY:    resp.Item.Price,
		Quantity:    resp.Item.Stock,
		Images:      images,
	}, nil
}

// ListItems implements platform.Lister, paging through the account's full
// BASE catalog for the registrar/importer's live downstream dump path.
func (a *Adapter) ListItems(ctx context.Context) ([]platform.Item, error) {
	var out []platform.Item
	offset := 0
	const limit = 100
	for {
		var resp struct {
			Items []struct {
				ItemID     int64  `json:"item_id"`
				Identifier string `json:"identifier"`
				Title      string `json:"title"`
				Price      int64  `json:"price"`
				Stock      int    `json:"stock"`
			} `json:"items"`
		}
		q := url.Values{"offset": {fmt.Sprintf("%d", offset)}, "limit": {fmt.Sprintf("%d", limit)}}
		if err := a.do(ctx, http.MethodGet, "/items", q, &resp); err != nil {
			return out, err
		}
		if len(resp.Items) == 0 {
			break
		}
		for _, it := range resp.Items {
			out = append(out, platform.Item{
				SKU:            it.Identifier,
				Title:          it.Title,
				PriceJPY:       it.Price,
				Quantity:       it.Stock,
				PlatformItemID: fmt.Sprintf("%d", it.ItemID),
			})
		}
		offset += len(resp.Items)
		if len(resp.Items) < limit {
			break
		}
	}
	return out, nil
}

// CheckDuplicate implements platform.DuplicateChecker by listing the
// account's catalog and looking for sku. BASE has no direct "does this
// SKU exist" endpoint, so the importer's live dump is reused here; a
// deployment with many items should prefer a cached listing index.
func (a *Adapter) CheckDuplicate(ctx context.Context, asin, sku string) (bool, error) {
	items, err := a.ListItems(ctx)
	if err != nil {
		return false, err
	}
	for _, it := range items {
		if it.SKU == sku {
			return true, nil
		}
	}
	return false, nil
}

// UploadImages implements platform.ImageUploader.
func (a *Adapter) UploadImages(ctx context.Context, platformItemID string, urls []string) (platform.Result, error) {
	for i, u := range urls {
		form := url.Values{"item_id": {platformItemID}, "image_url": {u}, "image_order": {fmt.Sprintf("%d", i)}}
		if err := a.do(ctx, http.MethodPost, "/items/add_image", form, nil); err != nil {
			return resultFromErr(err), nil
		}
	}
	return platform.Ok(platformItemID), nil
}

func itemForm(item platform.Item) url.Values {
	v := url.Values{
		"title":  {item.Title},
		"detail": {item.Description},
		"price":  {fmt.Sprintf("%d", item.PriceJPY)},
		"stock":  {fmt.Sprintf("%d", item.Quantity)},
	}
	if sku := item.SKU; sku != "" {
		v.Set("identifier", sku)
	}
	return v
}

func resultFromErr(err error) platform.Result {
	var rl *RateLimitError
	if asRateLimit(err, &rl) {
		return platform.Fail(platform.ErrTransient, rl.Error())
	}
	return platform.Fail(platform.ErrPermanent, err.Error())
}

func asRateLimit(err error, target **RateLimitError) bool {
	if rl, ok := err.(*RateLimitError); ok {
		*target = rl
		return true
	}
	return false
}
