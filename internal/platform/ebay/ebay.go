// Package ebay implements the platform.Adapter contract for eBay's REST
// Inventory/Offer APIs: application-token and per-user OAuth, the
// Inventory-Item/Offer two-step publish state machine, and a Taxonomy-
// backed category mapper. Its HTTP client shape and token-refresh
// pattern mirror internal/spapi.
package ebay

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/nuco-0416/ecauto-sub000/internal/config"
	"github.com/nuco-0416/ecauto-sub000/internal/platform"
	"github.com/nuco-0416/ecauto-sub000/internal/store"
)

var (
	apiBaseURL = "https://api.ebay.com"
	oauthURL   = "https://api.ebay.com/identity/v1/oauth2/token"
)

const (
	marketplaceHeader = "EBAY_US"
	maxImages         = 12
	userTokenMargin   = 5 * time.Minute
)

func init() {
	platform.Register("ebay", New)
}

// OfferState names the stages of the eBay listing lifecycle. It is not
// stored anywhere: platform_metadata's OfferID and ListingID show which
// stage a SKU has reached.
type OfferState string

const (
	StateNone             OfferState = ""
	StateInventoryOnly    OfferState = "inventory_only"
	StateOfferUnpublished OfferState = "offer_unpublished"
	StateListed           OfferState = "listed"
)

// Adapter is the eBay implementation of platform.Adapter.
type Adapter struct {
	accountID string
	account   config.Account
	http      *http.Client
	store     *store.Store

	appTokenMu  sync.Mutex
	appToken    string
	appTokenExp time.Time

	categoryMu    sync.Mutex
	categoryCache map[string]string
}

// New constructs an eBay Adapter scoped to accountID.
func New(accountID string, deps platform.Deps) (platform.Adapter, error) {
	if deps.Book == nil {
		return nil, fmt.Errorf("ebay: account book is required")
	}
	acct, ok := deps.Book.Accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("ebay: unknown account %q", accountID)
	}
	return &Adapter{
		accountID:     accountID,
		account:       acct,
		http:          &http.Client{Timeout: 30 * time.Second},
		store:         deps.Store,
		categoryCache: map[string]string{},
	}, nil
}

// Platform implements platform.Adapter.
func (a *Adapter) Platform() string { return "ebay" }

// AccountID implements platform.Adapter.
func (a *Adapter) AccountID() string { return a.accountID }

// ensureUserToken refreshes the account's per-user OAuth token against its
// stored refresh token when within userTokenMargin of the documented
// ~60-minute validity window.
func (a *Adapter) ensureUserToken(ctx context.Context) (string, error) {
	tok, err := a.store.GetToken(a.accountID, "ebay")
	if err != nil {
		return "", fmt.Errorf("ebay: load token: %w", err)
	}
	if !tok.NeedsRefresh(userTokenMargin) {
		return tok.AccessToken, nil
	}
	if tok == nil || tok.RefreshToken == "" {
		return "", fmt.Errorf("ebay: account %s has no refresh token; re-consent required", a.accountID)
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {tok.RefreshToken},
		"scope":         {"https://api.ebay.com/oauth/api_scope/sell.inventory"},
	}
	parsed, err := a.exchangeToken(ctx, form)
	if err != nil {
		return "", err
	}
	if err := a.store.SaveToken(store.CredentialToken{
		AccountID:    a.accountID,
		Platform:     "ebay",
		AccessToken:  parsed.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    parsed.TokenType,
		ExpiresIn:    parsed.ExpiresIn,
	}); err != nil {
		return "", fmt.Errorf("ebay: save token: %w", err)
	}
	return parsed.AccessToken, nil
}

// ensureAppToken returns the cached application token (client-credentials
// grant, public Taxonomy data only), refreshing it once it is within a
// minute of its advertised expiry.
func (a *Adapter) ensureAppToken(ctx context.Context) (string, error) {
	a.appTokenMu.Lock()
	defer a.appTokenMu.Unlock()

	if a.appToken != "" && time.Now().Before(a.appTokenExp) {
		return a.appToken, nil
	}

	form := url.Values{
		"grant_type": {"client_credentials"},
		"scope":      {"https://api.ebay.com/oauth/api_scope"},
	}
	parsed, err := a.exchangeToken(ctx, form)
	if err != nil {
		return "", err
	}
	a.appToken = parsed.AccessToken
	a.appTokenExp = time.Now().Add(time.Duration(parsed.ExpiresIn-60) * time.Second)
	return a.appToken, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func (a *Adapter) exchangeToken(ctx context.Context, form url.Values) (tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, oauthURL, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return tokenResponse{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(a.account.Credentials["client_id"], a.account.Credentials["client_secret"])

	resp, err := a.http.Do(req)
	if err != nil {
		return tokenResponse{}, fmt.Errorf("ebay: token exchange: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return tokenResponse{}, fmt.Errorf("ebay: token exchange status %d: %s", resp.StatusCode, string(body))
	}
	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return tokenResponse{}, fmt.Errorf("ebay: decode token response: %w", err)
	}
	return parsed, nil
}

func (a *Adapter) do(ctx context.Context, method, path string, token string, payload interface{}, out interface{}) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiBaseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-EBAY-C-MARKETPLACE-ID", marketplaceHeader)

	resp, err := a.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("ebay: request %s: %w", path, err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, out); err != nil {
				return resp.StatusCode, respBody, err
			}
		}
	}
	return resp.StatusCode, respBody, nil
}

// inventoryItemPayload carries only writable fields: eBay rejects a PUT
// that includes the read-only availableQuantity/offerId/listing/status.
type inventoryItemPayload struct {
	Condition            string                 `json:"condition"`
	Product              inventoryProduct       `json:"product"`
	PackageWeightAndSize map[string]interface{} `json:"packageWeightAndSize,omitempty"`
	Availability         *inventoryAvailability `json:"availability,omitempty"`
}

type inventoryProduct struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	ImageURLs   []string `json:"imageUrls,omitempty"`
	Brand       string   `json:"brand,omitempty"`
}

type inventoryAvailability struct {
	ShipToLocationAvailability struct {
		Quantity int `json:"quantity"`
	} `json:"shipToLocationAvailability"`
}

func (a *Adapter) upsertInventoryItem(ctx context.Context, token, sku string, item platform.Item, quantity int) error {
	images := item.Images
	if len(images) > maxImages {
		images = images[:maxImages]
	}
	payload := inventoryItemPayload{
		Condition: "NEW",
		Product: inventoryProduct{
			Title:       item.Title,
			Description: item.Description,
			ImageURLs:   images,
			Brand:       item.Brand,
		},
	}
	if quantity >= 0 {
		avail := &inventoryAvailability{}
		avail.ShipToLocationAvailability.Quantity = quantity
		payload.Availability = avail
	}

	status, body, err := a.do(ctx, http.MethodPut, "/sell/inventory/v1/inventory_item/"+sku, token, payload, nil)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("ebay: upsert inventory item %s status %d: %s", sku, status, string(body))
	}
	return nil
}

type offerPayload struct {
	SKU                 string            `json:"sku"`
	MarketplaceID       string            `json:"marketplaceId"`
	Format              string            `json:"format"`
	PricingSummary      pricingSummary    `json:"pricingSummary"`
	CategoryID          string            `json:"categoryId,omitempty"`
	MerchantLocationKey string            `json:"merchantLocationKey,omitempty"`
	ListingPolicies     map[string]string `json:"listingPolicies,omitempty"`
}

type pricingSummary struct {
	Price priceAmount `json:"price"`
}

type priceAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

func (a *Adapter) createOffer(ctx context.Context, token string, item platform.Item, categoryID, locationKey string) (string, error) {
	payload := offerPayload{
		SKU:                 item.SKU,
		MarketplaceID:       marketplaceHeader,
		Format:              "FIXED_PRICE",
		PricingSummary:      pricingSummary{Price: priceAmount{Value: yenToUSD(item.PriceJPY), Currency: "USD"}},
		CategoryID:          categoryID,
		MerchantLocationKey: locationKey,
	}
	var resp struct {
		OfferID string `json:"offerId"`
	}
	status, body, err := a.do(ctx, http.MethodPost, "/sell/inventory/v1/offer", token, payload, &resp)
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", fmt.Errorf("ebay: create offer status %d: %s", status, string(body))
	}
	return resp.OfferID, nil
}

// publishOffer publishes an UNPUBLISHED offer, returning the resulting
// listingId on success.
func (a *Adapter) publishOffer(ctx context.Context, token, offerID string) (string, error) {
	var resp struct {
		ListingID string `json:"listingId"`
	}
	status, body, err := a.do(ctx, http.MethodPost, "/sell/inventory/v1/offer/"+offerID+"/publish", token, nil, &resp)
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", fmt.Errorf("ebay: publish offer status %d: %s", status, string(body))
	}
	return resp.ListingID, nil
}

// withdrawOffer takes a PUBLISHED offer back to OFFER_UNPUBLISHED.
func (a *Adapter) withdrawOffer(ctx context.Context, token, offerID string) error {
	status, body, err := a.do(ctx, http.MethodPost, "/sell/inventory/v1/offer/"+offerID+"/withdraw", token, nil, nil)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("ebay: withdraw offer status %d: %s", status, string(body))
	}
	return nil
}

// UploadItem implements platform.Uploader: create the inventory item,
// create its offer, and publish it, carrying the listing through
// INVENTORY_ONLY -> OFFER_UNPUBLISHED -> LISTED in one call.
func (a *Adapter) UploadItem(ctx context.Context, item platform.Item) (platform.Result, error) {
	token, err := a.ensureUserToken(ctx)
	if err != nil {
		return platform.Fail(platform.ErrAuth, err.Error()), nil
	}

	meta, _ := a.store.GetPlatformMetadata(item.SKU)
	locationKey := ""
	categoryID := ""
	if meta != nil {
		locationKey = meta.MerchantLocationKey
		categoryID = meta.CategoryID
	}
	if categoryID == "" {
		mapper := NewCategoryMapper(a)
		categoryID, _ = mapper.Suggest(ctx, token, item.Title)
	}

	if err := a.upsertInventoryItem(ctx, token, item.SKU, item, item.Quantity); err != nil {
		return platform.Fail(platform.ErrPermanent, err.Error()), nil
	}

	offerID := ""
	if meta != nil {
		offerID = meta.OfferID
	}
	if offerID == "" {
		offerID, err = a.createOffer(ctx, token, item, categoryID, locationKey)
		if err != nil {
			return platform.Fail(platform.ErrPermanent, err.Error()), nil
		}
	}

	listingID, err := a.publishOffer(ctx, token, offerID)
	if err != nil {
		return platform.Fail(platform.ErrPermanent, err.Error()), nil
	}

	_ = a.store.UpsertPlatformMetadata(store.PlatformMetadata{
		SKU: item.SKU, Platform: "ebay", OfferID: offerID, ListingID: listingID,
		CategoryID: categoryID, MerchantLocationKey: locationKey,
	})
	return platform.Ok(listingID), nil
}

// UpdateItem implements platform.Updater, refreshing the inventory item's
// content in place without touching offer state.
func (a *Adapter) UpdateItem(ctx context.Context, sku string, item platform.Item) (platform.Result, error) {
	token, err := a.ensureUserToken(ctx)
	if err != nil {
		return platform.Fail(platform.ErrAuth, err.Error()), nil
	}
	if err := a.upsertInventoryItem(ctx, token, sku, item, -1); err != nil {
		return platform.Fail(platform.ErrPermanent, err.Error()), nil
	}
	return platform.Ok(""), nil
}

// DeleteItem implements platform.Deleter by deleting the inventory item
// keyed by platformItemID; it makes no separate offer-withdraw call.
func (a *Adapter) DeleteItem(ctx context.Context, platformItemID string) (platform.Result, error) {
	token, err := a.ensureUserToken(ctx)
	if err != nil {
		return platform.Fail(platform.ErrAuth, err.Error()), nil
	}
	status, body, err := a.do(ctx, http.MethodDelete, "/sell/inventory/v1/inventory_item/"+platformItemID, token, nil, nil)
	if err != nil {
		return platform.Fail(platform.ErrPermanent, err.Error()), nil
	}
	if status < 200 || status >= 300 {
		return platform.Fail(platform.ErrPermanent, fmt.Sprintf("status %d: %s", status, string(body))), nil
	}
	return platform.Ok(""), nil
}

// UpdatePrice implements platform.PriceUpdater. eBay rejects a price PUT
// on a PUBLISHED offer whose availableQuantity is 0, so the inventory
// quantity is lifted to 1 first when needed.
func (a *Adapter) UpdatePrice(ctx context.Context, sku string, priceJPY int64) (platform.Result, error) {
	token, err := a.ensureUserToken(ctx)
	if err != nil {
		return platform.Fail(platform.ErrAuth, err.Error()), nil
	}

	meta, err := a.store.GetPlatformMetadata(sku)
	if err != nil || meta == nil || meta.OfferID == "" {
		return platform.Fail(platform.ErrPermanent, "ebay: no offer on record for sku "+sku), nil
	}

	item, err := a.getInventoryItem(ctx, token, sku)
	if err == nil && item.Quantity == 0 {
		if err := a.upsertInventoryItem(ctx, token, sku, item, 1); err != nil {
			return platform.Fail(platform.ErrPermanent, err.Error()), nil
		}
	}

	payload := map[string]interface{}{
		"pricingSummary": pricingSummary{Price: priceAmount{Value: yenToUSD(priceJPY), Currency: "USD"}},
	}
	status, body, err := a.do(ctx, http.MethodPut, "/sell/inventory/v1/offer/"+meta.OfferID, token, payload, nil)
	if err != nil {
		return platform.Fail(platform.ErrPermanent, err.Error()), nil
	}
	if status < 200 || status >= 300 {
		return platform.Fail(platform.ErrPermanent, fmt.Sprintf("status %d: %s", status, string(body))), nil
	}
	return platform.Ok(""), nil
}

// UpdateQuantity implements platform.QuantityUpdater.
func (a *Adapter) UpdateQuantity(ctx context.Context, sku string, quantity int) (platform.Result, error) {
	token, err := a.ensureUserToken(ctx)
	if err != nil {
		return platform.Fail(platform.ErrAuth, err.Error()), nil
	}
	item, err := a.getInventoryItem(ctx, token, sku)
	if err != nil {
		return platform.Fail(platform.ErrPermanent, err.Error()), nil
	}
	if err := a.upsertInventoryItem(ctx, token, sku, item, quantity); err != nil {
		return platform.Fail(platform.ErrPermanent, err.Error()), nil
	}
	return platform.Ok(""), nil
}

// UpdateVisibility implements platform.VisibilityUpdater as a publish/
// withdraw transition on the offer: visible=true relists (ensuring a
// merchant location key), visible=false withdraws back to
// OFFER_UNPUBLISHED.
func (a *Adapter) UpdateVisibility(ctx context.Context, sku string, visible bool) (platform.Result, error) {
	token, err := a.ensureUserToken(ctx)
	if err != nil {
		return platform.Fail(platform.ErrAuth, err.Error()), nil
	}
	meta, err := a.store.GetPlatformMetadata(sku)
	if err != nil || meta == nil || meta.OfferID == "" {
		return platform.Fail(platform.ErrPermanent, "ebay: no offer on record for sku "+sku), nil
	}

	if !visible {
		if err := a.withdrawOffer(ctx, token, meta.OfferID); err != nil {
			return platform.Fail(platform.ErrPermanent, err.Error()), nil
		}
		return platform.Ok(""), nil
	}

	if meta.MerchantLocationKey == "" {
		return platform.Fail(platform.ErrPermanent, "ebay: relist requires a merchantLocationKey"), nil
	}
	listingID, err := a.publishOffer(ctx, token, meta.OfferID)
	if err != nil {
		return platform.Fail(platform.ErrPermanent, err.Error()), nil
	}
	return platform.Ok(listingID), nil
}

func (a *Adapter) getInventoryItem(ctx context.Context, token, sku string) (platform.Item, error) {
	var resp struct {
		Product struct {
			Title     string   `json:"title"`
			ImageURLs []string `json:"imageUrls"`
		} `json:"product"`
		Availability struct {
			ShipToLocationAvailability struct {
				Quantity int `json:"quantity"`
			} `json:"shipToLocationAvailability"`
		} `json:"availability"`
	}
	status, body, err := a.do(ctx, http.MethodGet, "/sell/inventory/v1/inventory_item/"+sku, token, nil, &resp)
	if err != nil {
		return platform.Item{}, err
	}
	if status < 200 || status >= 300 {
		return platform.Item{}, fmt.Errorf("ebay: get inventory item status %d: %s", status, string(body))
	}
	return platform.Item{
		SKU:      sku,
		Title:    resp.Product.Title,
		Images:   resp.Product.ImageURLs,
		Quantity: resp.Availability.ShipToLocationAvailability.Quantity,
	}, nil
}

// GetItem implements platform.Getter.
func (a *Adapter) GetItem(ctx context.Context, platformItemID string) (platform.Item, error) {
	token, err := a.ensureUserToken(ctx)
	if err != nil {
		return platform.Item{}, err
	}
	return a.getInventoryItem(ctx, token, platformItemID)
}

// ListItems implements platform.Lister, paging through every inventory
// item the account holds.
func (a *Adapter) ListItems(ctx context.Context) ([]platform.Item, error) {
	token, err := a.ensureUserToken(ctx)
	if err != nil {
		return nil, err
	}

	var out []platform.Item
	offset := 0
	const limit = 100
	for {
		var resp struct {
			InventoryItems []struct {
				SKU     string `json:"sku"`
				Product struct {
					Title string `json:"title"`
				} `json:"product"`
				Availability struct {
					ShipToLocationAvailability struct {
						Quantity int `json:"quantity"`
					} `json:"shipToLocationAvailability"`
				} `json:"availability"`
			} `json:"inventoryItems"`
		}
		path := fmt.Sprintf("/sell/inventory/v1/inventory_item?limit=%d&offset=%d", limit, offset)
		status, body, err := a.do(ctx, http.MethodGet, path, token, nil, &resp)
		if err != nil {
			return out, err
		}
		if status < 200 || status >= 300 {
			return out, fmt.Errorf("ebay: list inventory items status %d: %s", status, string(body))
		}
		if len(resp.InventoryItems) == 0 {
			break
		}
		for _, it := range resp.InventoryItems {
			out = append(out, platform.Item{
				SKU:      it.SKU,
				Title:    it.Product.Title,
				Quantity: it.Availability.ShipToLocationAvailability.Quantity,
				// The real offer/listing id requires a separate per-SKU
				// getOffers lookup; SKU doubles as the addressable id for
				// every inventory-item-keyed call this adapter makes.
				PlatformItemID: it.SKU,
			})
		}
		offset += len(resp.InventoryItems)
		if len(resp.InventoryItems) < limit {
			break
		}
	}
	return out, nil
}

// CheckDuplicate implements platform.DuplicateChecker: eBay inventory
// items are keyed by SKU directly, so existence of the inventory item is
// the duplicate signal.
func (a *Adapter) CheckDuplicate(ctx context.Context, asin, sku string) (bool, error) {
	token, err := a.ensureUserToken(ctx)
	if err != nil {
		return false, err
	}
	status, _, err := a.do(ctx, http.MethodGet, "/sell/inventory/v1/inventory_item/"+sku, token, nil, nil)
	if err != nil {
		return false, err
	}
	return status == http.StatusOK, nil
}

// UploadImages implements platform.ImageUploader by re-sending the
// inventory item with an updated image list (eBay has no separate image
// endpoint; images travel on the inventory item itself).
func (a *Adapter) UploadImages(ctx context.Context, platformItemID string, urls []string) (platform.Result, error) {
	token, err := a.ensureUserToken(ctx)
	if err != nil {
		return platform.Fail(platform.ErrAuth, err.Error()), nil
	}
	item, err := a.getInventoryItem(ctx, token, platformItemID)
	if err != nil {
		return platform.Fail(platform.ErrPermanent, err.Error()), nil
	}
	if len(urls) > maxImages {
		urls = urls[:maxImages]
	}
	item.Images = urls
	if err := a.upsertInventoryItem(ctx, token, platformItemID, item, item.Quantity); err != nil {
		return platform.Fail(platform.ErrPermanent, err.Error()), nil
	}
	return platform.Ok(platformItemID), nil
}

// yenToUSD converts an integer JPY price to a fixed-point USD string. The
// conversion rate is a coarse constant; a production deployment would
// source this from a live FX feed, out of scope here.
func yenToUSD(priceJPY int64) string {
	const jpyPerUSD = 150.0
	return fmt.Sprintf("%.2f", float64(priceJPY)/jpyPerUSD)
}

// CategoryMapper queries eBay's Taxonomy API with the application token to
// recommend a category for an item title, caching suggestions by md5 of
// the query and falling back to a hard default when Taxonomy yields
// nothing.
type CategoryMapper struct {
	a *Adapter
}

// defaultCategoryID is used when Taxonomy returns no suggestion at all.
const defaultCategoryID = "99"

// NewCategoryMapper wraps an Adapter to provide category suggestions.
func NewCategoryMapper(a *Adapter) *CategoryMapper {
	return &CategoryMapper{a: a}
}

// Suggest returns eBay's best category guess for query, or
// defaultCategoryID if Taxonomy has no suggestion.
func (m *CategoryMapper) Suggest(ctx context.Context, _ string, query string) (string, error) {
	key := md5Hex(query)

	m.a.categoryMu.Lock()
	if cached, ok := m.a.categoryCache[key]; ok {
		m.a.categoryMu.Unlock()
		return cached, nil
	}
	m.a.categoryMu.Unlock()

	appToken, err := m.a.ensureAppToken(ctx)
	if err != nil {
		return defaultCategoryID, nil
	}

	var resp struct {
		CategorySuggestions []struct {
			Category struct {
				CategoryID string `json:"categoryId"`
			} `json:"category"`
		} `json:"categorySuggestions"`
	}
	path := "/commerce/taxonomy/v1/category_tree/0/get_category_suggestions?q=" + url.QueryEscape(query)
	status, _, err := m.a.do(ctx, http.MethodGet, path, appToken, nil, &resp)

	categoryID := defaultCategoryID
	if err == nil && status == http.StatusOK && len(resp.CategorySuggestions) > 0 {
		categoryID = resp.CategorySuggestions[0].Category.CategoryID
	}

	m.a.categoryMu.Lock()
	m.a.categoryCache[key] = categoryID
	m.a.categoryMu.Unlock()
	return categoryID, nil
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
