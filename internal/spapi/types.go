package spapi

import "time"

// ProductInfo is the catalog record built from a getCatalogItem response.
type ProductInfo struct {
	ASIN         string
	Title        string
	Brand        string
	Description  string
	CategoryPath string
	Images       []string // deduplicated, ordered, largest-variant-wins
}

// OfferStatus tags the outcome of scoring a single ASIN's offers.
type OfferStatus string

const (
	OfferSuccess      OfferStatus = "success"
	OfferOutOfStock   OfferStatus = "out_of_stock"
	OfferFilteredOut  OfferStatus = "filtered_out"
	OfferAPIError     OfferStatus = "api_error"
	OfferEmptyPayload OfferStatus = "empty_payload"
)

// OfferResult is the outcome of get_prices_batch/get_product_price for one
// ASIN. Only Status=OfferSuccess populates Price/IsPrime/IsFBA; callers
// must never treat OfferAPIError as zero stock.
type OfferResult struct {
	ASIN     string
	Status   OfferStatus
	Price    int64 // JPY, integer yen
	InStock  bool
	IsPrime  bool
	IsFBA    bool
	Currency string
	Err      error
}

// rawOffer is the subset of a Pricing API offer entry this client scores
// on, already converted from the wire shape (rawOfferWire) into Go field
// names.
type rawOffer struct {
	Condition        string
	ShippingCost     float64
	MaximumHours     int
	AvailabilityType string
	IsPrime          bool
	IsFBA            bool
	Price            float64
}

// tokenState caches the LWA access token.
type tokenState struct {
	accessToken string
	expiresAt   time.Time
}
