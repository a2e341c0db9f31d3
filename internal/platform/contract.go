// Package platform defines the uniform contract every downstream
// marketplace adapter (BASE, eBay, ...) implements: upload/update/delete/
// list/get against that platform's own API, behind a single Result shape
// so the sync engine and upload scheduler never branch on which
// marketplace they are talking to. Capabilities an adapter does not
// support are simply interfaces it does not implement; callers discover
// support with a type assertion.
package platform

import "context"

// Status is the coarse outcome of any adapter call.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// ErrorCode classifies a failed Result along the lines of the error
// taxonomy in the engine's error-handling design: transient vs permanent
// vs validation vs duplicate vs auth. Callers (queue.Worker, syncengine)
// branch on this rather than string-matching a message.
type ErrorCode string

const (
	ErrNone       ErrorCode = ""
	ErrTransient  ErrorCode = "transient"
	ErrPermanent  ErrorCode = "permanent"
	ErrValidation ErrorCode = "validation_error"
	ErrDuplicate  ErrorCode = "duplicate"
	ErrAuth       ErrorCode = "auth"
)

// Result is the tagged outcome every adapter call returns, replacing the
// source's free-form response dict.
type Result struct {
	Status         Status
	PlatformItemID string
	ErrorCode      ErrorCode
	Message        string
}

// Ok builds a successful Result.
func Ok(platformItemID string) Result {
	return Result{Status: StatusSuccess, PlatformItemID: platformItemID}
}

// Fail builds a failed Result.
func Fail(code ErrorCode, message string) Result {
	return Result{Status: StatusFailed, ErrorCode: code, Message: message}
}

// Item is the platform-agnostic shape of one listing's sellable content,
// built from the canonical store's Product + Listing rows before being
// handed to an adapter.
type Item struct {
	ASIN         string
	SKU          string
	Title        string
	Description  string
	Brand        string
	CategoryPath string
	Images       []string
	PriceJPY     int64
	Quantity     int
	// PlatformItemID is only populated by Lister.ListItems, for callers
	// (the registrar's live-dump backfill) that need the marketplace-side
	// id without a separate Getter round trip.
	PlatformItemID string
}

// Adapter is the capability every platform implementation must expose.
// Everything beyond identity is an optional sub-interface below.
type Adapter interface {
	// Platform returns the lowercase platform key ("base", "ebay", ...).
	Platform() string
	// AccountID returns the account this adapter instance is scoped to.
	AccountID() string
}

// Uploader creates a brand-new listing on the platform.
type Uploader interface {
	UploadItem(ctx context.Context, item Item) (Result, error)
}

// Updater updates an existing listing's full content.
type Updater interface {
	UpdateItem(ctx context.Context, sku string, item Item) (Result, error)
}

// Deleter removes a listing from the platform entirely.
type Deleter interface {
	DeleteItem(ctx context.Context, platformItemID string) (Result, error)
}

// PriceUpdater updates only the selling price of an existing listing.
type PriceUpdater interface {
	UpdatePrice(ctx context.Context, sku string, priceJPY int64) (Result, error)
}

// QuantityUpdater updates only the in-stock quantity of an existing listing.
type QuantityUpdater interface {
	UpdateQuantity(ctx context.Context, sku string, quantity int) (Result, error)
}

// VisibilityUpdater toggles a listing's public/hidden state.
type VisibilityUpdater interface {
	UpdateVisibility(ctx context.Context, sku string, visible bool) (Result, error)
}

// Lister enumerates every listing the account currently has on the
// platform, used by the registrar/importer to backfill the canonical
// store from a live downstream dump.
type Lister interface {
	ListItems(ctx context.Context) ([]Item, error)
}

// Getter fetches one listing's current platform-side state.
type Getter interface {
	GetItem(ctx context.Context, platformItemID string) (Item, error)
}

// Validator runs platform-specific pre-upload validation beyond the
// scheduler's generic non-null-title/positive-price check.
type Validator interface {
	ValidateItem(item Item) error
}

// DuplicateChecker is consulted by the upload worker immediately before
// UploadItem to avoid creating a second listing for an ASIN/SKU the
// platform already has.
type DuplicateChecker interface {
	CheckDuplicate(ctx context.Context, asin, sku string) (bool, error)
}

// ImageUploader attaches images to an existing listing, for platforms
// whose image pipeline is a separate call from the item create/update.
type ImageUploader interface {
	UploadImages(ctx context.Context, platformItemID string, urls []string) (Result, error)
}
