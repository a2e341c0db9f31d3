package ebay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nuco-0416/ecauto-sub000/internal/config"
	"github.com/nuco-0416/ecauto-sub000/internal/platform"
	"github.com/nuco-0416/ecauto-sub000/internal/store"
)

func newTestAdapter(t *testing.T, srv *httptest.Server) (*Adapter, *store.Store) {
	t.Helper()
	oldAPI, oldOAuth := apiBaseURL, oauthURL
	apiBaseURL = srv.URL
	oauthURL = srv.URL + "/identity/v1/oauth2/token"
	t.Cleanup(func() {
		apiBaseURL, oauthURL = oldAPI, oldOAuth
		srv.Close()
	})

	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	book := &config.AccountBook{
		Accounts: map[string]config.Account{
			"acct-1": {ID: "acct-1", Platform: "ebay", Credentials: map[string]string{
				"refresh_token": "rt-1", "client_id": "cid", "client_secret": "secret",
			}},
		},
	}
	if err := st.SaveToken(store.CredentialToken{AccountID: "acct-1", Platform: "ebay", AccessToken: "", RefreshToken: "rt-1", ExpiresIn: 0}); err != nil {
		t.Fatalf("seed token: %v", err)
	}

	a, err := New("acct-1", platform.Deps{Book: book, Store: st})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a.(*Adapter), st
}

func TestUploadItemPublishesThroughFullLifecycle(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/identity/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "user-tok", "token_type": "Bearer", "expires_in": 7200})
	})
	mux.HandleFunc("/sell/inventory/v1/inventory_item/sku-1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/sell/inventory/v1/offer", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"offerId": "offer-1"})
	})
	mux.HandleFunc("/sell/inventory/v1/offer/offer-1/publish", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"listingId": "listing-1"})
	})
	srv := httptest.NewServer(mux)
	a, st := newTestAdapter(t, srv)

	res, err := a.UploadItem(context.Background(), platform.Item{SKU: "sku-1", Title: "Widget", PriceJPY: 1500, Quantity: 2})
	if err != nil {
		t.Fatalf("UploadItem: %v", err)
	}
	if res.Status != platform.StatusSuccess || res.PlatformItemID != "listing-1" {
		t.Fatalf("unexpected result: %+v", res)
	}

	meta, err := st.GetPlatformMetadata("sku-1")
	if err != nil {
		t.Fatalf("get platform metadata: %v", err)
	}
	if meta == nil || meta.OfferID != "offer-1" || meta.ListingID != "listing-1" {
		t.Fatalf("expected offer/listing ids to be persisted, got %+v", meta)
	}
}

func TestUpdatePriceLiftsZeroQuantityFirst(t *testing.T) {
	var sawInventoryPUT, sawOfferPUT bool

	mux := http.NewServeMux()
	mux.HandleFunc("/identity/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "user-tok", "token_type": "Bearer", "expires_in": 7200})
	})
	mux.HandleFunc("/sell/inventory/v1/inventory_item/sku-1", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"product":      map[string]interface{}{"title": "Widget"},
				"availability": map[string]interface{}{"shipToLocationAvailability": map[string]interface{}{"quantity": 0}},
			})
			return
		}
		sawInventoryPUT = true
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/sell/inventory/v1/offer/offer-1", func(w http.ResponseWriter, r *http.Request) {
		sawOfferPUT = true
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	a, st := newTestAdapter(t, srv)

	if err := st.UpsertPlatformMetadata(store.PlatformMetadata{SKU: "sku-1", Platform: "ebay", OfferID: "offer-1"}); err != nil {
		t.Fatalf("seed platform metadata: %v", err)
	}

	res, err := a.UpdatePrice(context.Background(), "sku-1", 3000)
	if err != nil {
		t.Fatalf("UpdatePrice: %v", err)
	}
	if res.Status != platform.StatusSuccess {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !sawInventoryPUT {
		t.Fatal("expected a quantity-lifting PUT to the inventory item before the price update")
	}
	if !sawOfferPUT {
		t.Fatal("expected the offer price PUT to have been sent")
	}
}

func TestCategoryMapperFallsBackOnFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/identity/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "app-tok", "token_type": "Bearer", "expires_in": 7200})
	})
	mux.HandleFunc("/commerce/taxonomy/v1/category_tree/0/get_category_suggestions", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	a, _ := newTestAdapter(t, srv)

	mapper := NewCategoryMapper(a)
	categoryID, err := mapper.Suggest(context.Background(), "", "some widget")
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if categoryID != defaultCategoryID {
		t.Fatalf("expected fallback to defaultCategoryID, got %q", categoryID)
	}
}
