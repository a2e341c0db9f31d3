package spapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nuco-0416/ecauto-sub000/internal/config"
	"github.com/nuco-0416/ecauto-sub000/internal/ratelimit"
	"github.com/nuco-0416/ecauto-sub000/internal/shutdown"
)

func newTestClient(t *testing.T, batchCalls *int32) (*Client, *httptest.Server) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/batches/products/pricing/v0/itemOffers", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(batchCalls, 1)
		var body struct {
			Requests []struct {
				URI string `json:"uri"`
			} `json:"requests"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		responses := make([]map[string]interface{}, len(body.Requests))
		for i := range body.Requests {
			responses[i] = map[string]interface{}{
				"status": 200,
				"body": map[string]interface{}{
					"Offers": []map[string]interface{}{},
				},
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"responses": responses})
	})

	server := httptest.NewServer(mux)

	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "test-token",
			"expires_in":   3600,
		})
	}))
	t.Cleanup(tokenServer.Close)

	catalogBaseURL = server.URL
	lwaTokenURL = tokenServer.URL

	limiter := ratelimit.New(map[ratelimit.Class]time.Duration{
		ratelimit.ClassBatch:   20 * time.Millisecond,
		ratelimit.ClassCatalog: time.Millisecond,
	})
	creds := config.AmazonCredentials{RefreshToken: "r", LWAAppID: "a", LWAClientSecret: "s"}
	c := New(creds, limiter, nil, "")
	return c, server
}

func TestBatchSplitsAt20(t *testing.T) {
	var calls int32
	c, server := newTestClient(t, &calls)
	defer server.Close()

	asins := make([]string, 21)
	for i := range asins {
		asins[i] = fmt.Sprintf("ASIN%03d", i)
	}

	tok := shutdown.NewWithContext(context.Background())
	results, err := c.GetPricesBatch(tok, asins)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 21 {
		t.Fatalf("expected 21 results, got %d", len(results))
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected 2 batch calls (20+1), got %d", got)
	}
	for _, asin := range asins {
		if results[asin].Status != OfferOutOfStock {
			t.Fatalf("expected out_of_stock for %s with no offers, got %s", asin, results[asin].Status)
		}
	}
}

func TestGetPricesBatchInterruptedMidWait(t *testing.T) {
	var calls int32
	c, server := newTestClient(t, &calls)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	tok := shutdown.NewWithContext(ctx)
	cancel()

	asins := []string{"ASIN000"}
	if _, err := c.GetPricesBatch(tok, asins); err == nil {
		t.Fatal("expected interruption error when shutdown already fired")
	}
}

func TestGetProductInfoDedupesImages(t *testing.T) {
	var calls int32
	c, server := newTestClient(t, &calls)
	defer server.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/catalog/2022-04-01/items/B0TEST", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		body := `{
			"summaries":[{"itemName":"Test Product","brand":"Acme","marketplaceId":"` + marketplaceID + `"}],
			"images":[{"marketplaceId":"` + marketplaceID + `","images":[
				{"link":"https://m.media-amazon.com/images/I/71abc.MAIN._SX300_.jpg","height":300,"width":300,"variant":"MAIN"},
				{"link":"https://m.media-amazon.com/images/I/71abc.MAIN._SX522_.jpg","height":522,"width":522,"variant":"MAIN"}
			]}],
			"salesRanks":[{"marketplaceId":"` + marketplaceID + `","ranks":[{"title":"Toys"},{"title":"Figures"}]}]
		}`
		_, _ = w.Write([]byte(body))
	})
	catalogServer := httptest.NewServer(mux)
	defer catalogServer.Close()
	catalogBaseURL = catalogServer.URL

	tok := shutdown.NewWithContext(context.Background())
	info, err := c.GetProductInfo(tok, "B0TEST")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Title != "Test Product" || info.Brand != "Acme" {
		t.Fatalf("unexpected product info: %+v", info)
	}
	if info.CategoryPath != "Toys/Figures" {
		t.Fatalf("unexpected category path: %s", info.CategoryPath)
	}
	if len(info.Images) != 1 {
		t.Fatalf("expected dedup to leave 1 image, got %d: %v", len(info.Images), info.Images)
	}
	if !strings.Contains(info.Images[0], "_SX522_") {
		t.Fatalf("expected the larger variant to survive dedup, got %s", info.Images[0])
	}
}
