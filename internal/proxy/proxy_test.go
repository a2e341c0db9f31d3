package proxy

import (
	"testing"

	"github.com/nuco-0416/ecauto-sub000/internal/config"
)

func testBook() *config.AccountBook {
	return &config.AccountBook{
		Owners: map[string]config.Owner{
			"owner-1": {ID: "owner-1", ProxyID: "owner-proxy"},
		},
		Accounts: map[string]config.Account{
			"acct-direct": {ID: "acct-direct", OwnerID: "owner-1"},
			"acct-own":    {ID: "acct-own", OwnerID: "owner-1", ProxyID: "acct-proxy"},
		},
		Proxies: map[string]config.Proxy{
			"acct-proxy":  {ID: "acct-proxy", URL: "http://acct.proxy.example"},
			"owner-proxy": {ID: "owner-proxy", URL: "http://owner.proxy.example"},
		},
	}
}

func TestResolvePrefersCallSiteOverEverything(t *testing.T) {
	r := New(testBook())
	got, err := r.Resolve("", "acct-own", "http://call-site.example")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "http://call-site.example" {
		t.Fatalf("expected call-site proxy to win, got %q", got)
	}
}

func TestResolveFallsBackToAccountProxy(t *testing.T) {
	r := New(testBook())
	got, err := r.Resolve("", "acct-own", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "http://acct.proxy.example" {
		t.Fatalf("expected the account's own proxy, got %q", got)
	}
}

func TestResolveFallsBackToOwnerProxyWhenAccountHasNone(t *testing.T) {
	r := New(testBook())
	got, err := r.Resolve("", "acct-direct", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "http://owner.proxy.example" {
		t.Fatalf("expected the owner's proxy as the last fallback, got %q", got)
	}
}

func TestResolveReturnsEmptyForUnknownAccountWithNoCallSiteProxy(t *testing.T) {
	r := New(testBook())
	got, err := r.Resolve("", "does-not-exist", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "" {
		t.Fatalf("expected direct (empty) for an unknown account, got %q", got)
	}
}

func TestResolveWithNilBookPassesThroughCallSiteProxy(t *testing.T) {
	var r *AccountBookResolver
	got, err := r.Resolve("", "acct-1", "http://call-site.example")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "http://call-site.example" {
		t.Fatalf("expected a nil resolver to pass through the call-site proxy untouched, got %q", got)
	}
}
