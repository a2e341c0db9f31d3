package platform

import "testing"

type fakeAdapter struct {
	platform, accountID string
}

func (f fakeAdapter) Platform() string  { return f.platform }
func (f fakeAdapter) AccountID() string { return f.accountID }

func TestRegisterAndNew(t *testing.T) {
	Register("fake-test", func(accountID string, deps Deps) (Adapter, error) {
		return fakeAdapter{platform: "fake-test", accountID: accountID}, nil
	})

	a, err := New("fake-test", "acct-1", Deps{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.Platform() != "fake-test" || a.AccountID() != "acct-1" {
		t.Fatalf("unexpected adapter: %+v", a)
	}
}

func TestNewUnregisteredPlatform(t *testing.T) {
	if _, err := New("does-not-exist", "acct-1", Deps{}); err == nil {
		t.Fatal("expected an error for an unregistered platform")
	}
}

func TestResultHelpers(t *testing.T) {
	ok := Ok("item-123")
	if ok.Status != StatusSuccess || ok.PlatformItemID != "item-123" {
		t.Fatalf("unexpected Ok result: %+v", ok)
	}

	fail := Fail(ErrTransient, "rate limited")
	if fail.Status != StatusFailed || fail.ErrorCode != ErrTransient || fail.Message != "rate limited" {
		t.Fatalf("unexpected Fail result: %+v", fail)
	}
}
