package notify

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

type captureChannel struct {
	sends int
	title string
	body  string
	level Level
}

func (c *captureChannel) Send(_ context.Context, title, body string, level Level) error {
	c.sends++
	c.title, c.body, c.level = title, body, level
	return nil
}

func TestLoadMissingFileYieldsDisabledNotifier(t *testing.T) {
	n, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	ch := &captureChannel{}
	n.channel = ch
	n.Notify("some_event", "title", "body", LevelInfo)
	if ch.sends != 0 {
		t.Fatal("expected a disabled notifier (from a missing config file) to never call Send")
	}
}

func writeNotifyConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "notifications.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestNotifySendsWhenEnabledAndEventNotExplicitlyDisabled(t *testing.T) {
	path := writeNotifyConfig(t, `{"enabled": true, "method": "capture", "events": {}}`)
	ch := &captureChannel{}
	n, err := Load(path, map[string]Channel{"capture": ch})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	n.Notify("retry_exhausted", "Sync failed", "boom", LevelError)
	if ch.sends != 1 {
		t.Fatalf("expected exactly one Send call, got %d", ch.sends)
	}
	if ch.title != "Sync failed" || ch.level != LevelError {
		t.Fatalf("unexpected captured notification: title=%q level=%q", ch.title, ch.level)
	}
}

func TestNotifySkipsExplicitlyDisabledEvent(t *testing.T) {
	path := writeNotifyConfig(t, `{"enabled": true, "method": "capture", "events": {"retry_exhausted": false}}`)
	ch := &captureChannel{}
	n, err := Load(path, map[string]Channel{"capture": ch})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	n.Notify("retry_exhausted", "Sync failed", "boom", LevelError)
	if ch.sends != 0 {
		t.Fatal("expected an explicitly-disabled event key to be skipped")
	}
}

func TestNotifyNoOpWhenNotifierDisabledOverall(t *testing.T) {
	path := writeNotifyConfig(t, `{"enabled": false, "method": "capture"}`)
	ch := &captureChannel{}
	n, err := Load(path, map[string]Channel{"capture": ch})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	n.Notify("retry_exhausted", "Sync failed", "boom", LevelError)
	if ch.sends != 0 {
		t.Fatal("expected a globally-disabled notifier to never call Send")
	}
}

func TestLoadFallsBackToEventLogForUnknownMethod(t *testing.T) {
	path := writeNotifyConfig(t, `{"enabled": true, "method": "unregistered-transport"}`)
	n, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := n.channel.(EventLog); !ok {
		t.Fatalf("expected an unknown method to fall back to EventLog, got %T", n.channel)
	}
}

func TestEventLogSendNeverErrors(t *testing.T) {
	if err := (EventLog{}).Send(context.Background(), "t", "b", LevelWarn); err != nil {
		t.Fatalf("EventLog.Send: %v", err)
	}
}
