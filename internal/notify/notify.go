// Package notify routes named events to an operator-configured delivery
// channel. Chatwork/Slack/Discord/email transports are external
// collaborators; this package ships the routing logic, the JSON
// configuration shape, and a default eventlog channel.
package notify

import (
	"context"
	"encoding/json"
	"os"

	"github.com/nuco-0416/ecauto-sub000/internal/logger"
)

// Level mirrors the severity passed to notify(event_key, title, body, level).
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Channel is the narrow contract a delivery transport must satisfy.
type Channel interface {
	Send(ctx context.Context, title, body string, level Level) error
}

// Notifier dispatches a named event to the configured channel, short-
// circuiting when the event or the notifier as a whole is disabled.
type Notifier interface {
	Notify(eventKey, title, body string, level Level)
}

// Config is the notifications.json shape.
type Config struct {
	Enabled bool            `json:"enabled"`
	Method  string          `json:"method"`
	Events  map[string]bool `json:"events"`
}

// JSONNotifier is the default Notifier, backed by a Config and a single
// resolved Channel. Channel failures are logged but never propagated to
// callers, since a notification failure must never fail the calling
// operation.
type JSONNotifier struct {
	cfg     Config
	channel Channel
}

// Load reads notifications.json from path. A missing file yields a
// disabled notifier rather than an error.
func Load(path string, channels map[string]Channel) (*JSONNotifier, error) {
	cfg := Config{Events: map[string]bool{}}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &JSONNotifier{cfg: cfg, channel: EventLog{}}, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	ch, ok := channels[cfg.Method]
	if !ok {
		ch = EventLog{}
	}
	return &JSONNotifier{cfg: cfg, channel: ch}, nil
}

// Notify implements Notifier.
func (n *JSONNotifier) Notify(eventKey, title, body string, level Level) {
	if n == nil || !n.cfg.Enabled {
		return
	}
	if enabled, ok := n.cfg.Events[eventKey]; ok && !enabled {
		return
	}
	if err := n.channel.Send(context.Background(), title, body, level); err != nil {
		logger.Warn("Notify", "channel send failed: "+err.Error())
	}
}

// EventLog is the built-in fallback channel: it prints the notification as
// a console line through internal/logger instead of delivering it
// anywhere external.
type EventLog struct{}

// Send implements Channel.
func (EventLog) Send(_ context.Context, title, body string, level Level) error {
	switch level {
	case LevelError:
		logger.Error("Event", title+": "+body)
	case LevelWarn:
		logger.Warn("Event", title+": "+body)
	default:
		logger.Info("Event", title+": "+body)
	}
	return nil
}
