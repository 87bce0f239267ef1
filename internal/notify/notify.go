// Package notify publishes pipeline events to downstream consumers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Event types.
const (
	TypeStored  = "stored"
	TypeIndexed = "indexed"
)

// Event describes an object written to the store or a record submitted to
// the index.
type Event struct {
	Type     string    `json:"type"`
	Bucket   string    `json:"bucket"`
	Key      string    `json:"key"`
	Locator  string    `json:"locator,omitempty"`
	RecordID string    `json:"record_id,omitempty"`
	Bytes    int       `json:"bytes,omitempty"`
	Words    int       `json:"words,omitempty"`
	At       time.Time `json:"at"`
}

// Notifier delivers events. Delivery failures never fail the pipeline.
type Notifier interface {
	Notify(ctx context.Context, evt Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }

// Subject builds the subject an event is published on.
func Subject(prefix, eventType string) string {
	return prefix + "." + eventType
}

// NATSNotifier publishes events as JSON on "<prefix>.<type>".
type NATSNotifier struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSNotifier connects to the NATS server at url.
func NewNATSNotifier(url, prefix string) (*NATSNotifier, error) {
	conn, err := nats.Connect(url,
		nats.Name("hydrator"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSNotifier{conn: conn, prefix: prefix}, nil
}

func (n *NATSNotifier) Notify(_ context.Context, evt Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := n.conn.Publish(Subject(n.prefix, evt.Type), data); err != nil {
		return fmt.Errorf("publish %s event: %w", evt.Type, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (n *NATSNotifier) Close() error {
	return n.conn.Drain()
}
