package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

type natsConn interface {
	Publish(subj string, data []byte) error
	Drain() error
}

// NATS publishes JSON events on "<prefix>.<event name>", for example
// "accounts.user.registered".
type NATS struct {
	conn   natsConn
	prefix string
}

// connect is a seam for tests.
var connect = func(url string) (natsConn, error) {
	return nats.Connect(url, nats.Name("accounts"), nats.MaxReconnects(-1))
}

func NewNATS(url, prefix string) (*NATS, error) {
	nc, err := connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &NATS{conn: nc, prefix: prefix}, nil
}

func (n *NATS) subject(name string) string {
	if n.prefix == "" {
		return name
	}
	return n.prefix + "." + name
}

func (n *NATS) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := n.conn.Publish(n.subject(e.Name), data); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (n *NATS) Close() error {
	return n.conn.Drain()
}
