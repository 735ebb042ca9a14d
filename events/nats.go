package events

import (
	"context"
	"encoding/json"
	"fmt"

	"ewintr.nl/shortscout/model"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
)

const (
	SubjectVideoDiscovered = "shorts.video.discovered"
	SubjectRunCompleted    = "shorts.run.completed"
)

// headerCarrier lets the otel propagator read and write nats headers.
type headerCarrier nats.Msg

func (c *headerCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *headerCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *headerCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

func Publish[T any](ctx context.Context, nc *nats.Conn, subject string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("could not encode %s event: %w", subject, err)
	}
	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
	}
	otel.GetTextMapPropagator().Inject(ctx, (*headerCarrier)(msg))

	return nc.PublishMsg(msg)
}

// Subscribe decodes every message on subject into T. Messages that do not
// decode are dropped.
func Subscribe[T any](nc *nats.Conn, subject string, handler func(context.Context, T)) (*nats.Subscription, error) {
	return nc.Subscribe(subject, func(msg *nats.Msg) {
		var v T
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			return
		}
		ctx := otel.GetTextMapPropagator().Extract(context.Background(), (*headerCarrier)(msg))
		handler(ctx, v)
	})
}

type NATS struct {
	conn *nats.Conn
}

func NewNATS(conn *nats.Conn) *NATS {
	return &NATS{conn: conn}
}

func Connect(url, name string) (*NATS, error) {
	conn, err := nats.Connect(url, nats.Name(name), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("could not connect to nats: %w", err)
	}
	return &NATS{conn: conn}, nil
}

func (n *NATS) VideoDiscovered(ctx context.Context, v *model.Video) error {
	return Publish(ctx, n.conn, SubjectVideoDiscovered, v)
}

func (n *NATS) RunCompleted(ctx context.Context, r *model.RunReport) error {
	return Publish(ctx, n.conn, SubjectRunCompleted, r)
}

func (n *NATS) Close() error {
	return n.conn.Drain()
}
