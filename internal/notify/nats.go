package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/wichananm65/pet-shop-storefront/internal/order"
)

const (
	connectAttempts = 3
	publishAttempts = 3
	flushTimeout    = 2 * time.Second
)

type NatsPublisher struct {
	nc      *nats.Conn
	subject string
	log     *slog.Logger
}

func NewNatsPublisher(ctx context.Context, url, subject string, log *slog.Logger) (*NatsPublisher, error) {
	var (
		nc  *nats.Conn
		err error
	)
	for i := 0; i < connectAttempts; i++ {
		nc, err = nats.Connect(url,
			nats.Name("pet-shop-storefront"),
			nats.MaxReconnects(5),
			nats.ReconnectWait(2*time.Second),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				log.Warn("nats disconnected", "err", err)
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				log.Info("nats reconnected", "url", nc.ConnectedUrl())
			}),
		)
		if err == nil {
			log.Info("connected to nats", "url", url, "subject", subject)
			return &NatsPublisher{nc: nc, subject: subject, log: log}, nil
		}
		log.Warn("nats connect failed", "attempt", i+1, "err", err)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect to nats: %w", ctx.Err())
		case <-time.After(2 * time.Second):
		}
	}
	return nil, fmt.Errorf("connect to nats after %d attempts: %w", connectAttempts, err)
}

func (p *NatsPublisher) OrderPlaced(ctx context.Context, o order.Order) error {
	data, err := json.Marshal(NewOrderPlacedEvent(o))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	for i := 0; i < publishAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err = p.nc.Publish(p.subject, data); err != nil {
			p.log.Warn("nats publish failed", "attempt", i+1, "order_id", o.ID, "err", err)
			time.Sleep(time.Second)
			continue
		}
		if err = p.nc.FlushTimeout(flushTimeout); err != nil {
			p.log.Warn("nats flush failed", "attempt", i+1, "order_id", o.ID, "err", err)
			continue
		}
		p.log.Info("published order event", "subject", p.subject, "order_id", o.ID)
		return nil
	}
	return fmt.Errorf("publish %s after %d attempts: %w", p.subject, publishAttempts, err)
}

func (p *NatsPublisher) Close() {
	if p.nc != nil && !p.nc.IsClosed() {
		if err := p.nc.Drain(); err != nil {
			p.nc.Close()
		}
		p.log.Info("nats connection closed")
	}
}
