package scoring

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const eventSubject = "scoring.events.>"

// Consumer subscribes to the external scoring feed on NATS and funnels each
// event into the aggregator. Malformed or rejected events are logged and
// dropped; the feed is redelivery-prone and the aggregator dedups.
type Consumer struct {
	nc  *nats.Conn
	sub *nats.Subscription
	agg *Aggregator
	log *zap.Logger
}

func NewConsumer(url string, agg *Aggregator, log *zap.Logger) (*Consumer, error) {
	c := &Consumer{agg: agg, log: log}

	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("scoring feed disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("scoring feed reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to scoring feed: %w", err)
	}
	c.nc = nc

	sub, err := nc.Subscribe(eventSubject, c.handle)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribe %s: %w", eventSubject, err)
	}
	c.sub = sub

	log.Info("scoring feed consumer started", zap.String("subject", eventSubject))
	return c, nil
}

func (c *Consumer) handle(msg *nats.Msg) {
	var ev Event
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		c.log.Warn("dropping malformed scoring event",
			zap.String("subject", msg.Subject), zap.Error(err))
		return
	}

	total, applied, err := c.agg.ApplyEvent(ev)
	if err != nil {
		c.log.Warn("dropping rejected scoring event",
			zap.String("subject", msg.Subject), zap.Error(err))
		return
	}
	if applied {
		c.log.Debug("applied scoring event",
			zap.String("league_id", ev.LeagueID),
			zap.String("roster_id", ev.RosterID),
			zap.Float64("total_points", total))
	}
}

func (c *Consumer) Close() {
	if c.sub != nil {
		_ = c.sub.Unsubscribe()
	}
	if c.nc != nil {
		_ = c.nc.Drain()
	}
}
