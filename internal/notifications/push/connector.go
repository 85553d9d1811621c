// Package push implements the preferred notification transport: a per-account
// subscription on the notification broker. Unlike the hub fallback its
// streams do not self-heal; a broken subscription surfaces as a stream error
// and the router decides what happens next.
package push

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/vaultcore/internal/account"
	"github.com/dmitrijs2005/vaultcore/internal/common"
	"github.com/dmitrijs2005/vaultcore/internal/logging"
	"github.com/dmitrijs2005/vaultcore/internal/notifications"
	"github.com/dmitrijs2005/vaultcore/internal/observe"
)

const channelPrefix = "notifications:user:"

// Connector subscribes accounts to their broker channels and tracks, per
// account, whether the push transport can serve them at all.
type Connector struct {
	log    logging.Logger
	client redis.UniversalClient // nil when push is not configured

	mu      sync.Mutex
	support map[account.UserID]*observe.Value[notifications.Support]
}

// NewConnector builds the push transport. client may be nil, which makes
// every account report the transport as unsupported.
func NewConnector(log logging.Logger, client redis.UniversalClient) *Connector {
	if log == nil {
		log = logging.Nop()
	}
	return &Connector{
		log:     log.With("component", "push-connector"),
		client:  client,
		support: make(map[account.UserID]*observe.Value[notifications.Support]),
	}
}

func channelFor(id account.UserID) string {
	return channelPrefix + string(id)
}

func (c *Connector) supportValue(id account.UserID) *observe.Value[notifications.Support] {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.support[id]
	if !ok {
		v = observe.NewValue(func(a, b notifications.Support) bool { return a == b })
		if c.client == nil {
			v.Set(notifications.Support{Reason: "push transport not configured"})
		} else {
			v.Set(notifications.Support{Supported: true})
		}
		c.support[id] = v
	}
	return v
}

// SetSupport records a support-state change for id, e.g. after the server
// reports the account's push registration expired. Equal states do not emit.
func (c *Connector) SetSupport(id account.UserID, s notifications.Support) {
	c.supportValue(id).Set(s)
}

func (c *Connector) SubscribeSupport(id account.UserID) (notifications.Support, <-chan notifications.Support, func()) {
	cur, _, ch, cancel := c.supportValue(id).Subscribe()
	return cur, ch, cancel
}

func (c *Connector) Connect(ctx context.Context, id account.UserID) (notifications.Stream, error) {
	if c.client == nil {
		return nil, common.ErrNotificationsUnsupported
	}
	if cur, _ := c.supportValue(id).Get(); !cur.Supported {
		return nil, common.ErrNotificationsUnsupported
	}

	pubsub := c.client.Subscribe(ctx, channelFor(id))
	// Receive confirms the subscription so broker failures surface here
	// instead of as a silent never-delivering stream.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	c.log.Info(ctx, "push subscription established", "user_id", id, "channel", channelFor(id))
	return &stream{
		log:    c.log.With("user_id", id),
		pubsub: pubsub,
		msgs:   pubsub.Channel(),
	}, nil
}

type stream struct {
	log    logging.Logger
	pubsub *redis.PubSub
	msgs   <-chan *redis.Message
	closed atomic.Bool
}

func (s *stream) Receive(ctx context.Context) (notifications.Envelope, error) {
	for {
		select {
		case <-ctx.Done():
			return notifications.Envelope{}, ctx.Err()
		case msg, ok := <-s.msgs:
			if !ok {
				if s.closed.Load() {
					return notifications.Envelope{}, common.ErrStreamClosed
				}
				return notifications.Envelope{}, common.ErrNotificationsUnsupported
			}
			env, err := notifications.ParseEnvelope([]byte(msg.Payload))
			if err != nil {
				s.log.Warn(ctx, "skipped malformed push message", "error", err)
				continue
			}
			return env, nil
		}
	}
}

func (s *stream) Close() error {
	s.closed.Store(true)
	return s.pubsub.Close()
}
