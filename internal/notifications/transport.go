package notifications

import (
	"context"

	"github.com/dmitrijs2005/vaultcore/internal/account"
)

// Stream is a live sequence of envelopes for one account. Receive blocks
// until an envelope arrives, the context ends, or the stream fails.
type Stream interface {
	Receive(ctx context.Context) (Envelope, error)
	Close() error
}

// Support says whether the push-subscription transport can serve an account
// right now. When it cannot, Reason explains why (diagnostics only).
type Support struct {
	Supported bool
	Reason    string
}

// PushConnector is the push-subscription transport: a live per-account
// support state plus the envelope stream itself.
type PushConnector interface {
	// SubscribeSupport returns the current support state for id and a
	// channel of future equality-gated changes.
	SubscribeSupport(id account.UserID) (Support, <-chan Support, func())

	Connect(ctx context.Context, id account.UserID) (Stream, error)
}

// HubConnector is the duplex-hub fallback transport. Its streams self-heal:
// a dropped connection schedules a randomized reconnect internally, so
// Connect itself does not fail on an unreachable server.
type HubConnector interface {
	Connect(ctx context.Context, id account.UserID) (Stream, error)
}
