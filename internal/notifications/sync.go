package notifications

import (
	"context"

	"github.com/dmitrijs2005/vaultcore/internal/account"
)

// SyncHandler is the sync engine as seen from the router. How upserts and
// deletes are applied to local storage is the sync engine's business; the
// router only decides which call fires and for which user.
type SyncHandler interface {
	UpsertCipher(ctx context.Context, id account.UserID, p Payload, isEdit bool) error
	DeleteCipher(ctx context.Context, id account.UserID, p Payload) error
	UpsertFolder(ctx context.Context, id account.UserID, p Payload, isEdit bool) error
	DeleteFolder(ctx context.Context, id account.UserID, p Payload) error
	UpsertSend(ctx context.Context, id account.UserID, p Payload, isEdit bool) error
	DeleteSend(ctx context.Context, id account.UserID, p Payload) error

	// FullSync refetches the whole vault. forced guarantees a refetch even
	// when the account's revision date has not moved.
	FullSync(ctx context.Context, id account.UserID, forced bool) error
}

// AuthRequestHandler relays device-approval traffic to the UI layer.
type AuthRequestHandler interface {
	AuthRequest(ctx context.Context, id account.UserID, requestID string) error
	AuthRequestResponse(ctx context.Context, id account.UserID, requestID string) error
}

// LogoutFunc performs a full logout of id, tagged with a reason.
type LogoutFunc func(ctx context.Context, id account.UserID, reason string) error
