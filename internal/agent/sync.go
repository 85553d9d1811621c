package agent

import (
	"context"

	"github.com/dmitrijs2005/vaultcore/internal/account"
	"github.com/dmitrijs2005/vaultcore/internal/logging"
	"github.com/dmitrijs2005/vaultcore/internal/notifications"
)

// cacheInvalidator is the agent's sync collaborator: incoming change events
// invalidate the affected cached entries so the next read refetches. The
// actual refetch belongs to the storage layer sitting behind the caches.
type cacheInvalidator struct {
	app *App
}

func (s *cacheInvalidator) UpsertCipher(ctx context.Context, id account.UserID, p notifications.Payload, isEdit bool) error {
	s.app.ciphers.Delete(id, p.ID)
	s.app.logger.Debug(ctx, "cipher cache invalidated", "user_id", id, "cipher_id", p.ID, "edit", isEdit)
	return nil
}

func (s *cacheInvalidator) DeleteCipher(ctx context.Context, id account.UserID, p notifications.Payload) error {
	s.app.ciphers.Delete(id, p.ID)
	s.app.logger.Debug(ctx, "cipher removed from cache", "user_id", id, "cipher_id", p.ID)
	return nil
}

func (s *cacheInvalidator) UpsertFolder(ctx context.Context, id account.UserID, p notifications.Payload, isEdit bool) error {
	s.app.folders.Delete(id, p.ID)
	s.app.logger.Debug(ctx, "folder cache invalidated", "user_id", id, "folder_id", p.ID, "edit", isEdit)
	return nil
}

func (s *cacheInvalidator) DeleteFolder(ctx context.Context, id account.UserID, p notifications.Payload) error {
	s.app.folders.Delete(id, p.ID)
	s.app.logger.Debug(ctx, "folder removed from cache", "user_id", id, "folder_id", p.ID)
	return nil
}

func (s *cacheInvalidator) UpsertSend(ctx context.Context, id account.UserID, p notifications.Payload, isEdit bool) error {
	s.app.logger.Debug(ctx, "send changed", "user_id", id, "send_id", p.ID, "edit", isEdit)
	return nil
}

func (s *cacheInvalidator) DeleteSend(ctx context.Context, id account.UserID, p notifications.Payload) error {
	s.app.logger.Debug(ctx, "send removed", "user_id", id, "send_id", p.ID)
	return nil
}

func (s *cacheInvalidator) FullSync(ctx context.Context, id account.UserID, forced bool) error {
	if err := s.app.ciphers.ClearCache(ctx, id); err != nil {
		return err
	}
	if err := s.app.folders.ClearCache(ctx, id); err != nil {
		return err
	}
	if err := s.app.collections.ClearCache(ctx, id); err != nil {
		return err
	}
	s.app.logger.Info(ctx, "full sync requested", "user_id", id, "forced", forced)
	return nil
}

// authRequestLog surfaces device-approval traffic in the log until a UI
// prompt collaborator is attached.
type authRequestLog struct {
	logger logging.Logger
}

func (a *authRequestLog) AuthRequest(ctx context.Context, id account.UserID, requestID string) error {
	a.logger.Info(ctx, "device approval requested", "user_id", id, "request_id", requestID)
	return nil
}

func (a *authRequestLog) AuthRequestResponse(ctx context.Context, id account.UserID, requestID string) error {
	a.logger.Info(ctx, "device approval answered", "user_id", id, "request_id", requestID)
	return nil
}
