package notifications

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/vaultcore/internal/account"
	"github.com/dmitrijs2005/vaultcore/internal/auth"
	"github.com/dmitrijs2005/vaultcore/internal/common"
	"github.com/dmitrijs2005/vaultcore/internal/logging"
)

// DisabledNotificationsURL is the sentinel endpoint meaning "no server
// notifications at all". With this URL configured the router establishes no
// transport of any kind for any account.
const DisabledNotificationsURL = "http://-"

// hubRetryDelay spaces retries when even constructing a hub stream fails.
const hubRetryDelay = 5 * time.Second

// Options are the router's static settings.
type Options struct {
	// AppID identifies this app instance; envelopes originated by it are
	// self-echoes and get discarded.
	AppID string

	// NotificationsURL is the configured notifications endpoint, possibly
	// DisabledNotificationsURL.
	NotificationsURL string

	// MultiUser keeps a live stream for every known account, not just the
	// active one. Background accounts only get the restricted envelope
	// allow-list processed.
	MultiUser bool

	// PushWhileLocked counts Locked accounts as connectable.
	PushWhileLocked bool
}

// Deps are the router's collaborators.
type Deps struct {
	Registry     *account.Registry
	Resolver     *auth.Resolver
	Push         PushConnector
	Hub          HubConnector
	Sync         SyncHandler
	Logout       LogoutFunc
	AuthRequests AuthRequestHandler
}

// Router maintains, per eligible account, exactly one live notification
// stream and dispatches each envelope to the matching sync collaborator
// call. It prefers the push-subscription transport, falls back to the hub
// on failure, and tears streams down cleanly whenever eligibility, the
// active account, or transport support changes.
type Router struct {
	log  logging.Logger
	opts Options
	deps Deps

	live     atomic.Bool
	activeID atomic.Value // account.UserID

	mu          sync.Mutex
	supervisors map[account.UserID]*supervisor
	wg          sync.WaitGroup
}

type supervisor struct {
	cancel context.CancelFunc
	kick   chan struct{}
}

func NewRouter(log logging.Logger, opts Options, deps Deps) *Router {
	if log == nil {
		log = logging.Nop()
	}
	r := &Router{
		log:         log.With("component", "notification-router"),
		opts:        opts,
		deps:        deps,
		supervisors: make(map[account.UserID]*supervisor),
	}
	r.live.Store(true)
	r.activeID.Store(account.UserID(""))
	return r
}

// Run drives the router until ctx is cancelled. With the disabled sentinel
// URL it establishes nothing and just waits for cancellation.
func (r *Router) Run(ctx context.Context) {
	if r.opts.NotificationsURL == DisabledNotificationsURL {
		r.log.Info(ctx, "server notifications disabled by configuration")
		<-ctx.Done()
		return
	}

	_, activeCh, cancelActive := r.deps.Registry.SubscribeActive()
	defer cancelActive()
	_, accountsCh, cancelAccounts := r.deps.Registry.SubscribeAccounts()
	defer cancelAccounts()

	r.refreshActive()
	r.reconcile(ctx)

	for {
		select {
		case <-ctx.Done():
			r.wg.Wait()
			return
		case _, ok := <-activeCh:
			if !ok {
				return
			}
			r.refreshActive()
			r.reconcile(ctx)
		case _, ok := <-accountsCh:
			if !ok {
				return
			}
			r.reconcile(ctx)
		}
	}
}

// ReconnectFromActivity marks the process active again; eligible accounts
// re-establish their streams.
func (r *Router) ReconnectFromActivity() {
	r.live.Store(true)
	r.kickAll()
}

// DisconnectFromInactivity marks the process inactive; every live stream is
// torn down until activity resumes.
func (r *Router) DisconnectFromInactivity() {
	r.live.Store(false)
	r.kickAll()
}

func (r *Router) refreshActive() {
	if active, ok := r.deps.Registry.ActiveAccount(); ok {
		r.activeID.Store(active.ID)
	} else {
		r.activeID.Store(account.UserID(""))
	}
}

func (r *Router) currentActive() account.UserID {
	return r.activeID.Load().(account.UserID)
}

// reconcile aligns running supervisors with the set of accounts that should
// have one: the active account, plus every known account in multi-user mode.
func (r *Router) reconcile(ctx context.Context) {
	desired := make(map[account.UserID]struct{})
	if active := r.currentActive(); active != "" {
		desired[active] = struct{}{}
	}
	if r.opts.MultiUser {
		for id := range r.deps.Registry.Accounts() {
			desired[id] = struct{}{}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for id, s := range r.supervisors {
		if _, keep := desired[id]; !keep {
			s.cancel()
			delete(r.supervisors, id)
		}
	}
	for id := range desired {
		if _, running := r.supervisors[id]; running {
			continue
		}
		userCtx, cancel := context.WithCancel(ctx)
		s := &supervisor{cancel: cancel, kick: make(chan struct{}, 2)}
		r.supervisors[id] = s
		r.wg.Add(1)
		go r.superviseUser(userCtx, id, s.kick)
	}
}

func (r *Router) kickAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.supervisors {
		select {
		case s.kick <- struct{}{}:
		default:
		}
	}
}

func (r *Router) usable(status account.Status) bool {
	if status == account.StatusUnlocked {
		return true
	}
	return status == account.StatusLocked && r.opts.PushWhileLocked
}

type streamResult struct {
	env Envelope
	err error
}

// superviseUser owns one account's stream lifecycle: wait until the account
// is connectable, pick a transport, pump envelopes, and start over whenever
// status, support, liveness, or the stream itself changes. Teardown always
// completes before the next stream is established, so no two streams for
// one account overlap.
func (r *Router) superviseUser(ctx context.Context, id account.UserID, kick chan struct{}) {
	defer r.wg.Done()
	log := r.log.With("user_id", id)

	status, statusCh, cancelStatus := r.deps.Resolver.SubscribeStatus(id)
	defer cancelStatus()
	support, supportCh, cancelSupport := r.deps.Push.SubscribeSupport(id)
	defer cancelSupport()

	// fellBack pins this account to the hub after a push stream failure,
	// until the push support state changes again.
	fellBack := false

	for ctx.Err() == nil {
		if !r.usable(status) || !r.live.Load() {
			select {
			case <-ctx.Done():
				return
			case s, ok := <-statusCh:
				if !ok {
					return
				}
				status = s
			case sup, ok := <-supportCh:
				if !ok {
					return
				}
				support = sup
				fellBack = false
			case <-kick:
			}
			continue
		}

		usePush := support.Supported && !fellBack
		var stream Stream
		var err error
		if usePush {
			stream, err = r.deps.Push.Connect(ctx, id)
			if err != nil {
				log.Warn(ctx, "push connect failed, falling back to hub", "error", err)
				fellBack = true
				continue
			}
		} else {
			stream, err = r.deps.Hub.Connect(ctx, id)
			if err != nil {
				log.Warn(ctx, "hub connect failed", "error", err)
				select {
				case <-ctx.Done():
					return
				case s, ok := <-statusCh:
					if !ok {
						return
					}
					status = s
				case sup, ok := <-supportCh:
					if !ok {
						return
					}
					support = sup
					fellBack = false
				case <-kick:
				case <-time.After(hubRetryDelay):
				}
				continue
			}
		}

		transport := "hub"
		if usePush {
			transport = "push"
		}
		log.Info(ctx, "notification stream established", "transport", transport)

		readCtx, cancelRead := context.WithCancel(ctx)
		results := make(chan streamResult)
		go pumpStream(readCtx, stream, results)

		open := true
		for open {
			select {
			case <-ctx.Done():
				open = false
			case res := <-results:
				if res.err != nil {
					if usePush {
						log.Warn(ctx, "push stream failed, falling back to hub", "error", res.err)
						fellBack = true
					} else {
						log.Warn(ctx, "hub stream failed, reconnecting", "error", res.err)
					}
					open = false
					break
				}
				// Dispatch completes before the next envelope is taken off
				// the stream, keeping per-account delivery in arrival order.
				r.dispatch(ctx, id, res.env)
			case s, ok := <-statusCh:
				if !ok {
					open = false
					break
				}
				// Transitions between two connectable states keep the
				// stream; only losing connectability tears it down.
				status = s
				if !r.usable(status) {
					log.Info(ctx, "account no longer connectable, stream torn down", "status", status.String())
					open = false
				}
			case sup, ok := <-supportCh:
				if !ok {
					open = false
					break
				}
				support = sup
				fellBack = false
				log.Info(ctx, "push support changed, reselecting transport", "supported", sup.Supported)
				open = false
			case <-kick:
				open = false
			}
		}

		cancelRead()
		_ = stream.Close()
	}
}

func pumpStream(ctx context.Context, stream Stream, out chan<- streamResult) {
	for {
		env, err := stream.Receive(ctx)
		if err != nil {
			select {
			case out <- streamResult{err: err}:
			case <-ctx.Done():
			}
			return
		}
		select {
		case out <- streamResult{env: env}:
		case <-ctx.Done():
			return
		}
	}
}

// backgroundSafe lists the envelope types that may be processed for a
// non-active account. Everything else touches shared single-active-user
// state and is restricted to the active account.
func backgroundSafe(t Type) bool {
	return t == TypeAuthRequest
}

func (r *Router) dispatch(ctx context.Context, id account.UserID, env Envelope) {
	log := r.log.With("user_id", id, "type", env.Type.String())

	if r.opts.AppID != "" && env.OriginAppID == r.opts.AppID {
		log.Debug(ctx, "discarded self-echoed notification")
		return
	}
	if env.Payload.UserID != "" && env.Payload.UserID != id {
		log.Warn(ctx, "discarded misrouted notification", "payload_user_id", env.Payload.UserID)
		return
	}
	if id != r.currentActive() && !backgroundSafe(env.Type) {
		log.Debug(ctx, "notification type restricted to active account, skipped")
		return
	}

	if err := r.handle(ctx, id, env); err != nil {
		log.Warn(ctx, "notification dispatch failed", "error", err)
	}
}

func (r *Router) handle(ctx context.Context, id account.UserID, env Envelope) error {
	p := env.Payload
	switch env.Type {
	case TypeSyncCipherCreate:
		return r.deps.Sync.UpsertCipher(ctx, id, p, false)
	case TypeSyncCipherUpdate:
		return r.deps.Sync.UpsertCipher(ctx, id, p, true)
	case TypeSyncCipherDelete, TypeSyncLoginDelete:
		return r.deps.Sync.DeleteCipher(ctx, id, p)
	case TypeSyncFolderCreate:
		return r.deps.Sync.UpsertFolder(ctx, id, p, false)
	case TypeSyncFolderUpdate:
		return r.deps.Sync.UpsertFolder(ctx, id, p, true)
	case TypeSyncFolderDelete:
		return r.deps.Sync.DeleteFolder(ctx, id, p)
	case TypeSyncSendCreate:
		return r.deps.Sync.UpsertSend(ctx, id, p, false)
	case TypeSyncSendUpdate:
		return r.deps.Sync.UpsertSend(ctx, id, p, true)
	case TypeSyncSendDelete:
		return r.deps.Sync.DeleteSend(ctx, id, p)
	case TypeSyncVault, TypeSyncCiphers, TypeSyncSettings:
		return r.deps.Sync.FullSync(ctx, id, false)
	case TypeSyncOrganizations, TypeSyncOrganizationStatusChanged, TypeSyncOrganizationCollectionSettingChanged:
		return r.deps.Sync.FullSync(ctx, id, true)
	case TypeSyncOrgKeys:
		if err := r.deps.Sync.FullSync(ctx, id, true); err != nil {
			return err
		}
		// New org keys invalidate the encryption context of any live
		// connection; bounce liveness so every stream reconnects.
		r.DisconnectFromInactivity()
		r.ReconnectFromActivity()
		return nil
	case TypeLogOut:
		return r.deps.Logout(ctx, id, common.LogoutReasonNotification)
	case TypeAuthRequest:
		return r.deps.AuthRequests.AuthRequest(ctx, id, p.ID)
	case TypeAuthRequestResponse:
		return r.deps.AuthRequests.AuthRequestResponse(ctx, id, p.ID)
	default:
		r.log.Debug(ctx, "unhandled notification type", "type", int(env.Type))
		return nil
	}
}
