// Package hub implements the duplex-hub fallback transport: a websocket
// connection per account that self-heals with a randomized reconnect delay.
package hub

import (
	"context"
	"encoding/json"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmitrijs2005/vaultcore/internal/account"
	"github.com/dmitrijs2005/vaultcore/internal/common"
	"github.com/dmitrijs2005/vaultcore/internal/logging"
	"github.com/dmitrijs2005/vaultcore/internal/notifications"
)

const (
	// DefaultReconnectMin and DefaultReconnectMax bound the randomized delay
	// before a dropped hub connection is re-dialed. The spread keeps a fleet
	// of clients from stampeding a recovering server.
	DefaultReconnectMin = 2 * time.Minute
	DefaultReconnectMax = 5 * time.Minute
)

const (
	frameReceiveMessage = "ReceiveMessage"
	frameHeartbeat      = "Heartbeat"
)

// Config holds the hub endpoint and reconnect timing.
type Config struct {
	// URL is the websocket hub endpoint, e.g. wss://host/notifications/hub.
	URL string

	ReconnectMin time.Duration
	ReconnectMax time.Duration
}

// TokenSource supplies the current access token for a user. Tokens are read
// on every dial so a refreshed credential is picked up on reconnect.
type TokenSource interface {
	AccessToken(id account.UserID) (string, bool)
}

// Connector builds self-healing hub streams. Connect itself performs no
// network I/O: the stream dials lazily on first Receive and keeps re-dialing
// on failure, so an unreachable server never fails stream construction.
type Connector struct {
	log    logging.Logger
	cfg    Config
	tokens TokenSource
	dialer *websocket.Dialer
}

func NewConnector(log logging.Logger, cfg Config, tokens TokenSource) *Connector {
	if log == nil {
		log = logging.Nop()
	}
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = DefaultReconnectMin
	}
	if cfg.ReconnectMax < cfg.ReconnectMin {
		cfg.ReconnectMax = cfg.ReconnectMin
	}
	return &Connector{
		log:    log.With("component", "hub-connector"),
		cfg:    cfg,
		tokens: tokens,
		dialer: websocket.DefaultDialer,
	}
}

func (c *Connector) Connect(ctx context.Context, id account.UserID) (notifications.Stream, error) {
	return &stream{
		log:    c.log.With("user_id", id),
		cfg:    c.cfg,
		tokens: c.tokens,
		dialer: c.dialer,
		user:   id,
		closed: make(chan struct{}),
	}, nil
}

// reconnectDelay picks a uniformly random delay in [ReconnectMin, ReconnectMax).
func reconnectDelay(cfg Config) time.Duration {
	spread := cfg.ReconnectMax - cfg.ReconnectMin
	if spread <= 0 {
		return cfg.ReconnectMin
	}
	return cfg.ReconnectMin + time.Duration(rand.Int63n(int64(spread)))
}

// hubFrame is one hub wire message. Heartbeat frames carry no data and are
// filtered out; ReceiveMessage frames wrap a notification envelope.
type hubFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type stream struct {
	log    logging.Logger
	cfg    Config
	tokens TokenSource
	dialer *websocket.Dialer
	user   account.UserID

	mu   sync.Mutex
	conn *websocket.Conn

	closeOnce sync.Once
	closed    chan struct{}
}

func (s *stream) Receive(ctx context.Context) (notifications.Envelope, error) {
	for {
		if err := s.interrupted(ctx); err != nil {
			return notifications.Envelope{}, err
		}

		conn, err := s.ensureConn(ctx)
		if err != nil {
			return notifications.Envelope{}, err
		}

		data, err := s.readFrame(ctx, conn)
		if err != nil {
			s.dropConn(conn)
			if ierr := s.interrupted(ctx); ierr != nil {
				return notifications.Envelope{}, ierr
			}
			delay := reconnectDelay(s.cfg)
			s.log.Warn(ctx, "hub connection lost, reconnecting", "error", err, "delay", delay)
			if werr := s.wait(ctx, delay); werr != nil {
				return notifications.Envelope{}, werr
			}
			continue
		}

		var frame hubFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.log.Warn(ctx, "skipped malformed hub frame", "error", err)
			continue
		}
		switch frame.Type {
		case frameHeartbeat:
			continue
		case frameReceiveMessage:
			env, err := notifications.ParseEnvelope(frame.Data)
			if err != nil {
				s.log.Warn(ctx, "skipped malformed notification envelope", "error", err)
				continue
			}
			return env, nil
		default:
			s.log.Debug(ctx, "skipped unknown hub frame", "frame_type", frame.Type)
		}
	}
}

func (s *stream) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (s *stream) interrupted(ctx context.Context) error {
	select {
	case <-s.closed:
		return common.ErrStreamClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// ensureConn returns the live connection, dialing (and re-dialing on failure)
// until one is established or the stream is interrupted.
func (s *stream) ensureConn(ctx context.Context) (*websocket.Conn, error) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		return conn, nil
	}

	for {
		if err := s.interrupted(ctx); err != nil {
			return nil, err
		}

		token, ok := s.tokens.AccessToken(s.user)
		if !ok {
			s.log.Warn(ctx, "no access token for hub dial, retrying later")
		} else {
			endpoint := s.cfg.URL + "?" + common.AccessTokenHeaderName + "=" + token
			conn, _, err := s.dialer.DialContext(ctx, endpoint, nil)
			if err == nil {
				s.mu.Lock()
				select {
				case <-s.closed:
					s.mu.Unlock()
					conn.Close()
					return nil, common.ErrStreamClosed
				default:
				}
				s.conn = conn
				s.mu.Unlock()
				s.log.Info(ctx, "hub connection established", "endpoint", RedactToken(endpoint))
				return conn, nil
			}
			s.log.Warn(ctx, "hub dial failed", "endpoint", RedactToken(endpoint), "error", err)
		}

		if err := s.wait(ctx, reconnectDelay(s.cfg)); err != nil {
			return nil, err
		}
	}
}

// readFrame blocks on the websocket read, aborting the connection early if
// ctx ends mid-read.
func (s *stream) readFrame(ctx context.Context, conn *websocket.Conn) ([]byte, error) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	_, data, err := conn.ReadMessage()
	close(done)
	return data, err
}

func (s *stream) dropConn(conn *websocket.Conn) {
	conn.Close()
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
}

func (s *stream) wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-s.closed:
		return common.ErrStreamClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RedactToken blanks the credential in a hub endpoint URL so it is safe to
// log. Everything after the access_token parameter is replaced.
func RedactToken(endpoint string) string {
	marker := common.AccessTokenHeaderName + "="
	i := strings.Index(endpoint, marker)
	if i < 0 {
		return endpoint
	}
	return endpoint[:i+len(marker)] + "[REDACTED]"
}
