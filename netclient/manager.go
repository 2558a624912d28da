package netclient

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/emberhollow/vigil/event"
)

// Sink receives everything the manager learns: decoded game events and
// connection lifecycle changes. Satisfied by the game model
type Sink interface {
	Apply(kind event.Kind, payload any)
	SetConnected(connected bool)
	RetryScheduled(attempt int)
	TerminalFailure()
}

// Options are the manager's connection tuning knobs
type Options struct {
	URL          string
	RetryMax     int
	RetryDelay   time.Duration
	Heartbeat    time.Duration
	DialTimeout  time.Duration
	WriteTimeout time.Duration
}

// Manager owns the websocket to the game server: it dials, reads and
// decodes the event stream, sends heartbeats, and reconnects with a
// fixed delay up to a retry ceiling. Outbound sends are fire-and-forget
// and drop silently while disconnected
type Manager struct {
	opts Options
	sink Sink
	log  *zap.Logger

	mu            sync.Mutex
	conn          *websocket.Conn
	cancel        context.CancelFunc
	done          chan struct{}
	sessionID     string
	participantID string
}

// NewManager creates an unconnected manager
func NewManager(opts Options, sink Sink, log *zap.Logger) *Manager {
	return &Manager{opts: opts, sink: sink, log: log}
}

// Connect starts the connection loop for one session identity. Calling
// it again with the same identity while running is a no-op; a different
// identity tears the old loop down first
func (m *Manager) Connect(sessionID, participantID string) {
	m.mu.Lock()
	if m.cancel != nil {
		if m.sessionID == sessionID && m.participantID == participantID {
			m.mu.Unlock()
			return
		}
		cancel, done := m.cancel, m.done
		m.mu.Unlock()
		cancel()
		<-done
		m.mu.Lock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done
	m.sessionID = sessionID
	m.participantID = participantID
	m.mu.Unlock()

	go func() {
		defer func() {
			// Deregister before signaling completion so a Connect that
			// observed the exit restarts the loop instead of no-opping
			// against a dead one
			m.mu.Lock()
			if m.done == done {
				m.cancel = nil
				m.done = nil
			}
			m.mu.Unlock()
			close(done)
		}()
		m.run(ctx, sessionID, participantID)
	}()
}

// Disconnect closes the socket intentionally and suppresses reconnection
func (m *Manager) Disconnect() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel = nil
	m.done = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Wait blocks until the connection loop exits, whether by Disconnect or
// by exhausting the retry budget
func (m *Manager) Wait() {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Send frames and transmits one outbound action. Dropped with a warning
// when the socket is down; the caller never queues or retries
func (m *Manager) Send(kind event.Kind, payload any) {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()

	if conn == nil {
		m.log.Warn("send dropped, not connected", zap.String("kind", string(kind)))
		return
	}
	data, err := event.Marshal(kind, payload)
	if err != nil {
		m.log.Error("send dropped, marshal failed", zap.String("kind", string(kind)), zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.opts.WriteTimeout)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		m.log.Warn("send failed", zap.String("kind", string(kind)), zap.Error(err))
	}
}

// run is the reconnect loop. Every failure, dial or mid-stream, burns
// one attempt from the shared budget; a successful dial resets it
func (m *Manager) run(ctx context.Context, sessionID, participantID string) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := m.dial(ctx, sessionID, participantID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.log.Warn("dial failed", zap.Error(err))
			attempt++
			if !m.scheduleRetry(ctx, attempt) {
				return
			}
			continue
		}

		attempt = 0
		m.setConn(conn)
		m.sink.SetConnected(true)

		err = m.serve(ctx, conn)
		m.setConn(nil)
		m.sink.SetConnected(false)
		conn.Close(websocket.StatusNormalClosure, "")

		if ctx.Err() != nil {
			return
		}
		m.log.Warn("connection lost", zap.Error(err))
		attempt++
		if !m.scheduleRetry(ctx, attempt) {
			return
		}
	}
}

// scheduleRetry reports whether another attempt is allowed, sleeping the
// fixed delay when it is and declaring terminal failure when it is not
func (m *Manager) scheduleRetry(ctx context.Context, attempt int) bool {
	if attempt > m.opts.RetryMax {
		m.sink.TerminalFailure()
		return false
	}
	m.sink.RetryScheduled(attempt)
	select {
	case <-ctx.Done():
		return false
	case <-time.After(m.opts.RetryDelay):
		return true
	}
}

func (m *Manager) dial(ctx context.Context, sessionID, participantID string) (*websocket.Conn, error) {
	u, err := url.Parse(m.opts.URL)
	if err != nil {
		return nil, errors.Wrap(err, "parse server url")
	}
	q := u.Query()
	q.Set("session", sessionID)
	q.Set("participant", participantID)
	u.RawQuery = q.Encode()

	dialCtx, cancel := context.WithTimeout(ctx, m.opts.DialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "dial")
	}
	return conn, nil
}

// serve reads frames until the connection drops, decoding each and
// handing it to the sink. Malformed frames and unknown kinds are dropped
// with a diagnostic; the stream keeps flowing
func (m *Manager) serve(ctx context.Context, conn *websocket.Conn) error {
	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go m.heartbeat(hbCtx, conn)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return errors.Wrap(err, "read")
		}
		kind, payload, err := event.DecodeEnvelope(data)
		if err != nil {
			m.log.Warn("frame dropped", zap.String("kind", string(kind)), zap.Error(err))
			continue
		}
		m.sink.Apply(kind, payload)
	}
}

// heartbeat keeps intermediaries from idling the socket out
func (m *Manager) heartbeat(ctx context.Context, conn *websocket.Conn) {
	data, err := event.Marshal(event.KindPing, nil)
	if err != nil {
		return
	}
	ticker := time.NewTicker(m.opts.Heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			writeCtx, cancel := context.WithTimeout(ctx, m.opts.WriteTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (m *Manager) setConn(conn *websocket.Conn) {
	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()
}
