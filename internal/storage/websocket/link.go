package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/gorilla/websocket"
)

const (
	outboxSize = 10_000
	ackBuffer  = 16
	writeWait  = 10 * time.Second
	ackTimeout = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	ackType    = "ack"
)

// retryPolicy is an exponential backoff with a ceiling and an attempt budget.
type retryPolicy struct {
	initial  time.Duration
	max      time.Duration
	attempts int
}

var defaultRetry = retryPolicy{initial: time.Second, max: 30 * time.Second, attempts: 10}

func (p retryPolicy) delay(attempt int) time.Duration {
	d := p.initial
	for i := 1; i < attempt && d < p.max; i++ {
		d *= 2
	}
	if d > p.max {
		d = p.max
	}
	return d
}

// attachment is one dialed socket and its pair of loops. Either loop failing
// marks it lost exactly once.
type attachment struct {
	conn *ws.Conn
	lost chan struct{}
	once sync.Once
}

// link is the collector connection. All socket writes except the close frame
// happen on the writer goroutine of the current attachment.
type link struct {
	mu      sync.Mutex
	current *attachment
	closed  bool
	replay  []byte

	outbox chan []byte
	acks   chan AckMessage
	done   chan struct{}

	target     string
	retry      retryPolicy
	pingPeriod time.Duration

	dropped    atomic.Uint64
	reconnects atomic.Uint64

	logger *slog.Logger
}

func newLink(logger *slog.Logger) *link {
	return &link{
		outbox:     make(chan []byte, outboxSize),
		acks:       make(chan AckMessage, ackBuffer),
		done:       make(chan struct{}),
		retry:      defaultRetry,
		pingPeriod: pingPeriod,
		logger:     logger,
	}
}

// withSecret adds the collector secret as a query parameter.
func withSecret(rawURL, secret string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid websocket URL: %w", err)
	}
	q := u.Query()
	q.Set("secret", secret)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// open dials the collector once; failures here are not retried.
func (l *link) open(rawURL, secret string) error {
	target, err := withSecret(rawURL, secret)
	if err != nil {
		return err
	}
	l.target = target

	conn, err := l.dial()
	if err != nil {
		return err
	}
	l.attach(conn)
	return nil
}

func (l *link) dial() (*ws.Conn, error) {
	dialer := ws.Dialer{HandshakeTimeout: writeWait}
	conn, _, err := dialer.Dial(l.target, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

func (l *link) attach(conn *ws.Conn) {
	a := &attachment{conn: conn, lost: make(chan struct{})}
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	l.mu.Lock()
	l.current = a
	l.mu.Unlock()

	go l.writeLoop(a)
	go l.readLoop(a)
}

func writeFrame(conn *ws.Conn, messageType int, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(messageType, data)
}

// lose tears down a and starts a reconnect if a is still the live attachment.
func (l *link) lose(a *attachment, err error) {
	a.once.Do(func() {
		close(a.lost)
		_ = a.conn.Close()

		l.mu.Lock()
		stale := l.closed || l.current != a
		if !stale {
			l.current = nil
		}
		l.mu.Unlock()
		if stale {
			return
		}

		l.logger.Warn("Collector connection lost", "error", err)
		go l.reconnect()
	})
}

func (l *link) writeLoop(a *attachment) {
	ticker := time.NewTicker(l.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-a.lost:
			return
		case <-ticker.C:
			if err := writeFrame(a.conn, ws.PingMessage, nil); err != nil {
				l.lose(a, err)
				return
			}
		case data := <-l.outbox:
			if err := writeFrame(a.conn, ws.TextMessage, data); err != nil {
				l.dropped.Add(1)
				l.lose(a, err)
				return
			}
		}
	}
}

// readLoop routes acks to waiters. Anything else from the collector is
// logged and ignored.
func (l *link) readLoop(a *attachment) {
	for {
		_, message, err := a.conn.ReadMessage()
		if err != nil {
			select {
			case <-l.done:
				return
			default:
			}
			l.lose(a, err)
			return
		}
		_ = a.conn.SetReadDeadline(time.Now().Add(pongWait))

		var ack AckMessage
		if err := json.Unmarshal(message, &ack); err != nil || ack.Type != ackType {
			l.logger.Debug("Ignoring collector message", "raw", string(message))
			continue
		}
		select {
		case l.acks <- ack:
		default:
			l.logger.Debug("Ack buffer full, dropping", "for", ack.For)
		}
	}
}

// reconnect redials with backoff and replays the open start_session so the
// collector can file what follows under it.
func (l *link) reconnect() {
	for attempt := 1; attempt <= l.retry.attempts; attempt++ {
		delay := l.retry.delay(attempt)
		l.logger.Info("Reconnecting to collector", "attempt", attempt, "backoff", delay)

		timer := time.NewTimer(delay)
		select {
		case <-l.done:
			timer.Stop()
			return
		case <-timer.C:
		}

		conn, err := l.dial()
		if err != nil {
			l.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			continue
		}

		l.mu.Lock()
		replay := l.replay
		closed := l.closed
		l.mu.Unlock()
		if closed {
			_ = conn.Close()
			return
		}

		if replay != nil {
			if err := writeFrame(conn, ws.TextMessage, replay); err != nil {
				l.logger.Warn("Failed to replay start_session", "error", err)
				_ = conn.Close()
				continue
			}
		}

		l.attach(conn)
		l.reconnects.Add(1)
		l.logger.Info("Collector reconnected", "attempt", attempt)
		return
	}

	l.logger.Error("Collector reconnect failed", "attempts", l.retry.attempts)
}

// setReplay remembers the start_session envelope, or forgets it when nil.
func (l *link) setReplay(data []byte) {
	l.mu.Lock()
	l.replay = data
	l.mu.Unlock()
}

// send queues data for the writer without blocking. A full outbox drops it.
func (l *link) send(data []byte) {
	select {
	case l.outbox <- data:
	default:
		if l.dropped.Add(1) == 1 {
			l.logger.Warn("Collector outbox full, dropping messages")
		}
	}
}

// sendAndWait queues data and blocks for the matching ack.
func (l *link) sendAndWait(data []byte, ackFor string, timeout time.Duration) error {
	l.send(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ack := <-l.acks:
			if ack.For != ackFor {
				continue
			}
			if ack.Error != "" {
				return fmt.Errorf("collector rejected %s: %s", ackFor, ack.Error)
			}
			return nil
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", ackFor)
		case <-l.done:
			return fmt.Errorf("connection closed while waiting for ack of %q", ackFor)
		}
	}
}

// close sends a close frame and stops every goroutine. Safe to call twice.
func (l *link) close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.done)
	a := l.current
	l.current = nil
	l.mu.Unlock()

	if a == nil {
		return nil
	}
	_ = a.conn.WriteControl(ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""), time.Now().Add(writeWait))
	return a.conn.Close()
}
