package sharedbuf

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/motorsim/motorsim/internal/transport"
)

// DefaultPeriod is the mailbox poll interval.
const DefaultPeriod = time.Millisecond

// Poller watches a Buffer and answers each pending command in place.
type Poller struct {
	buf     Buffer
	handler transport.Handler
	period  time.Duration
	logger  *slog.Logger

	mu        sync.Mutex
	isRunning bool
	stopChan  chan struct{}
	done      chan struct{}
}

// NewPoller creates a stopped poller. A non-positive period uses
// DefaultPeriod.
func NewPoller(buf Buffer, h transport.Handler, period time.Duration, logger *slog.Logger) *Poller {
	if period <= 0 {
		period = DefaultPeriod
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		buf:     buf,
		handler: h,
		period:  period,
		logger:  logger.With("transport", "sharedbuf"),
	}
}

// Poll runs one cycle and reports whether a pending command was consumed.
// An empty reply is acknowledged with ACK, a value with CR, and a rejected
// command with CMDERR; the whole record is rewritten, clearing the pending
// bit. A blank command is an invalid message and gets no reply at all: only
// the pending bit is cleared.
func (p *Poller) Poll() (bool, error) {
	rec, err := p.buf.Load()
	if err != nil {
		return false, err
	}
	if !rec.Pending() {
		return false, nil
	}

	if strings.TrimSpace(rec.Command) == "" {
		p.logger.Warn("invalid message", "command", rec.Command)
		rec.Control &^= CommandPending
		return true, p.buf.Store(rec)
	}

	out := Record{ReplyControl: ReplyACK}
	reply, herr := p.handler.Handle(rec.Command)
	switch {
	case herr != nil:
		out.ReplyControl = ReplyCMDERR
		p.logger.Warn("invalid message", "command", rec.Command, "error", herr)
	case reply != "":
		out.ReplyControl = ReplyCR
		out.Reply = reply
	}

	return true, p.buf.Store(out)
}

// Start launches the poll loop until ctx is done or Stop is called.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.isRunning {
		p.mu.Unlock()
		return
	}
	p.isRunning = true
	p.stopChan = make(chan struct{})
	p.done = make(chan struct{})
	stop, done := p.stopChan, p.done
	p.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			p.mu.Lock()
			if p.done == done {
				p.isRunning = false
			}
			p.mu.Unlock()
		}()

		t := time.NewTicker(p.period)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-t.C:
				if _, err := p.Poll(); err != nil {
					p.logger.Error("poll failed", "error", err)
				}
			}
		}
	}()
}

// Stop ends the poll loop and waits for it.
func (p *Poller) Stop() {
	p.mu.Lock()
	done := p.done
	if p.isRunning {
		close(p.stopChan)
		p.isRunning = false
	}
	p.mu.Unlock()

	if done != nil {
		<-done
	}
}
