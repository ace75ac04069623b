package appmsg

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// InboxSizeMinimum is the smallest inbox a watch app may open
	InboxSizeMinimum = 124

	// OutboxSizeMinimum is the smallest outbox a watch app may open
	OutboxSizeMinimum = 636

	defaultSendTimeout = 30 * time.Second
	eventBuffer        = 8
)

// EventKind identifies which of the four channel outcomes an Event is
type EventKind int

const (
	OutboxSent EventKind = iota
	OutboxFailed
	InboxReceived
	InboxDropped
)

func (k EventKind) String() string {
	switch k {
	case OutboxSent:
		return "outbox_sent"
	case OutboxFailed:
		return "outbox_failed"
	case InboxReceived:
		return "inbox_received"
	case InboxDropped:
		return "inbox_dropped"
	}
	return "unknown"
}

// Event is an asynchronous channel outcome
type Event struct {
	Kind   EventKind
	TxID   string
	Dict   *Dictionary // set for InboxReceived
	Reason Result      // set for OutboxFailed and InboxDropped
	Err    error
}

// Transport moves one encoded dictionary to the companion and returns its
// encoded reply, which may be empty.
type Transport interface {
	Exchange(ctx context.Context, txID string, payload []byte) ([]byte, error)
}

// Options sizes the channel's buffers
type Options struct {
	InboxSize   int
	OutboxSize  int
	SendTimeout time.Duration
}

// Channel sends dictionaries asynchronously over a Transport. Every Send
// yields exactly one OutboxSent or OutboxFailed event, and a reply yields
// one InboxReceived or InboxDropped event after it. Nothing is retried.
type Channel struct {
	transport Transport
	logger    *zap.Logger
	opts      Options

	events  chan Event
	done    chan struct{}
	once    sync.Once
	sending atomic.Bool
	wg      sync.WaitGroup
}

// NewChannel opens a channel over transport
func NewChannel(transport Transport, logger *zap.Logger, opts Options) *Channel {
	if opts.InboxSize <= 0 {
		opts.InboxSize = InboxSizeMinimum
	}
	if opts.OutboxSize <= 0 {
		opts.OutboxSize = OutboxSizeMinimum
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = defaultSendTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Channel{
		transport: transport,
		logger:    logger,
		opts:      opts,
		events:    make(chan Event, eventBuffer),
		done:      make(chan struct{}),
	}
}

// Events delivers channel outcomes in the order they happen
func (c *Channel) Events() <-chan Event {
	return c.events
}

// Send starts an asynchronous exchange and returns its transaction id.
// Only one message may be in the outbox at a time; a second Send while
// one is pending fails with ResultBusy.
func (c *Channel) Send(ctx context.Context, d *Dictionary) string {
	txID := uuid.NewString()
	log := c.logger.With(zap.String("tx_id", txID))

	select {
	case <-c.done:
		c.emitAsync(Event{Kind: OutboxFailed, TxID: txID, Reason: ResultClosed})
		return txID
	default:
	}

	payload, err := d.MarshalBinary()
	if err != nil {
		log.Warn("encoding outbound dictionary", zap.Error(err))
		c.emitAsync(Event{Kind: OutboxFailed, TxID: txID, Reason: ResultInvalidArgs, Err: err})
		return txID
	}
	if len(payload) > c.opts.OutboxSize {
		log.Warn("outbound dictionary exceeds outbox", zap.Int("size", len(payload)), zap.Int("outbox", c.opts.OutboxSize))
		c.emitAsync(Event{Kind: OutboxFailed, TxID: txID, Reason: ResultBufferOverflow})
		return txID
	}
	if !c.sending.CompareAndSwap(false, true) {
		log.Debug("outbox busy")
		c.emitAsync(Event{Kind: OutboxFailed, TxID: txID, Reason: ResultBusy})
		return txID
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.exchange(ctx, txID, payload, log)
	}()
	return txID
}

func (c *Channel) exchange(ctx context.Context, txID string, payload []byte, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.SendTimeout)
	defer cancel()

	reply, err := c.transport.Exchange(ctx, txID, payload)
	c.sending.Store(false)
	if err != nil {
		reason := ResultInternalError
		var se *SendError
		if errors.As(err, &se) {
			reason = se.Reason
		} else if errors.Is(err, context.DeadlineExceeded) {
			reason = ResultSendTimeout
		}
		log.Debug("outbox failed", zap.Stringer("reason", reason), zap.Error(err))
		c.emit(Event{Kind: OutboxFailed, TxID: txID, Reason: reason, Err: err})
		return
	}

	log.Debug("outbox sent", zap.Int("bytes", len(payload)))
	c.emit(Event{Kind: OutboxSent, TxID: txID})

	if len(reply) == 0 {
		return
	}
	if len(reply) > c.opts.InboxSize {
		log.Warn("inbound dictionary exceeds inbox", zap.Int("size", len(reply)), zap.Int("inbox", c.opts.InboxSize))
		c.emit(Event{Kind: InboxDropped, TxID: txID, Reason: ResultBufferOverflow})
		return
	}

	d, err := UnmarshalDictionary(reply)
	if err != nil {
		log.Warn("decoding inbound dictionary", zap.Error(err))
		c.emit(Event{Kind: InboxDropped, TxID: txID, Reason: ResultInternalError, Err: err})
		return
	}
	log.Debug("inbox received", zap.Int("tuples", d.Len()))
	c.emit(Event{Kind: InboxReceived, TxID: txID, Dict: d})
}

// emitAsync reports an outcome decided inside Send without blocking the
// caller, which is usually the same loop that drains Events.
func (c *Channel) emitAsync(ev Event) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.emit(ev)
	}()
}

func (c *Channel) emit(ev Event) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// Close stops delivering events and waits for pending exchanges to end
func (c *Channel) Close() {
	c.once.Do(func() { close(c.done) })
	c.wg.Wait()
}
