package weather

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ngmaloney/pendulum/internal/appmsg"
)

const (
	// CacheTTL is how long a persisted reading is served without asking the
	// companion. It sits one minute under the refresh cadence so a periodic
	// refresh never hits a reading it would itself have replaced.
	CacheTTL = 29 * time.Minute

	// RefreshMinutes is the wall-clock cadence of periodic refreshes
	RefreshMinutes = 30

	// pendingWindow bounds how long a request counts as in flight when no
	// outcome arrives, so a lost reply cannot block refreshes forever
	pendingWindow = 2 * time.Minute
)

// Persistent storage slots
const (
	PropertyTemperature uint32 = 0
	PropertyConditions  uint32 = 1
	PropertyTime        uint32 = 2
)

// Storage is the watch's persistent key-value store
type Storage interface {
	Exists(key uint32) (bool, error)
	ReadInt(key uint32) (int32, error)
	WriteInt(key uint32, v int32) error
	ReadString(key uint32) (string, error)
	WriteString(key uint32, v string) error
	ReadData(key uint32) ([]byte, error)
	WriteData(key uint32, v []byte) error
}

// Sender starts an asynchronous exchange with the companion
type Sender interface {
	Send(ctx context.Context, d *appmsg.Dictionary) string
}

// Callback receives every reading the manager delivers
type Callback func(Reading)

// Option configures a Manager
type Option func(*Manager)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithTTL overrides CacheTTL
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.ttl = ttl }
}

// Manager decides between the persisted reading and a companion request,
// and turns channel outcomes into readings. It is driven from a single
// event loop and does no locking.
type Manager struct {
	store  Storage
	sender Sender
	logger *zap.Logger
	now    func() time.Time
	ttl    time.Duration

	subscribers  map[int]Callback
	nextSubID    int
	state        State
	last         Reading
	pendingTx    string
	pendingSince time.Time
}

// NewManager creates a manager over store and sender
func NewManager(store Storage, sender Sender, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		store:       store,
		sender:      sender,
		logger:      logger,
		now:         time.Now,
		ttl:         CacheTTL,
		subscribers: make(map[int]Callback),
		state:       StateNoData,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe registers fn for deliveries and returns a function that
// removes it
func (m *Manager) Subscribe(fn Callback) func() {
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = fn
	return func() { delete(m.subscribers, id) }
}

// State returns the current request state. A fresh reading turns stale
// once it outlives the TTL.
func (m *Manager) State() State {
	if m.state == StateFresh && !m.last.FetchedAt.IsZero() && m.now().Sub(m.last.FetchedAt) >= m.ttl {
		return StateStale
	}
	return m.state
}

// Last returns the most recently delivered reading
func (m *Manager) Last() Reading {
	return m.last
}

// InFlight reports whether a request is awaiting its outcome
func (m *Manager) InFlight() bool {
	return m.pendingTx != "" && m.now().Sub(m.pendingSince) < pendingWindow
}

// Request delivers the persisted reading if it is still fresh, otherwise
// sends a request to the companion and returns at once. The answer arrives
// later through HandleEvent.
func (m *Manager) Request(ctx context.Context) {
	m.logger.Debug("requesting weather information")

	if r, ok := m.cached(); ok {
		m.logger.Debug("cached data in date", zap.Time("fetched_at", r.FetchedAt))
		m.state = StateFresh
		m.deliver(r)
		return
	}

	if m.InFlight() {
		m.logger.Debug("request already in flight", zap.String("tx_id", m.pendingTx))
		return
	}

	m.pendingTx = m.sender.Send(ctx, appmsg.NewWeatherRequest())
	m.pendingSince = m.now()
	m.state = StateAwaitingResponse
}

// cached returns the persisted reading when it is younger than the TTL and
// all three slots are present
func (m *Manager) cached() (Reading, bool) {
	ok, err := m.store.Exists(PropertyTime)
	if err != nil {
		m.logger.Warn("checking cache", zap.Error(err))
		return Reading{}, false
	}
	if !ok {
		m.logger.Debug("no cache found")
		return Reading{}, false
	}

	fetchedAt, err := m.readTime()
	if err != nil {
		m.logger.Warn("reading cache time", zap.Error(err))
		return Reading{}, false
	}

	if m.now().Sub(fetchedAt) >= m.ttl {
		m.logger.Debug("cached data out of date", zap.Time("fetched_at", fetchedAt))
		return Reading{}, false
	}

	tempOK, err := m.store.Exists(PropertyTemperature)
	if err != nil {
		m.logger.Warn("checking cached temperature", zap.Error(err))
		return Reading{}, false
	}
	condOK, err := m.store.Exists(PropertyConditions)
	if err != nil {
		m.logger.Warn("checking cached conditions", zap.Error(err))
		return Reading{}, false
	}
	if !tempOK || !condOK {
		m.logger.Debug("cached data incomplete")
		return Reading{}, false
	}

	temp, err := m.store.ReadInt(PropertyTemperature)
	if err != nil {
		m.logger.Warn("reading cached temperature", zap.Error(err))
		return Reading{}, false
	}
	cond, err := m.store.ReadString(PropertyConditions)
	if err != nil {
		m.logger.Warn("reading cached conditions", zap.Error(err))
		return Reading{}, false
	}

	return Reading{
		TemperatureK: int(temp),
		Conditions:   appmsg.TruncateConditions(cond),
		FetchedAt:    fetchedAt,
	}, true
}

// HandleEvent applies one channel outcome
func (m *Manager) HandleEvent(ev appmsg.Event) {
	log := m.logger.With(zap.String("tx_id", ev.TxID))

	switch ev.Kind {
	case appmsg.OutboxSent:
		log.Debug("weather request sent")

	case appmsg.OutboxFailed:
		if m.superseded(ev.TxID) {
			log.Debug("ignoring failure of a superseded request", zap.Stringer("reason", ev.Reason))
			return
		}
		log.Error("weather request failed to send", zap.Stringer("reason", ev.Reason), zap.Error(ev.Err))
		m.fail()

	case appmsg.InboxDropped:
		if m.superseded(ev.TxID) {
			log.Debug("ignoring dropped reply to a superseded request", zap.Stringer("reason", ev.Reason))
			return
		}
		log.Error("failed to get weather information", zap.Stringer("reason", ev.Reason), zap.Error(ev.Err))
		m.fail()

	case appmsg.InboxReceived:
		log.Debug("weather information received")
		m.receive(ev, log)
	}
}

func (m *Manager) receive(ev appmsg.Event, log *zap.Logger) {
	r := UnknownReading()
	f := appmsg.ParseWeather(ev.Dict, log)
	if f.TemperatureK != nil {
		r.TemperatureK = *f.TemperatureK
	}
	if f.Conditions != nil {
		r.Conditions = *f.Conditions
	}
	r.FetchedAt = m.now()

	log.Debug("weather parsed", zap.Int("temperature_k", r.TemperatureK), zap.String("conditions", r.Conditions))

	// a late reply is still real data, but a newer request stays pending
	if ev.TxID == m.pendingTx {
		m.pendingTx = ""
	}
	m.state = StateFresh
	m.deliver(r)

	if err := m.persist(r); err != nil {
		log.Error("persisting weather", zap.Error(err))
	}
}

// superseded reports whether txID is not the pending request
func (m *Manager) superseded(txID string) bool {
	return txID != m.pendingTx
}

// fail delivers the sentinel reading and leaves persisted data untouched
func (m *Manager) fail() {
	m.pendingTx = ""
	m.state = StateUnknown
	m.deliver(UnknownReading())
}

func (m *Manager) deliver(r Reading) {
	m.last = r
	for _, fn := range m.subscribers {
		fn(r)
	}
}

func (m *Manager) persist(r Reading) error {
	if err := m.store.WriteInt(PropertyTemperature, int32(r.TemperatureK)); err != nil {
		return fmt.Errorf("temperature: %w", err)
	}
	if err := m.store.WriteString(PropertyConditions, r.Conditions); err != nil {
		return fmt.Errorf("conditions: %w", err)
	}
	var ts [8]byte
	binary.LittleEndian.PutUint64(ts[:], uint64(r.FetchedAt.Unix()))
	if err := m.store.WriteData(PropertyTime, ts[:]); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	return nil
}

func (m *Manager) readTime() (time.Time, error) {
	b, err := m.store.ReadData(PropertyTime)
	if err != nil {
		return time.Time{}, err
	}
	if len(b) != 8 {
		return time.Time{}, fmt.Errorf("timestamp slot holds %d bytes", len(b))
	}
	return time.Unix(int64(binary.LittleEndian.Uint64(b)), 0), nil
}

// RefreshDue reports whether a minute tick at t should trigger a periodic
// refresh
func RefreshDue(t time.Time) bool {
	return t.Minute()%RefreshMinutes == 0
}
