package weather

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ngmaloney/pendulum/internal/appmsg"
	"github.com/ngmaloney/pendulum/internal/persist"
)

// memStore is an in-memory Storage that counts writes
type memStore struct {
	data      map[uint32][]byte
	writes    int
	existsErr map[uint32]error
}

func newMemStore() *memStore {
	return &memStore{data: make(map[uint32][]byte)}
}

func (s *memStore) Exists(key uint32) (bool, error) {
	if err := s.existsErr[key]; err != nil {
		return false, err
	}
	_, ok := s.data[key]
	return ok, nil
}

func (s *memStore) ReadData(key uint32) ([]byte, error) {
	b, ok := s.data[key]
	if !ok {
		return nil, persist.ErrNotFound
	}
	return b, nil
}

func (s *memStore) WriteData(key uint32, v []byte) error {
	s.writes++
	s.data[key] = append([]byte(nil), v...)
	return nil
}

func (s *memStore) ReadInt(key uint32) (int32, error) {
	b, err := s.ReadData(key)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

func (s *memStore) WriteInt(key uint32, v int32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	return s.WriteData(key, b[:])
}

func (s *memStore) ReadString(key uint32) (string, error) {
	b, err := s.ReadData(key)
	return string(b), err
}

func (s *memStore) WriteString(key uint32, v string) error {
	return s.WriteData(key, []byte(v))
}

// recordingSender records dictionaries instead of sending them
type recordingSender struct {
	sent []*appmsg.Dictionary
}

func (r *recordingSender) Send(ctx context.Context, d *appmsg.Dictionary) string {
	r.sent = append(r.sent, d)
	return fmt.Sprintf("tx-%d", len(r.sent))
}

type fixture struct {
	store    Storage
	sender   *recordingSender
	manager  *Manager
	now      time.Time
	received []Reading
}

func newFixture(t *testing.T, store Storage) *fixture {
	t.Helper()
	f := &fixture{
		store:  store,
		sender: &recordingSender{},
		now:    time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC),
	}
	f.manager = NewManager(store, f.sender, nil, WithClock(func() time.Time { return f.now }))
	f.manager.Subscribe(func(r Reading) { f.received = append(f.received, r) })
	return f
}

func (f *fixture) seed(t *testing.T, temp int32, cond string, at time.Time) {
	t.Helper()
	var ts [8]byte
	binary.LittleEndian.PutUint64(ts[:], uint64(at.Unix()))
	if err := f.store.WriteInt(PropertyTemperature, temp); err != nil {
		t.Fatal(err)
	}
	if err := f.store.WriteString(PropertyConditions, cond); err != nil {
		t.Fatal(err)
	}
	if err := f.store.WriteData(PropertyTime, ts[:]); err != nil {
		t.Fatal(err)
	}
}

func reply(temp int16, cond string) appmsg.Event {
	return appmsg.Event{Kind: appmsg.InboxReceived, TxID: "tx-1", Dict: appmsg.NewWeatherReply(temp, cond)}
}

func TestRequest_FreshCacheServedWithoutSending(t *testing.T) {
	f := newFixture(t, newMemStore())
	f.seed(t, 290, "Clear", f.now.Add(-28*time.Minute))

	f.manager.Request(context.Background())

	if len(f.sender.sent) != 0 {
		t.Errorf("sent %d messages, want 0", len(f.sender.sent))
	}
	if len(f.received) != 1 {
		t.Fatalf("delivered %d readings, want 1", len(f.received))
	}
	if r := f.received[0]; r.TemperatureK != 290 || r.Conditions != "Clear" {
		t.Errorf("delivered %+v, want 290/Clear", r)
	}
	if f.manager.State() != StateFresh {
		t.Errorf("State() = %v, want fresh", f.manager.State())
	}
}

func TestRequest_ExpiredCacheSends(t *testing.T) {
	f := newFixture(t, newMemStore())
	f.seed(t, 290, "Clear", f.now.Add(-30*time.Minute))

	f.manager.Request(context.Background())

	if len(f.sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(f.sender.sent))
	}
	if !appmsg.IsWeatherRequest(f.sender.sent[0]) || f.sender.sent[0].Len() != 1 {
		t.Error("outbound message is not a bare weather request")
	}
	if len(f.received) != 0 {
		t.Errorf("delivered %d readings synchronously, want 0", len(f.received))
	}
	if f.manager.State() != StateAwaitingResponse {
		t.Errorf("State() = %v, want awaiting_response", f.manager.State())
	}
}

func TestRequest_TTLBoundary(t *testing.T) {
	f := newFixture(t, newMemStore())
	f.seed(t, 290, "Clear", f.now.Add(-CacheTTL))

	f.manager.Request(context.Background())
	if len(f.sender.sent) != 1 {
		t.Errorf("reading exactly CacheTTL old: sent %d, want 1", len(f.sender.sent))
	}
}

func TestRequest_IncompleteCacheSends(t *testing.T) {
	store := newMemStore()
	f := newFixture(t, store)
	f.seed(t, 290, "Clear", f.now.Add(-time.Minute))
	delete(store.data, PropertyConditions)

	f.manager.Request(context.Background())
	if len(f.sender.sent) != 1 {
		t.Errorf("sent %d messages, want 1", len(f.sender.sent))
	}
}

func TestRequest_NoCacheSends(t *testing.T) {
	f := newFixture(t, newMemStore())
	if f.manager.State() != StateNoData {
		t.Errorf("initial State() = %v, want no_data", f.manager.State())
	}

	f.manager.Request(context.Background())
	if len(f.sender.sent) != 1 {
		t.Errorf("sent %d messages, want 1", len(f.sender.sent))
	}
}

func TestRequest_CoalescesWhileInFlight(t *testing.T) {
	f := newFixture(t, newMemStore())

	f.manager.Request(context.Background())
	f.manager.Request(context.Background())
	if len(f.sender.sent) != 1 {
		t.Fatalf("sent %d messages while in flight, want 1", len(f.sender.sent))
	}

	// a reply that never comes stops blocking after the pending window
	f.now = f.now.Add(pendingWindow)
	f.manager.Request(context.Background())
	if len(f.sender.sent) != 2 {
		t.Errorf("sent %d messages after pending window, want 2", len(f.sender.sent))
	}
}

func TestHandleEvent_ResponseDeliversThenPersists(t *testing.T) {
	store := newMemStore()
	f := newFixture(t, store)
	f.manager.Request(context.Background())

	f.manager.HandleEvent(appmsg.Event{Kind: appmsg.OutboxSent, TxID: "tx-1"})
	if len(f.received) != 0 {
		t.Fatal("outbox_sent should not deliver a reading")
	}

	f.manager.HandleEvent(reply(290, "Clear"))
	if len(f.received) != 1 {
		t.Fatalf("delivered %d readings, want 1", len(f.received))
	}
	r := f.received[0]
	if r.TemperatureK != 290 || r.Conditions != "Clear" || !r.FetchedAt.Equal(f.now) {
		t.Errorf("delivered %+v", r)
	}

	temp, _ := store.ReadInt(PropertyTemperature)
	cond, _ := store.ReadString(PropertyConditions)
	ts, _ := store.ReadData(PropertyTime)
	if temp != 290 || cond != "Clear" || int64(binary.LittleEndian.Uint64(ts)) != f.now.Unix() {
		t.Errorf("persisted %d/%q/%v", temp, cond, ts)
	}
	if f.manager.InFlight() {
		t.Error("request still in flight after reply")
	}
}

func TestHandleEvent_MissingFieldsUseSentinels(t *testing.T) {
	f := newFixture(t, newMemStore())
	f.manager.HandleEvent(appmsg.Event{
		Kind: appmsg.InboxReceived,
		Dict: appmsg.NewDictionary().WriteCString(appmsg.KeyConditions, "Rain"),
	})

	r := f.manager.Last()
	if r.TemperatureK != UnknownTemperature || r.Conditions != "Rain" {
		t.Errorf("Last() = %+v, want -1/Rain", r)
	}
}

func TestHandleEvent_UnknownKeysTolerated(t *testing.T) {
	f := newFixture(t, newMemStore())
	d := appmsg.NewDictionary().
		WriteInt16(appmsg.KeyTemperature, 290).
		WriteUint8(77, 3).
		WriteCString(appmsg.KeyConditions, "Clear")

	f.manager.HandleEvent(appmsg.Event{Kind: appmsg.InboxReceived, Dict: d})
	if r := f.manager.Last(); r.TemperatureK != 290 || r.Conditions != "Clear" {
		t.Errorf("Last() = %+v, want 290/Clear", r)
	}
}

func TestHandleEvent_DroppedDeliversSentinelWithoutWrite(t *testing.T) {
	store := newMemStore()
	f := newFixture(t, store)
	f.seed(t, 290, "Clear", f.now.Add(-40*time.Minute))
	writes := store.writes

	f.manager.Request(context.Background())
	f.manager.HandleEvent(appmsg.Event{Kind: appmsg.InboxDropped, TxID: "tx-1", Reason: appmsg.ResultBufferOverflow})

	if len(f.received) != 1 {
		t.Fatalf("delivered %d readings, want 1", len(f.received))
	}
	if r := f.received[0]; r.TemperatureK != -1 || r.Conditions != "Unknown" {
		t.Errorf("delivered %+v, want -1/Unknown", r)
	}
	if store.writes != writes {
		t.Errorf("dropped message wrote to storage %d times", store.writes-writes)
	}
	if f.manager.State() != StateUnknown {
		t.Errorf("State() = %v, want unknown", f.manager.State())
	}

	// the old reading survives for later cache checks
	cond, _ := store.ReadString(PropertyConditions)
	if cond != "Clear" {
		t.Errorf("persisted conditions = %q, want Clear", cond)
	}
}

func TestHandleEvent_SendFailureDeliversSentinel(t *testing.T) {
	store := newMemStore()
	f := newFixture(t, store)
	f.manager.Request(context.Background())

	f.manager.HandleEvent(appmsg.Event{Kind: appmsg.OutboxFailed, TxID: "tx-1", Reason: appmsg.ResultNotConnected})

	if len(f.received) != 1 || f.received[0] != UnknownReading() {
		t.Fatalf("delivered %+v, want one unknown reading", f.received)
	}
	if store.writes != 0 {
		t.Errorf("failed send wrote to storage %d times", store.writes)
	}
	if f.manager.InFlight() {
		t.Error("request still in flight after failure")
	}
}

func TestHandleEvent_IgnoresSupersededFailure(t *testing.T) {
	f := newFixture(t, newMemStore())
	f.manager.Request(context.Background())

	f.manager.HandleEvent(appmsg.Event{Kind: appmsg.OutboxFailed, TxID: "tx-other", Reason: appmsg.ResultBusy})
	if len(f.received) != 0 {
		t.Errorf("delivered %d readings for a foreign transaction", len(f.received))
	}
	if !f.manager.InFlight() {
		t.Error("foreign failure cleared the pending request")
	}
}

// twoRequests leaves tx-1 expired and tx-2 pending
func twoRequests(t *testing.T, f *fixture) {
	t.Helper()
	f.manager.Request(context.Background())
	f.now = f.now.Add(pendingWindow)
	f.manager.Request(context.Background())
	if len(f.sender.sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(f.sender.sent))
	}
}

func TestHandleEvent_IgnoresDropForSupersededRequest(t *testing.T) {
	f := newFixture(t, newMemStore())
	twoRequests(t, f)

	f.manager.HandleEvent(appmsg.Event{Kind: appmsg.InboxDropped, TxID: "tx-1", Reason: appmsg.ResultBufferOverflow})

	if len(f.received) != 0 {
		t.Errorf("delivered %d readings for an expired request", len(f.received))
	}
	if !f.manager.InFlight() {
		t.Error("late drop cleared the pending request")
	}
	if f.manager.State() != StateAwaitingResponse {
		t.Errorf("State() = %v, want awaiting_response", f.manager.State())
	}

	f.manager.HandleEvent(appmsg.Event{Kind: appmsg.InboxDropped, TxID: "tx-2", Reason: appmsg.ResultBufferOverflow})
	if len(f.received) != 1 || f.received[0] != UnknownReading() {
		t.Errorf("delivered %+v after drop of the pending request, want one unknown reading", f.received)
	}
}

func TestHandleEvent_LateReplyKeepsNewerRequestPending(t *testing.T) {
	store := newMemStore()
	f := newFixture(t, store)
	twoRequests(t, f)

	f.manager.HandleEvent(reply(290, "Clear"))
	if len(f.received) != 1 || f.received[0].TemperatureK != 290 {
		t.Fatalf("delivered %+v, want the late reading", f.received)
	}
	if !f.manager.InFlight() {
		t.Error("late reply cleared the newer pending request")
	}
	if _, ok := store.data[PropertyTime]; !ok {
		t.Error("late reading not persisted")
	}

	f.manager.HandleEvent(appmsg.Event{Kind: appmsg.InboxReceived, TxID: "tx-2", Dict: appmsg.NewWeatherReply(291, "Clouds")})
	if f.manager.InFlight() {
		t.Error("reply to the pending request left it in flight")
	}
}

func TestHandleEvent_IgnoresDropAfterAnswer(t *testing.T) {
	f := newFixture(t, newMemStore())
	f.manager.Request(context.Background())
	f.manager.HandleEvent(reply(290, "Clear"))

	f.manager.HandleEvent(appmsg.Event{Kind: appmsg.InboxDropped, TxID: "tx-1", Reason: appmsg.ResultBusy})

	if len(f.received) != 1 {
		t.Errorf("delivered %d readings, want only the reply", len(f.received))
	}
	if f.manager.State() != StateFresh {
		t.Errorf("State() = %v, want fresh", f.manager.State())
	}
}

func TestRequest_StorageErrorOnSlotCheck(t *testing.T) {
	for _, key := range []uint32{PropertyTemperature, PropertyConditions} {
		t.Run(fmt.Sprintf("key %d", key), func(t *testing.T) {
			store := newMemStore()
			f := newFixture(t, store)
			f.seed(t, 290, "Clear", f.now.Add(-time.Minute))
			store.existsErr = map[uint32]error{key: errors.New("disk I/O error")}

			core, logs := observer.New(zapcore.WarnLevel)
			m := NewManager(store, f.sender, zap.New(core), WithClock(func() time.Time { return f.now }))
			var got []Reading
			m.Subscribe(func(r Reading) { got = append(got, r) })

			m.Request(context.Background())

			if len(got) != 0 {
				t.Errorf("served %+v from an unreadable cache", got)
			}
			if len(f.sender.sent) != 1 {
				t.Errorf("sent %d messages, want 1", len(f.sender.sent))
			}
			if logs.FilterMessageSnippet("checking cached").Len() != 1 {
				t.Errorf("storage error not logged: %v", logs.All())
			}
		})
	}
}

func TestState_FreshTurnsStale(t *testing.T) {
	f := newFixture(t, newMemStore())
	f.manager.HandleEvent(reply(290, "Clear"))
	if f.manager.State() != StateFresh {
		t.Fatalf("State() = %v, want fresh", f.manager.State())
	}

	f.now = f.now.Add(CacheTTL)
	if f.manager.State() != StateStale {
		t.Errorf("State() = %v, want stale", f.manager.State())
	}
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	f := newFixture(t, newMemStore())
	var extra int
	unsubscribe := f.manager.Subscribe(func(Reading) { extra++ })

	f.manager.HandleEvent(reply(290, "Clear"))
	unsubscribe()
	f.manager.HandleEvent(reply(291, "Clouds"))

	if extra != 1 {
		t.Errorf("second subscriber called %d times, want 1", extra)
	}
	if len(f.received) != 2 {
		t.Errorf("first subscriber called %d times, want 2", len(f.received))
	}
}

func TestRoundTrip_SQLiteStore(t *testing.T) {
	store, err := persist.Open(filepath.Join(t.TempDir(), "watch.db"))
	if err != nil {
		t.Fatalf("persist.Open() error = %v", err)
	}
	defer store.Close()

	f := newFixture(t, store)
	f.manager.Request(context.Background())
	f.manager.HandleEvent(reply(290, "Clear"))

	// a fresh manager, as after an app restart, ten minutes later
	g := newFixture(t, store)
	g.now = f.now.Add(10 * time.Minute)
	g.manager.Request(context.Background())

	if len(g.sender.sent) != 0 {
		t.Errorf("restarted manager sent %d messages, want 0", len(g.sender.sent))
	}
	if len(g.received) != 1 {
		t.Fatalf("restarted manager delivered %d readings, want 1", len(g.received))
	}
	if r := g.received[0]; r.TemperatureK != 290 || r.Conditions != "Clear" {
		t.Errorf("cached reading = %+v, want 290/Clear", r)
	}
}

func TestRefreshDue(t *testing.T) {
	tests := []struct {
		minute int
		want   bool
	}{
		{0, true}, {30, true}, {1, false}, {29, false}, {31, false}, {59, false},
	}
	for _, tt := range tests {
		at := time.Date(2026, 10, 18, 14, tt.minute, 0, 0, time.UTC)
		if got := RefreshDue(at); got != tt.want {
			t.Errorf("RefreshDue(:%02d) = %v, want %v", tt.minute, got, tt.want)
		}
	}
}
