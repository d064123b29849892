package internal_test

import (
	"sync"
	"testing"
	"time"

	"github.com/koopa0/system-design/14-group-chat/internal"
	"github.com/koopa0/system-design/14-group-chat/pkg/logger"
)

const testPassword = "12345"

// fakeDirectory 記錄每條連線收到的事件，取代真正的 WebSocket Hub
type fakeDirectory struct {
	mu     sync.Mutex
	conns  map[string]bool
	events map[string][]internal.Event
	closed map[string]int
}

func newFakeDirectory(ids ...string) *fakeDirectory {
	d := &fakeDirectory{
		conns:  make(map[string]bool),
		events: make(map[string][]internal.Event),
		closed: make(map[string]int),
	}
	for _, id := range ids {
		d.conns[id] = true
	}
	return d
}

func (d *fakeDirectory) connect(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conns[id] = true
}

// drop 模擬傳輸層斷線（不經過 Close）
func (d *fakeDirectory) drop(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.conns, id)
}

func (d *fakeDirectory) Send(connID string, ev internal.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conns[connID] {
		d.events[connID] = append(d.events[connID], ev)
	}
}

func (d *fakeDirectory) Broadcast(ev internal.Event) {
	d.BroadcastExcept("", ev)
}

func (d *fakeDirectory) BroadcastExcept(connID string, ev internal.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id := range d.conns {
		if id != connID {
			d.events[id] = append(d.events[id], ev)
		}
	}
}

func (d *fakeDirectory) Close(connID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.conns, connID)
	d.closed[connID]++
}

func (d *fakeDirectory) Connected(connID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[connID]
}

// received 連線收到的所有事件（副本）
func (d *fakeDirectory) received(connID string) []internal.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]internal.Event(nil), d.events[connID]...)
}

// names 連線收到的事件名稱，按順序
func (d *fakeDirectory) names(connID string) []string {
	var names []string
	for _, ev := range d.received(connID) {
		names = append(names, ev.Type)
	}
	return names
}

// last 連線最後一次收到的指定事件
func (d *fakeDirectory) last(connID, event string) (internal.Event, bool) {
	evs := d.received(connID)
	for i := len(evs) - 1; i >= 0; i-- {
		if evs[i].Type == event {
			return evs[i], true
		}
	}
	return internal.Event{}, false
}

// count 連線收到指定事件的次數
func (d *fakeDirectory) count(connID, event string) int {
	n := 0
	for _, ev := range d.received(connID) {
		if ev.Type == event {
			n++
		}
	}
	return n
}

func (d *fakeDirectory) clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = make(map[string][]internal.Event)
}

func (d *fakeDirectory) closedCount(connID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed[connID]
}

func newTestGroup(t *testing.T, ids ...string) (*internal.Group, *fakeDirectory, *internal.Metrics) {
	t.Helper()

	dir := newFakeDirectory(ids...)
	metrics := internal.NewMetrics()
	group := internal.NewGroup(internal.GroupConfig{
		DefaultPassword:   testPassword,
		RejectGracePeriod: 10 * time.Millisecond,
	}, dir, metrics, logger.Discard())

	return group, dir, metrics
}

// newHostedGroup 建立已有房主 alice（連線 host）的群組
func newHostedGroup(t *testing.T, ids ...string) (*internal.Group, *fakeDirectory, *internal.Metrics) {
	t.Helper()

	group, dir, metrics := newTestGroup(t, append([]string{"host"}, ids...)...)
	if _, err := group.Join("host", "alice", testPassword); err != nil {
		t.Fatalf("建立群組失敗: %v", err)
	}
	dir.clear()
	return group, dir, metrics
}
