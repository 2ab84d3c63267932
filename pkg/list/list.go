package list

import (
	"sort"
	"sync"

	"github.com/cloudgroundcontrol/livekit-roster/pkg/members"
)

// EventType names one row-list mutation.
type EventType string

const (
	EventAppend  EventType = "append"
	EventPrepend EventType = "prepend"
	EventRemove  EventType = "remove"
	EventUpdate  EventType = "update"
	EventSort    EventType = "sort"
	EventRefresh EventType = "refresh"
)

// Event is one row-list mutation, as streamed to subscribers. Order carries
// the full identity ordering for sort and refresh events.
type Event struct {
	Type     EventType `json:"type"`
	Identity string    `json:"identity,omitempty"`
	Order    []string  `json:"order,omitempty"`
}

// Memory is an in-memory members.ListDelegate. It stands in for the list
// widget: it keeps the ordered rows and fans mutation events out to
// subscribers (the WebSocket view).
type Memory struct {
	mu    sync.Mutex
	rows  []*members.Row
	index map[string]*members.Row
	subs  map[int]chan Event
	next  int
}

func NewMemory() *Memory {
	return &Memory{
		index: make(map[string]*members.Row),
		subs:  make(map[int]chan Event),
	}
}

func (m *Memory) AppendRow(row *members.Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.index[row.Identity()]; ok {
		return
	}
	m.rows = append(m.rows, row)
	m.index[row.Identity()] = row
	m.publishLocked(Event{Type: EventAppend, Identity: row.Identity()})
}

func (m *Memory) PrependRow(row *members.Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.index[row.Identity()]; ok {
		return
	}
	m.rows = append([]*members.Row{row}, m.rows...)
	m.index[row.Identity()] = row
	m.publishLocked(Event{Type: EventPrepend, Identity: row.Identity()})
}

func (m *Memory) RemoveRow(row *members.Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.index[row.Identity()]; !ok {
		return
	}
	delete(m.index, row.Identity())
	for i, r := range m.rows {
		if r == row {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			break
		}
	}
	m.publishLocked(Event{Type: EventRemove, Identity: row.Identity()})
}

func (m *Memory) UpdateRow(row *members.Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.index[row.Identity()]; !ok {
		// Rows are updated before insertion during creation; nothing to
		// repaint yet.
		return
	}
	m.publishLocked(Event{Type: EventUpdate, Identity: row.Identity()})
}

func (m *Memory) SortRows(less func(a, b *members.Row) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sort.SliceStable(m.rows, func(i, j int) bool {
		return less(m.rows[i], m.rows[j])
	})
	m.publishLocked(Event{Type: EventSort, Order: m.orderLocked()})
}

func (m *Memory) RefreshRows() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishLocked(Event{Type: EventRefresh, Order: m.orderLocked()})
}

func (m *Memory) RowCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *Memory) RowAt(i int) *members.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.rows) {
		return nil
	}
	return m.rows[i]
}

func (m *Memory) FindRow(identity string) *members.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index[identity]
}

// Order returns the current identity ordering.
func (m *Memory) Order() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orderLocked()
}

// Subscribe registers a mutation event feed. The returned cancel func must
// be called when done. Slow subscribers lose events rather than stalling the
// engine.
func (m *Memory) Subscribe() (<-chan Event, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.next
	m.next++
	ch := make(chan Event, 64)
	m.subs[id] = ch
	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if sub, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(sub)
		}
	}
}

func (m *Memory) orderLocked() []string {
	order := make([]string, len(m.rows))
	for i, r := range m.rows {
		order[i] = r.Identity()
	}
	return order
}

func (m *Memory) publishLocked(ev Event) {
	for _, sub := range m.subs {
		select {
		case sub <- ev:
		default:
		}
	}
}
