// Package events is the in-process notification bus between repositories
// and the components that derive state from them.
//
// A Bus is constructed explicitly per session and handed to every
// repository and subscriber. Delivery is synchronous, in subscription
// order, on the publisher's goroutine. Handler failures are logged and
// never reach the publisher.
package events

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/HendryAvila/sidenote/internal/obs"
)

// Type names an entity-change event.
type Type string

const (
	NoteCreated    Type = "note_created"
	NoteUpdated    Type = "note_updated"
	NoteDeleted    Type = "note_deleted"
	NoteTagAdded   Type = "note_tag_added"
	NoteTagRemoved Type = "note_tag_removed"

	TagCreated Type = "tag_created"
	TagUpdated Type = "tag_updated"
	TagDeleted Type = "tag_deleted"

	SettingChanged Type = "setting_changed"
	SettingDeleted Type = "setting_deleted"

	DatabaseError        Type = "database_error"
	DatabaseConnected    Type = "database_connected"
	DatabaseDisconnected Type = "database_disconnected"
)

// AllTypes lists every event type in declaration order.
var AllTypes = []Type{
	NoteCreated, NoteUpdated, NoteDeleted, NoteTagAdded, NoteTagRemoved,
	TagCreated, TagUpdated, TagDeleted,
	SettingChanged, SettingDeleted,
	DatabaseError, DatabaseConnected, DatabaseDisconnected,
}

// ─── Payloads ────────────────────────────────────────────────────────────────

// NotePayload accompanies note_created, note_updated and note_deleted.
type NotePayload struct {
	ID    int64
	Title string
}

// NoteTagPayload accompanies note_tag_added and note_tag_removed.
type NoteTagPayload struct {
	NoteID int64
	TagID  int64
}

// TagPayload accompanies tag_created, tag_updated and tag_deleted.
type TagPayload struct {
	ID    int64
	Name  string
	Color string
	Force bool
}

// SettingPayload accompanies setting_changed and setting_deleted.
type SettingPayload struct {
	Key   string
	Value any
}

// DatabasePayload accompanies the database_* events.
type DatabasePayload struct {
	Path string
	Err  error
}

// Event is one notification.
type Event struct {
	Type    Type
	Payload any
	At      time.Time
}

// Handler reacts to one event. A returned error is logged by the bus.
type Handler func(Event) error

// Subscriber declares, per event type, the handler it wants to receive.
type Subscriber interface {
	Handles(t Type) (Handler, bool)
}

// ─── Bus ─────────────────────────────────────────────────────────────────────

type entry struct {
	id uint64
	h  Handler
}

// Bus fans events out to subscribers.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[Type][]entry
	log    *slog.Logger
	now    func() time.Time
}

// New creates an empty bus. A nil logger falls back to obs.Pkg("events").
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = obs.Pkg("events")
	}
	return &Bus{subs: map[Type][]entry{}, log: logger, now: time.Now}
}

// Subscription is the handle returned by Subscribe and Register.
type Subscription struct {
	bus  *Bus
	refs map[Type]uint64
	once sync.Once
}

// Cancel removes the registration. It is safe to call more than once.
func (s *Subscription) Cancel() {
	if s == nil || s.bus == nil {
		return
	}
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()
		for t, id := range s.refs {
			list := s.bus.subs[t]
			for i, e := range list {
				if e.id == id {
					s.bus.subs[t] = append(list[:i:i], list[i+1:]...)
					break
				}
			}
		}
	})
}

// Subscribe registers h for events of type t.
func (b *Bus) Subscribe(t Type, h Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.subs[t] = append(b.subs[t], entry{id: b.nextID, h: h})
	return &Subscription{bus: b, refs: map[Type]uint64{t: b.nextID}}
}

// Register asks s once per known event type and subscribes every handler
// it returns. Dispatch afterwards is a plain lookup by type.
func (b *Bus) Register(s Subscriber) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := &Subscription{bus: b, refs: map[Type]uint64{}}
	for _, t := range AllTypes {
		h, ok := s.Handles(t)
		if !ok || h == nil {
			continue
		}
		b.nextID++
		b.subs[t] = append(b.subs[t], entry{id: b.nextID, h: h})
		sub.refs[t] = b.nextID
	}
	return sub
}

// Publish delivers an event of type t to every subscriber of t.
// A nil bus drops the event.
func (b *Bus) Publish(t Type, payload any) {
	if b == nil {
		return
	}
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[t]))
	for _, e := range b.subs[t] {
		handlers = append(handlers, e.h)
	}
	b.mu.RUnlock()

	ev := Event{Type: t, Payload: payload, At: b.now()}
	for _, h := range handlers {
		b.deliver(h, ev)
	}
}

// SubscriberCount returns the number of handlers registered for t.
func (b *Bus) SubscriberCount(t Type) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[t])
}

func (b *Bus) deliver(h Handler, ev Event) {
	defer func() {
		if p := recover(); p != nil {
			b.log.Error("event handler panicked", "event", ev.Type, "panic", fmt.Sprint(p))
		}
	}()
	if err := h(ev); err != nil {
		b.log.Warn("event handler failed", "event", ev.Type, "err", err)
	}
}

// HandlerMap is a Subscriber backed by a plain map.
type HandlerMap map[Type]Handler

// Handles implements Subscriber.
func (m HandlerMap) Handles(t Type) (Handler, bool) {
	h, ok := m[t]
	return h, ok
}
