package core

import (
	"sort"
	"strconv"
	"time"
)

// Event is a named tuple of values that is alive for a while.
type Event struct {
	Id   uint64
	Name string
	Args []Value

	// Time is when the event was emitted.
	Time time.Duration

	Alive bool

	// transient events die at the end of the tick after the one
	// that emitted them.
	transient bool
	born      uint64
}

// Handler owns the live events for one (name, arity).
type Handler struct {
	Name  string
	Arity int

	events     []*Event
	dependents map[Dependent]struct{}
}

// Live returns the live events in emission order.
func (h *Handler) Live() []*Event {
	return h.events
}

// EventTable holds the handlers.
type EventTable struct {
	handlers map[string]*Handler
	nextId   uint64
}

// NewEventTable makes an empty EventTable.
func NewEventTable() *EventTable {
	return &EventTable{
		handlers: make(map[string]*Handler),
	}
}

func handlerKey(name string, arity int) string {
	return name + "/" + strconv.Itoa(arity)
}

// Handler returns the handler for (name, arity), creating it if
// needed.
func (t *EventTable) Handler(name string, arity int) *Handler {
	k := handlerKey(name, arity)
	h, have := t.handlers[k]
	if !have {
		h = &Handler{
			Name:       name,
			Arity:      arity,
			dependents: make(map[Dependent]struct{}),
		}
		t.handlers[k] = h
	}
	return h
}

// Lookup returns the handler for (name, arity) or nil.
func (t *EventTable) Lookup(name string, arity int) *Handler {
	return t.handlers[handlerKey(name, arity)]
}

// Emit makes a live event.  A transient event lives until the end of
// the tick after the current one; otherwise the event lives until
// Kill.
func (t *EventTable) Emit(rt *Runtime, name string, args []Value, transient bool) *Event {
	t.nextId++
	e := &Event{
		Id:        t.nextId,
		Name:      name,
		Args:      args,
		Time:      rt.Now(),
		Alive:     true,
		transient: transient,
		born:      rt.Tick(),
	}
	h := t.Handler(name, len(args))
	h.events = append(h.events, e)
	t.touch(h)
	return e
}

// Kill ends an event.
func (t *EventTable) Kill(e *Event) {
	if !e.Alive {
		return
	}
	e.Alive = false
	h := t.Lookup(e.Name, len(e.Args))
	if h == nil {
		return
	}
	for i, x := range h.events {
		if x == e {
			h.events = append(h.events[:i], h.events[i+1:]...)
			break
		}
	}
	t.touch(h)
}

// EndTick kills transient events emitted before the given tick.
func (t *EventTable) EndTick(tick uint64) {
	for _, k := range t.keys() {
		h := t.handlers[k]
		var dead []*Event
		for _, e := range h.events {
			if e.transient && e.born < tick {
				dead = append(dead, e)
			}
		}
		for _, e := range dead {
			t.Kill(e)
		}
	}
}

func (t *EventTable) keys() []string {
	acc := make([]string, 0, len(t.handlers))
	for k := range t.handlers {
		acc = append(acc, k)
	}
	sort.Strings(acc)
	return acc
}

func (t *EventTable) touch(h *Handler) {
	for d := range h.dependents {
		d.Touch()
	}
}

// RegisterCmd makes d a dependent of the handler for (name, arity).
func (t *EventTable) RegisterCmd(name string, arity int, d Dependent) {
	t.Handler(name, arity).dependents[d] = struct{}{}
}

// UnregisterCmd undoes RegisterCmd.
func (t *EventTable) UnregisterCmd(name string, arity int, d Dependent) {
	if h := t.Lookup(name, arity); h != nil {
		delete(h.dependents, d)
	}
}
