package cotask

import "reflect"

// globalEventUID is the monotonic source of CoEvent identities. Per the
// single-threaded contract (see DESIGN.md's Open Question decision), this is
// a plain counter, not an atomic one: callers never touch a CoSched (and
// transitively its events) from two goroutines at once.
var globalEventUID uint32

// CoEvent is a multi-subscriber, repeatable-or-one-shot signal. uniqueID is
// nonzero while the event is live and zero once cancelled; numSignaled is a
// monotonic count of how many times Signal has fired. Both are exposed to
// subscribers only through EventSnapshot, never dereferenced directly after
// the event might have been freed or reused.
type CoEvent struct {
	uniqueID    uint32
	numSignaled uint32
	subscribers []BoxedTask
}

// EventSnapshot is captured at subscribe time and compared against the
// event's live state by Poll. It never holds a pointer to the event itself,
// so polling is always safe even if the event has since been cancelled and
// its memory reused for something else.
type EventSnapshot struct {
	uniqueID    uint32
	numSignaled uint32
}

// Init (re)initializes an event, assigning it a fresh, never-reused
// identity. Safe to call on a zero-value CoEvent or to reinitialize an
// already-cancelled one.
func (e *CoEvent) Init() {
	globalEventUID++
	if globalEventUID == 0 {
		panic("cotask: event id counter wrapped to zero")
	}
	e.uniqueID = globalEventUID
	e.numSignaled = 0
	e.subscribers = nil
}

// Snapshot captures the event's current identity and signal count.
func (e *CoEvent) Snapshot() EventSnapshot {
	return EventSnapshot{uniqueID: e.uniqueID, numSignaled: e.numSignaled}
}

// Poll compares a previously captured snapshot against the event's current
// state without assuming the event pointer is still valid in any deeper
// sense than "safe to read its current fields". This is the load-bearing
// comparison: a cancelled-then-reinitialized event has a different
// uniqueID, so stale snapshots are never mistaken for current ones.
func Poll(e *CoEvent, snap EventSnapshot) EventStatus {
	if e.uniqueID != snap.uniqueID || e.numSignaled < snap.numSignaled || e.uniqueID == 0 {
		return EventCanceled
	}
	if e.numSignaled > snap.numSignaled {
		return EventSignaled
	}
	return EventPending
}

const minSubscriberCapacity = 4

func (e *CoEvent) addSubscriber(b BoxedTask) {
	if e.subscribers == nil {
		e.subscribers = make([]BoxedTask, 0, minSubscriberCapacity)
	}
	e.subscribers = append(e.subscribers, b)
}

// CleanupSubscribers drops subscriber entries whose task has already died,
// without waking anyone. Used when a waiting task is torn down so a dead
// task handle doesn't linger in the subscriber list forever.
func (e *CoEvent) CleanupSubscribers() {
	if len(e.subscribers) == 0 {
		return
	}
	live := e.subscribers[:0]
	for _, b := range e.subscribers {
		if b.Unbox() != nil {
			live = append(live, b)
		}
	}
	e.subscribers = live
}

// Signal increments the signal count and wakes every current subscriber.
// The subscriber list is snapshotted and cleared before any subscriber is
// woken, so a subscriber's wake-up handler cascading into further
// signals/cancels (of this event or others) can never corrupt the list
// being iterated.
func (e *CoEvent) Signal() {
	if e.uniqueID == 0 {
		return
	}
	e.numSignaled++
	e.wake()
}

// SignalOnce signals the event only if it has never been signaled before.
func (e *CoEvent) SignalOnce() {
	if e.numSignaled == 0 {
		e.Signal()
	}
}

// Cancel marks the event dead (uniqueID becomes zero) and wakes every
// current subscriber so they observe EventCanceled. Idempotent: canceling an
// already-cancelled event is a no-op, including one that was already
// signaled.
func (e *CoEvent) Cancel() {
	if e.uniqueID == 0 {
		return
	}
	e.uniqueID = 0
	e.wake()
}

func (e *CoEvent) wake() {
	if len(e.subscribers) == 0 {
		return
	}
	snapshot := e.subscribers
	e.subscribers = nil
	for _, b := range snapshot {
		t := b.Unbox()
		if t == nil || t.status == StatusDead {
			continue
		}
		t.sched.Resume(t)
	}
}

// InitGroup initializes every CoEvent field of the struct pointed to by
// group, for event groups declared as plain structs (the Go analogue of the
// C array-of-events helper used for "built-in event" groups).
func InitGroup(group any) { forEachEvent(group, (*CoEvent).Init) }

// CancelGroup cancels every CoEvent field of the struct pointed to by group.
func CancelGroup(group any) { forEachEvent(group, (*CoEvent).Cancel) }

func forEachEvent(group any, fn func(*CoEvent)) {
	for _, e := range reflectEvents(group) {
		fn(e)
	}
}

// reflectEvents collects pointers to every CoEvent field of the struct
// pointed to by group.
func reflectEvents(group any) []*CoEvent {
	v := reflect.ValueOf(group)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		panic("cotask: event group target must be a pointer to a struct")
	}
	v = v.Elem()
	eventType := reflect.TypeOf(CoEvent{})
	var events []*CoEvent
	for i := 0; i < v.NumField(); i++ {
		f := v.Field(i)
		if f.Type() == eventType && f.CanAddr() {
			events = append(events, f.Addr().Interface().(*CoEvent))
		}
	}
	return events
}
