package cotask

// waitKind identifies what a suspended task is waiting for.
type waitKind int

const (
	waitNone waitKind = iota
	waitDelay
	waitEvent
	waitSubtasks
)

func (k waitKind) String() string {
	switch k {
	case waitNone:
		return "none"
	case waitDelay:
		return "delay"
	case waitEvent:
		return "event"
	case waitSubtasks:
		return "subtasks"
	default:
		return "unknown"
	}
}

type waitState struct {
	kind             waitKind
	delayRemaining   int
	eventPtr         *CoEvent
	eventSnap        EventSnapshot
	resultEvent      EventStatus
	framesWaited     int
}

// resumeMsg is sent by the scheduler to a parked task goroutine to hand it
// control back. kill asks the goroutine to unwind immediately (via
// taskKilled) instead of continuing the task body.
type resumeMsg struct {
	status EventStatus
	kill   bool
}

// yieldMsg is sent by a task goroutine back to whoever resumed it, either on
// every suspension point or exactly once when the body returns or panics.
type yieldMsg struct {
	done bool
}

// taskKilled unwinds a task's goroutine without running any more of its
// body, used both for self-cancellation and for forced shutdown of a parked
// task. Never escapes the package.
type taskKilled struct{}

// Task is a single scheduled coroutine. The public handle (CoTask) and the
// private per-task data (CoTaskData) of the reference implementation
// collapse into one struct here: Go's GC removes the need to keep a
// separately addressable fixed-size handle pointing into a coroutine's own
// stack memory, so the public/private split is instead preserved through
// BoxedTask's generation check and by the fields finalize clears.
type Task struct {
	uniqueID   uint32
	status     Status
	DebugLabel string

	sched *CoSched
	entry func(t *Task)

	started bool
	resumeCh chan resumeMsg
	yieldCh  chan yieldMsg

	parent                  *Task
	firstChild, lastChild    *Task
	prevSibling, nextSibling *Task

	prevInSched, nextInSched *Task

	boundEntity BoxedEntity

	finished     CoEvent
	hostedEvents []*CoEvent

	hostedEntity BoxedEntity

	wait waitState

	finalizing bool

	scratch scratchArena

	panicVal any
}

func newTask(cfg PoolConfig) *Task {
	t := &Task{
		resumeCh: make(chan resumeMsg),
		yieldCh:  make(chan yieldMsg),
	}
	t.scratch.buf = make([]byte, cfg.ScratchArenaSize)
	return t
}

// resetForReuse clears everything a freshly-acquired task must not inherit
// from its previous life, while keeping the channel pair and the scratch
// buffer's backing array (the part of "stack reuse" that actually matters
// in Go, where goroutine stacks already grow and shrink on their own).
func (t *Task) resetForReuse() {
	t.uniqueID = 0
	t.status = StatusSuspended
	t.DebugLabel = ""
	t.entry = nil
	t.started = false
	t.parent = nil
	t.firstChild, t.lastChild = nil, nil
	t.prevSibling, t.nextSibling = nil, nil
	t.prevInSched, t.nextInSched = nil, nil
	t.boundEntity = nil
	t.finished = CoEvent{}
	t.hostedEvents = nil
	t.hostedEntity = nil
	t.wait = waitState{}
	t.finalizing = false
	t.scratch.reset()
	t.panicVal = nil
}

// Box returns a generation-checked handle to t.
func (t *Task) Box() BoxedTask {
	return BoxedTask{task: t, uniqueID: t.uniqueID}
}

// Status reports the task's current lifecycle state.
func (t *Task) Status() Status { return t.status }

// WaitKind reports what t is currently suspended on ("none", "delay",
// "event", or "subtasks"), for the stat/debug task listing (spec §6.4).
func (t *Task) WaitKind() string { return t.wait.kind.String() }

// Finished is the built-in event signaled just before the task dies when
// its body returns. Finalization then cancels it; a task cancelled before
// its body returns never signals it, so its waiters see EventCanceled.
func (t *Task) Finished() *CoEvent { return &t.finished }

// BoxedTask is a generational handle to a Task, safe to hold and later
// dereference even if the task has since died and its slot been reused: the
// stored uniqueID must match the task's current one or Unbox returns nil.
type BoxedTask struct {
	task     *Task
	uniqueID uint32
}

// Unbox returns the live task this handle refers to, or nil if it has since
// died (and possibly been recycled for an unrelated task).
func (b BoxedTask) Unbox() *Task {
	if b.task != nil && b.uniqueID != 0 && b.task.uniqueID == b.uniqueID && b.task.status != StatusDead {
		return b.task
	}
	return nil
}

// --- suspension primitives, called from within the task's own goroutine ---

func (t *Task) mustBeCurrent() {
	if t.sched.current != t {
		panic("cotask: suspension primitive called outside of the owning task's body")
	}
}

// blockOnYield hands control back to whoever resumed t and blocks until
// resumed again (or killed).
func (t *Task) blockOnYield() EventStatus {
	t.yieldCh <- yieldMsg{}
	msg := <-t.resumeCh
	if msg.kill {
		panic(taskKilled{})
	}
	return msg.status
}

// Yield suspends the task for exactly one scheduler step.
func (t *Task) Yield() {
	t.mustBeCurrent()
	if t.finalizing {
		t.blockForever()
	}
	t.blockOnYield()
}

// blockForever is how a finalizing task is kept from ever resuming again:
// it parks, and since nothing will ever send it a non-kill resume, it only
// returns by being killed.
func (t *Task) blockForever() {
	t.blockOnYield()
	panic("cotask: unreachable: a finalizing task was resumed without being killed")
}

// Wait suspends the task for n scheduler steps and returns the number of
// steps actually waited. n<=0 returns immediately without yielding; n==1 is
// exactly one Yield; n>1 uses the delay wait state, decremented once
// synchronously here (mirroring the reference's evaluate-before-yield
// behavior) and then once per subsequent StepFrame until it elapses.
func (t *Task) Wait(n int) int {
	t.mustBeCurrent()
	if t.finalizing {
		t.blockForever()
	}
	if n <= 0 {
		return 0
	}
	if n == 1 {
		t.Yield()
		return 1
	}
	t.wait = waitState{kind: waitDelay, delayRemaining: n}
	if t.evalWait() {
		t.blockOnYield()
	}
	frames := t.wait.framesWaited
	t.wait = waitState{}
	return frames
}

// WaitEvent suspends until evt is signaled or cancelled, returning the
// outcome. If evt is already dead, returns EventCanceled immediately without
// subscribing.
func (t *Task) WaitEvent(evt *CoEvent) EventStatus {
	return t.waitEventImpl(evt, false)
}

// WaitEventOnce behaves like WaitEvent, but if evt has already been signaled
// at least once, returns EventSignaled immediately without subscribing.
func (t *Task) WaitEventOnce(evt *CoEvent) EventStatus {
	return t.waitEventImpl(evt, true)
}

func (t *Task) waitEventImpl(evt *CoEvent, once bool) EventStatus {
	t.mustBeCurrent()
	if t.finalizing {
		t.blockForever()
	}
	if evt.uniqueID == 0 {
		return EventCanceled
	}
	if once && evt.numSignaled > 0 {
		return EventSignaled
	}
	evt.addSubscriber(t.Box())
	t.wait = waitState{kind: waitEvent, eventPtr: evt, eventSnap: evt.Snapshot()}
	if t.evalWait() {
		t.blockOnYield()
	}
	st := t.wait.resultEvent
	t.wait = waitState{}
	return st
}

// WaitSubtasks suspends until the task has no live children left.
func (t *Task) WaitSubtasks() {
	t.mustBeCurrent()
	if t.finalizing {
		t.blockForever()
	}
	t.wait = waitState{kind: waitSubtasks}
	if t.evalWait() {
		t.blockOnYield()
	}
	t.wait = waitState{}
}

// evalWait mutates t.wait in place and reports whether the task must remain
// suspended. Shared between the suspension primitives' initial check (run
// synchronously, before the first yield) and the scheduler's per-frame
// re-check of an already-parked task, exactly as the reference's
// cotask_do_wait is reused by both cotask_wait and cotask_resume.
func (t *Task) evalWait() bool {
	switch t.wait.kind {
	case waitNone:
		return false
	case waitDelay:
		t.wait.delayRemaining--
		if t.wait.delayRemaining < 0 {
			return false
		}
	case waitEvent:
		st := Poll(t.wait.eventPtr, t.wait.eventSnap)
		if st != EventPending {
			t.wait.resultEvent = st
			return false
		}
	case waitSubtasks:
		if t.firstChild == nil {
			return false
		}
	}
	t.wait.framesWaited++
	return true
}

func (t *Task) unlinkChild(c *Task) {
	if c.prevSibling != nil {
		c.prevSibling.nextSibling = c.nextSibling
	} else {
		t.firstChild = c.nextSibling
	}
	if c.nextSibling != nil {
		c.nextSibling.prevSibling = c.prevSibling
	} else {
		t.lastChild = c.prevSibling
	}
	c.prevSibling, c.nextSibling = nil, nil
}

func linkChild(parent, child *Task) {
	child.parent = parent
	child.prevSibling = parent.lastChild
	if parent.lastChild != nil {
		parent.lastChild.nextSibling = child
	} else {
		parent.firstChild = child
	}
	parent.lastChild = child
}

// finalize tears down a task's state: events, entity binding, parent/child
// links, subscriber lists, scratch memory. Idempotent — returns false
// without doing anything if finalization is already underway. Does not by
// itself unwind the task's goroutine; callers (unsafeCancel, forceFinish, or
// the natural-return path in runBody) handle that separately.
func finalize(t *Task) bool {
	if t.finalizing {
		return false
	}
	t.finalizing = true

	// Unbind the entity before cancelling built-in events: a task waiting
	// on its own `finished` event during finalization must not be
	// re-cancelled by its own entity-death handling.
	t.boundEntity = nil

	t.finished.Cancel()
	for _, e := range t.hostedEvents {
		e.Cancel()
	}
	t.hostedEvents = nil

	if t.hostedEntity != nil && t.sched.entityHooks.Unregister != nil {
		t.sched.entityHooks.Unregister(t.hostedEntity)
	}
	t.hostedEntity = nil

	if t.parent != nil {
		t.parent.unlinkChild(t)
		t.parent = nil
	}

	if t.wait.kind == waitEvent && t.wait.eventPtr.uniqueID == t.wait.eventSnap.uniqueID {
		t.wait.eventPtr.CleanupSubscribers()
	}
	t.wait = waitState{}

	for c := t.firstChild; c != nil; {
		next := c.nextSibling
		c.parent = nil
		cancelTask(c)
		c = next
	}
	t.firstChild, t.lastChild = nil, nil

	t.scratch.free()
	t.status = StatusDead
	return true
}

// cancelTask is the internal cascade entry point used while walking a
// child list during finalization; it defers to Cancel's public logic.
func cancelTask(t *Task) bool {
	return Cancel(t)
}

// Cancel cancels t, cascading to every descendant. No-op (returns false) if
// t is nil or already dead.
//
// If the calling context is t itself, or is the scheduler's root context
// (no task currently running), finalization runs directly. Otherwise
// finalization — which may run arbitrary code via event-cancellation wake-
// ups — is sandboxed in a throwaway goroutine so it can never be torn down
// by a cancellation cascade of its own making; this is the Go analogue of
// the reference implementation's throwaway coroutine context.
//
// One sharp edge is inherited as-is from the reference: a task that cancels
// its own ancestor while running can have the ancestor's cascade reach back
// around to itself, at which point "currently running" is judged safe to
// finalize in place and the rest of the ancestor's cascade is abandoned.
func Cancel(t *Task) bool {
	if t == nil || t.status == StatusDead {
		return false
	}
	s := t.sched
	if s.current == t || s.current == nil {
		return unsafeCancel(t)
	}
	done := make(chan bool, 1)
	go func() { done <- unsafeCancel(t) }()
	return <-done
}

func unsafeCancel(t *Task) bool {
	parked := t.status == StatusSuspended
	if !finalize(t) {
		return false
	}
	if !t.started {
		return true
	}
	if t.sched.current == t {
		panic(taskKilled{})
	}
	if !parked {
		// t is still marked running: its goroutine is further up the
		// current resume chain and is not waiting on resumeCh, so no kill
		// is sent. It carries on once control returns to it.
		return true
	}
	t.resumeCh <- resumeMsg{kill: true}
	<-t.yieldCh
	return true
}

// forceFinish tears a task down unconditionally, for scheduler shutdown
// (CoSched.Finish), regardless of its current wait state. A task already
// dead (e.g. one that ran to completion as a side effect of Finish waking it
// from an event wait) has no goroutine left to signal, so the kill handshake
// is skipped.
func forceFinish(t *Task) {
	wasDead := t.status == StatusDead
	finalize(t)
	if t.started && !wasDead {
		t.resumeCh <- resumeMsg{kill: true}
		<-t.yieldCh
	}
}

// --- entity binding (spec §4.6) ---

// BindEntity ties t's lifetime to an externally-owned entity handle: the
// scheduler checks the handle's liveness before every resume, force-
// cancelling the task the first time it observes the entity dead. Binding a
// nil handle cancels the task immediately. Panics if t is already bound to
// an entity — double-binding is a programmer error, not a silent rebind.
func (t *Task) BindEntity(h BoxedEntity) {
	if h == nil {
		Cancel(t)
		return
	}
	if t.boundEntity != nil {
		panic("cotask: task is already bound to an entity")
	}
	t.boundEntity = h
}

// HostEntity creates a new entity of the given kind via the scheduler's
// configured EntityHooks, binds it to t, and arranges for it to be
// unregistered automatically at finalization. Panics if no EntityHooks.Register
// was configured, or if t already hosts an entity.
func HostEntity[T any](t *Task, kind int, obj T) BoxedEntity {
	if t.sched.entityHooks.Register == nil {
		panic("cotask: HostEntity called with no EntityHooks configured")
	}
	if t.hostedEntity != nil {
		panic("cotask: task already hosts an entity")
	}
	if t.boundEntity != nil {
		panic("cotask: task is already bound to an entity")
	}
	h := t.sched.entityHooks.Register(kind, obj)
	t.hostedEntity = h
	t.boundEntity = h
	return h
}

// HostEvents registers a group of events (see InitGroup) whose lifetime is
// tied to t: they are cancelled automatically at finalization. Panics if t
// already hosts an event group.
func (t *Task) HostEvents(group any) {
	if t.hostedEvents != nil {
		panic("cotask: task already hosts an event group")
	}
	InitGroup(group)
	v := reflectEvents(group)
	t.hostedEvents = v
}
