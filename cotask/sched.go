package cotask

import (
	"log"

	"github.com/google/uuid"

	"github.com/taisei-project/cosched/core"
)

// taskList is an intrusive doubly linked list of tasks using Task's own
// prevInSched/nextInSched fields, avoiding a separate allocation per link —
// the Go analogue of the reference implementation's alist.
type taskList struct {
	first, last *Task
}

func (l *taskList) append(t *Task) {
	t.prevInSched = l.last
	t.nextInSched = nil
	if l.last != nil {
		l.last.nextInSched = t
	} else {
		l.first = t
	}
	l.last = t
}

func (l *taskList) unlink(t *Task) {
	if t.prevInSched != nil {
		t.prevInSched.nextInSched = t.nextInSched
	} else {
		l.first = t.nextInSched
	}
	if t.nextInSched != nil {
		t.nextInSched.prevInSched = t.prevInSched
	} else {
		l.last = t.prevInSched
	}
	t.prevInSched, t.nextInSched = nil, nil
}

// mergeInto appends every task of src onto the end of dst, in order, and
// empties src.
func (src *taskList) mergeInto(dst *taskList) {
	for t := src.first; t != nil; t = t.nextInSched {
		t.prevInSched = dst.last
		if dst.last != nil {
			dst.last.nextInSched = t
		} else {
			dst.first = t
		}
		dst.last = t
	}
	src.first, src.last = nil, nil
}

// Config configures a CoSched instance.
type Config struct {
	Pool        PoolConfig
	EntityHooks EntityHooks
	Logger      *log.Logger
}

// CoSched is a single-threaded cooperative scheduler. Tasks spawned against
// it never run concurrently with one another or with the scheduler's own
// StepFrame/Finish calls: at most one goroutine is ever doing real work at a
// time, the rest blocked on a channel handoff.
type CoSched struct {
	ID uuid.UUID

	active, pending taskList
	pool            *Pool
	current         *Task

	entityHooks EntityHooks
	Logger      *log.Logger

	pendingPanic any

	lastFrameContextSwitches uint32
}

// NewCoSched constructs a scheduler with the given configuration.
func NewCoSched(cfg Config) *CoSched {
	pool := cfg.Pool
	if pool.ScratchArenaSize == 0 {
		pool = DefaultPoolConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &CoSched{
		ID:          uuid.New(),
		pool:        NewPool(pool),
		entityHooks: cfg.EntityHooks,
		Logger:      logger,
	}
}

func (s *CoSched) logf(format string, args ...any) {
	if s.Logger != nil {
		s.Logger.Printf(format, args...)
	}
}

// Current returns the task currently executing against this scheduler, or
// nil if none is (i.e. the caller is in the scheduler's root context).
func (s *CoSched) Current() *Task { return s.current }

// Pool exposes the scheduler's task pool, mainly for stat reporting.
func (s *CoSched) Pool() *Pool { return s.pool }

// ForEachTask visits every non-dead task currently known to the scheduler —
// pending first, then active — for debug/introspection surfaces (see
// TaskInfo). fn must not mutate the scheduler's task lists.
func (s *CoSched) ForEachTask(fn func(t *Task)) {
	for t := s.pending.first; t != nil; t = t.nextInSched {
		if t.status != StatusDead {
			fn(t)
		}
	}
	for t := s.active.first; t != nil; t = t.nextInSched {
		if t.status != StatusDead {
			fn(t)
		}
	}
}

// TaskInfo is a snapshot of one task's debug-visible state, for the
// stat/debug surface's task listing (spec §6.4).
type TaskInfo struct {
	Label  string
	Status Status
	Wait   string
}

// Tasks returns a TaskInfo snapshot for every non-dead task.
func (s *CoSched) Tasks() []TaskInfo {
	var infos []TaskInfo
	s.ForEachTask(func(t *Task) {
		infos = append(infos, TaskInfo{
			Label:  t.DebugLabel,
			Status: t.Status(),
			Wait:   t.WaitKind(),
		})
	})
	return infos
}

// NewTask spawns a new root (or, if parent is non-nil, child) task running
// entry, and performs its first resume synchronously: entry runs up to its
// first suspension point (or returns) before NewTask returns. New tasks are
// appended to the pending list and only join the active list on the next
// StepFrame, so a task spawned mid-frame never runs twice in the frame that
// spawned it.
func (s *CoSched) NewTask(entry func(t *Task), label string, parent *Task) BoxedTask {
	t := s.pool.acquire(s, entry, label)
	if parent != nil {
		linkChild(parent, t)
	}
	s.pending.append(t)
	s.Resume(t)
	return t.Box()
}

// Resume is the single re-entry point used both by StepFrame's per-task
// sweep and by CoEvent wake-ups: it checks the bound entity's liveness,
// re-evaluates the task's wait state, and only actually hands control to the
// task's goroutine if it is ready to run.
func (s *CoSched) Resume(t *Task) bool {
	if t.status == StatusDead {
		return false
	}
	if t.boundEntity != nil && !t.boundEntity.Alive() {
		Cancel(t)
		return false
	}
	if t.wait.kind != waitNone && t.evalWait() {
		return false
	}
	s.doResume(t)
	return true
}

func (s *CoSched) doResume(t *Task) {
	prev := s.current
	s.current = t
	t.status = StatusRunning

	var status EventStatus
	if t.wait.kind == waitEvent {
		status = t.wait.resultEvent
	}

	if !t.started {
		t.started = true
		go t.runBody()
	} else {
		t.resumeCh <- resumeMsg{status: status}
	}
	msg := <-t.yieldCh

	s.current = prev
	if msg.done {
		t.status = StatusDead
	} else {
		t.status = StatusSuspended
	}
}

// runBody is the goroutine entry point for a task, recovering panics the
// same way core.Go recovers a goroutine's: logged immediately through
// core.HandleCrash, then (since nothing here can safely propagate a panic
// across the resumeCh/yieldCh handshake to arbitrary calling code) recorded
// as the task's panicVal and re-raised from the scheduler's next StepFrame
// call, so host code still observes it at a deterministic point.
func (t *Task) runBody() {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(taskKilled); !ok {
				core.HandleCrash(r)
				t.panicVal = r
				finalize(t)
				t.sched.pendingPanic = r
			}
		}
		t.yieldCh <- yieldMsg{done: true}
	}()
	t.entry(t)
	t.finished.Signal()
	finalize(t)
}

// StepFrame promotes every pending task into the active list, then resumes
// every active task that is ready to run this frame, freeing any that have
// died since the last step. Returns the number of tasks actually resumed.
//
// If a task panicked (a programmer-error bug, not a cancellation) during
// this or a prior StepFrame and that panic has not yet been surfaced, it is
// re-raised here — once per recorded panic, at the start of the next call —
// so host code observes it at a deterministic point instead of losing a
// goroutine silently.
func (s *CoSched) StepFrame() uint32 {
	if s.pendingPanic != nil {
		p := s.pendingPanic
		s.pendingPanic = nil
		panic(p)
	}

	s.pending.mergeInto(&s.active)

	var ran uint32
	for t := s.active.first; t != nil; {
		next := t.nextInSched
		if t.status == StatusDead {
			s.active.unlink(t)
			s.pool.release(t)
		} else if s.Resume(t) {
			ran++
		}
		t = next
	}
	s.lastFrameContextSwitches = ran
	return ran
}

// ContextSwitches reports how many tasks were actually resumed (handed the
// goroutine, not just polled) during the most recent StepFrame call — the
// stat/debug surface's "context switches this frame" counter.
func (s *CoSched) ContextSwitches() uint32 { return s.lastFrameContextSwitches }

// Finish cancels every event a task is still blocked on (waking those tasks
// so they can run their own cleanup), then force-finishes every remaining task in
// both the active and pending lists, and resets the scheduler to a fresh,
// empty state.
func (s *CoSched) Finish() {
	events := map[*CoEvent]uint32{}
	gather := func(l *taskList) {
		for t := l.first; t != nil; t = t.nextInSched {
			if t.wait.kind != waitEvent {
				continue
			}
			e := t.wait.eventPtr
			if e.uniqueID != t.wait.eventSnap.uniqueID {
				continue
			}
			events[e] = e.uniqueID
		}
	}
	gather(&s.active)
	gather(&s.pending)
	for e, uid := range events {
		if e.uniqueID == uid {
			// Waking subscribers here may cancel/invalidate other events
			// still pending in this loop; the stored uid guards against
			// acting on one that was already cancelled by an earlier
			// iteration's cascade.
			e.Cancel()
		}
	}

	finishList := func(l *taskList) {
		for t := l.first; t != nil; {
			next := t.nextInSched
			forceFinish(t)
			s.pool.release(t)
			t = next
		}
		l.first, l.last = nil, nil
	}
	finishList(&s.active)
	finishList(&s.pending)

	s.current = nil
	s.pendingPanic = nil
}
