package cotask

// Func is a task body taking its spawn-time arguments by value. Go's
// ordinary closures already give us what the reference implementation needs
// a hand-rolled argument-copying DSL for, so Invoke* here are thin
// generic wrappers rather than a macro-driven argument-struct compiler.
type Func[A any] func(t *Task, args A)

// Invoke spawns fn as a new root task on sched.
func Invoke[A any](sched *CoSched, fn Func[A], args A, label string) BoxedTask {
	return sched.NewTask(func(t *Task) { fn(t, args) }, label, nil)
}

// InvokeSubtask spawns fn as a child of parent: cancelling parent cascades
// to cancel it, and parent.WaitSubtasks will wait on it. Panics if parent is
// nil — spawning a sub-task requires a parent task in context, exactly as
// the reference implementation asserts.
func InvokeSubtask[A any](parent *Task, fn Func[A], args A, label string) BoxedTask {
	if parent == nil {
		panic("cotask: InvokeSubtask called with no parent task in context")
	}
	return parent.sched.NewTask(func(t *Task) { fn(t, args) }, label, parent)
}

// InvokeDelayed spawns fn as a root task that waits frames steps before
// running. frames<0 spawns nothing and returns a zero BoxedTask.
func InvokeDelayed[A any](sched *CoSched, frames int, fn Func[A], args A, label string) BoxedTask {
	if frames < 0 {
		return BoxedTask{}
	}
	return Invoke(sched, func(t *Task, a A) {
		t.Wait(frames)
		fn(t, a)
	}, args, label)
}

// InvokeSubtaskDelayed is InvokeSubtask with an initial delay.
func InvokeSubtaskDelayed[A any](parent *Task, frames int, fn Func[A], args A, label string) BoxedTask {
	if frames < 0 {
		return BoxedTask{}
	}
	return InvokeSubtask(parent, func(t *Task, a A) {
		t.Wait(frames)
		fn(t, a)
	}, args, label)
}

// InvokeWhen spawns fn as a root task that runs only if evt is signaled
// (not if it is cancelled first).
func InvokeWhen[A any](sched *CoSched, evt *CoEvent, fn Func[A], args A, label string) BoxedTask {
	return Invoke(sched, func(t *Task, a A) {
		if t.WaitEvent(evt) == EventSignaled {
			fn(t, a)
		}
	}, args, label)
}

// InvokeAfter spawns fn as a root task that runs once evt reaches a final
// state (signaled or cancelled), unconditionally.
func InvokeAfter[A any](sched *CoSched, evt *CoEvent, fn Func[A], args A, label string) BoxedTask {
	return Invoke(sched, func(t *Task, a A) {
		t.WaitEvent(evt)
		fn(t, a)
	}, args, label)
}

// CancelTaskWhen spawns a watcher task that cancels target once evt is
// signaled (not if evt is merely cancelled).
func CancelTaskWhen(sched *CoSched, evt *CoEvent, target BoxedTask) BoxedTask {
	return Invoke(sched, func(t *Task, _ struct{}) {
		if t.WaitEvent(evt) == EventSignaled {
			if tt := target.Unbox(); tt != nil {
				Cancel(tt)
			}
		}
	}, struct{}{}, "cancel_task_when")
}

// CancelTaskAfter spawns a watcher task that cancels target once evt
// reaches a final state, unconditionally.
func CancelTaskAfter(sched *CoSched, evt *CoEvent, target BoxedTask) BoxedTask {
	return Invoke(sched, func(t *Task, _ struct{}) {
		t.WaitEvent(evt)
		if tt := target.Unbox(); tt != nil {
			Cancel(tt)
		}
	}, struct{}{}, "cancel_task_after")
}

// Spawner type-erases a bound task body and its arguments so callers can
// hold a slice of heterogeneous pending spawns (e.g. a boss's attack-phase
// table) behind one interface, the Go-generics analogue of the reference
// DSL's type-erased, argument-interface-compatible task handle.
type Spawner interface {
	Spawn(sched *CoSched, label string) BoxedTask
	SpawnSubtask(parent *Task, label string) BoxedTask
}

// Bound packages a Func with its arguments into a Spawner.
type Bound[A any] struct {
	Fn   Func[A]
	Args A
}

func (b Bound[A]) Spawn(sched *CoSched, label string) BoxedTask {
	return Invoke(sched, b.Fn, b.Args, label)
}

func (b Bound[A]) SpawnSubtask(parent *Task, label string) BoxedTask {
	return InvokeSubtask(parent, b.Fn, b.Args, label)
}
