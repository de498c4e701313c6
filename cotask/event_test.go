package cotask

import "testing"

func TestEventSignalWakesSubscriber(t *testing.T) {
	sched := NewCoSched(Config{})
	var evt CoEvent
	evt.Init()

	var status EventStatus
	sched.NewTask(func(t *Task) {
		status = t.WaitEvent(&evt)
	}, "waiter", nil)

	sched.StepFrame() // promote pending; the task subscribed and blocked during NewTask

	evt.Signal()
	if status != EventSignaled {
		t.Fatalf("status = %v, want EventSignaled", status)
	}
}

func TestEventCancelWakesSubscriberCanceled(t *testing.T) {
	sched := NewCoSched(Config{})
	var evt CoEvent
	evt.Init()

	var status EventStatus
	sched.NewTask(func(t *Task) {
		status = t.WaitEvent(&evt)
	}, "waiter", nil)
	sched.StepFrame()

	evt.Cancel()
	if status != EventCanceled {
		t.Fatalf("status = %v, want EventCanceled", status)
	}
}

func TestWaitEventOnAlreadyCancelledEventReturnsImmediately(t *testing.T) {
	sched := NewCoSched(Config{})
	var evt CoEvent
	evt.Init()
	evt.Cancel()

	var status EventStatus
	var ran bool
	sched.NewTask(func(t *Task) {
		status = t.WaitEvent(&evt)
		ran = true
	}, "waiter", nil)

	if !ran {
		t.Fatalf("task should have run to completion without yielding")
	}
	if status != EventCanceled {
		t.Fatalf("status = %v, want EventCanceled", status)
	}
}

func TestWaitEventOnceSkipsSubscribeIfAlreadySignaled(t *testing.T) {
	sched := NewCoSched(Config{})
	var evt CoEvent
	evt.Init()
	evt.Signal()

	var status EventStatus
	var ran bool
	sched.NewTask(func(t *Task) {
		status = t.WaitEventOnce(&evt)
		ran = true
	}, "waiter", nil)

	if !ran || status != EventSignaled {
		t.Fatalf("ran=%v status=%v, want ran=true status=EventSignaled", ran, status)
	}
}

func TestPollDistinguishesReinitializedEvent(t *testing.T) {
	var evt CoEvent
	evt.Init()
	snap := evt.Snapshot()

	evt.Cancel()
	evt.Init() // reused identity, fresh uniqueID

	if got := Poll(&evt, snap); got != EventCanceled {
		t.Fatalf("Poll against a stale snapshot of a reinitialized event = %v, want EventCanceled", got)
	}
}

func TestSignalReentrantCancelDuringWakeDoesNotCorruptIteration(t *testing.T) {
	sched := NewCoSched(Config{})
	var evt CoEvent
	evt.Init()

	var secondWoke bool
	var firstStatus, secondStatus EventStatus

	first := sched.NewTask(func(t *Task) {
		firstStatus = t.WaitEvent(&evt)
		// Cancelling the event from inside the wake-up is a reentrant call:
		// the subscriber list was already snapshotted and cleared, so the
		// second subscriber is still woken, and it then polls a cancelled
		// event.
		evt.Cancel()
	}, "first", nil)
	_ = first
	sched.NewTask(func(t *Task) {
		secondStatus = t.WaitEvent(&evt)
		secondWoke = true
	}, "second", nil)
	sched.StepFrame()

	evt.Signal()

	if !secondWoke {
		t.Fatalf("second subscriber was never woken")
	}
	if firstStatus != EventSignaled || secondStatus != EventCanceled {
		t.Fatalf("firstStatus=%v secondStatus=%v, want EventSignaled and EventCanceled", firstStatus, secondStatus)
	}
}
