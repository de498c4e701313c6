package cotask

import "testing"

func TestStepFrameReturnsNumberResumed(t *testing.T) {
	sched := NewCoSched(Config{})
	sched.NewTask(func(t *Task) { t.Wait(5) }, "a", nil)
	sched.NewTask(func(t *Task) { t.Wait(5) }, "b", nil)

	// Both tasks are parked on a 5-frame delay: StepFrame polls them but
	// resumes neither.
	ran := sched.StepFrame()
	if ran != 0 {
		t.Fatalf("StepFrame ran = %d, want 0", ran)
	}
}

func TestNewTaskSpawnedMidFrameDoesNotRunTwiceThatFrame(t *testing.T) {
	sched := NewCoSched(Config{})
	var spawnedRanCount int

	sched.NewTask(func(t *Task) {
		t.Yield()
		// Spawned from inside a running task, during a StepFrame call.
		InvokeSubtask(t, func(c *Task, _ struct{}) {
			spawnedRanCount++
			c.Yield()
		}, struct{}{}, "spawned")
		t.Yield()
	}, "spawner", nil)

	sched.StepFrame()
	if spawnedRanCount != 1 {
		t.Fatalf("spawnedRanCount after first StepFrame = %d, want 1 (first resume happens at spawn time)", spawnedRanCount)
	}
}

func TestFinishCancelsBlockedTasksAndResetsLists(t *testing.T) {
	sched := NewCoSched(Config{})
	var evt CoEvent
	evt.Init()

	var status EventStatus
	sched.NewTask(func(t *Task) {
		status = t.WaitEvent(&evt)
	}, "waiter", nil)
	sched.StepFrame()

	sched.Finish()

	if status != EventCanceled {
		t.Fatalf("status = %v, want EventCanceled after Finish", status)
	}
	if sched.active.first != nil || sched.pending.first != nil {
		t.Fatalf("scheduler lists should be empty after Finish")
	}
	if sched.Pool().InUse() != 0 {
		t.Fatalf("pool InUse = %d, want 0 after Finish", sched.Pool().InUse())
	}
}

func TestEntityUnbindingForceCancelsTaskOnDeath(t *testing.T) {
	sched := NewCoSched(Config{})
	h := &fakeEntity{alive: true}

	handle := sched.NewTask(func(t *Task) {
		t.BindEntity(h)
		for {
			t.Wait(1)
		}
	}, "bound", nil)
	sched.StepFrame()

	if handle.Unbox() == nil {
		t.Fatalf("task should still be alive while its entity is alive")
	}

	h.alive = false
	sched.StepFrame()

	if handle.Unbox() != nil {
		t.Fatalf("task should have been force-cancelled once its bound entity died")
	}
}

func TestBindEntityTwicePanics(t *testing.T) {
	sched := NewCoSched(Config{})
	first := &fakeEntity{alive: true}
	second := &fakeEntity{alive: true}
	var panicked bool

	sched.NewTask(func(t *Task) {
		defer func() {
			if recover() != nil {
				panicked = true
			}
		}()
		t.BindEntity(first)
		t.BindEntity(second)
	}, "double-bind", nil)

	if !panicked {
		t.Fatalf("binding an entity twice should panic")
	}
}

type fakeEntity struct{ alive bool }

func (f *fakeEntity) Alive() bool { return f.alive }

func TestHostEntityRegistersAndUnregistersOnFinalize(t *testing.T) {
	var registered, unregistered bool
	hooks := EntityHooks{
		Register: func(kind int, obj any) BoxedEntity {
			registered = true
			return &fakeEntity{alive: true}
		},
		Unregister: func(BoxedEntity) {
			unregistered = true
		},
	}
	sched := NewCoSched(Config{EntityHooks: hooks})

	handle := sched.NewTask(func(t *Task) {
		HostEntity(t, 1, "payload")
		for {
			t.Wait(1)
		}
	}, "host", nil)
	sched.StepFrame()

	if !registered {
		t.Fatalf("HostEntity should have called Register")
	}
	task := handle.Unbox()
	if task == nil {
		t.Fatalf("task should still be alive")
	}
	Cancel(task)
	if !unregistered {
		t.Fatalf("finalize should have called Unregister for the hosted entity")
	}
}
