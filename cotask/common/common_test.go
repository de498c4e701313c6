package common

import (
	"testing"

	"github.com/taisei-project/cosched/cotask"
)

func TestRepeatingSpawnsChildAtEachInterval(t *testing.T) {
	sched := cotask.NewCoSched(cotask.Config{})
	var fireCount int

	handle := cotask.InvokeSubtask(rootTask(sched, t), func(self *cotask.Task, _ struct{}) {
		Repeating(self, 3, func(c *cotask.Task, _ struct{}) {
			fireCount++
		})
	}, struct{}{}, "repeater")

	// fireCount increments once at spawn time (the first NewTask resumes
	// synchronously), then again every 3 StepFrame calls thereafter.
	for i := 0; i < 9; i++ {
		sched.StepFrame()
	}

	if fireCount < 3 {
		t.Fatalf("fireCount = %d after 9 frames at interval 3, want at least 3", fireCount)
	}

	if task := handle.Unbox(); task != nil {
		cotask.Cancel(task)
	}
}

func TestChainRunsSequentially(t *testing.T) {
	sched := cotask.NewCoSched(cotask.Config{})
	var order []string

	cotask.InvokeSubtask(rootTask(sched, t), func(self *cotask.Task, _ struct{}) {
		Chain(self,
			func(t *cotask.Task, _ struct{}) {
				t.Wait(2)
				order = append(order, "a")
			}, struct{}{},
			func(t *cotask.Task, _ struct{}) {
				order = append(order, "b")
			}, struct{}{},
		)
		order = append(order, "done")
	}, struct{}{}, "chainer")

	for i := 0; i < 5 && len(order) < 3; i++ {
		sched.StepFrame()
	}

	if len(order) != 3 {
		t.Fatalf("order = %v, want 3 entries", order)
	}
	if order[0] != "a" || order[1] != "b" || order[2] != "done" {
		t.Fatalf("order = %v, want [a b done]", order)
	}
}

func TestTimeoutCancelsTargetWhenClockExpiresBeforeEvent(t *testing.T) {
	sched := cotask.NewCoSched(cotask.Config{})
	var evt cotask.CoEvent
	evt.Init()

	target := cotask.Invoke(sched, func(t *cotask.Task, _ struct{}) {
		for {
			t.Wait(1)
		}
	}, struct{}{}, "target")

	Timeout(rootTask(sched, t), 3, &evt, target)

	for i := 0; i < 10 && target.Unbox() != nil; i++ {
		sched.StepFrame()
	}

	if target.Unbox() != nil {
		t.Fatalf("target should have been cancelled once the timeout clock expired")
	}
}

// rootTask spawns a minimal long-lived parent task on sched and returns its
// live *cotask.Task, for tests that need a parent context to invoke
// subtasks from (common's helpers all take a *cotask.Task, not a CoSched).
func rootTask(sched *cotask.CoSched, t *testing.T) *cotask.Task {
	t.Helper()
	handle := cotask.Invoke(sched, func(self *cotask.Task, _ struct{}) {
		for {
			self.Wait(1000)
		}
	}, struct{}{}, "test_root")
	task := handle.Unbox()
	if task == nil {
		t.Fatalf("failed to spawn root task")
	}
	return task
}
