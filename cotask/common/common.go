// Package common provides small reusable task-body compositions over the
// cotask DSL — convenience helpers, not new scheduler primitives. Built in
// the style of taskdsl.c/h's invocation surface (the reference's layer for
// composing cotask_invoke*/cotask_wait* calls into reusable shapes), since
// no C file in the reference implements this exact repeat/chain/timeout
// trio; they are new compositions with no single direct analogue, assembled
// entirely out of the primitives taskdsl.c/h and cotask.c already expose.
package common

import "github.com/taisei-project/cosched/cotask"

// Repeating invokes fn as a subtask of parent every interval frames, until
// parent itself dies. Intended to be run as a subtask body itself:
//
//	cotask.InvokeSubtask(parent, func(t *cotask.Task, _ struct{}) {
//	    common.Repeating(t, 30, spawnBullet)
//	}, struct{}{}, "bullet_timer")
func Repeating(parent *cotask.Task, interval int, fn cotask.Func[struct{}]) {
	for {
		cotask.InvokeSubtask(parent, fn, struct{}{}, "repeating.child")
		parent.Wait(interval)
	}
}

// Chain runs subtask A to completion, then subtask B, as subtasks of
// parent — a straight-line sequencing helper built entirely out of
// InvokeSubtask + WaitEvent(Finished), with no new suspension primitive.
func Chain[A any, B any](parent *cotask.Task, fnA cotask.Func[A], argsA A, fnB cotask.Func[B], argsB B) {
	ta := cotask.InvokeSubtask(parent, fnA, argsA, "chain.a")
	if t := ta.Unbox(); t != nil {
		parent.WaitEvent(t.Finished())
	}
	tb := cotask.InvokeSubtask(parent, fnB, argsB, "chain.b")
	if t := tb.Unbox(); t != nil {
		parent.WaitEvent(t.Finished())
	}
}

// Timeout cancels target after frames steps unless evt signals first.
// Entirely a composition of Wait(n) and event cancellation, per spec §5's
// note that timeouts need no dedicated primitive.
func Timeout(parent *cotask.Task, frames int, evt *cotask.CoEvent, target cotask.BoxedTask) {
	cotask.InvokeSubtask(parent, func(t *cotask.Task, _ struct{}) {
		var done cotask.CoEvent
		done.Init()

		cotask.InvokeSubtask(t, func(t2 *cotask.Task, _ struct{}) {
			t2.Wait(frames)
			done.SignalOnce()
		}, struct{}{}, "timeout.clock")

		cotask.InvokeSubtask(t, func(t2 *cotask.Task, _ struct{}) {
			if t2.WaitEvent(evt) == cotask.EventSignaled {
				done.SignalOnce()
			}
		}, struct{}{}, "timeout.watch")

		t.WaitEvent(&done)
		if tt := target.Unbox(); tt != nil {
			cotask.Cancel(tt)
		}
	}, struct{}{}, "timeout")
}
