// Package cotask implements a single-threaded, cooperative task scheduler:
// tasks are plain goroutines handed control one at a time by CoSched, never
// running concurrently with each other. Suspension primitives (Yield, Wait,
// WaitEvent, WaitSubtasks) block the calling goroutine on a channel
// handshake until the scheduler resumes it on a later StepFrame call, so a
// task body reads like straight-line code while still yielding control
// every frame.
//
// Cancellation cascades to every descendant task. CoEvent is a multi-
// subscriber signal with a generation counter, so a subscriber can always
// tell a live event from a cancelled (possibly reused) one without ever
// dereferencing freed state. BoxedTask and entity handles follow the same
// generation-checked pattern.
package cotask
