package replay

import (
	"bytes"
	"testing"

	"github.com/taisei-project/cosched/cotask"
)

func TestRecordThenPlayMatchesExactly(t *testing.T) {
	sched := cotask.NewCoSched(cotask.Config{})
	cotask.Invoke(sched, func(t *cotask.Task, _ struct{}) {
		for {
			t.Wait(2)
		}
	}, struct{}{}, "ticker")

	rec := NewRecorder(sched)
	for i := 0; i < 10; i++ {
		rec.Step(uint64(i))
	}

	var buf bytes.Buffer
	if err := rec.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo returned error: %v", err)
	}

	session, err := ReadSession(&buf)
	if err != nil {
		t.Fatalf("ReadSession returned error: %v", err)
	}
	if session.ID != rec.Session.ID {
		t.Fatalf("round-tripped session ID = %v, want %v", session.ID, rec.Session.ID)
	}
	if len(session.Frames) != 10 {
		t.Fatalf("len(Frames) = %d, want 10", len(session.Frames))
	}

	replaySched := cotask.NewCoSched(cotask.Config{})
	cotask.Invoke(replaySched, func(t *cotask.Task, _ struct{}) {
		for {
			t.Wait(2)
		}
	}, struct{}{}, "ticker")

	player := NewPlayer(replaySched, session)
	if desync, ok := player.Play(); ok {
		t.Fatalf("unexpected desync replaying an identical scheduler run: %+v", desync)
	}
}

func TestPlayDetectsDesync(t *testing.T) {
	sched := cotask.NewCoSched(cotask.Config{})
	cotask.Invoke(sched, func(t *cotask.Task, _ struct{}) {
		for {
			t.Wait(1)
		}
	}, struct{}{}, "looper")

	rec := NewRecorder(sched)
	for i := 0; i < 3; i++ {
		rec.Step(0)
	}

	// A fresh scheduler with no tasks at all will never step anything,
	// diverging from the recorded session on frame 0.
	emptySched := cotask.NewCoSched(cotask.Config{})
	player := NewPlayer(emptySched, rec.Session)

	desync, ok := player.Play()
	if !ok {
		t.Fatalf("expected a desync replaying against an empty scheduler")
	}
	if desync.FrameNumber != 0 {
		t.Fatalf("desync.FrameNumber = %d, want 0", desync.FrameNumber)
	}
	if desync.WantStepped == desync.GotStepped {
		t.Fatalf("desync should report differing want/got, got both = %d", desync.WantStepped)
	}
}
