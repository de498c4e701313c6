// Package replay is a thin determinism-proofing surface over cotask: it
// records, per StepFrame call, how many tasks ran and how many RNG draws
// the frame consumed, and can later re-drive the same StepFrame sequence
// and flag the first frame where the recorded and actual task counts
// diverge. It is deliberately not a netcode implementation — see
// SPEC_FULL.md §NEW-4 — just a proof that the core's frame-stepping is
// reproducible.
package replay

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/taisei-project/cosched/cotask"
)

// Frame is one recorded StepFrame outcome.
type Frame struct {
	FrameNumber uint64 `json:"frame_number"`
	TasksStepped uint32 `json:"tasks_stepped"`
	RNGDraws     uint64 `json:"rng_draws"`
}

// Session is a recorded sequence of frames, stamped with a session UUID so
// recordings from different runs are never confused with each other.
type Session struct {
	ID     uuid.UUID `json:"id"`
	Frames []Frame   `json:"frames"`
}

// Recorder wraps a CoSched, appending a Frame to Frames after every
// StepFrame call. rngDraws is supplied by the caller (the host loop knows
// how many random draws a frame consumed; cotask itself makes none).
type Recorder struct {
	Sched   *cotask.CoSched
	Session Session
	frame   uint64
}

// NewRecorder starts a fresh recording session around sched.
func NewRecorder(sched *cotask.CoSched) *Recorder {
	return &Recorder{
		Sched:   sched,
		Session: Session{ID: uuid.New()},
	}
}

// Step runs one StepFrame and records its outcome.
func (r *Recorder) Step(rngDraws uint64) uint32 {
	ran := r.Sched.StepFrame()
	r.Session.Frames = append(r.Session.Frames, Frame{
		FrameNumber:  r.frame,
		TasksStepped: ran,
		RNGDraws:     rngDraws,
	})
	r.frame++
	return ran
}

// WriteTo serializes the recorded session as JSON.
func (r *Recorder) WriteTo(w io.Writer) error {
	return json.NewEncoder(w).Encode(r.Session)
}

// ReadSession deserializes a recorded session from JSON.
func ReadSession(r io.Reader) (Session, error) {
	var s Session
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return Session{}, fmt.Errorf("replay: decoding session: %w", err)
	}
	return s, nil
}

// Desync describes the first frame where a replay diverged from its
// recording.
type Desync struct {
	FrameNumber    uint64
	WantStepped    uint32
	GotStepped     uint32
}

// Player re-drives a recorded session's StepFrame sequence against a live
// scheduler and reports the first point of divergence, if any.
type Player struct {
	Sched   *cotask.CoSched
	Session Session
}

// NewPlayer constructs a player that will re-drive session against sched.
func NewPlayer(sched *cotask.CoSched, session Session) *Player {
	return &Player{Sched: sched, Session: session}
}

// Play steps through every recorded frame, returning the first Desync
// encountered, if any.
func (p *Player) Play() (Desync, bool) {
	for _, want := range p.Session.Frames {
		got := p.Sched.StepFrame()
		if got != want.TasksStepped {
			return Desync{
				FrameNumber: want.FrameNumber,
				WantStepped: want.TasksStepped,
				GotStepped:  got,
			}, true
		}
	}
	return Desync{}, false
}
