package decoder

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ieee0824/ctcdecode-go/ctcerr"
)

// Status is the lifecycle stage of a State.
type Status int32

const (
	Fresh Status = iota
	Active
	Finalized
	Destroyed
)

func (s Status) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Active:
		return "active"
	case Finalized:
		return "finalized"
	case Destroyed:
		return "destroyed"
	}
	return fmt.Sprintf("Status(%d)", int32(s))
}

var (
	ErrNilState       = fmt.Errorf("%w: nil decoder state", ctcerr.ErrState)
	ErrFinalized      = fmt.Errorf("%w: decoder state is finalized", ctcerr.ErrState)
	ErrDestroyed      = fmt.Errorf("%w: decoder state is destroyed", ctcerr.ErrState)
	ErrBusy           = fmt.Errorf("%w: decoder state is in use by another call", ctcerr.ErrState)
	ErrMismatch       = fmt.Errorf("%w: decoder state belongs to a different configuration", ctcerr.ErrState)
	ErrBoosterChanged = fmt.Errorf("%w: hotword booster changed mid-stream", ctcerr.ErrState)
)

// State carries one utterance across online decode calls. A State must be used
// by one call at a time; concurrent use is detected and rejected.
type State struct {
	id     uuid.UUID
	config uint64

	status atomic.Int32
	busy   atomic.Bool

	// snapshots of timestep and len(beam), readable during a call
	steps atomic.Int64
	size  atomic.Int32

	// guarded by busy
	trie     *trie
	beam     []int32
	timestep int
	booster  uint64 // fingerprint of the bound booster, 0 when none
}

func newState(config uint64) *State {
	st := &State{id: uuid.New(), config: config, trie: newTrie()}
	st.beam = append(st.beam, root)
	st.publish()
	return st
}

// ID identifies the state in logs.
func (s *State) ID() uuid.UUID { return s.id }

// Status returns the lifecycle stage.
func (s *State) Status() Status { return Status(s.status.Load()) }

// Timestep returns the number of timesteps consumed so far. It may be called
// while a decode is running.
func (s *State) Timestep() int { return int(s.steps.Load()) }

// BeamSize returns the number of live prefixes after the last timestep.
func (s *State) BeamSize() int { return int(s.size.Load()) }

// publish refreshes the snapshots. Called by the owner of busy.
func (s *State) publish() {
	s.steps.Store(int64(s.timestep))
	s.size.Store(int32(len(s.beam)))
}

// acquire marks the state busy for the duration of one call.
func (s *State) acquire() error {
	if s == nil {
		return ErrNilState
	}
	if !s.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	switch s.Status() {
	case Finalized:
		s.busy.Store(false)
		return ErrFinalized
	case Destroyed:
		s.busy.Store(false)
		return ErrDestroyed
	}
	return nil
}

func (s *State) release() { s.busy.Store(false) }

// Reset returns a finalized or active state to Fresh so it can decode a new
// utterance. The trie arena is kept for reuse.
func (s *State) Reset() error {
	if s == nil {
		return ErrNilState
	}
	if !s.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer s.release()
	if s.Status() == Destroyed {
		return ErrDestroyed
	}
	s.clear()
	s.status.Store(int32(Fresh))
	return nil
}

func (s *State) clear() {
	s.trie.reset("", 0)
	s.beam = append(s.beam[:0], root)
	s.timestep = 0
	s.booster = 0
	s.publish()
}

// Destroy releases the state. A second Destroy fails.
func (s *State) Destroy() error {
	if s == nil {
		return ErrNilState
	}
	if !s.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer s.release()
	if s.Status() == Destroyed {
		return ErrDestroyed
	}
	s.status.Store(int32(Destroyed))
	s.trie = nil
	s.beam = nil
	s.publish()
	return nil
}
