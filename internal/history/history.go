// Package history keeps raster snapshots of the overlay for undo and redo.
//
// Entries are whole-buffer snapshots, so undo restores a previous raster
// state rather than removing a single stroke.
package history

import (
	"fmt"
	"log"

	"github.com/example/maskpaint/internal/surface"
)

// DefaultCapacity bounds the undo sequence.
const DefaultCapacity = 25

// Target is the buffer the history snapshots and restores.
type Target interface {
	Snapshot() (surface.Snapshot, error)
	Restore(surface.Snapshot) error
}

// Stack holds the undo and redo sequences for one editing session.
type Stack struct {
	target   Target
	capacity int
	undo     []surface.Snapshot
	redo     []surface.Snapshot
}

// New creates a stack bound to target. A capacity below one uses
// DefaultCapacity.
func New(target Target, capacity int) *Stack {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Stack{target: target, capacity: capacity}
}

// Len returns the number of undo entries.
func (s *Stack) Len() int { return len(s.undo) }

// RedoLen returns the number of redo entries.
func (s *Stack) RedoLen() int { return len(s.redo) }

// CanUndo reports whether Undo would change anything.
func (s *Stack) CanUndo() bool { return len(s.undo) > 0 }

// CanRedo reports whether Redo would change anything.
func (s *Stack) CanRedo() bool { return len(s.redo) > 0 }

// RecordBeforeChange snapshots the current state ahead of a mutation. The
// redo sequence is always discarded. A failed snapshot drops the entry and
// is returned for the caller to log.
func (s *Stack) RecordBeforeChange() error {
	s.redo = s.redo[:0]
	snap, err := s.target.Snapshot()
	if err != nil {
		return fmt.Errorf("record history: %w", err)
	}
	s.undo = append(s.undo, snap)
	if over := len(s.undo) - s.capacity; over > 0 {
		s.undo = append(s.undo[:0], s.undo[over:]...)
	}
	return nil
}

// Undo restores the most recent undo entry, keeping the current state on the
// redo sequence. It is a no-op when there is nothing to undo.
func (s *Stack) Undo() error {
	if len(s.undo) == 0 {
		return nil
	}
	return s.step(&s.undo, &s.redo, "undo")
}

// Redo is the inverse of Undo.
func (s *Stack) Redo() error {
	if len(s.redo) == 0 {
		return nil
	}
	return s.step(&s.redo, &s.undo, "redo")
}

func (s *Stack) step(from, to *[]surface.Snapshot, name string) error {
	if cur, err := s.target.Snapshot(); err != nil {
		log.Printf("%s: current state not kept: %v", name, err)
	} else {
		*to = append(*to, cur)
	}
	last := len(*from) - 1
	snap := (*from)[last]
	*from = (*from)[:last]
	if err := s.target.Restore(snap); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// Reset empties both sequences.
func (s *Stack) Reset() {
	s.undo = nil
	s.redo = nil
}
