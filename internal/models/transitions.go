package models

import (
	"errors"
	"fmt"
)

// Action is a booking lifecycle action requested by the user.
type Action string

const (
	ActionStart    Action = "start"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
)

// ErrInvalidTransition is returned for any (status, action) pair outside the
// transition table. Terminal bookings never leave their state.
var ErrInvalidTransition = errors.New("invalid booking transition")

// TransitionEffect describes the outcome of a permitted lifecycle action.
type TransitionEffect struct {
	Next BookingStatus
	// StationStatus is the station side effect; empty means the station is
	// left untouched.
	StationStatus StationStatus
}

// transitionTable is the whole booking state machine. Anything not listed
// here is rejected.
var transitionTable = map[BookingStatus]map[Action]TransitionEffect{
	BookingScheduled: {
		ActionStart:  {Next: BookingActive, StationStatus: StationOccupied},
		ActionCancel: {Next: BookingCancelled},
	},
	BookingActive: {
		ActionComplete: {Next: BookingCompleted, StationStatus: StationAvailable},
		ActionCancel:   {Next: BookingCancelled, StationStatus: StationAvailable},
	},
}

// Transition resolves the effect of applying action to a booking in the given
// status, or ErrInvalidTransition when the pair is not permitted.
func Transition(current BookingStatus, action Action) (TransitionEffect, error) {
	if actions, ok := transitionTable[current]; ok {
		if effect, ok := actions[action]; ok {
			return effect, nil
		}
	}
	return TransitionEffect{}, fmt.Errorf("%w: cannot %s a %s booking", ErrInvalidTransition, action, current)
}

// ParseAction validates a wire-level action token.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionStart, ActionComplete, ActionCancel:
		return Action(s), nil
	}
	return "", fmt.Errorf("%w: unknown action %q", ErrValidation, s)
}
