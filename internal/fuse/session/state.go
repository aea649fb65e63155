package session

import "fmt"

// State is the lifecycle state of a Session.
type State uint32

// Session states. A Session only moves forward through these states.
const (
	// StateNegotiating is the initial state, until the INIT handshake
	// completes.
	StateNegotiating State = iota
	// StateActive sessions admit and dispatch requests.
	StateActive
	// StateDraining sessions reject new requests and wait for in-flight ones
	// to be answered.
	StateDraining
	// StateClosed sessions have released their device.
	StateClosed
)

var stateNames = [...]string{
	StateNegotiating: "negotiating",
	StateActive:      "active",
	StateDraining:    "draining",
	StateClosed:      "closed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint32(s))
}
