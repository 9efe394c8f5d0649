// Package domain contains core concepts of the chat system.
// No runtime, network, or UI logic should be added here.
package domain

// Stage is the registration progress of a session.
// A session only ever moves forward: Unregistered -> NickSet -> Registered -> Closed.
type Stage int

const (
	Unregistered Stage = iota
	NickSet
	Registered
	Closed
)

func (s Stage) String() string {
	switch s {
	case Unregistered:
		return "Unregistered"
	case NickSet:
		return "NickSet"
	case Registered:
		return "Registered"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}
