package association

// State is a node in the association lifecycle (§4.10): a fresh
// transport starts Inactive, Open() drives it to Associated (or to Idle
// on rejection), and Close()/Disconnect() drive it back down.
type State int

const (
	StateInactive            State = iota
	StateIdle                      // transport open, no association yet
	StateAssociationPending         // AARQ sent/received, awaiting AARE
	StateAssociated                 // AARE accepted, association usable
	StateReleasePending              // RLRQ sent/received, awaiting RLRE
)

func (s State) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateIdle:
		return "idle"
	case StateAssociationPending:
		return "association-pending"
	case StateAssociated:
		return "associated"
	case StateReleasePending:
		return "release-pending"
	default:
		return "unknown"
	}
}
