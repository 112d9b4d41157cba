package lifecycle

import "gamelend/internal/domain"

// State is derived from the request timestamps, never stored.
type State string

const (
	StatePending     State = "PENDING"
	StateActive      State = "ACTIVE"
	StateReturned    State = "RETURNED"
	StateUnavailable State = "UNAVAILABLE"
)

// Classify maps (acceptedAt, returnedAt) to exactly one state. A record that
// claims a return without an accept is not trusted and reads as UNAVAILABLE.
func Classify(req *domain.BorrowRequest) State {
	if req == nil {
		return StateUnavailable
	}
	switch {
	case req.AcceptedAt == nil && req.ReturnedAt == nil:
		return StatePending
	case req.AcceptedAt != nil && req.ReturnedAt == nil:
		return StateActive
	case req.AcceptedAt != nil && req.ReturnedAt != nil:
		return StateReturned
	default:
		return StateUnavailable
	}
}

// ClassifyResult classifies the outcome of a load. Any error is UNAVAILABLE,
// never silently PENDING.
func ClassifyResult(req *domain.BorrowRequest, err error) State {
	if err != nil {
		return StateUnavailable
	}
	return Classify(req)
}
