package types

import "fmt"

// RejectReason classifies why a write or lock request was rejected.
type RejectReason uint8

const (
	ReasonLockedOut RejectReason = iota
	ReasonPermissionDenied
)

func (r RejectReason) String() string {
	switch r {
	case ReasonLockedOut:
		return "locked_out"
	case ReasonPermissionDenied:
		return "permission_denied"
	default:
		return "unknown"
	}
}

// RejectedError is surfaced for permission or lock violations. Locked
// writes carry the current lock holder's id so the client can queue or
// abandon.
type RejectedError struct {
	Reason     RejectReason
	Holder     PeerID
	EntityID   EntityID
}

func (e *RejectedError) Error() string {
	if e.Reason == ReasonLockedOut {
		return fmt.Sprintf("rejected: entity %s locked by %s", e.EntityID, e.Holder)
	}
	return fmt.Sprintf("rejected: %s on entity %s", e.Reason, e.EntityID)
}

// HistoryExpiredError is returned when a rollback/restore targets a
// tick older than the retained window.
type HistoryExpiredError struct {
	RequestedTick Tick
	OldestTick    Tick
}

func (e *HistoryExpiredError) Error() string {
	return fmt.Sprintf("history expired: requested tick %d, oldest retained %d", e.RequestedTick, e.OldestTick)
}

// MessageTimeoutError is surfaced when a message exhausts its retry
// budget without being acked.
type MessageTimeoutError struct {
	MessageID UID
}

func (e *MessageTimeoutError) Error() string {
	return fmt.Sprintf("message %s timed out after exhausting retries", e.MessageID)
}

// ProtocolViolationError is surfaced for malformed or out-of-contract
// frames from a peer.
type ProtocolViolationError struct {
	Peer   PeerID
	Detail string
}

func (e *ProtocolViolationError) Error() string {
	return fmt.Sprintf("protocol violation from %s: %s", e.Peer, e.Detail)
}

// QuorumFailedError is returned when a vote-based conflict cannot reach
// the configured quorum.
type QuorumFailedError struct {
	EntityID EntityID
	Needed   int
	Got      int
}

func (e *QuorumFailedError) Error() string {
	return fmt.Sprintf("quorum failed for %s: needed %d, got %d", e.EntityID, e.Needed, e.Got)
}

// OvercapacityError is returned when a peer or entity count would
// exceed a configured limit.
type OvercapacityError struct {
	Resource string
	Limit    int
}

func (e *OvercapacityError) Error() string {
	return fmt.Sprintf("%s over capacity (limit %d)", e.Resource, e.Limit)
}
