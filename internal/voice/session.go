// Package voice opens and tears down peer-to-peer audio sessions by
// proximity, with deterministic initiator selection so two peers never race
// to open duplicate sessions.
package voice

import (
	"time"

	"antigravity.world/internal/protocol"
)

// SessionState is the negotiation lifecycle of one remote.
type SessionState int

const (
	StateNone SessionState = iota
	StateNegotiating
	StateConnected
	StateFailed
	StateDisconnected
)

func (s SessionState) String() string {
	switch s {
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	case StateDisconnected:
		return "disconnected"
	default:
		return "none"
	}
}

// LinkState is the transport-level condition of a peer link, as reported by
// the underlying connection (session or ICE level, whichever is worse).
type LinkState int

const (
	LinkNew LinkState = iota
	LinkConnecting
	LinkConnected
	LinkDisconnected
	LinkFailed
	LinkClosed
)

// Dead reports whether the link needs a restart.
func (l LinkState) Dead() bool {
	return l == LinkDisconnected || l == LinkFailed || l == LinkClosed
}

// Peer abstracts one peer-to-peer media connection. The real implementation
// wraps a WebRTC peer connection; tests use a fake.
type Peer interface {
	// CreateOffer produces and locally applies an offer.
	CreateOffer() (protocol.SessionDescription, error)
	// CreateAnswer produces and locally applies an answer to a received offer.
	CreateAnswer() (protocol.SessionDescription, error)
	SetRemoteDescription(protocol.SessionDescription) error
	AddICECandidate(protocol.ICECandidate) error
	// SignalingStable reports whether local negotiation is settled.
	SignalingStable() bool
	State() LinkState
	Close()
}

// PeerFactory builds a link toward a remote id.
type PeerFactory func(remoteID string) (Peer, error)

// Signaler delivers signaling envelopes through the relay. Delivery is
// unreliable by contract; implementations never block.
type Signaler interface {
	SendSignal(targetID string, sig protocol.Signal)
	// SendReady asks in-range peers to re-run initiator selection (used by
	// the passive side of a restart).
	SendReady()
}

type session struct {
	remoteID  string
	peer      Peer
	state     SessionState
	initiator bool

	// ICE candidates that arrived before the remote description.
	remoteSet bool
	iceQueue  []protocol.ICECandidate

	// Restart bookkeeping: a dead link is given a fixed delay before the
	// deterministic rebuild, cancelled implicitly if the link recovers.
	restartAt time.Time
}
