package voice

import (
	"log"
	"time"

	"antigravity.world/internal/protocol"
	"antigravity.world/internal/tuning"
)

// Neighbor is a remote entity with its current distance, as supplied by the
// caller's world cache each proximity tick.
type Neighbor struct {
	ID       string
	Distance float64
}

// Manager runs the proximity-session state machine for one local id. All
// methods must be called from the owning runtime loop; the manager holds no
// locks.
type Manager struct {
	selfID   string
	tune     tuning.Tuning
	log      *log.Logger
	factory  PeerFactory
	signaler Signaler
	now      func() time.Time

	sessions map[string]*session
}

func NewManager(selfID string, t tuning.Tuning, factory PeerFactory, signaler Signaler, logger *log.Logger) *Manager {
	return &Manager{
		selfID:   selfID,
		tune:     t,
		log:      logger,
		factory:  factory,
		signaler: signaler,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// SetClock replaces the time source (tests).
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

// SetSelfID updates the local id once the transport has assigned it.
func (m *Manager) SetSelfID(id string) { m.selfID = id }

// State reports the session state for a remote id.
func (m *Manager) State(remoteID string) SessionState {
	s, ok := m.sessions[remoteID]
	if !ok {
		return StateNone
	}
	return s.state
}

// Connected reports whether a live session exists for the remote.
func (m *Manager) Connected(remoteID string) bool {
	return m.State(remoteID) == StateConnected
}

// SessionCount reports how many sessions exist in any state.
func (m *Manager) SessionCount() int { return len(m.sessions) }

// CheckProximity evaluates the trigger rules against the current neighbor
// set. Called on a fixed timer (1 s by default).
//
//   - not connected and distance <= connect distance: only the side whose id
//     sorts greater initiates, preventing glare.
//   - connected and distance > disconnect distance: tear down. The gap
//     between the two thresholds is hysteresis against flapping.
//   - dead link past its restart delay, remote still in range: rebuild
//     exactly one session using the same initiator rule.
//   - remote absent from the neighbor set: it left the world; never
//     reconnected.
func (m *Manager) CheckProximity(neighbors []Neighbor) {
	now := m.now()
	seen := make(map[string]bool, len(neighbors))

	for _, n := range neighbors {
		seen[n.ID] = true
		s, ok := m.sessions[n.ID]
		if !ok {
			if n.Distance <= m.tune.VoiceConnectDistance && m.selfID > n.ID {
				m.initiate(n.ID)
			}
			continue
		}

		m.pollLink(s, now)

		if s.state == StateConnected && n.Distance > m.tune.VoiceDisconnectDistance {
			m.log.Printf("voice: %s left range (%.1fm), disconnecting", n.ID, n.Distance)
			m.Cleanup(n.ID)
			continue
		}

		if !s.restartAt.IsZero() && now.After(s.restartAt) {
			// Check-then-act: only restart if the link is still dead and the
			// remote is still in connect range.
			if s.peer.State().Dead() && n.Distance <= m.tune.VoiceConnectDistance {
				m.restart(n.ID)
			} else {
				s.restartAt = time.Time{}
			}
		}
	}

	for id := range m.sessions {
		if !seen[id] {
			m.Cleanup(id)
		}
	}
}

// pollLink refreshes the session state from the transport-level link state
// and schedules a restart when the link has died.
func (m *Manager) pollLink(s *session, now time.Time) {
	switch st := s.peer.State(); {
	case st == LinkConnected:
		if s.state != StateConnected {
			m.log.Printf("voice: %s connected", s.remoteID)
		}
		s.state = StateConnected
		s.restartAt = time.Time{}
	case st.Dead():
		if st == LinkFailed {
			s.state = StateFailed
		} else {
			s.state = StateDisconnected
		}
		if s.restartAt.IsZero() {
			s.restartAt = now.Add(time.Duration(m.tune.PeerRestartDelayMs) * time.Millisecond)
			m.log.Printf("voice: %s link dead, restart scheduled", s.remoteID)
		}
	}
}

// restart tears the dead session down and rebuilds by the deterministic
// initiator rule: the greater id offers, the lesser prompts with voice-ready.
func (m *Manager) restart(remoteID string) {
	m.Cleanup(remoteID)
	if m.selfID > remoteID {
		m.log.Printf("voice: restarting session to %s", remoteID)
		m.initiate(remoteID)
	} else {
		m.signaler.SendReady()
	}
}

func (m *Manager) initiate(remoteID string) {
	if _, exists := m.sessions[remoteID]; exists {
		return
	}
	peer, err := m.factory(remoteID)
	if err != nil {
		m.log.Printf("voice: create peer %s: %v", remoteID, err)
		return
	}
	s := &session{remoteID: remoteID, peer: peer, state: StateNegotiating, initiator: true}
	m.sessions[remoteID] = s

	offer, err := peer.CreateOffer()
	if err != nil {
		m.log.Printf("voice: offer to %s: %v", remoteID, err)
		m.Cleanup(remoteID)
		return
	}
	m.signaler.SendSignal(remoteID, protocol.Signal{SDP: &offer})
}

// HandleSignal applies one relayed signaling payload from a remote.
func (m *Manager) HandleSignal(senderID string, sig protocol.Signal) {
	s, ok := m.sessions[senderID]
	if !ok {
		// An answer with no local session is a zombie from a torn-down
		// negotiation; ignore it rather than resurrect the session.
		if sig.SDP != nil && sig.SDP.Kind == "answer" {
			m.log.Printf("voice: ignoring zombie answer from %s", senderID)
			return
		}
		peer, err := m.factory(senderID)
		if err != nil {
			m.log.Printf("voice: create peer %s: %v", senderID, err)
			return
		}
		s = &session{remoteID: senderID, peer: peer, state: StateNegotiating}
		m.sessions[senderID] = s
	}

	switch {
	case sig.SDP != nil:
		// A duplicate or delayed answer after negotiation settled is a
		// no-op.
		if s.peer.SignalingStable() && sig.SDP.Kind == "answer" {
			m.log.Printf("voice: ignoring answer from %s, signaling already stable", senderID)
			return
		}
		if err := s.peer.SetRemoteDescription(*sig.SDP); err != nil {
			m.log.Printf("voice: set remote description from %s: %v", senderID, err)
			return
		}
		s.remoteSet = true
		// Flush buffered candidates in arrival order.
		for _, cand := range s.iceQueue {
			if err := s.peer.AddICECandidate(cand); err != nil {
				m.log.Printf("voice: flush candidate from %s: %v", senderID, err)
			}
		}
		s.iceQueue = nil

		if sig.SDP.Kind == "offer" {
			answer, err := s.peer.CreateAnswer()
			if err != nil {
				m.log.Printf("voice: answer to %s: %v", senderID, err)
				return
			}
			m.signaler.SendSignal(senderID, protocol.Signal{SDP: &answer})
		}

	case sig.ICE != nil:
		if s.remoteSet {
			if err := s.peer.AddICECandidate(*sig.ICE); err != nil {
				m.log.Printf("voice: add candidate from %s: %v", senderID, err)
			}
		} else {
			s.iceQueue = append(s.iceQueue, *sig.ICE)
		}
	}
}

// HandleReady reacts to a renegotiation hint: if the remote is known and in
// connect range, drop any existing session and rebuild from a clean slate,
// again with only the greater id initiating.
func (m *Manager) HandleReady(remoteID string, distance float64, known bool) {
	if !known || distance > m.tune.VoiceConnectDistance {
		return
	}
	m.Cleanup(remoteID)
	if m.selfID > remoteID {
		m.initiate(remoteID)
	}
}

// Cleanup closes and forgets the session for a remote. Never retried.
func (m *Manager) Cleanup(remoteID string) {
	s, ok := m.sessions[remoteID]
	if !ok {
		return
	}
	s.peer.Close()
	delete(m.sessions, remoteID)
}

// Close tears down every session.
func (m *Manager) Close() {
	for id := range m.sessions {
		m.Cleanup(id)
	}
}
