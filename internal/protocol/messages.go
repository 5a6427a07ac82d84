package protocol

import "encoding/json"

// Vec3 is a world-space position.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Movement carries per-axis movement intent. The values double as animation
// flags on the receiving side.
type Movement struct {
	Forward  float64 `json:"forward"`
	Backward float64 `json:"backward"`
	Left     float64 `json:"left"`
	Right    float64 `json:"right"`
	Up       float64 `json:"up"`
}

// PlayerState is the broadcastable per-entity state. Position and rotation
// are authoritative on the owning client and advisory (last write wins)
// everywhere else.
type PlayerState struct {
	ID       string   `json:"id,omitempty"`
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	Z        float64  `json:"z"`
	Rotation float64  `json:"rotation"`
	Movement Movement `json:"movement"`
	Grounded bool     `json:"grounded"`

	Character string  `json:"character,omitempty"`
	Color     string  `json:"color,omitempty"`
	Metalness float64 `json:"metalness,omitempty"`
	Roughness float64 `json:"roughness,omitempty"`

	IsAgent       bool   `json:"isAgent,omitempty"`
	Name          string `json:"name,omitempty"`
	WalletAddress string `json:"walletAddress,omitempty"`

	LastChatMessage string `json:"lastChatMessage,omitempty"`
	LastMessageAt   int64  `json:"lastMessageAt,omitempty"`
}

// PlayerUpdateMsg carries a full or partial PlayerState patch. Data stays raw
// so receivers can merge it into an existing record without dropping fields
// the patch does not mention. The relay stamps ID with the sender's
// connection id before re-broadcasting.
type PlayerUpdateMsg struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data"`
}

// PlayerJoinMsg / PlayerLeaveMsg are relay-originated lifecycle notices.
type PlayerJoinMsg struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type PlayerLeaveMsg struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// ChatMsg is a chat broadcast, or a direct message when TargetID is set.
type ChatMsg struct {
	Type       string `json:"type"`
	ID         string `json:"id"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName,omitempty"`
	Text       string `json:"text"`
	Timestamp  int64  `json:"timestamp"`
	TargetID   string `json:"targetId,omitempty"`
}

// Item is the snapshot embedded in a listing so other clients can render and
// receive the item even when the seller's local record is unavailable.
type Item struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Kind   string `json:"type"`
	Rarity string `json:"rarity,omitempty"`
	Image  string `json:"image,omitempty"`
	Owner  string `json:"owner,omitempty"`
}

// Listing is one marketplace entry. The relay holds the authoritative set.
type Listing struct {
	ID       string `json:"id"`
	ItemID   string `json:"itemId"`
	Item     Item   `json:"item"`
	Seller   string `json:"seller"`
	Price    string `json:"price"`
	Active   bool   `json:"active"`
	Location *Vec3  `json:"location,omitempty"`
}

type MarketListMsg struct {
	Type    string  `json:"type"`
	Listing Listing `json:"listing"`
}

// MarketBuyMsg removes a listing. BuyerID is stamped by the relay on the
// broadcast so sellers can attribute the sale.
type MarketBuyMsg struct {
	Type      string `json:"type"`
	ListingID string `json:"listingId"`
	BuyerID   string `json:"buyerId,omitempty"`
}

type MarketCancelMsg struct {
	Type      string `json:"type"`
	ListingID string `json:"listingId"`
}

type MarketSyncMsg struct {
	Type     string    `json:"type"`
	Listings []Listing `json:"listings"`
}

// WorldObject is a placed object mirrored read-only by clients.
type WorldObject struct {
	ID          string  `json:"id"`
	X           float64 `json:"x"`
	Y           float64 `json:"y,omitempty"`
	Z           float64 `json:"z"`
	Radius      float64 `json:"radius"`
	Rotation    float64 `json:"rotation"`
	Kind        string  `json:"type,omitempty"`
	Color       string  `json:"color,omitempty"`
	Description string  `json:"description,omitempty"`
}

type ObjectPlaceMsg struct {
	Type   string      `json:"type"`
	Object WorldObject `json:"object"`
}

type ObjectRemoveMsg struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type ObjectSyncMsg struct {
	Type    string        `json:"type"`
	Objects []WorldObject `json:"objects"`
}

// SessionDescription mirrors an SDP offer or answer.
type SessionDescription struct {
	Kind string `json:"type"` // "offer" | "answer"
	SDP  string `json:"sdp"`
}

// ICECandidate mirrors a transport candidate.
type ICECandidate struct {
	Candidate     string `json:"candidate"`
	SDPMid        string `json:"sdpMid,omitempty"`
	SDPMLineIndex *int   `json:"sdpMLineIndex,omitempty"`
}

// Signal is the voice-signal payload: exactly one of SDP or ICE is set.
type Signal struct {
	SDP *SessionDescription `json:"sdp,omitempty"`
	ICE *ICECandidate       `json:"ice,omitempty"`
}

// VoiceSignalMsg is routed strictly 1:1. Outbound carries TargetID; the relay
// rewrites it to SenderID for the recipient and never broadcasts it.
type VoiceSignalMsg struct {
	Type     string `json:"type"`
	TargetID string `json:"targetId,omitempty"`
	SenderID string `json:"senderId,omitempty"`
	Signal   Signal `json:"signal"`
}

// VoiceReadyMsg hints peers in range to re-run initiator selection.
type VoiceReadyMsg struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// SyncMusicMsg seeds a new connection with the room's elapsed time so client
// timers align.
type SyncMusicMsg struct {
	Type    string `json:"type"`
	Elapsed int64  `json:"elapsed"` // ms since the room started
}

// AgentDebugLogMsg is an observability passthrough. AgentID is declared by
// the sender (the fleet-assigned logical id); SocketID is stamped by the
// relay.
type AgentDebugLogMsg struct {
	Type      string `json:"type"`
	AgentID   string `json:"agentId"`
	SocketID  string `json:"socketId,omitempty"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// ErrorMsg reports a rejected mutation to the actor. Ref names the entity the
// rejection is about (e.g. the listing id).
type ErrorMsg struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
	Ref    string `json:"ref,omitempty"`
}
