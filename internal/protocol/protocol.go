package protocol

import "encoding/json"

// Message types. Tags match the room wire protocol; every envelope is a flat
// JSON object carrying a "type" field.
const (
	TypePlayerUpdate = "player-update"
	TypePlayerJoin   = "player-join"
	TypePlayerLeave  = "player-leave"

	TypeChatMessage = "chat-message"

	TypeMarketList   = "market-list-item"
	TypeMarketBuy    = "market-buy-item"
	TypeMarketCancel = "market-cancel-item"
	TypeMarketSync   = "market-sync"

	TypeObjectPlace  = "object-place"
	TypeObjectRemove = "object-remove"
	TypeObjectSync   = "object-sync"

	TypeVoiceSignal = "voice-signal"
	TypeVoiceReady  = "voice-ready"

	TypeSyncMusic     = "sync-music"
	TypeAgentDebugLog = "agent-debug-log"
	TypeError         = "error"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type string `json:"type"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// Encode marshals an envelope for the wire.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Decode unmarshals a full envelope once the type is known.
func Decode(b []byte, v any) error {
	return json.Unmarshal(b, v)
}
