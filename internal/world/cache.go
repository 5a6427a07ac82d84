// Package world maintains a client's mirror of the room: other players, the
// chat log, market listings and placed objects, built from the relay's
// message stream and queried by UIs and agents.
package world

import (
	"encoding/json"
	"math"
	"time"

	"antigravity.world/internal/protocol"
	"antigravity.world/internal/tuning"
)

// SelfState is the locally authoritative view of our own entity.
type SelfState struct {
	ID       string
	Position protocol.Vec3
	Rotation float64
	Velocity protocol.Vec3
}

// Cache is the per-client world mirror. It is owned by a single runtime
// loop: Apply and the query methods must not be called concurrently.
type Cache struct {
	tune tuning.Tuning

	selfID string
	self   SelfState

	players  map[string]*protocol.PlayerState
	chat     []protocol.ChatMsg
	debugLog []protocol.AgentDebugLogMsg
	listings []protocol.Listing
	objects  map[string]protocol.WorldObject

	// Local wall-clock instant the room started, derived from sync-music.
	roomStart time.Time
}

func NewCache(t tuning.Tuning) *Cache {
	return &Cache{
		tune:    t,
		players: make(map[string]*protocol.PlayerState),
		objects: make(map[string]protocol.WorldObject),
	}
}

func (c *Cache) SetSelfID(id string) {
	c.selfID = id
	c.self.ID = id
}

func (c *Cache) SelfID() string { return c.selfID }

func (c *Cache) SetSelf(pos protocol.Vec3, rotation float64, vel protocol.Vec3) {
	c.self.Position = pos
	c.self.Rotation = rotation
	c.self.Velocity = vel
}

func (c *Cache) Self() SelfState { return c.self }

// RoomStart reports the derived room start instant and whether sync-music
// has been received yet.
func (c *Cache) RoomStart() (time.Time, bool) {
	return c.roomStart, !c.roomStart.IsZero()
}

// Apply folds one raw envelope into the mirror. It is total: malformed
// payloads and unknown tags are ignored, never fatal.
func (c *Cache) Apply(raw []byte) {
	base, err := protocol.DecodeBase(raw)
	if err != nil {
		return
	}
	switch base.Type {
	case protocol.TypeSyncMusic:
		var msg protocol.SyncMusicMsg
		if json.Unmarshal(raw, &msg) == nil {
			c.roomStart = time.Now().Add(-time.Duration(msg.Elapsed) * time.Millisecond)
		}

	case protocol.TypePlayerUpdate:
		var msg protocol.PlayerUpdateMsg
		if json.Unmarshal(raw, &msg) != nil || msg.ID == "" || msg.ID == c.selfID {
			return
		}
		p, ok := c.players[msg.ID]
		if !ok {
			p = &protocol.PlayerState{}
			c.players[msg.ID] = p
		}
		// Shallow merge: unmarshalling into the existing record leaves
		// fields the patch doesn't mention untouched.
		_ = json.Unmarshal(msg.Data, p)
		p.ID = msg.ID

	case protocol.TypePlayerLeave:
		var msg protocol.PlayerLeaveMsg
		if json.Unmarshal(raw, &msg) == nil {
			delete(c.players, msg.ID)
		}

	case protocol.TypePlayerJoin:
		// The entity materializes on its first player-update.

	case protocol.TypeChatMessage:
		var msg protocol.ChatMsg
		if json.Unmarshal(raw, &msg) == nil {
			c.applyChat(msg)
		}

	case protocol.TypeMarketSync:
		var msg protocol.MarketSyncMsg
		if json.Unmarshal(raw, &msg) == nil {
			c.listings = msg.Listings
		}

	case protocol.TypeMarketList:
		var msg protocol.MarketListMsg
		if json.Unmarshal(raw, &msg) != nil {
			return
		}
		for _, l := range c.listings {
			if l.ID == msg.Listing.ID {
				return
			}
		}
		c.listings = append(c.listings, msg.Listing)

	case protocol.TypeMarketBuy:
		var msg protocol.MarketBuyMsg
		if json.Unmarshal(raw, &msg) == nil {
			c.removeListing(msg.ListingID)
		}

	case protocol.TypeMarketCancel:
		var msg protocol.MarketCancelMsg
		if json.Unmarshal(raw, &msg) == nil {
			c.removeListing(msg.ListingID)
		}

	case protocol.TypeObjectSync:
		var msg protocol.ObjectSyncMsg
		if json.Unmarshal(raw, &msg) != nil {
			return
		}
		// Full replacement: the sync is the authoritative snapshot.
		c.objects = make(map[string]protocol.WorldObject, len(msg.Objects))
		for _, o := range msg.Objects {
			c.objects[o.ID] = o
		}

	case protocol.TypeObjectPlace:
		var msg protocol.ObjectPlaceMsg
		if json.Unmarshal(raw, &msg) == nil && msg.Object.ID != "" {
			c.objects[msg.Object.ID] = msg.Object
		}

	case protocol.TypeObjectRemove:
		var msg protocol.ObjectRemoveMsg
		if json.Unmarshal(raw, &msg) == nil {
			delete(c.objects, msg.ID)
		}

	case protocol.TypeAgentDebugLog:
		var msg protocol.AgentDebugLogMsg
		if json.Unmarshal(raw, &msg) == nil {
			c.debugLog = append(c.debugLog, msg)
			if n := c.tune.ChatLogLimit; n > 0 && len(c.debugLog) > n {
				c.debugLog = c.debugLog[len(c.debugLog)-n:]
			}
		}

	default:
		// voice-signal / voice-ready are routed to the voice manager by the
		// runtime; everything else is ignored.
	}
}

// applyChat appends a chat entry, subject to the ambient-overhearing rule:
// a broadcast from a sender farther than the overhear radius is discarded,
// while a message addressed to us is always delivered.
func (c *Cache) applyChat(msg protocol.ChatMsg) {
	addressedToUs := msg.TargetID != "" && msg.TargetID == c.selfID
	if !addressedToUs && msg.TargetID != "" {
		// Directed at someone else; the relay should not have sent it here.
		return
	}
	if !addressedToUs {
		if sender, ok := c.players[msg.SenderID]; ok {
			dx := sender.X - c.self.Position.X
			dz := sender.Z - c.self.Position.Z
			if math.Hypot(dx, dz) > c.tune.ChatOverhearRadius {
				return
			}
		}
	}
	if msg.SenderName == "" {
		if sender, ok := c.players[msg.SenderID]; ok {
			msg.SenderName = sender.Name
		}
	}
	// Keep the sender's bubble preview current.
	if sender, ok := c.players[msg.SenderID]; ok {
		sender.LastChatMessage = msg.Text
		sender.LastMessageAt = msg.Timestamp
	}

	c.chat = append(c.chat, msg)
	if n := c.tune.ChatLogLimit; n > 0 && len(c.chat) > n {
		c.chat = c.chat[len(c.chat)-n:]
	}
}

func (c *Cache) removeListing(id string) {
	out := c.listings[:0]
	for _, l := range c.listings {
		if l.ID != id {
			out = append(out, l)
		}
	}
	c.listings = out
}

// Player returns the mirrored state for a remote id.
func (c *Cache) Player(id string) (protocol.PlayerState, bool) {
	p, ok := c.players[id]
	if !ok {
		return protocol.PlayerState{}, false
	}
	return *p, true
}

// Object returns the mirrored world object for an id.
func (c *Cache) Object(id string) (protocol.WorldObject, bool) {
	o, ok := c.objects[id]
	return o, ok
}

// PlayerPosition and ObjectPosition make Cache a physics.Resolver, letting
// the integrator chase a player or an object by id.
func (c *Cache) PlayerPosition(id string) (protocol.Vec3, bool) {
	p, ok := c.players[id]
	if !ok {
		return protocol.Vec3{}, false
	}
	return protocol.Vec3{X: p.X, Y: p.Y, Z: p.Z}, true
}

func (c *Cache) ObjectPosition(id string) (protocol.Vec3, bool) {
	o, ok := c.objects[id]
	if !ok {
		return protocol.Vec3{}, false
	}
	return protocol.Vec3{X: o.X, Y: o.Y, Z: o.Z}, true
}

// Listings returns a copy of the current market mirror.
func (c *Cache) Listings() []protocol.Listing {
	out := make([]protocol.Listing, len(c.listings))
	copy(out, c.listings)
	return out
}

// RecentChat returns up to n most recent chat entries, oldest first.
func (c *Cache) RecentChat(n int) []protocol.ChatMsg {
	if n <= 0 || n > len(c.chat) {
		n = len(c.chat)
	}
	out := make([]protocol.ChatMsg, n)
	copy(out, c.chat[len(c.chat)-n:])
	return out
}

// LastChat returns the newest chat entry, if any.
func (c *Cache) LastChat() (protocol.ChatMsg, bool) {
	if len(c.chat) == 0 {
		return protocol.ChatMsg{}, false
	}
	return c.chat[len(c.chat)-1], true
}

// DebugLog returns the bounded agent-debug-log mirror.
func (c *Cache) DebugLog() []protocol.AgentDebugLogMsg {
	out := make([]protocol.AgentDebugLogMsg, len(c.debugLog))
	copy(out, c.debugLog)
	return out
}

// PlayerCount reports how many remote players the mirror tracks.
func (c *Cache) PlayerCount() int { return len(c.players) }
