package world

import (
	"math"
	"strings"
	"time"

	"antigravity.world/internal/protocol"
)

// Entity is one nearby player as the agent perceives it.
type Entity struct {
	ID            string        `json:"id"`
	Name          string        `json:"name,omitempty"`
	Position      protocol.Vec3 `json:"position"`
	Rotation      float64       `json:"rotation"`
	Distance      float64       `json:"distance"`
	IsAgent       bool          `json:"isAgent,omitempty"`
	WalletAddress string        `json:"walletAddress,omitempty"`
	Guest         bool          `json:"isGuest,omitempty"`
	Owner         bool          `json:"isOwner,omitempty"`
}

// Obstacle is one nearby placed object.
type Obstacle struct {
	ID          string        `json:"id"`
	Position    protocol.Vec3 `json:"position"`
	Radius      float64       `json:"radius"`
	Rotation    float64       `json:"rotation"`
	Kind        string        `json:"type"`
	Color       string        `json:"color,omitempty"`
	Description string        `json:"description,omitempty"`
	Distance    float64       `json:"distance"`
}

// Observation is the perception snapshot handed to the decision provider.
type Observation struct {
	Self      SelfState
	Entities  []Entity
	Obstacles []Obstacle
	Chat      []protocol.ChatMsg
	Listings  []protocol.Listing
	Timestamp time.Time
}

// Observe builds a distance-filtered snapshot. ownerWallet, when non-empty,
// marks matching entities as the agent's owner (wallet addresses compare
// case-insensitively, and an entity without one is a guest).
func (c *Cache) Observe(ownerWallet string) Observation {
	obs := Observation{
		Self:      c.self,
		Chat:      c.RecentChat(0),
		Listings:  c.Listings(),
		Timestamp: time.Now(),
	}

	for _, p := range c.players {
		dist := math.Hypot(p.X-c.self.Position.X, p.Z-c.self.Position.Z)
		if dist >= c.tune.PlayerPerceptionRadius {
			continue
		}
		obs.Entities = append(obs.Entities, Entity{
			ID:            p.ID,
			Name:          p.Name,
			Position:      protocol.Vec3{X: p.X, Y: p.Y, Z: p.Z},
			Rotation:      p.Rotation,
			Distance:      dist,
			IsAgent:       p.IsAgent,
			WalletAddress: p.WalletAddress,
			Guest:         p.WalletAddress == "",
			Owner:         ownerWallet != "" && strings.EqualFold(p.WalletAddress, ownerWallet),
		})
	}

	for _, o := range c.objects {
		dist := math.Hypot(o.X-c.self.Position.X, o.Z-c.self.Position.Z)
		if dist >= c.tune.ObjectPerceptionRadius {
			continue
		}
		radius := o.Radius
		if radius == 0 {
			radius = 1.0
		}
		kind := o.Kind
		if kind == "" {
			kind = "unknown"
		}
		obs.Obstacles = append(obs.Obstacles, Obstacle{
			ID:          o.ID,
			Position:    protocol.Vec3{X: o.X, Y: o.Y, Z: o.Z},
			Radius:      radius,
			Rotation:    o.Rotation,
			Kind:        kind,
			Color:       o.Color,
			Description: o.Description,
			Distance:    dist,
		})
	}

	return obs
}

// Neighbors lists remote players with distances, for the proximity voice
// check.
func (c *Cache) Neighbors() []Neighbor {
	out := make([]Neighbor, 0, len(c.players))
	for id, p := range c.players {
		out = append(out, Neighbor{
			ID:       id,
			Position: protocol.Vec3{X: p.X, Y: p.Y, Z: p.Z},
			Distance: dist3(c.self.Position, protocol.Vec3{X: p.X, Y: p.Y, Z: p.Z}),
		})
	}
	return out
}

// Neighbor is a remote entity with its current distance from us.
type Neighbor struct {
	ID       string
	Position protocol.Vec3
	Distance float64
}

func dist3(a, b protocol.Vec3) float64 {
	dx, dy, dz := b.X-a.X, b.Y-a.Y, b.Z-a.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
