package agent

import "antigravity.world/internal/protocol"

// SeedObjects returns the default scenery placed into a fresh room. IDs are
// stable so repeated seeding is idempotent at the relay.
func SeedObjects() []protocol.WorldObject {
	return []protocol.WorldObject{
		{
			ID:          "girl-dancing-1",
			X:           2,
			Z:           -7,
			Radius:      1.0,
			Rotation:    -0.78,
			Description: "A girl dancing (Belly Dance)",
		},
		{
			ID:          "girl-dancing-2",
			X:           -2.4,
			Z:           -8,
			Radius:      1.0,
			Rotation:    0.78,
			Description: "A girl dancing in a suit",
		},
		{
			ID:          "car-1",
			X:           0,
			Z:           -10,
			Radius:      2.5,
			Rotation:    6.0,
			Description: "A yellow sports car",
		},
		{
			ID:          "car-2",
			X:           6,
			Z:           -10,
			Radius:      2.5,
			Rotation:    6.0,
			Description: "A red sports car",
		},
		{
			ID:          "low-poly-ground-speaker",
			X:           2,
			Z:           -10,
			Radius:      1.0,
			Rotation:    -0.5,
			Description: "Ground speakers playing music",
		},
	}
}
