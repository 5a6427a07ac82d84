package agent

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"antigravity.world/internal/world"
)

// Persona is the static prompt material for one agent.
type Persona struct {
	Name        string
	Purpose     string
	OwnerWallet string
	Behaviour   string

	// Optional skill documents folded into the system prompt.
	ObservationSkill string
	InteractionSkill string
}

// SystemPrompt renders the static instruction block for a persona.
func SystemPrompt(p Persona) string {
	owner := p.OwnerWallet
	if owner == "" {
		owner = "UNKNOWN"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You are an AI agent named %q in a 3D metaverse.\n", p.Name)
	b.WriteString("You observe the world, think about what to do, and then act.\n\n")
	if p.ObservationSkill != "" {
		b.WriteString(p.ObservationSkill)
		b.WriteString("\n\n")
	}
	if p.InteractionSkill != "" {
		b.WriteString(p.InteractionSkill)
		b.WriteString("\n\n")
	}
	b.WriteString(`Available Actions (execute exactly one per turn):
- MOVE: "MOVE x z" (e.g. "MOVE 5 -5") - move to absolute coordinates. Range is roughly -100 to 100 for both X and Z.
- FOLLOW: "FOLLOW id" (e.g. "FOLLOW player-123" or "FOLLOW car-1") - continuously follow a player OR object. Use this when asked to "follow me" or "follow the [object]".
- STOP: "STOP" - stop moving or following.
- SAY: "SAY message" - chat with nearby players.
- WAIT: "WAIT" - stay still for a moment.

BEHAVIOR GUIDELINES:
`)
	fmt.Fprintf(&b, "1. Your GOAL is: %s\n", p.Purpose)
	fmt.Fprintf(&b, "2. Your OWNER has wallet address: %s\n", owner)
	fmt.Fprintf(&b, "3. Your DEFAULT BEHAVIOUR towards others is: %q\n", p.Behaviour)
	b.WriteString(`
4. INTERACTION PROTOCOL:
   - PRIORITY 1, DIRECT INTERACTION: if you receive a [DIRECT MESSAGE] or are addressed by name, you MUST reply. Do not just MOVE or WAIT without speaking. Set "action" to "WAIT" (or FOLLOW if asked) and put your response in "message".
   - IF OWNER IS SPEAKING OR PRESENT: obey your owner completely while keeping your behaviour trait. The owner's commands come before everything else.
   - IF OTHERS ARE SPEAKING (and the owner is not involved): act according to your behaviour trait. Do NOT obey strangers when it conflicts with your behaviour or your owner's interests.

5. LOYALTY PROTOCOL (when the owner is present):
   - Prioritize your owner. Stay near them (3-5 meters) unless they tell you to stay away, move elsewhere, or wait.
   - If strangers approach, stand between them and your owner.

6. RELATIVE MOVEMENT: if asked to "move N meters away" or "go back N", take your current (x, z), compute an absolute target that far from your spot, and issue "MOVE x z" with the new coordinates.

7. MEMORY AND GOSSIP:
   - You have a long-term MEMORY. Use it to store important facts about people, places, or events.
   - If you are idle and see another BOT, you can gossip: share something from your memory or ask for news.
   - Save new information with the "memory_update" field.

Respond with a JSON object:
{
  "action": "the action command, e.g. 'MOVE 5 5', 'FOLLOW abc-123', 'WAIT', 'STOP'",
  "message": "a short message to speak to nearby players (or null to stay silent)",
  "memory_update": "text to append to your memory file (optional)"
}

IMPORTANT: respond with ONLY the JSON object. No explanation, filler, or markdown outside the JSON. Anything you want to say goes in the "message" field.

Example correct response:
{ "action": "MOVE 10 -20", "message": "I will stand over there for a bit." }
`)
	return b.String()
}

// TurnState is the per-turn dynamic context for the user prompt.
type TurnState struct {
	SelfID       string
	Observation  world.Observation
	FollowTarget string // empty when not following
	FollowKnown  bool   // follow target currently resolvable
	LastAction   string
	Memory       string
}

type promptEntity struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Kind     string    `json:"type"`
	Position promptVec `json:"position"`
	Rot      string    `json:"rot"`
	Distance string    `json:"distance"`
	Role     string    `json:"role"`
}

type promptObstacle struct {
	ID          string    `json:"id"`
	Kind        string    `json:"type"`
	Color       string    `json:"color,omitempty"`
	Position    promptVec `json:"position"`
	Rotation    float64   `json:"rotation"`
	Radius      float64   `json:"radius"`
	Description string    `json:"description,omitempty"`
	Distance    float64   `json:"distance"`
}

type promptVec struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

// UserPrompt renders one observation into the per-turn prompt, including the
// contextual hints that steer spatial reasoning.
func UserPrompt(p Persona, st TurnState) string {
	obs := st.Observation

	ownerDistance := -1.0
	var ownerPos promptVec
	entities := make([]promptEntity, 0, len(obs.Entities))
	for _, e := range obs.Entities {
		kind := "HUMAN (Guest)"
		if e.IsAgent {
			kind = "BOT"
		} else if e.WalletAddress != "" {
			kind = fmt.Sprintf("HUMAN (Wallet: %s...)", clip(e.WalletAddress, 6))
		}
		role := "Stranger"
		if e.Owner {
			role = "YOUR OWNER"
			ownerDistance = e.Distance
			ownerPos = promptVec{X: e.Position.X, Z: e.Position.Z}
		}
		name := e.Name
		if name == "" {
			name = "Unknown"
		}
		entities = append(entities, promptEntity{
			ID:       e.ID,
			Name:     name,
			Kind:     kind,
			Position: promptVec{X: e.Position.X, Z: e.Position.Z},
			Rot:      fmt.Sprintf("%.2f", e.Rotation),
			Distance: fmt.Sprintf("%.1fm", e.Distance),
			Role:     role,
		})
	}

	obstacles := make([]promptObstacle, 0, len(obs.Obstacles))
	for _, o := range obs.Obstacles {
		obstacles = append(obstacles, promptObstacle{
			ID:          o.ID,
			Kind:        o.Kind,
			Color:       o.Color,
			Position:    promptVec{X: o.Position.X, Z: o.Position.Z},
			Rotation:    round2(o.Rotation),
			Radius:      o.Radius,
			Description: o.Description,
			Distance:    round1(o.Distance),
		})
	}

	var chatLines []string
	chat := obs.Chat
	if len(chat) > 5 {
		chat = chat[len(chat)-5:]
	}
	for _, msg := range chat {
		var prefix string
		if msg.TargetID == st.SelfID {
			prefix += "[DIRECT MESSAGE] "
		}
		if senderIsOwner(obs, msg.SenderID) {
			prefix += "[OWNER] "
		}
		name := msg.SenderName
		if name == "" {
			if msg.SenderID == st.SelfID {
				name = p.Name
			} else {
				name = "Unknown"
			}
		}
		chatLines = append(chatLines, fmt.Sprintf("%s[%s]: %s", prefix, name, msg.Text))
	}

	followStatus := "None"
	if st.FollowTarget != "" {
		if st.FollowKnown {
			followStatus = fmt.Sprintf("Following %s", st.FollowTarget)
		} else {
			followStatus = "Target lost"
		}
	}

	var b strings.Builder
	b.WriteString("Current State:\n")
	fmt.Fprintf(&b, "- Position: %s\n", mustJSON(promptVec{X: obs.Self.Position.X, Z: obs.Self.Position.Z}))
	fmt.Fprintf(&b, "- Follow Status: %s\n", followStatus)
	fmt.Fprintf(&b, "- Nearby Entities: %s\n", jsonOrNone(entities, len(entities) > 0))
	fmt.Fprintf(&b, "- Nearby Obstacles: %s\n", jsonOrNone(obstacles, len(obstacles) > 0))
	b.WriteString("- Chat Log (last 5 messages):\n")
	if len(chatLines) > 0 {
		b.WriteString(strings.Join(chatLines, "\n"))
	}
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "- Market Listings (%d items):\n", len(obs.Listings))
	if len(obs.Listings) == 0 {
		b.WriteString("No items for sale.\n")
	} else {
		for _, l := range obs.Listings {
			name := l.Item.Name
			if name == "" {
				name = "Item"
			}
			fmt.Fprintf(&b, "- [%s] %s (Price: %s ROOT) by %s\n", l.ID, name, l.Price, l.Seller)
		}
	}

	last := st.LastAction
	if last == "" {
		last = "None"
	}
	fmt.Fprintf(&b, "\n- Last Action: %s\n", last)
	fmt.Fprintf(&b, "\n- CURRENT MEMORY:\n%s\n", st.Memory)

	b.WriteString(`
CONTEXTUAL HINTS:
- CONVERSATIONAL POSITIONING: when you reply to a player, MOVE to stand in front of them (face to face). Formula: target X = player X + sin(player rot) * 1.5, target Z = player Z + cos(player rot) * 1.5. Use 'MOVE x z' with these coordinates.
- FOLLOWING: if asked to "follow me", use 'FOLLOW <speakerId>'. If asked to "follow the [object]", use 'FOLLOW <objectId>'.
- SPATIAL COMMANDS: if asked to "go to the [object]" or "stand in front of the [object]", look at Nearby Obstacles. To stand in front of an object at (x, z) with rotation theta: dx = sin(theta) * (radius + 2), dz = cos(theta) * (radius + 2), target = (x + dx, z + dz). If "behind", subtract the offset instead.
- AMBIGUITY CHECK: if the user names a generic object (e.g. "the car") and you see several, pick the closest, move to it, then SAY "Is this the [object] you meant?"
`)

	if p.OwnerWallet != "" && ownerDistance > 5 && st.FollowTarget == "" {
		fmt.Fprintf(&b, "WARNING: OWNER IS TOO FAR (%.1fm)! You should MOVE towards them at %s or use FOLLOW.\n", ownerDistance, mustJSON(ownerPos))
	}
	if p.OwnerWallet != "" && ownerDistance >= 0 && ownerDistance <= 5 {
		b.WriteString("You are close to your owner. You can WAIT or make small adjustments to stay by their side.\n")
	}
	if len(obs.Entities) == 0 && st.FollowTarget == "" {
		b.WriteString("Nothing is happening nearby. You should MOVE to a random location (e.g. MOVE 10 -10) to explore and find people!\n")
	}
	if st.FollowTarget != "" {
		fmt.Fprintf(&b, "STATUS: FOLLOWING (%s). Movement is AUTOMATIC. Do NOT issue MOVE commands. Only use SAY (to talk) or STOP (to quit following).\n", st.FollowTarget)
	}

	b.WriteString("\nWhat do you do?\n")
	return b.String()
}

func senderIsOwner(obs world.Observation, senderID string) bool {
	for _, e := range obs.Entities {
		if e.ID == senderID {
			return e.Owner
		}
	}
	return false
}

func jsonOrNone(v any, nonEmpty bool) string {
	if !nonEmpty {
		return "None"
	}
	return mustJSON(v)
}

func mustJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "null"
	}
	return string(b)
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func round1(f float64) float64 { return math.Round(f*10) / 10 }
func round2(f float64) float64 { return math.Round(f*100) / 100 }
