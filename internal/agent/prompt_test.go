package agent

import (
	"strings"
	"testing"

	"antigravity.world/internal/protocol"
	"antigravity.world/internal/world"
)

func testPersona() Persona {
	return Persona{
		Name:        "Scout",
		Purpose:     "greet visitors",
		OwnerWallet: "0xowner",
		Behaviour:   "Friendly",
	}
}

func TestSystemPromptCarriesPersona(t *testing.T) {
	p := SystemPrompt(testPersona())
	for _, want := range []string{"Scout", "greet visitors", "0xowner", "Friendly", "MOVE x z", "memory_update"} {
		if !strings.Contains(p, want) {
			t.Fatalf("system prompt missing %q", want)
		}
	}
}

func TestUserPromptMarksOwnerAndDirectMessages(t *testing.T) {
	obs := world.Observation{
		Entities: []world.Entity{
			{ID: "p1", Name: "Ava", Distance: 3, WalletAddress: "0xowner", Owner: true},
			{ID: "p2", Name: "Bo", Distance: 8},
		},
		Chat: []protocol.ChatMsg{
			{SenderID: "p1", SenderName: "Ava", Text: "come here"},
			{SenderID: "p2", SenderName: "Bo", Text: "for you only", TargetID: "self"},
		},
	}
	prompt := UserPrompt(testPersona(), TurnState{SelfID: "self", Observation: obs})

	if !strings.Contains(prompt, "[OWNER] [Ava]: come here") {
		t.Fatalf("owner marker missing:\n%s", prompt)
	}
	if !strings.Contains(prompt, "[DIRECT MESSAGE] [Bo]: for you only") {
		t.Fatalf("DM marker missing:\n%s", prompt)
	}
	if !strings.Contains(prompt, "YOUR OWNER") {
		t.Fatal("owner role missing from entity list")
	}
}

func TestUserPromptFollowLockHint(t *testing.T) {
	prompt := UserPrompt(testPersona(), TurnState{
		SelfID:       "self",
		FollowTarget: "p1",
		FollowKnown:  true,
	})
	if !strings.Contains(prompt, "FOLLOWING (p1)") {
		t.Fatal("follow lock hint missing")
	}
	if !strings.Contains(prompt, "Do NOT issue MOVE commands") {
		t.Fatal("move suppression hint missing")
	}

	lost := UserPrompt(testPersona(), TurnState{SelfID: "self", FollowTarget: "p1"})
	if !strings.Contains(lost, "Target lost") {
		t.Fatal("lost-target status missing")
	}
}

func TestUserPromptOwnerDistanceHints(t *testing.T) {
	far := world.Observation{Entities: []world.Entity{{ID: "p1", Distance: 12, Owner: true}}}
	prompt := UserPrompt(testPersona(), TurnState{SelfID: "self", Observation: far})
	if !strings.Contains(prompt, "OWNER IS TOO FAR") {
		t.Fatal("far-owner hint missing")
	}

	near := world.Observation{Entities: []world.Entity{{ID: "p1", Distance: 2, Owner: true}}}
	prompt = UserPrompt(testPersona(), TurnState{SelfID: "self", Observation: near})
	if !strings.Contains(prompt, "close to your owner") {
		t.Fatal("near-owner hint missing")
	}
}

func TestUserPromptExploreHintWhenAlone(t *testing.T) {
	prompt := UserPrompt(testPersona(), TurnState{SelfID: "self"})
	if !strings.Contains(prompt, "Nothing is happening nearby") {
		t.Fatal("explore hint missing when no entities are around")
	}
	if !strings.Contains(prompt, "No items for sale.") {
		t.Fatal("empty market line missing")
	}
}

func TestUserPromptOnlyLastFiveChatLines(t *testing.T) {
	var chat []protocol.ChatMsg
	for _, txt := range []string{"one", "two", "three", "four", "five", "six", "seven"} {
		chat = append(chat, protocol.ChatMsg{SenderID: "p1", SenderName: "Ava", Text: txt})
	}
	prompt := UserPrompt(testPersona(), TurnState{SelfID: "self", Observation: world.Observation{Chat: chat}})

	if strings.Contains(prompt, "[Ava]: two") {
		t.Fatal("chat log not truncated to the last five lines")
	}
	if !strings.Contains(prompt, "[Ava]: seven") {
		t.Fatal("newest chat line missing")
	}
}
