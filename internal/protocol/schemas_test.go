package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"antigravity.world/internal/protocol"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	updateSchema := compile("player-update.schema.json")
	chatSchema := compile("chat-message.schema.json")
	signalSchema := compile("voice-signal.schema.json")
	listSchema := compile("market-list-item.schema.json")
	placeSchema := compile("object-place.schema.json")
	debugSchema := compile("agent-debug-log.schema.json")
	errSchema := compile("error.schema.json")

	var update any
	_ = json.Unmarshal([]byte(`{
	  "type":"player-update",
	  "id":"conn-1",
	  "data":{
	    "x":1.5,"y":0.9,"z":-3.0,"rotation":0.78,"grounded":true,
	    "movement":{"forward":1,"backward":0,"left":0,"right":0,"up":0},
	    "isAgent":true,"name":"Scout"
	  }
	}`), &update)
	validate(updateSchema, update)

	var chat any
	_ = json.Unmarshal([]byte(`{
	  "type":"chat-message",
	  "id":"msg-1",
	  "senderId":"conn-1",
	  "senderName":"Scout",
	  "text":"hello there",
	  "timestamp":1700000000000,
	  "targetId":"conn-2"
	}`), &chat)
	validate(chatSchema, chat)

	var signal any
	_ = json.Unmarshal([]byte(`{
	  "type":"voice-signal",
	  "targetId":"conn-2",
	  "signal":{"sdp":{"type":"offer","sdp":"v=0..."}}
	}`), &signal)
	validate(signalSchema, signal)

	var ice any
	_ = json.Unmarshal([]byte(`{
	  "type":"voice-signal",
	  "senderId":"conn-2",
	  "signal":{"ice":{"candidate":"candidate:1 1 UDP 2122252543 192.0.2.1 54400 typ host","sdpMid":"0","sdpMLineIndex":0}}
	}`), &ice)
	validate(signalSchema, ice)

	var listing any
	_ = json.Unmarshal([]byte(`{
	  "type":"market-list-item",
	  "listing":{
	    "id":"listing-1",
	    "itemId":"item-9",
	    "item":{"id":"item-9","name":"Old Lantern","type":"prop","rarity":"rare"},
	    "seller":"conn-1",
	    "price":"12",
	    "active":true,
	    "location":{"x":2,"y":0,"z":-7}
	  }
	}`), &listing)
	validate(listSchema, listing)

	var place any
	_ = json.Unmarshal([]byte(`{
	  "type":"object-place",
	  "object":{
	    "id":"car-1","x":0,"z":-10,"radius":2.5,"rotation":6.0,
	    "description":"A yellow sports car"
	  }
	}`), &place)
	validate(placeSchema, place)

	var debug any
	_ = json.Unmarshal([]byte(`{
	  "type":"agent-debug-log",
	  "agentId":"agent-7",
	  "socketId":"conn-9",
	  "message":"action: MOVE 5 -5",
	  "timestamp":1700000000000
	}`), &debug)
	validate(debugSchema, debug)

	var rejection any
	_ = json.Unmarshal([]byte(`{"type":"error","reason":"own_listing","ref":"listing-1"}`), &rejection)
	validate(errSchema, rejection)
}

// Encoded envelopes must satisfy their own schemas so what we emit is what
// we document.
func TestSchemas_EncodedMessagesConform(t *testing.T) {
	chatSchema, err := jsonschema.Compile(filepath.Join("..", "..", "schemas", "chat-message.schema.json"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	raw, err := protocol.Encode(protocol.ChatMsg{
		Type:      protocol.TypeChatMessage,
		ID:        "msg-2",
		SenderID:  "conn-3",
		Text:      "anyone around?",
		Timestamp: 1700000000001,
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := chatSchema.Validate(v); err != nil {
		t.Fatalf("validate: %v", err)
	}
}
