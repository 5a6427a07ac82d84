package world

import (
	"encoding/json"
	"fmt"
	"testing"

	"antigravity.world/internal/protocol"
	"antigravity.world/internal/tuning"
)

func newTestCache() *Cache {
	c := NewCache(tuning.Defaults())
	c.SetSelfID("self")
	return c
}

func apply(t *testing.T, c *Cache, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	c.Apply(b)
}

func update(t *testing.T, c *Cache, id string, data any) {
	t.Helper()
	b, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	apply(t, c, protocol.PlayerUpdateMsg{Type: protocol.TypePlayerUpdate, ID: id, Data: b})
}

func TestPartialUpdateMergesShallow(t *testing.T) {
	c := newTestCache()

	update(t, c, "p1", map[string]any{
		"x": 5.0, "z": -3.0, "name": "Ava", "isAgent": true, "color": "#ff0000",
	})
	update(t, c, "p1", map[string]any{"x": 6.5})

	p, ok := c.Player("p1")
	if !ok {
		t.Fatal("player not tracked")
	}
	if p.X != 6.5 || p.Z != -3.0 {
		t.Fatalf("position = (%v, %v), want (6.5, -3)", p.X, p.Z)
	}
	if p.Name != "Ava" || !p.IsAgent || p.Color != "#ff0000" {
		t.Fatalf("partial update dropped fields: %+v", p)
	}
}

func TestSelfUpdatesIgnored(t *testing.T) {
	c := newTestCache()
	update(t, c, "self", map[string]any{"x": 1.0})
	if c.PlayerCount() != 0 {
		t.Fatal("cache mirrored our own echo")
	}
}

func TestPlayerLeaveRemovesRecord(t *testing.T) {
	c := newTestCache()
	update(t, c, "p1", map[string]any{"x": 1.0})
	apply(t, c, protocol.PlayerLeaveMsg{Type: protocol.TypePlayerLeave, ID: "p1"})
	if _, ok := c.Player("p1"); ok {
		t.Fatal("player still present after leave")
	}
}

func TestChatOverhearRadius(t *testing.T) {
	c := newTestCache()
	update(t, c, "near", map[string]any{"x": 5.0, "z": 0.0})
	update(t, c, "far", map[string]any{"x": 100.0, "z": 100.0})

	apply(t, c, protocol.ChatMsg{Type: protocol.TypeChatMessage, ID: "m1", SenderID: "near", Text: "hi"})
	apply(t, c, protocol.ChatMsg{Type: protocol.TypeChatMessage, ID: "m2", SenderID: "far", Text: "too far"})
	// Directed at us: always delivered regardless of distance.
	apply(t, c, protocol.ChatMsg{Type: protocol.TypeChatMessage, ID: "m3", SenderID: "far", Text: "psst", TargetID: "self"})
	// Directed at someone else: never kept.
	apply(t, c, protocol.ChatMsg{Type: protocol.TypeChatMessage, ID: "m4", SenderID: "near", Text: "not for you", TargetID: "other"})

	chat := c.RecentChat(0)
	if len(chat) != 2 {
		t.Fatalf("chat entries = %d, want 2 (%+v)", len(chat), chat)
	}
	if chat[0].ID != "m1" || chat[1].ID != "m3" {
		t.Fatalf("kept wrong messages: %q %q", chat[0].ID, chat[1].ID)
	}
}

func TestChatUpdatesSenderBubble(t *testing.T) {
	c := newTestCache()
	update(t, c, "p1", map[string]any{"x": 1.0, "name": "Ava"})
	apply(t, c, protocol.ChatMsg{Type: protocol.TypeChatMessage, ID: "m1", SenderID: "p1", Text: "yo", Timestamp: 42})

	p, _ := c.Player("p1")
	if p.LastChatMessage != "yo" || p.LastMessageAt != 42 {
		t.Fatalf("bubble not updated: %+v", p)
	}
	last, _ := c.LastChat()
	if last.SenderName != "Ava" {
		t.Fatalf("sender name = %q, want filled from mirror", last.SenderName)
	}
}

func TestChatLogBounded(t *testing.T) {
	c := newTestCache()
	limit := tuning.Defaults().ChatLogLimit
	update(t, c, "p1", map[string]any{"x": 0.0, "z": 0.0})

	for i := 0; i < limit+10; i++ {
		apply(t, c, protocol.ChatMsg{
			Type: protocol.TypeChatMessage, ID: fmt.Sprintf("m%d", i), SenderID: "p1", Text: "x",
		})
	}
	chat := c.RecentChat(0)
	if len(chat) != limit {
		t.Fatalf("chat length = %d, want bound %d", len(chat), limit)
	}
	if chat[0].ID != fmt.Sprintf("m%d", 10) {
		t.Fatalf("oldest kept = %q, want m10 (FIFO eviction)", chat[0].ID)
	}
}

func TestMarketMirrorFollowsRelay(t *testing.T) {
	c := newTestCache()
	l1 := protocol.Listing{ID: "l1", Seller: "a", Active: true}
	l2 := protocol.Listing{ID: "l2", Seller: "b", Active: true}

	apply(t, c, protocol.MarketSyncMsg{Type: protocol.TypeMarketSync, Listings: []protocol.Listing{l1}})
	apply(t, c, protocol.MarketListMsg{Type: protocol.TypeMarketList, Listing: l2})
	// Replayed list for a known id is deduplicated.
	apply(t, c, protocol.MarketListMsg{Type: protocol.TypeMarketList, Listing: l2})
	if got := len(c.Listings()); got != 2 {
		t.Fatalf("listings = %d, want 2", got)
	}

	apply(t, c, protocol.MarketBuyMsg{Type: protocol.TypeMarketBuy, ListingID: "l1", BuyerID: "c"})
	apply(t, c, protocol.MarketCancelMsg{Type: protocol.TypeMarketCancel, ListingID: "l2"})
	if got := len(c.Listings()); got != 0 {
		t.Fatalf("listings = %d, want 0 after buy and cancel", got)
	}
}

func TestObjectSyncReplacesMirror(t *testing.T) {
	c := newTestCache()
	apply(t, c, protocol.ObjectPlaceMsg{Type: protocol.TypeObjectPlace, Object: protocol.WorldObject{ID: "stale"}})
	apply(t, c, protocol.ObjectSyncMsg{Type: protocol.TypeObjectSync, Objects: []protocol.WorldObject{{ID: "car-1", X: 1}}})

	if _, ok := c.Object("stale"); ok {
		t.Fatal("sync did not replace the mirror")
	}
	if _, ok := c.Object("car-1"); !ok {
		t.Fatal("synced object missing")
	}

	apply(t, c, protocol.ObjectRemoveMsg{Type: protocol.TypeObjectRemove, ID: "car-1"})
	if _, ok := c.Object("car-1"); ok {
		t.Fatal("object still present after remove")
	}
}

func TestMalformedEnvelopesIgnored(t *testing.T) {
	c := newTestCache()
	c.Apply([]byte("{broken"))
	c.Apply([]byte(`{"type":"player-update","id":"p1","data":"not an object"}`))
	c.Apply([]byte(`{"type":"some-future-thing"}`))
	if c.PlayerCount() != 0 {
		t.Fatal("malformed input mutated the mirror")
	}
}

func TestObserveFiltersByRadius(t *testing.T) {
	c := newTestCache()
	c.SetSelf(protocol.Vec3{}, 0, protocol.Vec3{})

	update(t, c, "near", map[string]any{"x": 10.0, "name": "Near", "walletAddress": "0xOwner"})
	update(t, c, "edge", map[string]any{"x": 49.0})
	update(t, c, "far", map[string]any{"x": 80.0})
	apply(t, c, protocol.ObjectPlaceMsg{Type: protocol.TypeObjectPlace, Object: protocol.WorldObject{ID: "close-obj", X: 5}})
	apply(t, c, protocol.ObjectPlaceMsg{Type: protocol.TypeObjectPlace, Object: protocol.WorldObject{ID: "far-obj", X: 30}})

	obs := c.Observe("0xowner")
	if len(obs.Entities) != 2 {
		t.Fatalf("entities = %d, want 2 (players beyond 50 excluded)", len(obs.Entities))
	}
	for _, e := range obs.Entities {
		if e.ID == "near" && !e.Owner {
			t.Fatal("owner wallet not matched case-insensitively")
		}
		if e.ID == "edge" && e.Owner {
			t.Fatal("stranger marked as owner")
		}
	}
	if len(obs.Obstacles) != 1 || obs.Obstacles[0].ID != "close-obj" {
		t.Fatalf("obstacles = %+v, want only close-obj (radius 20)", obs.Obstacles)
	}
}

func TestNeighborsCarryDistance(t *testing.T) {
	c := newTestCache()
	c.SetSelf(protocol.Vec3{}, 0, protocol.Vec3{})
	update(t, c, "p1", map[string]any{"x": 3.0, "y": 0.0, "z": 4.0})

	ns := c.Neighbors()
	if len(ns) != 1 {
		t.Fatalf("neighbors = %d, want 1", len(ns))
	}
	if ns[0].Distance != 5.0 {
		t.Fatalf("distance = %v, want 5", ns[0].Distance)
	}
}
