package relay

import (
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"antigravity.world/internal/protocol"
)

// ErrIDInUse is returned to a join whose connection id is already live.
var ErrIDInUse = errors.New("connection id already in use")

// EventSink receives every event the room routes, for the JSONL audit log
// and the optional read-model index. Implementations must not block the
// room loop for long; failures are logged and ignored.
type EventSink interface {
	Append(ev Event) error
}

// Event is one routed room event.
type Event struct {
	At       time.Time       `json:"at"`
	Type     string          `json:"type"`
	SenderID string          `json:"sender_id,omitempty"`
	Raw      json.RawMessage `json:"raw,omitempty"`
}

type client struct {
	id  string
	out chan []byte

	// last wallet address seen in a player-update from this connection,
	// used for the own-listing check.
	wallet string
}

// JoinRequest registers a new connection with the room. Out is the
// connection's ordered send queue; the room never writes to the socket
// directly. Resp, when non-nil, receives the join outcome.
type JoinRequest struct {
	ID   string
	Out  chan []byte
	Resp chan<- error
}

type inbound struct {
	senderID string
	raw      []byte
}

// Room is the authoritative single-threaded state of one broadcast domain.
// All mutation happens on the Run goroutine; transports talk to it through
// the Join/Leave/Inbox channels only.
type Room struct {
	log   *log.Logger
	sinks []EventSink
	start time.Time

	clients  map[string]*client
	listings []listingEntry
	objects  map[string]protocol.WorldObject

	join  chan JoinRequest
	leave chan string
	inbox chan inbound
}

type listingEntry struct {
	listing    protocol.Listing
	sellerConn string
}

func NewRoom(logger *log.Logger, sinks ...EventSink) *Room {
	return &Room{
		log:     logger,
		sinks:   sinks,
		start:   time.Now(),
		clients: make(map[string]*client),
		objects: make(map[string]protocol.WorldObject),
		join:    make(chan JoinRequest),
		leave:   make(chan string),
		inbox:   make(chan inbound, 256),
	}
}

func (r *Room) Join() chan<- JoinRequest { return r.join }
func (r *Room) Leave() chan<- string     { return r.leave }

// Deliver hands a raw inbound message to the room loop.
func (r *Room) Deliver(senderID string, raw []byte) {
	r.inbox <- inbound{senderID: senderID, raw: raw}
}

// Run processes joins, leaves and messages one at a time until done is
// closed. One message is fully applied (state mutated, then broadcast)
// before the next is taken, so a connection joining between two messages
// always receives a sync at least as new as any completed mutation.
func (r *Room) Run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case req := <-r.join:
			r.handleJoin(req)
		case id := <-r.leave:
			r.handleLeave(id)
		case in := <-r.inbox:
			r.dispatch(in.senderID, in.raw)
		}
	}
}

func (r *Room) handleJoin(req JoinRequest) {
	if _, dup := r.clients[req.ID]; dup {
		if req.Resp != nil {
			req.Resp <- ErrIDInUse
		}
		return
	}
	r.clients[req.ID] = &client{id: req.ID, out: req.Out}
	if req.Resp != nil {
		req.Resp <- nil
	}
	r.log.Printf("connected: id=%s clients=%d", req.ID, len(r.clients))

	// Initial-state seed, delivered once, before the join announcement.
	r.sendTo(req.ID, protocol.SyncMusicMsg{
		Type:    protocol.TypeSyncMusic,
		Elapsed: time.Since(r.start).Milliseconds(),
	})
	r.sendTo(req.ID, protocol.MarketSyncMsg{
		Type:     protocol.TypeMarketSync,
		Listings: r.activeListings(),
	})
	r.sendTo(req.ID, protocol.ObjectSyncMsg{
		Type:    protocol.TypeObjectSync,
		Objects: r.objectList(),
	})

	r.broadcast(req.ID, protocol.PlayerJoinMsg{Type: protocol.TypePlayerJoin, ID: req.ID})
	r.record(protocol.TypePlayerJoin, req.ID, nil)
}

func (r *Room) handleLeave(id string) {
	if _, ok := r.clients[id]; !ok {
		return
	}
	delete(r.clients, id)
	r.log.Printf("disconnected: id=%s clients=%d", id, len(r.clients))
	r.broadcast(id, protocol.PlayerLeaveMsg{Type: protocol.TypePlayerLeave, ID: id})
	r.record(protocol.TypePlayerLeave, id, nil)
}

// dispatch routes one inbound envelope. A malformed message from one sender
// must never affect the others, so decode failures are dropped here and a
// panic in a handler is contained to this message.
func (r *Room) dispatch(senderID string, raw []byte) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Printf("dispatch panic from %s: %v", senderID, p)
		}
	}()

	base, err := protocol.DecodeBase(raw)
	if err != nil {
		return
	}

	switch base.Type {
	case protocol.TypePlayerUpdate:
		r.handlePlayerUpdate(senderID, raw)
	case protocol.TypeChatMessage:
		r.handleChat(senderID, raw)
	case protocol.TypeMarketList:
		r.handleMarketList(senderID, raw)
	case protocol.TypeMarketBuy:
		r.handleMarketBuy(senderID, raw)
	case protocol.TypeMarketCancel:
		r.handleMarketCancel(senderID, raw)
	case protocol.TypeObjectPlace:
		r.handleObjectPlace(senderID, raw)
	case protocol.TypeObjectRemove:
		r.handleObjectRemove(senderID, raw)
	case protocol.TypeVoiceSignal:
		r.handleVoiceSignal(senderID, raw)
	case protocol.TypeVoiceReady:
		r.handleVoiceReady(senderID, raw)
	case protocol.TypeAgentDebugLog:
		r.handleDebugLog(senderID, raw)
	default:
		// Unknown tags are ignored, not an error.
	}
}

func (r *Room) handlePlayerUpdate(senderID string, raw []byte) {
	var msg protocol.PlayerUpdateMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	msg.ID = senderID
	msg.Type = protocol.TypePlayerUpdate

	// Track the sender's wallet address for market ownership checks.
	if c, ok := r.clients[senderID]; ok && len(msg.Data) > 0 {
		var partial struct {
			WalletAddress *string `json:"walletAddress"`
		}
		if err := json.Unmarshal(msg.Data, &partial); err == nil && partial.WalletAddress != nil {
			c.wallet = strings.ToLower(*partial.WalletAddress)
		}
	}

	r.broadcast(senderID, msg)
}

func (r *Room) handleChat(senderID string, raw []byte) {
	var msg protocol.ChatMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	msg.Type = protocol.TypeChatMessage
	msg.SenderID = senderID

	if msg.TargetID != "" {
		// Direct message: unicast, no echo to the sender. Delivery to a
		// vanished target is silently dropped.
		r.sendTo(msg.TargetID, msg)
	} else {
		r.broadcast(senderID, msg)
	}
	r.record(protocol.TypeChatMessage, senderID, raw)
}

func (r *Room) handleMarketList(senderID string, raw []byte) {
	var msg protocol.MarketListMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	if msg.Listing.ID == "" {
		r.reject(senderID, "invalid_listing", "")
		return
	}
	for _, e := range r.listings {
		if e.listing.ID == msg.Listing.ID {
			r.reject(senderID, "duplicate_listing", msg.Listing.ID)
			return
		}
	}
	msg.Type = protocol.TypeMarketList
	msg.Listing.Active = true
	r.listings = append(r.listings, listingEntry{listing: msg.Listing, sellerConn: senderID})

	// Mutate first, then broadcast to everyone including the seller so the
	// seller's own client gets the confirmation.
	r.broadcastAll(msg)
	r.record(protocol.TypeMarketList, senderID, raw)
}

func (r *Room) handleMarketBuy(senderID string, raw []byte) {
	var msg protocol.MarketBuyMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	idx := r.findListing(msg.ListingID)
	if idx < 0 {
		r.reject(senderID, "listing_not_found", msg.ListingID)
		return
	}
	entry := r.listings[idx]
	if r.ownsListing(senderID, entry) {
		r.reject(senderID, "own_listing", msg.ListingID)
		return
	}
	r.listings = append(r.listings[:idx], r.listings[idx+1:]...)

	msg.Type = protocol.TypeMarketBuy
	msg.BuyerID = senderID
	r.broadcastAll(msg)
	r.record(protocol.TypeMarketBuy, senderID, raw)
}

func (r *Room) handleMarketCancel(senderID string, raw []byte) {
	var msg protocol.MarketCancelMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	idx := r.findListing(msg.ListingID)
	if idx < 0 {
		r.reject(senderID, "listing_not_found", msg.ListingID)
		return
	}
	if !r.ownsListing(senderID, r.listings[idx]) {
		r.reject(senderID, "not_seller", msg.ListingID)
		return
	}
	r.listings = append(r.listings[:idx], r.listings[idx+1:]...)

	msg.Type = protocol.TypeMarketCancel
	r.broadcastAll(msg)
	r.record(protocol.TypeMarketCancel, senderID, raw)
}

func (r *Room) handleObjectPlace(senderID string, raw []byte) {
	var msg protocol.ObjectPlaceMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	if msg.Object.ID == "" {
		return
	}
	msg.Type = protocol.TypeObjectPlace
	// Placing an existing id overwrites it; apply is idempotent.
	r.objects[msg.Object.ID] = msg.Object
	r.broadcastAll(msg)
	r.record(protocol.TypeObjectPlace, senderID, raw)
}

func (r *Room) handleObjectRemove(senderID string, raw []byte) {
	var msg protocol.ObjectRemoveMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	// Removing an absent id is a no-op, still broadcast so mirrors converge.
	delete(r.objects, msg.ID)
	msg.Type = protocol.TypeObjectRemove
	r.broadcastAll(msg)
	r.record(protocol.TypeObjectRemove, senderID, raw)
}

func (r *Room) handleVoiceSignal(senderID string, raw []byte) {
	var msg protocol.VoiceSignalMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	if msg.TargetID == "" {
		return
	}
	// Strictly unicast. If the target is gone the signal is dropped with no
	// error to the sender; signaling delivery is unreliable by contract.
	out := protocol.VoiceSignalMsg{
		Type:     protocol.TypeVoiceSignal,
		SenderID: senderID,
		Signal:   msg.Signal,
	}
	r.sendTo(msg.TargetID, out)
}

func (r *Room) handleVoiceReady(senderID string, raw []byte) {
	msg := protocol.VoiceReadyMsg{Type: protocol.TypeVoiceReady, ID: senderID}
	r.broadcast(senderID, msg)
}

func (r *Room) handleDebugLog(senderID string, raw []byte) {
	var msg protocol.AgentDebugLogMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	msg.Type = protocol.TypeAgentDebugLog
	msg.SocketID = senderID
	r.broadcastAll(msg)
	r.record(protocol.TypeAgentDebugLog, senderID, raw)
}

func (r *Room) findListing(id string) int {
	for i, e := range r.listings {
		if e.listing.ID == id {
			return i
		}
	}
	return -1
}

func (r *Room) ownsListing(senderID string, e listingEntry) bool {
	if e.sellerConn == senderID {
		return true
	}
	c, ok := r.clients[senderID]
	return ok && c.wallet != "" && c.wallet == strings.ToLower(e.listing.Seller)
}

func (r *Room) activeListings() []protocol.Listing {
	out := make([]protocol.Listing, 0, len(r.listings))
	for _, e := range r.listings {
		out = append(out, e.listing)
	}
	return out
}

func (r *Room) objectList() []protocol.WorldObject {
	out := make([]protocol.WorldObject, 0, len(r.objects))
	for _, o := range r.objects {
		out = append(out, o)
	}
	return out
}

func (r *Room) reject(senderID, reason, ref string) {
	r.sendTo(senderID, protocol.ErrorMsg{Type: protocol.TypeError, Reason: reason, Ref: ref})
}

// sendTo queues an envelope for one connection. A full queue drops the
// message rather than blocking the room loop; per-connection order is
// preserved for everything that is delivered.
func (r *Room) sendTo(id string, v any) {
	c, ok := r.clients[id]
	if !ok {
		return
	}
	b, err := protocol.Encode(v)
	if err != nil {
		return
	}
	select {
	case c.out <- b:
	default:
		r.log.Printf("send queue full, dropping %T for %s", v, id)
	}
}

// broadcast sends to every connection except the named one.
func (r *Room) broadcast(except string, v any) {
	b, err := protocol.Encode(v)
	if err != nil {
		return
	}
	for id, c := range r.clients {
		if id == except {
			continue
		}
		select {
		case c.out <- b:
		default:
			r.log.Printf("send queue full, dropping broadcast for %s", id)
		}
	}
}

// broadcastAll sends to every connection including the sender.
func (r *Room) broadcastAll(v any) {
	r.broadcast("", v)
}

func (r *Room) record(typ, senderID string, raw []byte) {
	if len(r.sinks) == 0 {
		return
	}
	ev := Event{At: time.Now().UTC(), Type: typ, SenderID: senderID, Raw: raw}
	for _, s := range r.sinks {
		if err := s.Append(ev); err != nil {
			r.log.Printf("event sink: %v", err)
		}
	}
}
