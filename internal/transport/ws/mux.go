package ws

import (
	"log"
	"net/http"
	"strings"
	"sync"

	"antigravity.world/internal/relay"
)

// RoomFactory builds the relay room (and its sinks) for a room name.
type RoomFactory func(name string) (*relay.Room, error)

// Mux routes /room/<name>/ws to per-room servers, creating rooms on first
// use. Room loops run until Close.
type Mux struct {
	log     *log.Logger
	factory RoomFactory

	mu    sync.Mutex
	rooms map[string]*roomEntry
}

type roomEntry struct {
	server *Server
	done   chan struct{}
}

func NewMux(factory RoomFactory, logger *log.Logger) *Mux {
	return &Mux{
		log:     logger,
		factory: factory,
		rooms:   make(map[string]*roomEntry),
	}
}

func (m *Mux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name, ok := roomName(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	entry, err := m.room(name)
	if err != nil {
		m.log.Printf("room %q: %v", name, err)
		http.Error(w, "room unavailable", http.StatusInternalServerError)
		return
	}
	entry.server.Handler()(w, r)
}

func (m *Mux) room(name string) (*roomEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.rooms[name]; ok {
		return e, nil
	}
	room, err := m.factory(name)
	if err != nil {
		return nil, err
	}
	e := &roomEntry{
		server: NewServer(room, m.log),
		done:   make(chan struct{}),
	}
	go room.Run(e.done)
	m.rooms[name] = e
	m.log.Printf("room %q created", name)
	return e, nil
}

// Close stops every room loop.
func (m *Mux) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, e := range m.rooms {
		close(e.done)
		delete(m.rooms, name)
	}
}

// roomName parses /room/<name>/ws. Names with slashes or empty names are
// rejected.
func roomName(path string) (string, bool) {
	rest, ok := strings.CutPrefix(path, "/room/")
	if !ok {
		return "", false
	}
	name, ok := strings.CutSuffix(rest, "/ws")
	if !ok || name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}
