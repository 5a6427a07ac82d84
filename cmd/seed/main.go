// Seeds a room with the default scenery objects and exits. Safe to run
// repeatedly: placements are idempotent by object id.
package main

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"antigravity.world/internal/agent"
	"antigravity.world/internal/protocol"
	"antigravity.world/internal/transport/ws"
)

func main() {
	var (
		host = flag.String("host", "127.0.0.1:1999", "relay host")
		room = flag.String("room", "main-room", "room name")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[seed] ", log.LstdFlags|log.Lmicroseconds)

	conn, err := ws.Dial(*host, *room, "seed-"+uuid.NewString())
	if err != nil {
		logger.Fatalf("connect: %v", err)
	}
	defer conn.Close()

	for _, obj := range agent.SeedObjects() {
		logger.Printf("placing %s at (%.1f, %.1f)", obj.ID, obj.X, obj.Z)
		if err := conn.Send(protocol.ObjectPlaceMsg{Type: protocol.TypeObjectPlace, Object: obj}); err != nil {
			logger.Fatalf("place %s: %v", obj.ID, err)
		}
	}

	// Give the write queue a moment to flush before closing.
	time.Sleep(200 * time.Millisecond)
	logger.Printf("done")
}
