package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"antigravity.world/internal/fleet"
)

func main() {
	var (
		addr     = flag.String("addr", ":3000", "http listen address")
		agentBin = flag.String("agent_bin", "./agent", "path to the agent binary")
		host     = flag.String("host", "", "relay host passed to agents (default: RELAY_HOST)")
		room     = flag.String("room", "", "room name passed to agents (default: RELAY_ROOM)")
	)
	flag.Parse()

	_ = godotenv.Load()

	logger := log.New(os.Stdout, "[fleet] ", log.LstdFlags|log.Lmicroseconds)

	relayHost := *host
	if relayHost == "" {
		relayHost = os.Getenv("RELAY_HOST")
	}
	relayRoom := *room
	if relayRoom == "" {
		relayRoom = os.Getenv("RELAY_ROOM")
	}

	launcher := fleet.NewLauncher(fleet.ExecSpawn(*agentBin, relayHost, relayRoom), logger)
	srv := &http.Server{
		Addr:              *addr,
		Handler:           fleet.NewServer(launcher, logger).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Printf("fleet manager running on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Printf("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	launcher.StopAll()
}
