package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	persistlog "antigravity.world/internal/persistence/log"
	"antigravity.world/internal/persistence/indexdb"
	"antigravity.world/internal/relay"
	"antigravity.world/internal/transport/ws"
)

func main() {
	var (
		addr      = flag.String("addr", ":1999", "http listen address")
		dataDir   = flag.String("data", "./data", "runtime data directory")
		disableDB = flag.Bool("disable_db", false, "disable the sqlite event index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[relay] ", log.LstdFlags|log.Lmicroseconds)

	var (
		closersMu sync.Mutex
		closers   []func() error
	)
	addCloser := func(c func() error) {
		closersMu.Lock()
		closers = append(closers, c)
		closersMu.Unlock()
	}

	mux := ws.NewMux(func(name string) (*relay.Room, error) {
		roomDir := filepath.Join(*dataDir, "rooms", name)
		sinks := []relay.EventSink{}

		events := persistlog.NewEventLogger(roomDir)
		sinks = append(sinks, events)
		addCloser(events.Close)

		if !*disableDB {
			idx, err := indexdb.Open(roomDir)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, idx)
			addCloser(idx.Close)
		}

		roomLogger := log.New(os.Stdout, "[room "+name+"] ", log.LstdFlags|log.Lmicroseconds)
		return relay.NewRoom(roomLogger, sinks...), nil
	}, logger)

	httpMux := http.NewServeMux()
	httpMux.Handle("/room/", mux)
	httpMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              *addr,
		Handler:           httpMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Printf("listening on %s", *addr)
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
	mux.Close()
	closersMu.Lock()
	for _, c := range closers {
		_ = c()
	}
	closersMu.Unlock()
}
