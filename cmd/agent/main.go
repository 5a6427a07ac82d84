package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"antigravity.world/internal/agent"
	"antigravity.world/internal/tuning"
)

func main() {
	var (
		host       = flag.String("host", "", "relay host (default: RELAY_HOST or 127.0.0.1:1999)")
		room       = flag.String("room", "", "room name (default: RELAY_ROOM or main-room)")
		name       = flag.String("name", "", "agent display name")
		purpose    = flag.String("purpose", "", "agent goal")
		behaviour  = flag.String("behaviour", "", "agent behaviour trait")
		owner      = flag.String("owner", "", "owner wallet address")
		seed       = flag.Bool("seed", false, "place the default world objects on join")
		model      = flag.String("model", "", "openrouter model (default: "+agent.DefaultModel+")")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		memoryDir  = flag.String("memories", ".agent/memories", "memory journal directory")
		skillsDir  = flag.String("skills", ".agent/skills", "skill document directory")
	)
	flag.Parse()

	_ = godotenv.Load()

	logger := log.New(os.Stdout, "[agent] ", log.LstdFlags|log.Lmicroseconds)

	apiKey := os.Getenv("OPENROUTER_API_KEY")
	if apiKey == "" {
		logger.Fatalf("OPENROUTER_API_KEY is missing in environment")
	}

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		logger.Printf("tuning load failed (%v), using defaults", err)
		tune = tuning.Defaults()
	}

	persona := agent.Persona{
		Name:             envOr(*name, "AGENT_NAME", "AI Agent"),
		Purpose:          envOr(*purpose, "AGENT_PURPOSE", ""),
		Behaviour:        envOr(*behaviour, "AGENT_BEHAVIOUR", "Neutral"),
		OwnerWallet:      strings.ToLower(envOr(*owner, "AGENT_OWNER", "")),
		ObservationSkill: readSkill(*skillsDir, "observation.md", logger),
		InteractionSkill: readSkill(*skillsDir, "interaction.md", logger),
	}
	if persona.Purpose == "" {
		logger.Printf("no purpose specified, defaulting to explorer")
	}

	cfg := agent.Config{
		Host:        envOr(*host, "RELAY_HOST", "127.0.0.1:1999"),
		Room:        envOr(*room, "RELAY_ROOM", "main-room"),
		AgentID:     envOr("", "AGENT_ID", "unknown-id"),
		Persona:     persona,
		MemoryDir:   *memoryDir,
		Seed:        *seed || os.Getenv("AGENT_SEED") == "true",
		Tuning:      tune,
		Provider:    agent.NewOpenRouter(apiKey, *model),
		PeerFactory: nil, // headless: no media stack
		Logger:      logger,
	}

	rt, err := agent.NewRuntime(cfg)
	if err != nil {
		logger.Fatalf("init: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Printf("starting %q against %s room %s", persona.Name, cfg.Host, cfg.Room)
	if err := rt.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatalf("run: %v", err)
	}
}

func envOr(flagVal, envKey, fallback string) string {
	if flagVal != "" {
		return flagVal
	}
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return fallback
}

func readSkill(dir, file string, logger *log.Logger) string {
	b, err := os.ReadFile(filepath.Join(dir, file))
	if err != nil {
		logger.Printf("skill %s not loaded: %v", file, err)
		return ""
	}
	return string(b)
}
