package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"antigravity.world/internal/persistence/memory"
	"antigravity.world/internal/physics"
	"antigravity.world/internal/protocol"
	"antigravity.world/internal/transport/ws"
	"antigravity.world/internal/tuning"
	"antigravity.world/internal/voice"
	"antigravity.world/internal/world"
)

// Config wires one agent runtime.
type Config struct {
	Host string
	Room string

	// AgentID is the fleet-assigned logical id stamped on debug logs. The
	// connection id is minted separately per session.
	AgentID string
	Persona Persona

	MemoryDir string
	Seed      bool

	Tuning   tuning.Tuning
	Provider Provider

	// PeerFactory enables the proximity voice manager. When nil the agent
	// runs without voice, which headless deployments commonly do.
	PeerFactory voice.PeerFactory

	Logger *log.Logger
}

// Runtime is one agent's perceive-decide-act loop. All state is owned by the
// Run goroutine; decision provider calls run async so physics keeps ticking
// while the model thinks.
type Runtime struct {
	cfg  Config
	log  *log.Logger
	tune tuning.Tuning

	connID string
	conn   *ws.Client
	cache  *world.Cache
	integ  *physics.Integrator
	voice  *voice.Manager
	mem    *memory.Store

	lastAction     string
	consecutiveSay int
	deciding       bool
	decisions      chan decisionResult

	rng *rand.Rand
}

type decisionResult struct {
	d   Decision
	err error
}

func NewRuntime(cfg Config) (*Runtime, error) {
	if cfg.Provider == nil {
		return nil, errors.New("agent: decision provider required")
	}
	if cfg.Persona.Name == "" {
		cfg.Persona.Name = "AI Agent"
	}
	if cfg.Persona.Purpose == "" {
		cfg.Persona.Purpose = "explore, greet people, and be interesting."
	}
	if cfg.Persona.Behaviour == "" {
		cfg.Persona.Behaviour = "Neutral"
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	mem, err := memory.Open(cfg.MemoryDir, cfg.Persona.Name)
	if err != nil {
		return nil, fmt.Errorf("agent memory: %w", err)
	}

	return &Runtime{
		cfg:       cfg,
		log:       cfg.Logger,
		tune:      cfg.Tuning,
		cache:     world.NewCache(cfg.Tuning),
		mem:       mem,
		decisions: make(chan decisionResult, 1),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Run connects and drives the loop until the context ends or the connection
// drops.
func (r *Runtime) Run(ctx context.Context) error {
	defer r.mem.Close()

	r.connID = uuid.NewString()
	conn, err := ws.Dial(r.cfg.Host, r.cfg.Room, r.connID)
	if err != nil {
		return fmt.Errorf("agent connect: %w", err)
	}
	r.conn = conn
	defer conn.Close()

	r.cache.SetSelfID(r.connID)
	r.integ = physics.NewIntegrator(r.tune, protocol.Vec3{Y: r.tune.GroundY})
	if r.cfg.PeerFactory != nil {
		r.voice = voice.NewManager(r.connID, r.tune, r.cfg.PeerFactory, r, r.log)
		defer r.voice.Close()
	}

	r.logf("connected id=%s name=%q", r.connID, r.cfg.Persona.Name)
	r.sendState(r.integ.Body())
	if r.cfg.Seed {
		r.seedWorld()
	}

	physTicker := time.NewTicker(time.Duration(r.tune.TickMs) * time.Millisecond)
	defer physTicker.Stop()
	proxTicker := time.NewTicker(time.Duration(r.tune.ProximityCheckMs) * time.Millisecond)
	defer proxTicker.Stop()
	decide := time.NewTimer(time.Duration(r.tune.DecisionIntervalMs) * time.Millisecond)
	defer decide.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-conn.Closed():
			return errors.New("agent: connection closed")
		case raw, ok := <-conn.Inbound():
			if !ok {
				return errors.New("agent: connection closed")
			}
			r.handleMessage(raw)
		case now := <-physTicker.C:
			r.stepPhysics(now)
		case <-proxTicker.C:
			if r.voice != nil {
				r.voice.CheckProximity(voiceNeighbors(r.cache.Neighbors()))
			}
		case <-decide.C:
			r.startDecision(ctx, decide)
		case res := <-r.decisions:
			r.finishDecision(res, decide)
		}
	}
}

func (r *Runtime) handleMessage(raw []byte) {
	base, err := protocol.DecodeBase(raw)
	if err != nil {
		r.log.Printf("bad message: %v", err)
		return
	}
	r.cache.Apply(raw)

	switch base.Type {
	case protocol.TypeVoiceSignal:
		if r.voice == nil {
			return
		}
		var msg protocol.VoiceSignalMsg
		if err := protocol.Decode(raw, &msg); err != nil || msg.SenderID == "" {
			return
		}
		r.voice.HandleSignal(msg.SenderID, msg.Signal)
	case protocol.TypeVoiceReady:
		if r.voice == nil {
			return
		}
		var msg protocol.VoiceReadyMsg
		if err := protocol.Decode(raw, &msg); err != nil || msg.ID == "" {
			return
		}
		dist, known := r.neighborDistance(msg.ID)
		r.voice.HandleReady(msg.ID, dist, known)
	case protocol.TypePlayerLeave:
		if r.voice == nil {
			return
		}
		var msg protocol.PlayerLeaveMsg
		if err := protocol.Decode(raw, &msg); err == nil && msg.ID != "" {
			r.voice.Cleanup(msg.ID)
		}
	}
}

func (r *Runtime) neighborDistance(id string) (float64, bool) {
	for _, n := range r.cache.Neighbors() {
		if n.ID == id {
			return n.Distance, true
		}
	}
	return 0, false
}

func (r *Runtime) stepPhysics(now time.Time) {
	dt := float64(r.tune.TickMs) / 1000.0
	res := r.integ.Step(now, dt, r.cache)
	b := r.integ.Body()
	r.cache.SetSelf(b.Position, b.Rotation, b.Velocity)
	if res.Emit {
		r.sendState(b)
	}
}

func (r *Runtime) sendState(b physics.Body) {
	state := protocol.PlayerState{
		X:        b.Position.X,
		Y:        b.Position.Y,
		Z:        b.Position.Z,
		Rotation: b.Rotation,
		Movement: protocol.Movement{Forward: b.Forward},
		Grounded: b.Grounded,
		IsAgent:  true,
		Name:     r.cfg.Persona.Name,
	}
	data, err := protocol.Encode(state)
	if err != nil {
		r.log.Printf("encode state: %v", err)
		return
	}
	_ = r.conn.Send(protocol.PlayerUpdateMsg{Type: protocol.TypePlayerUpdate, Data: data})
}

// startDecision runs the cheap heuristics on the loop, then hands the
// expensive provider call to a goroutine. At most one call is in flight.
func (r *Runtime) startDecision(ctx context.Context, decide *time.Timer) {
	if r.deciding {
		decide.Reset(time.Duration(r.tune.DecisionIntervalMs) * time.Millisecond)
		return
	}

	// A stop/stay/wait in the latest chat overrides the model outright; the
	// model is too slow to honor an urgent halt.
	if last, ok := r.cache.LastChat(); ok {
		lower := strings.ToLower(last.Text)
		if strings.Contains(lower, "stop") || strings.Contains(lower, "stay") || strings.Contains(lower, "wait") {
			r.logf("heuristic: stop command in chat, overriding provider")
			r.applyAction("STOP")
			decide.Reset(time.Duration(r.tune.DecisionIntervalMs) * time.Millisecond)
			return
		}
	}

	if r.consecutiveSay >= r.tune.ConsecutiveSayCap {
		rx := (r.rng.Float64() - 0.5) * 20
		rz := (r.rng.Float64() - 0.5) * 20
		action := fmt.Sprintf("MOVE %.1f %.1f", rx, rz)
		r.logf("heuristic: too much talking, forcing %s", action)
		r.applyAction(action)
		decide.Reset(time.Duration(r.tune.DecisionIntervalMs) * time.Millisecond)
		return
	}

	followID, _ := r.integ.FollowingID()
	followKnown := false
	if followID != "" {
		_, _, followKnown = physics.Resolve(followID, r.cache)
	}
	req := Request{
		System: SystemPrompt(r.cfg.Persona),
		User: UserPrompt(r.cfg.Persona, TurnState{
			SelfID:       r.connID,
			Observation:  r.cache.Observe(r.cfg.Persona.OwnerWallet),
			FollowTarget: followID,
			FollowKnown:  followKnown,
			LastAction:   r.lastAction,
			Memory:       r.mem.Text(),
		}),
	}

	r.deciding = true
	go func() {
		callCtx, cancel := context.WithTimeout(ctx, time.Duration(r.tune.DecisionTimeoutMs)*time.Millisecond)
		defer cancel()
		start := time.Now()
		d, err := r.cfg.Provider.Decide(callCtx, req)
		if err == nil {
			r.logf("provider responded in %s", time.Since(start).Round(time.Millisecond))
		}
		r.decisions <- decisionResult{d: d, err: err}
	}()
}

func (r *Runtime) finishDecision(res decisionResult, decide *time.Timer) {
	r.deciding = false
	if res.err != nil {
		r.logf("provider error: %v", res.err)
		r.applyAction("WAIT")
		decide.Reset(time.Duration(r.tune.DecisionBackoffMs) * time.Millisecond)
		return
	}

	if res.d.Message != "" {
		r.say(res.d.Message)
		r.consecutiveSay++
	}
	if res.d.MemoryUpdate != "" {
		if err := r.mem.Append(res.d.MemoryUpdate); err != nil {
			r.log.Printf("memory append: %v", err)
		} else {
			r.logf("memory updated: %s", res.d.MemoryUpdate)
		}
	}
	r.applyAction(res.d.Action)
	decide.Reset(time.Duration(r.tune.DecisionIntervalMs) * time.Millisecond)
}

func (r *Runtime) applyAction(action string) {
	if action == "" {
		return
	}
	r.lastAction = action
	r.logf("action: %s", action)

	switch {
	case strings.HasPrefix(action, "MOVE"):
		if id, ok := r.integ.FollowingID(); ok {
			r.logf("ignoring MOVE while following %s, use STOP to break follow", id)
			return
		}
		parts := strings.Fields(action)
		if len(parts) != 3 {
			return
		}
		x, errX := strconv.ParseFloat(parts[1], 64)
		z, errZ := strconv.ParseFloat(parts[2], 64)
		if errX != nil || errZ != nil {
			return
		}
		r.consecutiveSay = 0
		r.integ.SetTarget(x, z)
	case strings.HasPrefix(action, "FOLLOW"):
		parts := strings.Fields(action)
		if len(parts) != 2 {
			return
		}
		r.consecutiveSay = 0
		target := parts[1]
		if ft, _, ok := physics.Resolve(target, r.cache); ok {
			r.integ.Follow(ft)
		} else {
			r.integ.Follow(physics.FollowTarget{Kind: physics.TargetPlayer, ID: target})
		}
		r.logf("following %s", target)
	case strings.HasPrefix(action, "STOP"):
		r.integ.Stop()
	case strings.HasPrefix(action, "SAY"):
		r.consecutiveSay++
		r.say(strings.TrimSpace(strings.TrimPrefix(action, "SAY")))
	default:
		// WAIT: let any active move/follow continue.
	}
}

func (r *Runtime) say(text string) {
	if text == "" || r.conn == nil {
		return
	}
	_ = r.conn.Send(protocol.ChatMsg{
		Type:       protocol.TypeChatMessage,
		ID:         uuid.NewString(),
		SenderID:   r.connID,
		SenderName: r.cfg.Persona.Name,
		Text:       text,
		Timestamp:  time.Now().UnixMilli(),
	})
}

// SendSignal and SendReady implement voice.Signaler over the relay.
func (r *Runtime) SendSignal(targetID string, sig protocol.Signal) {
	_ = r.conn.Send(protocol.VoiceSignalMsg{
		Type:     protocol.TypeVoiceSignal,
		TargetID: targetID,
		Signal:   sig,
	})
}

func (r *Runtime) SendReady() {
	_ = r.conn.Send(protocol.VoiceReadyMsg{Type: protocol.TypeVoiceReady, ID: r.connID})
}

func (r *Runtime) seedWorld() {
	r.logf("seeding world objects")
	for _, obj := range SeedObjects() {
		_ = r.conn.Send(protocol.ObjectPlaceMsg{Type: protocol.TypeObjectPlace, Object: obj})
	}
}

// logf logs locally and mirrors the line to the room as an agent-debug-log
// so dashboards can stream it.
func (r *Runtime) logf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.log.Printf("%s", msg)
	if r.conn == nil {
		return
	}
	_ = r.conn.Send(protocol.AgentDebugLogMsg{
		Type:      protocol.TypeAgentDebugLog,
		AgentID:   r.cfg.AgentID,
		Message:   msg,
		Timestamp: time.Now().UnixMilli(),
	})
}

func voiceNeighbors(ns []world.Neighbor) []voice.Neighbor {
	out := make([]voice.Neighbor, len(ns))
	for i, n := range ns {
		out[i] = voice.Neighbor{ID: n.ID, Distance: n.Distance}
	}
	return out
}
