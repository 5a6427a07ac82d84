// Package physics is the fixed-tick movement integrator shared by client
// and agent runtimes: gravity, ground clamp, seek-target movement and
// follow-target tracking.
package physics

import (
	"math"
	"time"

	"antigravity.world/internal/protocol"
	"antigravity.world/internal/tuning"
)

// TargetKind tags what a follow target resolved to.
type TargetKind int

const (
	TargetPlayer TargetKind = iota
	TargetObject
)

// FollowTarget is a follow reference: a player id or an object id. It is
// resolved every tick, players first, so a vanished player does not silently
// rebind to an object of the same id.
type FollowTarget struct {
	Kind TargetKind
	ID   string
}

// Resolver looks up live positions for follow resolution.
type Resolver interface {
	PlayerPosition(id string) (protocol.Vec3, bool)
	ObjectPosition(id string) (protocol.Vec3, bool)
}

// Body is the locally authoritative kinematic state.
type Body struct {
	Position protocol.Vec3
	Velocity protocol.Vec3
	Rotation float64
	Forward  float64 // animation intent: 1 while walking
	Grounded bool
}

// StepResult reports what a tick did.
type StepResult struct {
	Moved bool // position/rotation/animation changed
	Emit  bool // a state broadcast is due (change or keep-alive)
}

// Integrator advances a Body at a fixed cadence. It is owned by a single
// runtime loop and is not safe for concurrent use.
type Integrator struct {
	tune tuning.Tuning

	body   Body
	target *protocol.Vec3
	follow *FollowTarget

	lastEmit time.Time
}

func NewIntegrator(t tuning.Tuning, start protocol.Vec3) *Integrator {
	return &Integrator{
		tune: t,
		body: Body{Position: start},
	}
}

func (it *Integrator) Body() Body { return it.body }

// SetTarget sets a manual move target. Ignored while a follow target is
// active: manual movement cannot override a follow, only Stop can.
func (it *Integrator) SetTarget(x, z float64) bool {
	if it.follow != nil {
		return false
	}
	it.target = &protocol.Vec3{X: x, Z: z}
	return true
}

// Follow starts tracking a player or object id.
func (it *Integrator) Follow(ft FollowTarget) {
	it.follow = &ft
}

// FollowingID reports the active follow target id, if any.
func (it *Integrator) FollowingID() (string, bool) {
	if it.follow == nil {
		return "", false
	}
	return it.follow.ID, true
}

// Stop clears both the follow target and any pending move target.
func (it *Integrator) Stop() {
	it.follow = nil
	it.target = nil
}

// Resolve maps an id to a follow target using two explicit lookups, players
// first.
func Resolve(id string, res Resolver) (FollowTarget, protocol.Vec3, bool) {
	if pos, ok := res.PlayerPosition(id); ok {
		return FollowTarget{Kind: TargetPlayer, ID: id}, pos, true
	}
	if pos, ok := res.ObjectPosition(id); ok {
		return FollowTarget{Kind: TargetObject, ID: id}, pos, true
	}
	return FollowTarget{}, protocol.Vec3{}, false
}

// Step advances one tick. dt is the elapsed time since the previous tick;
// now drives the keep-alive cadence.
func (it *Integrator) Step(now time.Time, dt float64, res Resolver) StepResult {
	var result StepResult

	// Follow resolution runs every tick because the target may move. Inside
	// the arrival radius the pending target is cleared for this tick only;
	// the larger radius (vs manual arrival) prevents jitter from continuous
	// re-targeting.
	if it.follow != nil {
		if pos, ok := it.resolveFollow(res); ok {
			it.target = &protocol.Vec3{X: pos.X, Y: pos.Y, Z: pos.Z}
			dx := pos.X - it.body.Position.X
			dz := pos.Z - it.body.Position.Z
			if math.Hypot(dx, dz) < it.tune.FollowArriveRadius {
				it.target = nil
			}
		} else {
			// Target lost; keep the follow reference in case it is only
			// briefly out of sync, but stand still meanwhile.
			it.target = nil
		}
	}

	if it.target != nil {
		dx := it.target.X - it.body.Position.X
		dz := it.target.Z - it.body.Position.Z
		dist := math.Hypot(dx, dz)
		if dist > it.tune.ArriveEpsilon {
			step := math.Min(dist, it.tune.MoveSpeed*dt)
			angle := math.Atan2(dx, dz)
			it.body.Position.X += math.Sin(angle) * step
			it.body.Position.Z += math.Cos(angle) * step
			it.body.Rotation = angle
			it.body.Forward = 1
			result.Moved = true
		} else {
			// Arrived: snap exactly and clear.
			it.body.Position.X = it.target.X
			it.body.Position.Z = it.target.Z
			it.target = nil
			it.body.Forward = 0
			result.Moved = true
		}
	} else if it.body.Forward != 0 {
		it.body.Forward = 0
		result.Moved = true
	}

	// Vertical integration: constant gravity, ground-plane clamp.
	it.body.Velocity.Y += it.tune.Gravity * dt
	it.body.Position.Y += it.body.Velocity.Y * dt
	if it.body.Position.Y <= it.tune.GroundY {
		it.body.Position.Y = it.tune.GroundY
		it.body.Velocity.Y = 0
		it.body.Grounded = true
	} else {
		it.body.Grounded = false
		result.Moved = true
	}

	keepAlive := time.Duration(it.tune.KeepAliveMs) * time.Millisecond
	if result.Moved || it.lastEmit.IsZero() || now.Sub(it.lastEmit) >= keepAlive {
		result.Emit = true
		it.lastEmit = now
	}
	return result
}

func (it *Integrator) resolveFollow(res Resolver) (protocol.Vec3, bool) {
	switch it.follow.Kind {
	case TargetPlayer:
		if pos, ok := res.PlayerPosition(it.follow.ID); ok {
			return pos, true
		}
		// The id may have been placed as an object since.
		return res.ObjectPosition(it.follow.ID)
	default:
		if pos, ok := res.ObjectPosition(it.follow.ID); ok {
			return pos, true
		}
		return res.PlayerPosition(it.follow.ID)
	}
}
