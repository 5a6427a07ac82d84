package physics

import (
	"math"
	"testing"
	"time"

	"antigravity.world/internal/protocol"
	"antigravity.world/internal/tuning"
)

type stubResolver struct {
	players map[string]protocol.Vec3
	objects map[string]protocol.Vec3
}

func (r stubResolver) PlayerPosition(id string) (protocol.Vec3, bool) {
	p, ok := r.players[id]
	return p, ok
}

func (r stubResolver) ObjectPosition(id string) (protocol.Vec3, bool) {
	o, ok := r.objects[id]
	return o, ok
}

func tickAll(it *Integrator, res Resolver, n int) {
	tune := tuning.Defaults()
	dt := float64(tune.TickMs) / 1000.0
	now := time.Unix(0, 0)
	for i := 0; i < n; i++ {
		now = now.Add(time.Duration(tune.TickMs) * time.Millisecond)
		it.Step(now, dt, res)
	}
}

func TestSeekClampsToMoveSpeed(t *testing.T) {
	tune := tuning.Defaults()
	it := NewIntegrator(tune, protocol.Vec3{Y: tune.GroundY})
	it.SetTarget(100, 0)

	dt := float64(tune.TickMs) / 1000.0
	it.Step(time.Unix(0, 0), dt, stubResolver{})

	want := tune.MoveSpeed * dt
	if got := it.Body().Position.X; math.Abs(got-want) > 1e-9 {
		t.Fatalf("step distance = %v, want %v", got, want)
	}
	if it.Body().Forward != 1 {
		t.Fatal("walking animation flag not set")
	}
}

func TestManualArrivalSnapsExactly(t *testing.T) {
	tune := tuning.Defaults()
	it := NewIntegrator(tune, protocol.Vec3{Y: tune.GroundY})
	it.SetTarget(3, -4)

	tickAll(it, stubResolver{}, 60)

	b := it.Body()
	if b.Position.X != 3 || b.Position.Z != -4 {
		t.Fatalf("final position = (%v, %v), want exact (3, -4)", b.Position.X, b.Position.Z)
	}
	if b.Forward != 0 {
		t.Fatal("still walking after arrival")
	}
}

func TestRotationFacesMovement(t *testing.T) {
	tune := tuning.Defaults()
	it := NewIntegrator(tune, protocol.Vec3{Y: tune.GroundY})
	it.SetTarget(10, 0) // due +X

	dt := float64(tune.TickMs) / 1000.0
	it.Step(time.Unix(0, 0), dt, stubResolver{})

	if got := it.Body().Rotation; math.Abs(got-math.Pi/2) > 1e-9 {
		t.Fatalf("rotation = %v, want pi/2 for +X heading", got)
	}
}

func TestGravityClampsToGround(t *testing.T) {
	tune := tuning.Defaults()
	it := NewIntegrator(tune, protocol.Vec3{Y: 10})

	tickAll(it, stubResolver{}, 200)

	b := it.Body()
	if b.Position.Y != tune.GroundY {
		t.Fatalf("y = %v, want ground %v", b.Position.Y, tune.GroundY)
	}
	if !b.Grounded || b.Velocity.Y != 0 {
		t.Fatalf("grounded=%v vy=%v after landing", b.Grounded, b.Velocity.Y)
	}
}

func TestFollowConvergesWithinArriveRadius(t *testing.T) {
	tune := tuning.Defaults()
	it := NewIntegrator(tune, protocol.Vec3{Y: tune.GroundY})
	res := stubResolver{players: map[string]protocol.Vec3{"p1": {X: 1.5, Z: 1.5}}}

	it.Follow(FollowTarget{Kind: TargetPlayer, ID: "p1"})
	tickAll(it, res, 10)

	b := it.Body()
	dist := math.Hypot(1.5-b.Position.X, 1.5-b.Position.Z)
	if dist > tune.FollowArriveRadius {
		t.Fatalf("distance after 10 ticks = %v, want <= %v", dist, tune.FollowArriveRadius)
	}
}

func TestFollowStandsStillInsideArriveRadius(t *testing.T) {
	tune := tuning.Defaults()
	it := NewIntegrator(tune, protocol.Vec3{X: 1, Y: tune.GroundY})
	res := stubResolver{players: map[string]protocol.Vec3{"p1": {X: 1.5}}}

	it.Follow(FollowTarget{Kind: TargetPlayer, ID: "p1"})
	tickAll(it, res, 5)

	if got := it.Body().Position.X; got != 1 {
		t.Fatalf("moved to %v while already within follow arrival radius", got)
	}
}

func TestManualMoveIgnoredWhileFollowing(t *testing.T) {
	tune := tuning.Defaults()
	it := NewIntegrator(tune, protocol.Vec3{Y: tune.GroundY})
	it.Follow(FollowTarget{Kind: TargetPlayer, ID: "p1"})

	if it.SetTarget(50, 50) {
		t.Fatal("manual target accepted while following")
	}
	it.Stop()
	if !it.SetTarget(50, 50) {
		t.Fatal("manual target rejected after Stop")
	}
}

func TestLostFollowTargetStandsStillButKeepsReference(t *testing.T) {
	tune := tuning.Defaults()
	it := NewIntegrator(tune, protocol.Vec3{Y: tune.GroundY})
	res := stubResolver{players: map[string]protocol.Vec3{"p1": {X: 20}}}

	it.Follow(FollowTarget{Kind: TargetPlayer, ID: "p1"})
	tickAll(it, res, 4)
	moved := it.Body().Position.X
	if moved <= 0 {
		t.Fatal("never moved toward target")
	}

	// Target vanishes: hold position, keep following.
	tickAll(it, stubResolver{}, 10)
	if got := it.Body().Position.X; got != moved {
		t.Fatalf("drifted to %v after target lost, want %v", got, moved)
	}
	if _, ok := it.FollowingID(); !ok {
		t.Fatal("follow reference dropped on a transient loss")
	}

	// Target reappears: pursuit resumes.
	tickAll(it, res, 4)
	if got := it.Body().Position.X; got <= moved {
		t.Fatal("did not resume pursuit when target reappeared")
	}
}

func TestFollowResolvesObjectTargets(t *testing.T) {
	tune := tuning.Defaults()
	it := NewIntegrator(tune, protocol.Vec3{Y: tune.GroundY})
	res := stubResolver{objects: map[string]protocol.Vec3{"car-1": {X: 10, Z: -10}}}

	ft, _, ok := Resolve("car-1", res)
	if !ok || ft.Kind != TargetObject {
		t.Fatalf("resolve = %+v ok=%v, want object target", ft, ok)
	}
	it.Follow(ft)
	tickAll(it, res, 10)
	if it.Body().Position.X <= 0 {
		t.Fatal("no movement toward followed object")
	}
}

func TestEmitOnMoveAndKeepAlive(t *testing.T) {
	tune := tuning.Defaults()
	it := NewIntegrator(tune, protocol.Vec3{Y: tune.GroundY})
	dt := float64(tune.TickMs) / 1000.0

	now := time.Unix(0, 0)
	if res := it.Step(now, dt, stubResolver{}); !res.Emit {
		t.Fatal("first tick must emit")
	}

	// Idle ticks inside the keep-alive window stay silent.
	now = now.Add(time.Duration(tune.TickMs) * time.Millisecond)
	if res := it.Step(now, dt, stubResolver{}); res.Emit {
		t.Fatal("idle tick emitted before keep-alive elapsed")
	}

	// The keep-alive cadence forces a broadcast even when idle.
	now = now.Add(time.Duration(tune.KeepAliveMs) * time.Millisecond)
	if res := it.Step(now, dt, stubResolver{}); !res.Emit {
		t.Fatal("keep-alive did not force an emit")
	}

	// Movement emits immediately.
	it.SetTarget(5, 5)
	now = now.Add(time.Duration(tune.TickMs) * time.Millisecond)
	if res := it.Step(now, dt, stubResolver{}); !res.Emit || !res.Moved {
		t.Fatal("movement tick did not emit")
	}
}
