// Package fleet supervises agent processes: one OS process per agent,
// spawned on demand and stopped with a SIGTERM-then-SIGKILL grace window.
package fleet

import (
	"errors"
	"log"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

const killGrace = 3 * time.Second

var (
	ErrAlreadyRunning = errors.New("agent already running")
	ErrNotFound       = errors.New("agent not found")
	ErrMissingFields  = errors.New("missing id or name")
)

// StartSpec describes one agent to launch.
type StartSpec struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Purpose   string `json:"purpose,omitempty"`
	Behaviour string `json:"behaviour,omitempty"`
	Owner     string `json:"owner,omitempty"`
}

// AgentInfo is the status row returned by listings.
type AgentInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Uptime int64  `json:"uptime"` // ms
	Owner  string `json:"owner,omitempty"`
}

// Process is a controllable child. The real implementation wraps exec.Cmd;
// tests substitute their own.
type Process interface {
	Signal(sig os.Signal) error
	Kill() error
	// Wait blocks until exit. Called once, from the reaper goroutine.
	Wait() error
	PID() int
}

// SpawnFunc launches the agent binary for a spec.
type SpawnFunc func(spec StartSpec) (Process, error)

type running struct {
	spec    StartSpec
	proc    Process
	started time.Time
}

// Launcher tracks running agents by logical id. One id runs at most one
// process.
type Launcher struct {
	log   *log.Logger
	spawn SpawnFunc

	mu     sync.Mutex
	agents map[string]*running
}

func NewLauncher(spawn SpawnFunc, logger *log.Logger) *Launcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Launcher{
		log:    logger,
		spawn:  spawn,
		agents: make(map[string]*running),
	}
}

// Start launches an agent. Returns ErrAlreadyRunning while the id holds a
// live process; an exited process frees the id.
func (l *Launcher) Start(spec StartSpec) (int, error) {
	if spec.ID == "" || spec.Name == "" {
		return 0, ErrMissingFields
	}

	l.mu.Lock()
	if _, ok := l.agents[spec.ID]; ok {
		l.mu.Unlock()
		return 0, ErrAlreadyRunning
	}
	// Reserve the id before spawning so concurrent starts cannot race past
	// the duplicate check.
	l.agents[spec.ID] = nil
	l.mu.Unlock()

	proc, err := l.spawn(spec)
	if err != nil {
		l.mu.Lock()
		delete(l.agents, spec.ID)
		l.mu.Unlock()
		return 0, err
	}

	l.mu.Lock()
	l.agents[spec.ID] = &running{spec: spec, proc: proc, started: time.Now()}
	l.mu.Unlock()

	l.log.Printf("started agent %s (%s) pid=%d owner=%s", spec.Name, spec.ID, proc.PID(), spec.Owner)
	go l.reap(spec.ID, proc)
	return proc.PID(), nil
}

// Stop sends SIGTERM and schedules a SIGKILL if the process lingers past the
// grace window. Returns ErrNotFound for unknown or already-exited ids.
func (l *Launcher) Stop(id string) error {
	l.mu.Lock()
	r, ok := l.agents[id]
	l.mu.Unlock()
	if !ok || r == nil {
		return ErrNotFound
	}

	l.log.Printf("stopping agent %s (%s) pid=%d", r.spec.Name, id, r.proc.PID())
	if err := r.proc.Signal(syscall.SIGTERM); err != nil {
		l.log.Printf("signal agent %s: %v", id, err)
	}

	go func() {
		time.Sleep(killGrace)
		l.mu.Lock()
		_, still := l.agents[id]
		l.mu.Unlock()
		if still {
			l.log.Printf("agent %s did not exit, force killing", id)
			_ = r.proc.Kill()
		}
	}()
	return nil
}

// List snapshots the running agents.
func (l *Launcher) List() []AgentInfo {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AgentInfo, 0, len(l.agents))
	for _, r := range l.agents {
		if r == nil {
			continue
		}
		out = append(out, AgentInfo{
			ID:     r.spec.ID,
			Name:   r.spec.Name,
			Uptime: time.Since(r.started).Milliseconds(),
			Owner:  r.spec.Owner,
		})
	}
	return out
}

// StopAll terminates every agent, for launcher shutdown.
func (l *Launcher) StopAll() {
	for _, info := range l.List() {
		_ = l.Stop(info.ID)
	}
}

func (l *Launcher) reap(id string, proc Process) {
	err := proc.Wait()
	l.mu.Lock()
	r, ok := l.agents[id]
	if ok && r != nil && r.proc == proc {
		delete(l.agents, id)
	}
	l.mu.Unlock()
	if ok {
		l.log.Printf("agent %s exited: %v", id, err)
	}
}

// ExecSpawn launches the agent binary at binPath, passing the spec through
// AGENT_* environment variables.
func ExecSpawn(binPath, host, room string) SpawnFunc {
	return func(spec StartSpec) (Process, error) {
		cmd := exec.Command(binPath)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		cmd.Env = append(os.Environ(),
			"AGENT_ID="+spec.ID,
			"AGENT_NAME="+spec.Name,
			"AGENT_PURPOSE="+spec.Purpose,
			"AGENT_BEHAVIOUR="+spec.Behaviour,
			"AGENT_OWNER="+spec.Owner,
			"RELAY_HOST="+host,
			"RELAY_ROOM="+room,
		)
		if err := cmd.Start(); err != nil {
			return nil, err
		}
		return execProcess{cmd}, nil
	}
}

type execProcess struct{ cmd *exec.Cmd }

func (p execProcess) Signal(sig os.Signal) error { return p.cmd.Process.Signal(sig) }
func (p execProcess) Kill() error                { return p.cmd.Process.Kill() }
func (p execProcess) Wait() error                { return p.cmd.Wait() }
func (p execProcess) PID() int                   { return p.cmd.Process.Pid }
