package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning holds the numeric knobs shared by the relay, client runtimes and
// agents. Values are meters, radians, m/s and milliseconds.
type Tuning struct {
	// Movement / physics integrator.
	TickMs             int     `yaml:"tick_ms"`
	MoveSpeed          float64 `yaml:"move_speed"`
	Gravity            float64 `yaml:"gravity"`
	GroundY            float64 `yaml:"ground_y"`
	FollowArriveRadius float64 `yaml:"follow_arrive_radius"`
	ArriveEpsilon      float64 `yaml:"arrive_epsilon"`
	KeepAliveMs        int     `yaml:"keep_alive_ms"`

	// Proximity voice sessions.
	VoiceConnectDistance    float64 `yaml:"voice_connect_distance"`
	VoiceDisconnectDistance float64 `yaml:"voice_disconnect_distance"`
	ProximityCheckMs        int     `yaml:"proximity_check_ms"`
	PeerRestartDelayMs      int     `yaml:"peer_restart_delay_ms"`

	// Perception.
	PlayerPerceptionRadius float64 `yaml:"player_perception_radius"`
	ObjectPerceptionRadius float64 `yaml:"object_perception_radius"`
	ChatOverhearRadius     float64 `yaml:"chat_overhear_radius"`
	ChatLogLimit           int     `yaml:"chat_log_limit"`

	// Agent decision loop.
	DecisionIntervalMs int `yaml:"decision_interval_ms"`
	DecisionBackoffMs  int `yaml:"decision_backoff_ms"`
	DecisionTimeoutMs  int `yaml:"decision_timeout_ms"`
	ConsecutiveSayCap  int `yaml:"consecutive_say_cap"`
}

// Defaults returns the reference behavior values.
func Defaults() Tuning {
	return Tuning{
		TickMs:             50,
		MoveSpeed:          4.0,
		Gravity:            -18.0,
		GroundY:            0.9,
		FollowArriveRadius: 2.0,
		ArriveEpsilon:      0.1,
		KeepAliveMs:        500,

		VoiceConnectDistance:    20,
		VoiceDisconnectDistance: 25,
		ProximityCheckMs:        1000,
		PeerRestartDelayMs:      2000,

		PlayerPerceptionRadius: 50,
		ObjectPerceptionRadius: 20,
		ChatOverhearRadius:     20,
		ChatLogLimit:           50,

		DecisionIntervalMs: 3000,
		DecisionBackoffMs:  5000,
		DecisionTimeoutMs:  60000,
		ConsecutiveSayCap:  5,
	}
}

// Load reads tuning.yaml. Keys absent from the file keep their defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}
