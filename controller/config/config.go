// Package config loads the controller's JSON machine configuration and
// fills in defaults for any field the operator left unset.
package config

import "encoding/json"

// AxisConfig describes one linear axis: steps/mm conversion, speed and
// accel limits, and the soft travel limits enforced by controller/safety.
type AxisConfig struct {
	StepsPerMM  float64 `json:"steps_per_mm"`
	MaxVelocity float64 `json:"max_velocity_mm_s"`
	MaxAccel    float64 `json:"max_accel_mm_s2"`
	HomingFeed  float64 `json:"homing_feed_mm_min"`
	HomingSlow  float64 `json:"homing_slow_feed_mm_min"`
	HomingBack  float64 `json:"homing_backoff_mm"`
	MinPosition float64 `json:"min_position_mm"`
	MaxPosition float64 `json:"max_position_mm"`
}

// FlowConfig describes the sauce pump's duty-cycle range.
type FlowConfig struct {
	DefaultDuty int `json:"default_duty"`
	MinDuty     int `json:"min_duty"`
	MaxDuty     int `json:"max_duty"`
}

// MachineConfig is the full controller configuration: axis kinematics,
// the flow pump, and the protocol engine's queue/window/timeout knobs.
type MachineConfig struct {
	Axes map[string]AxisConfig `json:"axes"`
	Flow FlowConfig             `json:"flow"`

	QueueDepth      int     `json:"queue_depth"`
	Window          int     `json:"window"`
	AckTimeoutMS    int     `json:"ack_timeout_ms"`
	HeartbeatMS     int     `json:"heartbeat_ms"`
	HeartbeatTimeMS int     `json:"heartbeat_timeout_ms"`
	MaxRetries      int     `json:"max_retries"`
	RapidFeed       float64 `json:"rapid_feed_mm_min"`
	DrawFeed        float64 `json:"draw_feed_mm_min"`
	DwellOnMS       int     `json:"dwell_on_ms"`
	DwellOffMS      int     `json:"dwell_off_ms"`

	ListenAddr string `json:"listen_addr"`
	SerialPort string `json:"serial_port"`
}

// LoadConfig parses a JSON machine configuration and applies defaults
// to any field left unset.
func LoadConfig(data []byte) (*MachineConfig, error) {
	var cfg MachineConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// applyDefaults fills in missing configuration values using the defaults
// recovered from the original prototype's motion_movement/config.py.
func applyDefaults(cfg *MachineConfig) {
	if cfg.Axes == nil {
		cfg.Axes = map[string]AxisConfig{}
	}
	for name, axis := range cfg.Axes {
		if axis.StepsPerMM == 0 {
			axis.StepsPerMM = 80.0
		}
		if axis.MaxVelocity == 0 {
			axis.MaxVelocity = 50.0
		}
		if axis.MaxAccel == 0 {
			axis.MaxAccel = 500.0
		}
		if axis.HomingFeed == 0 {
			axis.HomingFeed = 600.0
		}
		if axis.HomingSlow == 0 {
			axis.HomingSlow = 120.0
		}
		if axis.HomingBack == 0 {
			axis.HomingBack = 5.0
		}
		if axis.MinPosition == 0 && axis.MaxPosition == 0 {
			axis.MinPosition = -120.0
			axis.MaxPosition = 120.0
		}
		cfg.Axes[name] = axis
	}
	if _, ok := cfg.Axes["x"]; !ok {
		cfg.Axes["x"] = defaultAxis()
	}
	if _, ok := cfg.Axes["y"]; !ok {
		cfg.Axes["y"] = defaultAxis()
	}

	if cfg.Flow.DefaultDuty == 0 {
		cfg.Flow.DefaultDuty = 60
	}
	if cfg.Flow.MaxDuty == 0 {
		cfg.Flow.MaxDuty = 100
	}

	if cfg.QueueDepth == 0 {
		cfg.QueueDepth = 64
	}
	if cfg.Window == 0 {
		cfg.Window = 32
	}
	if cfg.AckTimeoutMS == 0 {
		cfg.AckTimeoutMS = 250
	}
	if cfg.HeartbeatMS == 0 {
		cfg.HeartbeatMS = 1000
	}
	if cfg.HeartbeatTimeMS == 0 {
		cfg.HeartbeatTimeMS = 3000
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RapidFeed == 0 {
		cfg.RapidFeed = 3000.0
	}
	if cfg.DrawFeed == 0 {
		cfg.DrawFeed = 600.0
	}
	if cfg.DwellOnMS == 0 {
		cfg.DwellOnMS = 100
	}
	if cfg.DwellOffMS == 0 {
		cfg.DwellOffMS = 50
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
}

func defaultAxis() AxisConfig {
	return AxisConfig{
		StepsPerMM:  80.0,
		MaxVelocity: 50.0,
		MaxAccel:    500.0,
		HomingFeed:  600.0,
		HomingSlow:  120.0,
		HomingBack:  5.0,
		MinPosition: -120.0,
		MaxPosition: 120.0,
	}
}

// DefaultMachineConfig returns the full default configuration, matching
// the prototype's defaults, used when no config file is supplied.
func DefaultMachineConfig() *MachineConfig {
	cfg := &MachineConfig{Axes: map[string]AxisConfig{}}
	applyDefaults(cfg)
	return cfg
}
