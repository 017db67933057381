package navigation

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Tuning holds the constants of the camera engine. Per-frame factors are
// expressed at FrameRate and rescaled for the actual frame delta.
type Tuning struct {
	LookAhead  float64 `yaml:"look_ahead"`
	Distance   float64 `yaml:"distance"`
	Height     float64 `yaml:"height"`
	LookAtLift float64 `yaml:"look_at_lift"`
	Damping    float64 `yaml:"damping"`
	FrameRate  float64 `yaml:"frame_rate"`

	HoldSpeed       float64       `yaml:"hold_speed"`
	PressStep       float64       `yaml:"press_step"`
	WheelStep       float64       `yaml:"wheel_step"`
	SwipeThreshold  float64       `yaml:"swipe_threshold"`
	AutoAdvanceRate float64       `yaml:"auto_advance_rate"`
	GoToDuration    time.Duration `yaml:"go_to_duration"`
	MaxFrameDelta   time.Duration `yaml:"max_frame_delta"`

	FreeDamping float64 `yaml:"free_damping"`
	MinDistance float64 `yaml:"min_distance"`
	MaxDistance float64 `yaml:"max_distance"`
	FlySpeed    float64 `yaml:"fly_speed"`
	InitialEye  Vec3    `yaml:"initial_eye,flow"`

	DefaultPathMode bool `yaml:"default_path_mode"`
}

func DefaultTuning() Tuning {
	return Tuning{
		LookAhead:       0.04,
		Distance:        11,
		Height:          100,
		LookAtLift:      1.5,
		Damping:         0.08,
		FrameRate:       60,
		HoldSpeed:       0.3,
		PressStep:       0.05,
		WheelStep:       0.01,
		SwipeThreshold:  50,
		AutoAdvanceRate: 0.05,
		GoToDuration:    time.Second,
		MaxFrameDelta:   100 * time.Millisecond,
		FreeDamping:     0.05,
		MinDistance:     5,
		MaxDistance:     800,
		FlySpeed:        2,
		InitialEye:      Vec3{0, 0, 50},
		DefaultPathMode: true,
	}
}

// ParseTuning decodes YAML over the defaults; keys absent from data keep
// their default value.
func ParseTuning(data []byte) (Tuning, error) {
	t := DefaultTuning()
	if len(data) == 0 {
		return t, nil
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Tuning{}, fmt.Errorf("parse navigation tuning: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Tuning{}, err
	}
	return t, nil
}

func (t Tuning) Validate() error {
	switch {
	case t.LookAhead <= 0 || t.LookAhead > 1:
		return fmt.Errorf("look_ahead must be in (0, 1], got %v", t.LookAhead)
	case t.Damping <= 0 || t.Damping > 1:
		return fmt.Errorf("damping must be in (0, 1], got %v", t.Damping)
	case t.FreeDamping <= 0 || t.FreeDamping > 1:
		return fmt.Errorf("free_damping must be in (0, 1], got %v", t.FreeDamping)
	case t.FrameRate <= 0:
		return fmt.Errorf("frame_rate must be positive, got %v", t.FrameRate)
	case t.MinDistance <= 0 || t.MaxDistance < t.MinDistance:
		return fmt.Errorf("invalid orbit distance range [%v, %v]", t.MinDistance, t.MaxDistance)
	case t.SwipeThreshold < 0:
		return fmt.Errorf("swipe_threshold must not be negative, got %v", t.SwipeThreshold)
	case t.GoToDuration <= 0:
		return fmt.Errorf("go_to_duration must be positive, got %v", t.GoToDuration)
	}
	return nil
}

// FrameInterval is the ticker period matching FrameRate.
func (t Tuning) FrameInterval() time.Duration {
	if t.FrameRate <= 0 {
		return time.Second / 60
	}
	return time.Duration(float64(time.Second) / t.FrameRate)
}
