// Package steps decides how many physics steps run in a frame and how long
// each one is.
package steps

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidSteps = errors.New("steps: invalid configuration")

type Mode uint8

const (
	// EveryFrameMode runs exactly one step of a fixed duration per frame,
	// whatever the frame delta.
	EveryFrameMode Mode = iota
	// FixedRateMode accumulates frame deltas and runs as many fixed steps as
	// fit, up to a cap.
	FixedRateMode
	// MaxDeltaTimeMode runs one step of the frame delta, clamped to a
	// maximum.
	MaxDeltaTimeMode
)

func (m Mode) String() string {
	switch m {
	case EveryFrameMode:
		return "every_frame"
	case FixedRateMode:
		return "fixed_rate"
	case MaxDeltaTimeMode:
		return "max_delta_time"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "every_frame":
		return EveryFrameMode, nil
	case "fixed_rate":
		return FixedRateMode, nil
	case "max_delta_time":
		return MaxDeltaTimeMode, nil
	default:
		return 0, fmt.Errorf("%w: unknown mode %q", ErrInvalidSteps, s)
	}
}

// Steps is a stepping policy.
type Steps struct {
	Mode        Mode
	Duration    time.Duration
	MaxSubsteps int
}

// EveryFrame runs one step of d per frame.
func EveryFrame(d time.Duration) Steps {
	return Steps{Mode: EveryFrameMode, Duration: d}
}

// FixedRate runs steps of d to catch up with elapsed time, at most
// maxSubsteps per frame.
func FixedRate(d time.Duration, maxSubsteps int) Steps {
	return Steps{Mode: FixedRateMode, Duration: d, MaxSubsteps: maxSubsteps}
}

// MaxDeltaTime runs one step per frame lasting the frame delta, but never
// longer than max.
func MaxDeltaTime(max time.Duration) Steps {
	return Steps{Mode: MaxDeltaTimeMode, Duration: max}
}

func (s Steps) Validate() error {
	if s.Duration <= 0 {
		return fmt.Errorf("%w: duration %v", ErrInvalidSteps, s.Duration)
	}
	if s.Mode > MaxDeltaTimeMode {
		return fmt.Errorf("%w: %v", ErrInvalidSteps, s.Mode)
	}
	if s.Mode == FixedRateMode && s.MaxSubsteps <= 0 {
		return fmt.Errorf("%w: max substeps %d", ErrInvalidSteps, s.MaxSubsteps)
	}
	return nil
}

// Plan is the stepping decision for one frame.
type Plan struct {
	Count    int
	Duration time.Duration
}

// Seconds returns the step duration in seconds.
func (p Plan) Seconds() float64 {
	return p.Duration.Seconds()
}

// Scheduler turns frame deltas into plans. Only FixedRate keeps state
// between frames.
type Scheduler struct {
	steps       Steps
	accumulator time.Duration
}

func NewScheduler(s Steps) (*Scheduler, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &Scheduler{steps: s}, nil
}

func (s *Scheduler) Steps() Steps {
	return s.steps
}

// Set replaces the policy and drops any accumulated time.
func (s *Scheduler) Set(steps Steps) error {
	if err := steps.Validate(); err != nil {
		return err
	}
	s.steps = steps
	s.accumulator = 0
	return nil
}

// Plan returns the steps to run for a frame that lasted frameDelta.
func (s *Scheduler) Plan(frameDelta time.Duration) Plan {
	if frameDelta < 0 {
		frameDelta = 0
	}
	d := s.steps.Duration
	switch s.steps.Mode {
	case FixedRateMode:
		s.accumulator += frameDelta
		n := int(s.accumulator / d)
		if n > s.steps.MaxSubsteps {
			n = s.steps.MaxSubsteps
			// Drop the whole steps we refuse to simulate, keep the
			// partial one.
			s.accumulator %= d
		} else {
			s.accumulator -= time.Duration(n) * d
		}
		return Plan{Count: n, Duration: d}
	case MaxDeltaTimeMode:
		if frameDelta == 0 {
			return Plan{}
		}
		return Plan{Count: 1, Duration: min(frameDelta, d)}
	default:
		return Plan{Count: 1, Duration: d}
	}
}
