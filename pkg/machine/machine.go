// Virtual machine and trajectory planner for the AVS host
//
// The Machine converts an ordered sequence of instruction records into
// physically realizable motion: path segments with bounded acceleration and
// continuous junction speeds, profiled into trapezoidal acceleration
// segments that can be sampled at arbitrary time offsets.
//
// Planning is a synchronous batch computation: path build, junction speed
// solving and acceleration profiling run to completion before any sampling
// begins. A host may run Plan() off its interactive thread as one opaque
// blocking unit of work.
//
// Copyright (C) 2019-2026  Philipp Schaefer
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package machine

import (
	"time"

	"github.com/theOehrly/ActiveVibrationSuppression/pkg/errors"
	"github.com/theOehrly/ActiveVibrationSuppression/pkg/gcode"
	"github.com/theOehrly/ActiveVibrationSuppression/pkg/log"
	"github.com/theOehrly/ActiveVibrationSuppression/pkg/metrics"
)

// Limits holds the kinematic constants for one planning run. They are read
// from the machine profile once at the start of the run and passed in
// explicitly; the planner never consults shared configuration state.
type Limits struct {
	// MinSpeed is the lowest cornering speed allowed at a junction [units/s].
	MinSpeed float64

	// Acceleration is the single fixed acceleration magnitude [units/s^2].
	Acceleration float64

	// JunctionDeviation controls how much a cornering path may deviate from
	// the ideal corner to allow higher speed through a turn.
	JunctionDeviation float64
}

// Validate checks that all limits are positive.
func (l Limits) Validate() error {
	if l.MinSpeed <= 0 {
		return errors.PlanLimitsError("minimum speed must be positive")
	}
	if l.Acceleration <= 0 {
		return errors.PlanLimitsError("acceleration must be positive")
	}
	if l.JunctionDeviation <= 0 {
		return errors.PlanLimitsError("junction deviation must be positive")
	}
	return nil
}

// PathSegment represents motion from the previous endpoint to a target
// position at a commanded nominal speed. Segments are stored in a flat
// slice owned by the Machine and refer to their source instruction record
// by index.
type PathSegment struct {
	X float64 // position after movement [units]
	Y float64

	NominalSpeed float64 // commanded target speed [units/s]

	EntrySpeed      float64 // actual speed at the beginning of the segment [units/s]
	MaxEntrySpeed   float64 // maximum allowed speed at the beginning of the segment [units/s]
	MaxReachedSpeed float64 // maximum speed actually reached within the segment [units/s]

	Distance  float64 // length of this segment [units]
	XDistance float64 // x component of the length [units]
	YDistance float64 // y component of the length [units]

	XUnitVec float64
	YUnitVec float64

	// Command is the index of the source instruction record.
	Command int
}

// Phase identifies which part of the trapezoidal profile an
// AccelerationSegment covers.
type Phase int

const (
	// PhaseAccelerate covers acceleration from entry to peak speed.
	PhaseAccelerate Phase = iota
	// PhaseCruise covers constant-speed motion at nominal speed.
	PhaseCruise
	// PhaseDecelerate covers deceleration from peak to exit speed.
	PhaseDecelerate
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseAccelerate:
		return "accelerate"
	case PhaseCruise:
		return "cruise"
	case PhaseDecelerate:
		return "decelerate"
	default:
		return "unknown"
	}
}

// AccelerationSegment is one phase of the trapezoidal profile of a parent
// PathSegment. Segments are immutable once profiling completes and are
// stored in a flat ordered slice on the Machine for linear time traversal.
type AccelerationSegment struct {
	Phase Phase

	// Path is the index of the parent PathSegment.
	Path int

	X float64 // absolute position at the end of this sub-segment [units]
	Y float64

	Acceleration  float64 // signed scalar acceleration [units/s^2]
	XAcceleration float64 // per-axis acceleration [units/s^2]
	YAcceleration float64

	// StartSpeed is the speed entering this sub-segment: the parent's entry
	// speed for acceleration phases, the maximum reached speed for cruise
	// and deceleration phases [units/s].
	StartSpeed float64

	Distance float64 // length covered by this sub-segment [units]
	Duration float64 // duration of this sub-segment [s]
}

// Machine owns the planned trajectory: the ordered path segments, the flat
// acceleration segment sequence, the kinematic limits of the run and the
// layer partitioning of the path.
type Machine struct {
	limits   Limits
	commands []*gcode.Command

	pathSegments  []PathSegment
	accelSegments []AccelerationSegment

	// layers holds the path segment indices at which a new layer starts.
	// Index 0 is always present and covers everything before the first
	// detected layer change.
	layers []int

	layerDetection bool

	logger *log.Logger
}

// New creates a Machine for the given instruction sequence and kinematic
// limits. Layer detection is enabled by default.
func New(commands []*gcode.Command, limits Limits) (*Machine, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	return &Machine{
		limits:         limits,
		commands:       commands,
		layerDetection: true,
		logger:         log.GetLogger("machine"),
	}, nil
}

// SetLayerDetection enables or disables layer detection. Must be called
// before Plan.
func (m *Machine) SetLayerDetection(enabled bool) {
	m.layerDetection = enabled
}

// Limits returns the kinematic limits of this run.
func (m *Machine) Limits() Limits {
	return m.limits
}

// Plan runs the full planning pipeline: path segment build, junction speed
// solving and acceleration profiling. It never fails on well-formed input;
// records without positional change simply produce zero-distance segments.
func (m *Machine) Plan() {
	start := time.Now()

	m.pathSegments = nil
	m.accelSegments = nil
	m.layers = nil

	m.createPathSegments()
	m.calculatePathSegments()
	m.calculateAccelerationSegments()

	elapsed := time.Since(start)
	metrics.PlanRuns.Inc()
	metrics.PlanDuration.Observe(elapsed.Seconds())
	metrics.PathSegments.Set(float64(len(m.pathSegments)))
	metrics.AccelSegments.Set(float64(len(m.accelSegments)))

	m.logger.WithFields(log.INFO, "planning complete", log.Fields{
		"path_segments":  len(m.pathSegments),
		"accel_segments": len(m.accelSegments),
		"layers":         len(m.layers),
		"duration":       elapsed.Round(time.Microsecond),
	})
}

// PathSegments returns the ordered path segment sequence.
func (m *Machine) PathSegments() []PathSegment {
	return m.pathSegments
}

// AccelerationSegments returns the flat ordered acceleration segment
// sequence.
func (m *Machine) AccelerationSegments() []AccelerationSegment {
	return m.accelSegments
}

// Layers returns the ordered layer start indices into the path segment
// sequence.
func (m *Machine) Layers() []int {
	return m.layers
}

// LayerCount returns the number of detected layers.
func (m *Machine) LayerCount() int {
	return len(m.layers)
}

// TotalDuration returns the total traversal time of the planned trajectory.
func (m *Machine) TotalDuration() float64 {
	total := 0.0
	for i := range m.accelSegments {
		total += m.accelSegments[i].Duration
	}
	return total
}

// TotalDistance returns the total path length of the planned trajectory.
func (m *Machine) TotalDistance() float64 {
	total := 0.0
	for i := range m.pathSegments {
		total += m.pathSegments[i].Distance
	}
	return total
}

// exitSpeed returns the exit speed of path segment i: the entry speed of
// the following segment, or zero for the final segment (a virtual terminal
// zero-speed segment follows the last real one, so motion always ends at a
// full stop).
func (m *Machine) exitSpeed(i int) float64 {
	if i+1 >= len(m.pathSegments) {
		return 0
	}
	return m.pathSegments[i+1].EntrySpeed
}

// layerPathRange returns the half-open path segment index range [lo, hi)
// covered by the given layer. A negative layer selects the whole path.
func (m *Machine) layerPathRange(layer int) (int, int, error) {
	if layer < 0 {
		return 0, len(m.pathSegments), nil
	}
	if layer >= len(m.layers) {
		return 0, 0, errors.PlanLayerError(layer, len(m.layers))
	}
	lo := m.layers[layer]
	hi := len(m.pathSegments)
	if layer+1 < len(m.layers) {
		hi = m.layers[layer+1]
	}
	return lo, hi, nil
}

// segmentStartX returns the absolute x coordinate at the start of path
// segment i.
func (m *Machine) segmentStartX(i int) float64 {
	return m.pathSegments[i].X - m.pathSegments[i].XDistance
}

// segmentStartY returns the absolute y coordinate at the start of path
// segment i.
func (m *Machine) segmentStartY(i int) float64 {
	return m.pathSegments[i].Y - m.pathSegments[i].YDistance
}

// PathCoordinates returns the discrete per-segment endpoint coordinates of
// the given layer as two parallel slices. A negative layer selects the
// whole path.
func (m *Machine) PathCoordinates(layer int) ([]float64, []float64, error) {
	lo, hi, err := m.layerPathRange(layer)
	if err != nil {
		return nil, nil, err
	}
	xs := make([]float64, 0, hi-lo)
	ys := make([]float64, 0, hi-lo)
	for i := lo; i < hi; i++ {
		xs = append(xs, m.pathSegments[i].X)
		ys = append(ys, m.pathSegments[i].Y)
	}
	return xs, ys, nil
}

// DefaultSampleInterval is the fixed sampling interval used for
// time-domain coordinate reconstruction [s].
const DefaultSampleInterval = 0.01

// SampledCoordinates reconstructs the motion of the given layer by
// time-domain sampling at the given interval (DefaultSampleInterval if
// interval <= 0) until the trajectory is exhausted. A negative layer
// selects the whole trajectory.
func (m *Machine) SampledCoordinates(layer int, interval float64) ([]float64, []float64, error) {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	sx, err := m.NewPositionSampler(AxisX, layer)
	if err != nil {
		return nil, nil, err
	}
	sy, err := m.NewPositionSampler(AxisY, layer)
	if err != nil {
		return nil, nil, err
	}

	var xs, ys []float64
	for t := 0.0; ; t += interval {
		x, err := sx.Sample(t)
		if err != nil {
			if errors.Is(err, errors.ErrSampleRange) {
				break
			}
			return nil, nil, err
		}
		y, err := sy.Sample(t)
		if err != nil {
			if errors.Is(err, errors.ErrSampleRange) {
				break
			}
			return nil, nil, err
		}
		xs = append(xs, x)
		ys = append(ys, y)
	}
	return xs, ys, nil
}

// vectorize scales the unit vector of a path segment by the given value.
func vectorize(seg *PathSegment, value float64) (float64, float64) {
	return seg.XUnitVec * value, seg.YUnitVec * value
}
