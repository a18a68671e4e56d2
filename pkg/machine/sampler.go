// Time-domain sampling of the planned trajectory
//
// Samplers are stateful, forward-only cursors over the flat acceleration
// segment sequence. The time index passed to Sample must be non-decreasing
// across calls; a decreasing index is a contract violation and fails
// immediately. A query past the end of the available motion is signaled as
// a distinct end-of-range condition so callers can tell "trajectory
// finished" from misuse.
//
// Samplers are not safe for concurrent or out-of-order use. Readers that
// need separate cursors (e.g. one per axis) must create independent
// sampler instances; a fresh instance can always be constructed to restart
// from time zero.
//
// Copyright (C) 2019-2026  Philipp Schaefer
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package machine

import (
	"sort"

	"github.com/theOehrly/ActiveVibrationSuppression/pkg/errors"
)

// Axis selects the coordinate axis a position sampler reconstructs.
type Axis int

const (
	// AxisX selects the x coordinate.
	AxisX Axis = iota
	// AxisY selects the y coordinate.
	AxisY
)

// String returns the axis name.
func (a Axis) String() string {
	if a == AxisY {
		return "y"
	}
	return "x"
}

// cursor is the advancement routine shared by all sampler kinds. It maps a
// monotonically increasing time index onto the acceleration segment
// containing it, within the half-open segment index range [idx, end).
type cursor struct {
	segs []AccelerationSegment

	idx int // current segment index
	end int // one past the last segment in scope

	time     float64 // last sampled time index
	segStart float64 // start time of the current segment
	segEnd   float64 // end time of the current segment
}

func newCursor(segs []AccelerationSegment, start, end int) cursor {
	c := cursor{segs: segs, idx: start, end: end}
	if start < end {
		c.segEnd = segs[start].Duration
	}
	return c
}

// advance moves the cursor to the segment containing t and returns it
// together with the time offset into it. onLeave, if non-nil, is called
// once for every segment the cursor moves past, in order.
func (c *cursor) advance(t float64, onLeave func(*AccelerationSegment)) (*AccelerationSegment, float64, error) {
	if t < c.time {
		return nil, 0, errors.SampleMonotonicError(t, c.time)
	}
	if c.idx >= c.end {
		return nil, 0, errors.SampleRangeError(t)
	}
	for c.segEnd < t {
		if onLeave != nil {
			onLeave(&c.segs[c.idx])
		}
		c.idx++
		if c.idx >= c.end {
			return nil, 0, errors.SampleRangeError(t)
		}
		c.segStart = c.segEnd
		c.segEnd += c.segs[c.idx].Duration
	}
	c.time = t
	return &c.segs[c.idx], t - c.segStart, nil
}

// AccelerationSampler maps elapsed time to the acceleration of the active
// trajectory segment.
type AccelerationSampler struct {
	cur cursor
}

// NewAccelerationSampler creates a sampler over the whole trajectory.
func (m *Machine) NewAccelerationSampler() *AccelerationSampler {
	return &AccelerationSampler{cur: newCursor(m.accelSegments, 0, len(m.accelSegments))}
}

// Sample returns the scalar and per-axis acceleration at time t.
func (s *AccelerationSampler) Sample(t float64) (float64, float64, float64, error) {
	seg, _, err := s.cur.advance(t, nil)
	if err != nil {
		return 0, 0, 0, err
	}
	return seg.Acceleration, seg.XAcceleration, seg.YAcceleration, nil
}

// SpeedSampler maps elapsed time to the traversal speed along the path.
type SpeedSampler struct {
	cur cursor
}

// NewSpeedSampler creates a sampler over the whole trajectory.
func (m *Machine) NewSpeedSampler() *SpeedSampler {
	return &SpeedSampler{cur: newCursor(m.accelSegments, 0, len(m.accelSegments))}
}

// Sample returns the speed at time t, reconstructed as v = v_in + a*dt
// from the active segment's start speed.
func (s *SpeedSampler) Sample(t float64) (float64, error) {
	seg, dt, err := s.cur.advance(t, nil)
	if err != nil {
		return 0, err
	}
	return seg.StartSpeed + seg.Acceleration*dt, nil
}

// PositionSampler maps elapsed time to an absolute coordinate on one axis,
// numerically integrating s = v_in*dt + 0.5*a*dt^2 per segment on top of a
// running absolute position. It can be scoped to a single layer.
type PositionSampler struct {
	cur  cursor
	m    *Machine
	axis Axis
	pos  float64 // absolute coordinate at the start of the current segment
}

// NewPositionSampler creates a position sampler for the given axis. A
// non-negative layer restricts sampling to the acceleration segments of
// that layer, anchored at the position immediately preceding it; a
// negative layer covers the whole trajectory.
func (m *Machine) NewPositionSampler(axis Axis, layer int) (*PositionSampler, error) {
	lo, hi, err := m.layerPathRange(layer)
	if err != nil {
		return nil, err
	}
	aLo, aHi := m.accelSegmentRange(lo, hi)

	s := &PositionSampler{
		cur:  newCursor(m.accelSegments, aLo, aHi),
		m:    m,
		axis: axis,
	}
	if aLo < aHi {
		p := m.accelSegments[aLo].Path
		if axis == AxisX {
			s.pos = m.segmentStartX(p)
		} else {
			s.pos = m.segmentStartY(p)
		}
	}
	return s, nil
}

// accelSegmentRange returns the half-open acceleration segment index range
// enclosing the path segment index range [pathLo, pathHi). Acceleration
// segments are ordered by parent path index, so both bounds are found by
// binary search.
func (m *Machine) accelSegmentRange(pathLo, pathHi int) (int, int) {
	lo := sort.Search(len(m.accelSegments), func(i int) bool {
		return m.accelSegments[i].Path >= pathLo
	})
	hi := sort.Search(len(m.accelSegments), func(i int) bool {
		return m.accelSegments[i].Path >= pathHi
	})
	return lo, hi
}

// Sample returns the absolute coordinate at time t.
func (s *PositionSampler) Sample(t float64) (float64, error) {
	seg, dt, err := s.cur.advance(t, s.leaveSegment)
	if err != nil {
		return 0, err
	}
	vIn, accel := s.axisKinematics(seg)
	return s.pos + vIn*dt + 0.5*accel*dt*dt, nil
}

// leaveSegment accumulates the position when the cursor moves past a
// segment: the sub-segment's absolute end position becomes the running
// coordinate.
func (s *PositionSampler) leaveSegment(seg *AccelerationSegment) {
	if s.axis == AxisX {
		s.pos = seg.X
	} else {
		s.pos = seg.Y
	}
}

// axisKinematics returns the entry speed and acceleration of the segment
// projected onto the sampler's axis.
func (s *PositionSampler) axisKinematics(seg *AccelerationSegment) (float64, float64) {
	parent := &s.m.pathSegments[seg.Path]
	if s.axis == AxisX {
		return seg.StartSpeed * parent.XUnitVec, seg.XAcceleration
	}
	return seg.StartSpeed * parent.YUnitVec, seg.YAcceleration
}
