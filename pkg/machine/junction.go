// Junction speed solving
//
// Computes a feasible entry speed for every path segment so that cornering
// speed never exceeds the geometric junction limit and no segment has to
// change speed faster than the configured acceleration permits over its
// own length. The junction limit follows the centripetal acceleration
// approximation used by GRBL and Smoothieware, reduced to two axes: a
// circle tangent to both adjoining segments, with the junction deviation
// as the distance from the junction to the closest edge of the circle.
//
// Copyright (C) 2019-2026  Philipp Schaefer
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package machine

import (
	"math"
)

const junctionCosThetaEps = 0.999999

// calculatePathSegments runs the three junction solving passes:
//
//  1. per-junction geometry and cornering speed limits
//  2. forward pass limiting each entry speed to what the previous segment
//     can accelerate to
//  3. backward pass lowering entry speeds that cannot decelerate to the
//     next segment's entry speed in time
func (m *Machine) calculatePathSegments() {
	segs := m.pathSegments

	// Pass 1: geometry and junction limits relative to the predecessor.
	for i := 1; i < len(segs); i++ {
		seg := &segs[i]
		prev := &segs[i-1]

		seg.XDistance = seg.X - prev.X
		seg.YDistance = seg.Y - prev.Y
		seg.Distance = math.Sqrt(seg.XDistance*seg.XDistance + seg.YDistance*seg.YDistance)

		if seg.Distance == 0 {
			// A stationary record cannot carry cornering speed; force a
			// full stop.
			seg.MaxEntrySpeed = 0
			seg.EntrySpeed = 0
			continue
		}

		seg.XUnitVec = seg.XDistance / seg.Distance
		seg.YUnitVec = seg.YDistance / seg.Distance

		maxJunctionSpeed := m.junctionSpeed(seg, prev)

		seg.MaxEntrySpeed = math.Min(math.Min(seg.NominalSpeed, prev.NominalSpeed), maxJunctionSpeed)
		seg.EntrySpeed = seg.MaxEntrySpeed
	}

	// Pass 2: forward, limit each entry speed to the exit speed achievable
	// by the previous segment.
	for i := 0; i < len(segs)-1; i++ {
		seg := &segs[i]
		next := &segs[i+1]

		maxExitSpeed := math.Sqrt(seg.EntrySpeed*seg.EntrySpeed + 2*m.limits.Acceleration*seg.Distance)
		next.EntrySpeed = math.Min(next.EntrySpeed, maxExitSpeed)
	}

	// Pass 3: backward, verify each entry speed allows decelerating to the
	// next segment's (now final) entry speed within the segment's length.
	// A virtual zero-speed segment follows the last real one, so the final
	// segment always decelerates to a full stop.
	for i := len(segs) - 1; i >= 1; i-- {
		seg := &segs[i]

		exitSpeed := m.exitSpeed(i)
		maxEntrySpeed := math.Sqrt(exitSpeed*exitSpeed + 2*m.limits.Acceleration*seg.Distance)
		if maxEntrySpeed < seg.EntrySpeed {
			seg.MaxEntrySpeed = maxEntrySpeed
			seg.EntrySpeed = maxEntrySpeed
		}
	}
}

// junctionSpeed returns the maximum cornering speed through the junction
// between prev and seg.
func (m *Machine) junctionSpeed(seg, prev *PathSegment) float64 {
	// The angle between the segments comes from the dot product of the two
	// unit vectors, negated so that collinear segments give cos(theta) = -1.
	junctionCosTheta := -seg.XUnitVec*prev.XUnitVec - seg.YUnitVec*prev.YUnitVec

	switch {
	case junctionCosTheta > junctionCosThetaEps:
		// The path makes a full turn back on itself. Clamped to the
		// squared minimum speed constant; dimensionally odd (speed vs
		// speed squared) but kept for behavioral parity with the
		// established planner lineage.
		return m.limits.MinSpeed * m.limits.MinSpeed

	case junctionCosTheta < -junctionCosThetaEps:
		// The junction is a straight line; geometry imposes no limit and
		// the nominal speeds of the adjoining segments take over.
		return math.Inf(1)

	default:
		// Trig half angle identity, always positive.
		sinThetaD2 := math.Sqrt(0.5 * (1.0 - junctionCosTheta))
		prelim := math.Sqrt(m.limits.Acceleration * m.limits.JunctionDeviation * sinThetaD2 / (1.0 - sinThetaD2))
		return math.Max(m.limits.MinSpeed, prelim)
	}
}
