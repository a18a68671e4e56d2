// Acceleration profiling
//
// Converts each path segment's entry, exit and nominal speed into a
// trapezoidal velocity profile. The speed within a segment is pushed as
// high as entry speed, exit speed and nominal speed allow; acceleration is
// always either the configured magnitude or zero.
//
//	                     plateau
//	                   +--------+  <-- nominal speed
//	                  /          \
//	entry speed -->  +            \
//	                 |             +  <-- exit speed
//	                 +-------------+
//	                  --> distance
//
// Copyright (C) 2019-2026  Philipp Schaefer
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package machine

import (
	"math"
)

// calculateAccelerationSegments profiles every moving path segment into an
// accelerate sub-segment, an optional cruise sub-segment and a decelerate
// sub-segment, appended in that order to the flat global sequence.
// Zero-distance segments and segments without a commanded speed contribute
// no acceleration segments.
func (m *Machine) calculateAccelerationSegments() {
	accel := m.limits.Acceleration

	for i := range m.pathSegments {
		seg := &m.pathSegments[i]
		if seg.Distance == 0 {
			continue // not a segment with movement
		}
		if seg.NominalSpeed <= 0 {
			// Movement before any feed rate command. It positions the
			// machine but has no commanded speed, so it contributes no
			// planned motion time; junction solving has already forced the
			// surrounding entry speeds to zero.
			continue
		}

		entrySpeed := seg.EntrySpeed
		exitSpeed := m.exitSpeed(i)

		// The speed reachable by accelerating and then immediately
		// decelerating across the whole length.
		maximumPossibleSpeed := math.Sqrt(accel*seg.Distance + (entrySpeed*entrySpeed+exitSpeed*exitSpeed)/2)

		limitingSpeed := math.Min(seg.NominalSpeed, maximumPossibleSpeed)
		seg.MaxReachedSpeed = limitingSpeed

		// Acceleration from entry to limiting speed.
		accSeg := AccelerationSegment{
			Phase:        PhaseAccelerate,
			Path:         i,
			Acceleration: accel,
			StartSpeed:   entrySpeed,
			Duration:     (limitingSpeed - entrySpeed) / accel,
		}
		accSeg.XAcceleration, accSeg.YAcceleration = vectorize(seg, accel)
		accSeg.Distance = entrySpeed*accSeg.Duration + 0.5*accel*accSeg.Duration*accSeg.Duration
		// The segment's x/y is the position after the movement, so the
		// sub-segment end is interpolated backward from the endpoint.
		accRatio := accSeg.Distance/seg.Distance - 1
		accSeg.X = seg.X + accRatio*seg.XDistance
		accSeg.Y = seg.Y + accRatio*seg.YDistance

		// Deceleration from limiting to exit speed; ends exactly at the
		// segment endpoint.
		dccSeg := AccelerationSegment{
			Phase:        PhaseDecelerate,
			Path:         i,
			Acceleration: -accel,
			StartSpeed:   limitingSpeed,
			Duration:     (limitingSpeed - exitSpeed) / accel,
			X:            seg.X,
			Y:            seg.Y,
		}
		dccSeg.XAcceleration, dccSeg.YAcceleration = vectorize(seg, -accel)
		dccSeg.Distance = exitSpeed*dccSeg.Duration + 0.5*accel*dccSeg.Duration*dccSeg.Duration

		m.accelSegments = append(m.accelSegments, accSeg)

		if maximumPossibleSpeed > seg.NominalSpeed {
			// Plateau between acceleration and deceleration.
			pltSeg := AccelerationSegment{
				Phase:      PhaseCruise,
				Path:       i,
				StartSpeed: seg.NominalSpeed,
			}
			pltSeg.Distance = seg.Distance - accSeg.Distance - dccSeg.Distance
			pltSeg.Duration = pltSeg.Distance / seg.NominalSpeed
			// Subtract the deceleration distance from the segment end
			// position to get the plateau end.
			dccRatio := dccSeg.Distance / seg.Distance
			pltSeg.X = seg.X - seg.XDistance*dccRatio
			pltSeg.Y = seg.Y - seg.YDistance*dccRatio
			m.accelSegments = append(m.accelSegments, pltSeg)
		}

		m.accelSegments = append(m.accelSegments, dccSeg)
	}
}
