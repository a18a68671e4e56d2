// Path segment building and layer detection
//
// Copyright (C) 2019-2026  Philipp Schaefer
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package machine

import (
	"github.com/theOehrly/ActiveVibrationSuppression/pkg/gcode"
)

// Command codes that mark printing motion. Travel moves (G0) touch height
// without printing and must not commit a layer break.
func isPrintingMove(cmd *gcode.Command) bool {
	return cmd.IsG(1) || cmd.IsG(2) || cmd.IsG(3)
}

// createPathSegments consumes the instruction sequence, tracking modal
// machine state, and emits one path segment per record. Records are
// accepted unconditionally; a record without positional change yields a
// zero-distance segment that is filtered out of the physical calculations
// later but keeps the segment sequence aligned with the input records.
//
// Layer detection works in two steps: a height change arms a pending layer
// break, and the break is only committed when a later record performs a
// printing move at the new height. A height that reverts to the previous
// value before any printing move cancels the pending break. This keeps
// retraction and hop moves from splitting layers.
func (m *Machine) createPathSegments() {
	nominalSpeed := 0.0
	x := 0.0
	y := 0.0

	currentZ := 0.0
	pendingZ := 0.0
	layerPending := false

	m.layers = append(m.layers, 0)

	for i, cmd := range m.commands {
		if f, ok := cmd.Word("F"); ok {
			nominalSpeed = f / 60 // feed rate is per minute; internal unit is per second
		}
		if v, ok := cmd.Word("X"); ok {
			x = v
		}
		if v, ok := cmd.Word("Y"); ok {
			y = v
		}

		if m.layerDetection {
			if z, ok := cmd.Word("Z"); ok {
				if z != currentZ {
					pendingZ = z
					layerPending = true
				} else {
					// Height reverted before any printing move: a no-op
					// height change, not a layer break.
					layerPending = false
				}
			}
			if layerPending && isPrintingMove(cmd) {
				currentZ = pendingZ
				layerPending = false
				if last := m.layers[len(m.layers)-1]; i > last {
					m.layers = append(m.layers, i)
				}
			}
		}

		m.pathSegments = append(m.pathSegments, PathSegment{
			X:            x,
			Y:            y,
			NominalSpeed: nominalSpeed,
			Command:      i,
		})
	}
}
