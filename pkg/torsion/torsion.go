// Z-axis torsional vibration model
//
// Models the torsional deflection of the vertical axis of a cartesian
// motion stage: the y-beam and print head form a rotating inertia on a
// torsional spring whose stiffness depends on the current height, excited
// by the torsional moment that the planned y-axis acceleration of the
// print head produces around the z-axis. The resulting inhomogeneous
// second-order equation is integrated with the fixed-step Euler solver.
//
// Copyright (C) 2019-2026  Philipp Schaefer
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package torsion

import (
	"github.com/theOehrly/ActiveVibrationSuppression/pkg/errors"
	"github.com/theOehrly/ActiveVibrationSuppression/pkg/log"
	"github.com/theOehrly/ActiveVibrationSuppression/pkg/machine"
	"github.com/theOehrly/ActiveVibrationSuppression/pkg/solver"
)

// Params holds the physical calculation parameters of the model.
type Params struct {
	ShearModulus float64 // [MPa] shear modulus of the z-axis
	PolarMoment  float64 // [mm^4] polar moment of inertia of the z-axis
	Damping      float64 // [(N*mm)/s] damping coefficient

	MinHeightZ   float64 // [mm] minimum height of the z-axis
	MinDistanceY float64 // [mm] minimum distance between the axis of rotation and the head's center of gravity
	OffsetX      float64 // [mm] distance between the y-axis and the head's center of gravity

	MomentYBeam float64 // [kg*mm^2] moment of inertia of the y-beam around the z-axis
	MomentHead  float64 // [kg*mm^2] moment of inertia of the print head around its center of gravity
	MassHead    float64 // [kg] mass of the print head
}

// DefaultParams returns parameters for a typical cartesian printer frame.
func DefaultParams() Params {
	return Params{
		ShearModulus: 70000,
		PolarMoment:  15000,
		Damping:      210000,
		MinHeightZ:   10,
		MinDistanceY: 25,
		OffsetX:      25,
		MomentYBeam:  333,
		MomentHead:   250,
		MassHead:     0.25,
	}
}

// Model couples the torsion equation to a planned trajectory. The y-axis
// acceleration sampler drives the inhomogeneous term, so the model is
// forward-only in time just like the sampler.
type Model struct {
	params Params
	accel  *machine.AccelerationSampler

	// Y is the head's distance from the reference zero position [mm].
	Y float64
	// Z is the height above the reference zero height [mm].
	Z float64
}

// New creates a torsion model driven by the given planned machine.
func New(m *machine.Machine, params Params) *Model {
	return &Model{
		params: params,
		accel:  m.NewAccelerationSampler(),
	}
}

// torsionSpring returns the torsional spring constant for the current
// height z.
func (md *Model) torsionSpring() float64 {
	return (md.params.ShearModulus * md.params.PolarMoment) / (md.params.MinHeightZ + md.Z)
}

// leverY returns the distance from the center of rotation to the head's
// center of mass for the current head position y.
func (md *Model) leverY() float64 {
	return md.params.MinDistanceY + md.Y
}

// inertia returns the moment of inertia of the y-arm plus head for the
// current lever length.
func (md *Model) inertia() float64 {
	l := md.leverY()
	return md.params.MomentYBeam + md.params.MomentHead + md.params.MassHead*l*l
}

// momentZ returns the torsional moment around the z-axis at time t. Once
// the planned motion is exhausted there is no further excitation.
func (md *Model) momentZ(t float64) float64 {
	_, _, ay, err := md.accel.Sample(t)
	if err != nil {
		// Past the end of the planned motion there is no excitation.
		if !errors.Is(err, errors.ErrSampleRange) {
			log.GetLogger("torsion").Warn("acceleration sampling failed: %v", err)
		}
		return 0
	}
	return md.params.OffsetX * md.params.MassHead * ay
}

// ExplicitEquation is the torsion equation in explicit form; the
// inhomogeneous term is included as the moment around z.
func (md *Model) ExplicitEquation(state []float64, _ float64, t float64) float64 {
	return (-md.torsionSpring()*state[0] - md.params.Damping*state[1] + md.momentZ(t)) / md.inertia()
}

// Simulate integrates the deflection over the planned motion using the
// given step distance. If tEnd <= 0 the total trajectory duration is used.
// It returns the time values and the deflection of the base function.
func Simulate(m *machine.Machine, params Params, tEnd, step float64) ([]float64, []float64, error) {
	if tEnd <= 0 {
		tEnd = m.TotalDuration()
	}

	md := New(m, params)
	s := solver.NewEuler(2)
	s.SetExplicitFunction(md.ExplicitEquation)
	if err := s.SetStartValues([]float64{0, 0, 0}); err != nil {
		return nil, nil, err
	}
	if err := s.Solve(tEnd, step); err != nil {
		return nil, nil, err
	}

	t, y := s.Solution(0)
	return t, y, nil
}
