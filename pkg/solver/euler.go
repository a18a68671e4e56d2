// Fixed-step explicit ODE integration
//
// Solves inhomogeneous differential equations of any order with
// non-constant coefficients using the explicit Euler method. Equations of
// the following form can be solved:
//
//	an(t)*y{n} + ... + a2(t)*y'' + a1(t)*y' + a0(t)*y = f(t)
//
// given in explicit form, i.e. solved for the highest derivative.
//
// Copyright (C) 2019-2026  Philipp Schaefer
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package solver

import (
	"github.com/theOehrly/ActiveVibrationSuppression/pkg/errors"
)

// ExplicitFunc computes the value of the highest derivative for one
// calculation step. It receives the current values of the base function
// and all lower derivatives [y, y', y'', ...], the value of the
// inhomogeneous term for this step (zero if no term is set), and the
// parameter t.
type ExplicitFunc func(state []float64, iht float64, t float64) float64

// InhomogeneousFunc computes the inhomogeneous term for one calculation
// step from the parameter t. Setting it is optional: the term may instead
// be included in the explicit function, or there may be none.
type InhomogeneousFunc func(t float64) float64

// Euler is a fixed-step explicit Euler solver for one equation.
type Euler struct {
	order int // order of the differential equation

	explicit ExplicitFunc
	iht      InhomogeneousFunc

	startValues []float64

	// state[d] holds the solution values of the d-th derivative, one entry
	// per calculation step.
	state  [][]float64
	paramT []float64

	t float64
	i int
}

// NewEuler creates a solver for an equation of the given order.
func NewEuler(order int) *Euler {
	return &Euler{
		order: order,
		iht:   func(t float64) float64 { return 0 },
	}
}

// SetExplicitFunction sets the function computing the value of the
// explicit differential equation, i.e. the highest derivative.
func (s *Euler) SetExplicitFunction(f ExplicitFunc) {
	s.explicit = f
}

// SetInhomogeneousTerm sets the optional function computing the
// inhomogeneous term.
func (s *Euler) SetInhomogeneousTerm(f InhomogeneousFunc) {
	s.iht = f
}

// SetStartValues sets the starting values (y0, y0', y0'', ...). The number
// of values must be the order of the equation plus one.
func (s *Euler) SetStartValues(values []float64) error {
	if len(values) != s.order+1 {
		return errors.SolverSetupError("invalid number of start values")
	}
	s.startValues = append([]float64{}, values...)
	return nil
}

// Reset clears the step index, the parameter t and all solution values so
// the solver can be rerun with different start values or step distance.
func (s *Euler) Reset() {
	s.t = 0
	s.i = 0
	s.state = nil
	s.paramT = nil
}

// Solve integrates from t = 0 until tEnd using the given step distance.
func (s *Euler) Solve(tEnd, stepDist float64) error {
	if s.explicit == nil {
		return errors.SolverSetupError("no explicit function set")
	}
	if len(s.startValues) != s.order+1 {
		return errors.SolverSetupError("start values not set")
	}
	if stepDist <= 0 {
		return errors.SolverSetupError("step distance must be positive")
	}

	s.state = make([][]float64, s.order+1)
	for d := range s.state {
		s.state[d] = []float64{s.startValues[d]}
	}
	s.paramT = []float64{0}
	s.t = 0
	s.i = 0

	scratch := make([]float64, s.order+1)
	for {
		// Advance the base function and all lower derivatives from the
		// last value of the respective higher derivative.
		for d := 0; d < s.order; d++ {
			s.state[d] = append(s.state[d], s.state[d][s.i]+stepDist*s.state[d+1][s.i])
		}

		// The highest derivative follows from the explicit equation at the
		// freshly advanced state.
		for d := 0; d < s.order; d++ {
			scratch[d] = s.state[d][s.i+1]
		}
		scratch[s.order] = s.state[s.order][s.i]
		iht := s.iht(s.t)
		s.state[s.order] = append(s.state[s.order], s.explicit(scratch, iht, s.t))

		s.paramT = append(s.paramT, s.t)

		if s.t >= tEnd {
			return nil
		}
		s.i++
		s.t += stepDist
	}
}

// Solution returns the parameter values and the solved values of the
// given derivative (0 = base function, 1 = first derivative, ...).
func (s *Euler) Solution(derivative int) ([]float64, []float64) {
	if derivative < 0 || derivative > s.order || s.state == nil {
		return nil, nil
	}
	return s.paramT, s.state[derivative]
}
