// Copyright (C) 2019-2026  Philipp Schaefer
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package machine

import (
	"math"
	"testing"

	"github.com/theOehrly/ActiveVibrationSuppression/pkg/errors"
	"github.com/theOehrly/ActiveVibrationSuppression/pkg/gcode"
)

var testLimits = Limits{
	MinSpeed:          10,
	Acceleration:      1000,
	JunctionDeviation: 0.05,
}

// plan parses the given instruction lines and runs the full pipeline.
func plan(t *testing.T, limits Limits, lines ...string) *Machine {
	t.Helper()
	f := gcode.NewFile(gcode.Options{})
	for i, line := range lines {
		if err := f.ParseLine(line, i+1); err != nil {
			t.Fatalf("line %d %q: %v", i+1, line, err)
		}
	}
	m, err := New(f.Commands, limits)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m.Plan()
	return m
}

func approx(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestLimitsValidate(t *testing.T) {
	cases := []struct {
		name string
		l    Limits
	}{
		{"zero min speed", Limits{0, 1000, 0.05}},
		{"zero acceleration", Limits{10, 0, 0.05}},
		{"negative junction deviation", Limits{10, 1000, -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(nil, tc.l); !errors.Is(err, errors.ErrPlanLimits) {
				t.Errorf("New error = %v, want %s", err, errors.ErrPlanLimits)
			}
		})
	}

	if _, err := New(nil, testLimits); err != nil {
		t.Errorf("valid limits rejected: %v", err)
	}
}

func TestModalState(t *testing.T) {
	m := plan(t, testLimits,
		"G1 X10 F600",
		"G1 Y10",
	)

	segs := m.PathSegments()
	if len(segs) != 2 {
		t.Fatalf("got %d path segments, want 2", len(segs))
	}
	// Feed rate is commanded per minute and carried modally.
	for i, seg := range segs {
		if seg.NominalSpeed != 10 {
			t.Errorf("segment %d nominal speed = %v, want 10", i, seg.NominalSpeed)
		}
	}
	if segs[1].X != 10 || segs[1].Y != 10 {
		t.Errorf("segment 1 endpoint = (%v, %v), want (10, 10)", segs[1].X, segs[1].Y)
	}
}

func TestZeroDistanceSegment(t *testing.T) {
	m := plan(t, testLimits,
		"G1 X0 Y0 F600",
		"G1 X10",
		"G1 X10", // no positional change
		"G1 X20",
	)

	segs := m.PathSegments()
	if segs[2].Distance != 0 {
		t.Fatalf("segment 2 distance = %v, want 0", segs[2].Distance)
	}
	if segs[2].MaxEntrySpeed != 0 || segs[2].EntrySpeed != 0 {
		t.Errorf("stationary segment carries speed: entry=%v max=%v",
			segs[2].EntrySpeed, segs[2].MaxEntrySpeed)
	}
	// Zero-distance segments contribute no acceleration segments.
	for _, as := range m.AccelerationSegments() {
		if as.Path == 2 {
			t.Errorf("acceleration segment produced for stationary record: %+v", as)
		}
	}
	// The sequence stays aligned with the input records.
	if segs[2].Command != 2 || segs[3].Command != 3 {
		t.Errorf("command indices = %d, %d, want 2, 3", segs[2].Command, segs[3].Command)
	}
}

func TestJunctionCollinear(t *testing.T) {
	m := plan(t, testLimits,
		"G1 X0 Y0 F1200",
		"G1 X10",
		"G1 X20",
	)

	segs := m.PathSegments()
	// A straight junction imposes no geometric limit; the nominal speed of
	// the adjoining segments takes over.
	if segs[2].MaxEntrySpeed != 20 {
		t.Errorf("collinear junction max entry speed = %v, want 20", segs[2].MaxEntrySpeed)
	}
	if segs[2].EntrySpeed != 20 {
		t.Errorf("collinear junction entry speed = %v, want 20", segs[2].EntrySpeed)
	}
}

func TestJunctionFullReversal(t *testing.T) {
	limits := Limits{MinSpeed: 2, Acceleration: 1000, JunctionDeviation: 0.05}
	m := plan(t, limits,
		"G1 X0 Y0 F1200",
		"G1 X10",
		"G1 X0",
	)

	segs := m.PathSegments()
	// A full reversal clamps to the squared minimum speed constant.
	want := limits.MinSpeed * limits.MinSpeed
	if segs[2].MaxEntrySpeed != want {
		t.Errorf("reversal max entry speed = %v, want %v", segs[2].MaxEntrySpeed, want)
	}
}

func TestJunctionRightAngle(t *testing.T) {
	m := plan(t, testLimits,
		"G1 X0 Y0 F3000",
		"G1 X10",
		"G1 Y10",
	)

	// cos(theta) = 0 for a right angle.
	sinThetaD2 := math.Sqrt(0.5)
	want := math.Sqrt(testLimits.Acceleration * testLimits.JunctionDeviation * sinThetaD2 / (1 - sinThetaD2))

	segs := m.PathSegments()
	if !approx(segs[2].EntrySpeed, want, 1e-9) {
		t.Errorf("right angle entry speed = %v, want %v", segs[2].EntrySpeed, want)
	}
}

func TestJunctionMinSpeedFloor(t *testing.T) {
	// A junction deviation small enough that the geometric speed falls
	// below the minimum speed gets floored to it.
	limits := Limits{MinSpeed: 10, Acceleration: 1000, JunctionDeviation: 1e-6}
	m := plan(t, limits,
		"G1 X0 Y0 F3000",
		"G1 X10",
		"G1 Y10",
	)
	if got := m.PathSegments()[2].EntrySpeed; got != 10 {
		t.Errorf("entry speed = %v, want minimum speed 10", got)
	}
}

func TestForwardPassStartsFromStop(t *testing.T) {
	m := plan(t, testLimits,
		"G1 X0 Y0 F1200",
		"G1 X10",
	)
	// The first record has no predecessor: motion accelerates from zero.
	if got := m.PathSegments()[1].EntrySpeed; got != 0 {
		t.Errorf("initial entry speed = %v, want 0", got)
	}
}

func TestBackwardPassShortFinalSegment(t *testing.T) {
	m := plan(t, Limits{MinSpeed: 10, Acceleration: 1000, JunctionDeviation: 0.05},
		"G1 X0 Y0 F6000",
		"G1 X100",
		"G1 X101",
	)

	segs := m.PathSegments()
	// The last unit of travel must decelerate to a full stop; entering it
	// at nominal speed is infeasible.
	want := math.Sqrt(2 * 1000 * 1)
	if !approx(segs[2].EntrySpeed, want, 1e-9) {
		t.Errorf("final segment entry speed = %v, want %v", segs[2].EntrySpeed, want)
	}
	if !approx(segs[2].MaxEntrySpeed, want, 1e-9) {
		t.Errorf("final segment max entry speed = %v, want %v", segs[2].MaxEntrySpeed, want)
	}
}

func TestTrapezoidProfile(t *testing.T) {
	m := plan(t, testLimits,
		"G1 X0 Y0 F600",
		"G1 X100",
	)

	var phases []Phase
	sum := 0.0
	for _, as := range m.AccelerationSegments() {
		if as.Path != 1 {
			continue
		}
		phases = append(phases, as.Phase)
		sum += as.Distance
	}
	wantPhases := []Phase{PhaseAccelerate, PhaseCruise, PhaseDecelerate}
	if len(phases) != len(wantPhases) {
		t.Fatalf("got phases %v, want %v", phases, wantPhases)
	}
	for i := range phases {
		if phases[i] != wantPhases[i] {
			t.Fatalf("got phases %v, want %v", phases, wantPhases)
		}
	}
	if !approx(sum, 100, 1e-9) {
		t.Errorf("sub-segment distances sum to %v, want 100", sum)
	}
	if got := m.PathSegments()[1].MaxReachedSpeed; got != 10 {
		t.Errorf("max reached speed = %v, want nominal 10", got)
	}
	// 0.01 s accelerating, 9.99 s cruising, 0.01 s decelerating.
	if !approx(m.TotalDuration(), 10.01, 1e-9) {
		t.Errorf("total duration = %v, want 10.01", m.TotalDuration())
	}
}

func TestTriangleProfile(t *testing.T) {
	m := plan(t, testLimits,
		"G1 X0 Y0 F6000",
		"G1 X1",
	)

	var got []Phase
	for _, as := range m.AccelerationSegments() {
		if as.Path == 1 {
			got = append(got, as.Phase)
		}
	}
	// Too short to reach nominal speed: no cruise phase.
	if len(got) != 2 || got[0] != PhaseAccelerate || got[1] != PhaseDecelerate {
		t.Fatalf("got phases %v, want [accelerate decelerate]", got)
	}
	want := math.Sqrt(1000 * 1) // peak of the triangular profile
	if !approx(m.PathSegments()[1].MaxReachedSpeed, want, 1e-9) {
		t.Errorf("max reached speed = %v, want %v", m.PathSegments()[1].MaxReachedSpeed, want)
	}
}

func TestPlanIdempotent(t *testing.T) {
	m := plan(t, testLimits,
		"G1 X0 Y0 F1200",
		"G1 X10",
		"G1 Y10",
		"G1 X0",
	)

	paths := len(m.PathSegments())
	accels := len(m.AccelerationSegments())
	duration := m.TotalDuration()

	m.Plan()

	if len(m.PathSegments()) != paths {
		t.Errorf("re-plan changed path segment count: %d -> %d", paths, len(m.PathSegments()))
	}
	if len(m.AccelerationSegments()) != accels {
		t.Errorf("re-plan changed accel segment count: %d -> %d", accels, len(m.AccelerationSegments()))
	}
	if !approx(m.TotalDuration(), duration, 1e-12) {
		t.Errorf("re-plan changed total duration: %v -> %v", duration, m.TotalDuration())
	}
}

func TestLayerDetection(t *testing.T) {
	m := plan(t, testLimits,
		"G1 X0 Y0 F600", // 0
		"G1 X10",        // 1
		"G0 Z1",         // 2: height change arms a pending break
		"G1 X20",        // 3: printing move commits it
		"G0 Z2",         // 4: arm again
		"G0 Z1",         // 5: revert cancels the pending break
		"G1 X30",        // 6: no new layer
	)

	layers := m.Layers()
	if len(layers) != 2 || layers[0] != 0 || layers[1] != 3 {
		t.Fatalf("layers = %v, want [0 3]", layers)
	}
	if m.LayerCount() != 2 {
		t.Errorf("LayerCount() = %d, want 2", m.LayerCount())
	}
}

func TestLayerCommitOnHeightChangeMove(t *testing.T) {
	// The height change move itself is a printing move: the break commits
	// on the same record.
	m := plan(t, testLimits,
		"G1 X0 Y0 F600",
		"G1 X10",
		"G1 X20 Z1",
	)
	layers := m.Layers()
	if len(layers) != 2 || layers[1] != 2 {
		t.Errorf("layers = %v, want [0 2]", layers)
	}
}

func TestLayerDetectionDisabled(t *testing.T) {
	f := gcode.NewFile(gcode.Options{})
	for i, line := range []string{"G1 X0 Y0 F600", "G1 X10", "G1 X20 Z1"} {
		if err := f.ParseLine(line, i+1); err != nil {
			t.Fatal(err)
		}
	}
	m, err := New(f.Commands, testLimits)
	if err != nil {
		t.Fatal(err)
	}
	m.SetLayerDetection(false)
	m.Plan()

	if got := m.Layers(); len(got) != 1 || got[0] != 0 {
		t.Errorf("layers = %v, want [0]", got)
	}
}

func TestPathCoordinates(t *testing.T) {
	m := plan(t, testLimits,
		"G1 X0 Y0 F600",
		"G1 X10",
		"G0 Z1",
		"G1 X20",
		"G1 Y10",
	)

	xs, ys, err := m.PathCoordinates(1)
	if err != nil {
		t.Fatal(err)
	}
	wantX := []float64{20, 20}
	wantY := []float64{0, 10}
	if len(xs) != len(wantX) {
		t.Fatalf("layer 1 has %d points, want %d", len(xs), len(wantX))
	}
	for i := range xs {
		if xs[i] != wantX[i] || ys[i] != wantY[i] {
			t.Errorf("point %d = (%v, %v), want (%v, %v)", i, xs[i], ys[i], wantX[i], wantY[i])
		}
	}

	// Negative layer selects the whole path.
	xs, _, err = m.PathCoordinates(-1)
	if err != nil {
		t.Fatal(err)
	}
	if len(xs) != len(m.PathSegments()) {
		t.Errorf("whole path has %d points, want %d", len(xs), len(m.PathSegments()))
	}

	if _, _, err := m.PathCoordinates(5); !errors.Is(err, errors.ErrPlanLayer) {
		t.Errorf("out-of-range layer error = %v, want %s", err, errors.ErrPlanLayer)
	}
}

func TestMovesWithoutFeedRate(t *testing.T) {
	// Moves before the first F word have no commanded speed. They position
	// the machine but must not contribute planned motion time, and every
	// time-driven consumer must still terminate.
	m := plan(t, testLimits,
		"G1 X0 Y0",
		"G1 X10",
	)

	if got := m.TotalDuration(); got != 0 || math.IsInf(got, 1) {
		t.Errorf("total duration = %v, want 0", got)
	}
	if n := len(m.AccelerationSegments()); n != 0 {
		t.Errorf("%d acceleration segments for speedless moves, want 0", n)
	}

	xs, ys, err := m.SampledCoordinates(-1, 0.01)
	if err != nil {
		t.Fatal(err)
	}
	if len(xs) != 0 || len(ys) != 0 {
		t.Errorf("sampled %d points for a plan without motion time", len(xs))
	}
}

func TestLeadingTravelWithoutFeedRate(t *testing.T) {
	m := plan(t, testLimits,
		"G1 X0 Y0",
		"G0 X10",
		"G1 X20 F600",
		"G1 X30",
	)

	if got := m.TotalDuration(); math.IsInf(got, 1) || got <= 0 {
		t.Fatalf("total duration = %v, want finite and positive", got)
	}
	for _, as := range m.AccelerationSegments() {
		if as.Path == 1 {
			t.Errorf("acceleration segment produced for the speedless move: %+v", as)
		}
	}
	// The speedless travel forces a stop at its far end.
	if got := m.PathSegments()[2].EntrySpeed; got != 0 {
		t.Errorf("entry speed after speedless travel = %v, want 0", got)
	}

	// Sampling starts where the planned motion starts and terminates.
	xs, _, err := m.SampledCoordinates(-1, 0.01)
	if err != nil {
		t.Fatal(err)
	}
	if len(xs) == 0 {
		t.Fatal("no samples for planned motion")
	}
	if !approx(xs[0], 10, 1e-9) {
		t.Errorf("first sample x = %v, want 10", xs[0])
	}
	if last := xs[len(xs)-1]; last < 20 || last > 30 {
		t.Errorf("final sample x = %v, want within [20, 30]", last)
	}
}

func TestTotalDistance(t *testing.T) {
	m := plan(t, testLimits,
		"G1 X0 Y0 F600",
		"G1 X10",
		"G1 Y10",
	)
	if !approx(m.TotalDistance(), 20, 1e-12) {
		t.Errorf("total distance = %v, want 20", m.TotalDistance())
	}
}
