// Copyright (C) 2019-2026  Philipp Schaefer
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	plain := New(ErrPlanLimits, "acceleration must be positive")
	if got := plain.Error(); got != "[PLAN_LIMITS] acceleration must be positive" {
		t.Errorf("Error() = %q", got)
	}

	withSection := ConfigSectionError("settings")
	if !strings.Contains(withSection.Error(), "CONFIG_SECTION:settings") {
		t.Errorf("Error() = %q", withSection.Error())
	}

	withOption := ConfigOptionError("settings", "min_speed")
	if !strings.Contains(withOption.Error(), "CONFIG_OPTION:min_speed") {
		t.Errorf("Error() = %q", withOption.Error())
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := stderrors.New("underlying")
	err := Wrap(cause, ErrConfigType, "parse failed")

	if !stderrors.Is(err, cause) {
		t.Error("wrapped cause not reachable via errors.Is")
	}
	if err.Unwrap() != cause {
		t.Error("Unwrap() did not return the cause")
	}
}

func TestCodePredicates(t *testing.T) {
	if !Is(SampleRangeError(1.5), ErrSampleRange) {
		t.Error("Is() did not match the code")
	}
	if Is(SampleRangeError(1.5), ErrSampleMonotonic) {
		t.Error("Is() matched a different code")
	}
	if Is(stderrors.New("plain"), ErrSampleRange) {
		t.Error("Is() matched a non-host error")
	}

	if !IsConfig(ConfigProfileError("X")) || IsConfig(SampleRangeError(0)) {
		t.Error("IsConfig misclassifies")
	}
	if !IsGCode(GCodeParseError(1, "raw", "reason")) || IsGCode(ConfigProfileError("X")) {
		t.Error("IsGCode misclassifies")
	}
	if !IsSample(SampleMonotonicError(1, 2)) || !IsSample(SampleRangeError(3)) {
		t.Error("IsSample misclassifies")
	}
}

func TestContextSetters(t *testing.T) {
	err := GCodeFormatError(7, "G1X1", "missing space")
	if err.Line != 7 {
		t.Errorf("Line = %d, want 7", err.Line)
	}

	err = New(ErrConfigValidation, "bad").SetSection("profile X").SetOption("min_speed")
	if err.Section != "profile X" || err.Option != "min_speed" {
		t.Errorf("context = %q/%q", err.Section, err.Option)
	}
}
