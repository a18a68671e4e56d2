// Unified error handling for the AVS host
//
// Copyright (C) 2019-2026  Philipp Schaefer
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package errors

import (
	"fmt"
)

// ErrorCode represents the category of error
type ErrorCode string

const (
	// Configuration errors
	ErrConfigSection    ErrorCode = "CONFIG_SECTION"
	ErrConfigOption     ErrorCode = "CONFIG_OPTION"
	ErrConfigValidation ErrorCode = "CONFIG_VALIDATION"
	ErrConfigType       ErrorCode = "CONFIG_TYPE"
	ErrConfigProfile    ErrorCode = "CONFIG_PROFILE"

	// G-code parsing errors
	ErrGCodeParse       ErrorCode = "GCODE_PARSE"
	ErrGCodeFormat      ErrorCode = "GCODE_FORMAT"
	ErrGCodeCommandWord ErrorCode = "GCODE_COMMAND_WORD"

	// Planning errors
	ErrPlanLimits ErrorCode = "PLAN_LIMITS"
	ErrPlanLayer  ErrorCode = "PLAN_LAYER"

	// Time sampler errors
	ErrSampleMonotonic ErrorCode = "SAMPLE_MONOTONIC"
	ErrSampleRange     ErrorCode = "SAMPLE_RANGE"

	// ODE solver errors
	ErrSolverSetup ErrorCode = "SOLVER_SETUP"
)

// HostError is the unified error type for the host system
type HostError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Line is the G-code line number (if applicable)
	Line int

	// Section is the config section or context
	Section string

	// Option is the config option name (if applicable)
	Option string

	// Err wraps the underlying error
	Err error
}

// Error implements the error interface
func (e *HostError) Error() string {
	if e.Option != "" {
		return fmt.Sprintf("[%s:%s] %s", e.Code, e.Option, e.Message)
	}
	if e.Section != "" {
		return fmt.Sprintf("[%s:%s] %s", e.Code, e.Section, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *HostError) Unwrap() error {
	return e.Err
}

// SetLine sets the G-code line number
func (e *HostError) SetLine(line int) *HostError {
	e.Line = line
	return e
}

// SetSection sets the context section
func (e *HostError) SetSection(section string) *HostError {
	e.Section = section
	return e
}

// SetOption sets the config option
func (e *HostError) SetOption(option string) *HostError {
	e.Option = option
	return e
}

// New creates a new HostError
func New(code ErrorCode, message string) *HostError {
	return &HostError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, code ErrorCode, message string) *HostError {
	return &HostError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Config errors

// ConfigSectionError creates an error for a missing config section
func ConfigSectionError(section string) *HostError {
	return New(ErrConfigSection, fmt.Sprintf("section '%s' not found", section)).
		SetSection(section)
}

// ConfigOptionError creates an error for a missing config option
func ConfigOptionError(section, option string) *HostError {
	return New(ErrConfigOption, fmt.Sprintf("option '%s' not found in section '%s'", option, section)).
		SetSection(section).
		SetOption(option)
}

// ConfigValidationError creates an error for config validation failure
func ConfigValidationError(section, option string, reason string) *HostError {
	return New(ErrConfigValidation, fmt.Sprintf("option '%s' in section '%s': %s", option, section, reason)).
		SetSection(section).
		SetOption(option)
}

// ConfigTypeError creates an error for config type conversion failure
func ConfigTypeError(section, option, value string, targetType string, err error) *HostError {
	return Wrap(err, ErrConfigType, fmt.Sprintf("option '%s' in section '%s': failed to parse '%s' as %s", option, section, value, targetType)).
		SetSection(section).
		SetOption(option)
}

// ConfigProfileError creates an error for an unknown machine profile
func ConfigProfileError(name string) *HostError {
	return New(ErrConfigProfile, fmt.Sprintf("machine profile '%s' not found", name)).
		SetSection(name)
}

// G-code errors

// GCodeParseError creates an error for G-code parsing failure
func GCodeParseError(line int, raw string, reason string) *HostError {
	return New(ErrGCodeParse, fmt.Sprintf("line %d is not valid: %q (%s)", line, raw, reason)).
		SetLine(line)
}

// GCodeFormatError creates an error for invalid G-code line formatting
func GCodeFormatError(line int, raw string, reason string) *HostError {
	return New(ErrGCodeFormat, fmt.Sprintf("line %d has invalid formatting: %q (%s)", line, raw, reason)).
		SetLine(line)
}

// GCodeCommandWordError creates an error for a bad or misplaced command word
func GCodeCommandWordError(line int, word string) *HostError {
	return New(ErrGCodeCommandWord, fmt.Sprintf("line %d: invalid command word '%s'", line, word)).
		SetLine(line)
}

// Planning errors

// PlanLimitsError creates an error for invalid kinematic limits
func PlanLimitsError(reason string) *HostError {
	return New(ErrPlanLimits, reason)
}

// PlanLayerError creates an error for an out-of-range layer index
func PlanLayerError(layer, count int) *HostError {
	return New(ErrPlanLayer, fmt.Sprintf("layer %d out of range (have %d layers)", layer, count))
}

// Sampler errors

// SampleMonotonicError creates an error for a backwards time query.
// Samplers are forward-only; a decreasing time index is a caller bug.
func SampleMonotonicError(t, last float64) *HostError {
	return New(ErrSampleMonotonic, fmt.Sprintf("time index %g is smaller than previous time index %g; samplers are unidirectional", t, last))
}

// SampleRangeError creates an error for a time query past the end of motion
func SampleRangeError(t float64) *HostError {
	return New(ErrSampleRange, fmt.Sprintf("time index %g exceeds the available motion", t))
}

// Solver errors

// SolverSetupError creates an error for invalid ODE solver setup
func SolverSetupError(reason string) *HostError {
	return New(ErrSolverSetup, reason)
}

// Is checks if the error matches the given error code
func Is(err error, code ErrorCode) bool {
	if hostErr, ok := err.(*HostError); ok {
		return hostErr.Code == code
	}
	return false
}

// IsConfig checks if the error is a config error
func IsConfig(err error) bool {
	return Is(err, ErrConfigSection) ||
		Is(err, ErrConfigOption) ||
		Is(err, ErrConfigValidation) ||
		Is(err, ErrConfigType) ||
		Is(err, ErrConfigProfile)
}

// IsGCode checks if the error is a G-code error
func IsGCode(err error) bool {
	return Is(err, ErrGCodeParse) ||
		Is(err, ErrGCodeFormat) ||
		Is(err, ErrGCodeCommandWord)
}

// IsSample checks if the error is a time sampler error
func IsSample(err error) bool {
	return Is(err, ErrSampleMonotonic) || Is(err, ErrSampleRange)
}
