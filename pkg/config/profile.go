// Machine profiles
//
// Copyright (C) 2019-2026  Philipp Schaefer
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/theOehrly/ActiveVibrationSuppression/pkg/errors"
)

const profilePrefix = "profile "

// Profile holds the per-machine settings read from one [profile NAME]
// section. The kinematic values are read once at the start of each planning
// run and passed into the planner explicitly.
type Profile struct {
	Name string

	// Bed geometry for plotting
	BedMinX float64
	BedMinY float64
	BedMaxX float64
	BedMaxY float64

	// Plot orientation
	InvertX bool
	InvertY bool

	// Kinematic limits, all positive reals
	MinSpeed          float64 // units/s
	Acceleration      float64 // units/s^2
	JunctionDeviation float64
}

// DefaultConfig is written when no configuration file exists yet.
const DefaultConfig = `# ActiveVibrationSuppression configuration

[settings]
# layer_detection: detect layer changes from Z moves
layer_detection: true

[profile Default]
bed_min_x: 0
bed_min_y: 0
bed_max_x: 200
bed_max_y: 200
invert_x: false
invert_y: false
min_speed: 10
acceleration: 2500
junction_deviation: 0.05
`

// ListProfiles returns the names of all machine profiles in file order.
func (c *Config) ListProfiles() []string {
	var names []string
	for _, name := range c.order {
		if strings.HasPrefix(name, profilePrefix) {
			names = append(names, strings.TrimSpace(name[len(profilePrefix):]))
		}
	}
	return names
}

// Profile reads and validates the named machine profile.
func (c *Config) Profile(name string) (*Profile, error) {
	section := profilePrefix + name
	if !c.HasSection(section) {
		return nil, errors.ConfigProfileError(name)
	}
	s := c.sections[section]

	p := &Profile{Name: name}
	var err error

	if p.BedMinX, err = s.GetFloatDefault("bed_min_x", 0); err != nil {
		return nil, err
	}
	if p.BedMinY, err = s.GetFloatDefault("bed_min_y", 0); err != nil {
		return nil, err
	}
	if p.BedMaxX, err = s.GetFloatDefault("bed_max_x", 200); err != nil {
		return nil, err
	}
	if p.BedMaxY, err = s.GetFloatDefault("bed_max_y", 200); err != nil {
		return nil, err
	}
	if p.InvertX, err = s.GetBoolDefault("invert_x", false); err != nil {
		return nil, err
	}
	if p.InvertY, err = s.GetBoolDefault("invert_y", false); err != nil {
		return nil, err
	}
	if p.MinSpeed, err = s.GetFloat("min_speed"); err != nil {
		return nil, err
	}
	if p.Acceleration, err = s.GetFloat("acceleration"); err != nil {
		return nil, err
	}
	if p.JunctionDeviation, err = s.GetFloat("junction_deviation"); err != nil {
		return nil, err
	}

	if p.MinSpeed <= 0 {
		return nil, errors.ConfigValidationError(section, "min_speed", "must be a positive value")
	}
	if p.Acceleration <= 0 {
		return nil, errors.ConfigValidationError(section, "acceleration", "must be a positive value")
	}
	if p.JunctionDeviation <= 0 {
		return nil, errors.ConfigValidationError(section, "junction_deviation", "must be a positive value")
	}
	return p, nil
}

// LoadOrCreate loads the configuration file at path, writing the default
// configuration first if the file does not exist yet.
func LoadOrCreate(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if werr := os.WriteFile(path, []byte(DefaultConfig), 0644); werr != nil {
			return nil, fmt.Errorf("config: unable to create %s: %w", path, werr)
		}
	}
	return Load(path)
}
