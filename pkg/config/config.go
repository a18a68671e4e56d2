// Configuration file handling for the AVS host
//
// Settings are stored in an INI-style file with one [settings] section and
// any number of [profile NAME] sections. A profile describes one machine:
// its bed geometry, plot orientation and the kinematic limits used by the
// trajectory planner.
//
// Copyright (C) 2019-2026  Philipp Schaefer
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/theOehrly/ActiveVibrationSuppression/pkg/errors"
)

// Config provides access to a parsed configuration file.
type Config struct {
	sections map[string]*Section
	order    []string // Maintains section order
}

// Section is a single [name] block of options.
type Section struct {
	name    string
	options map[string]string
}

// New creates a new empty Config.
func New() *Config {
	return &Config{
		sections: make(map[string]*Section),
	}
}

// Load reads a configuration file and returns a Config.
func Load(path string) (*Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: invalid path %s: %w", path, err)
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("config: unable to open %s: %w", path, err)
	}
	defer f.Close()

	c := New()
	if err := c.parse(bufio.NewScanner(f), path); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadString parses configuration data from a string.
func LoadString(data string) (*Config, error) {
	c := New()
	if err := c.parse(bufio.NewScanner(strings.NewReader(data)), "<string>"); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) parse(scanner *bufio.Scanner, path string) error {
	var currentSection string
	var currentOptions map[string]string

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" {
			continue
		}

		// Strip comments
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
			if line == "" {
				continue
			}
		}

		// Section header
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			if currentSection != "" {
				c.addSection(currentSection, currentOptions)
			}

			header := strings.TrimSpace(line[1 : len(line)-1])
			if header == "" {
				return fmt.Errorf("config: empty section header at line %d in %s", lineNum, path)
			}
			currentSection = header
			currentOptions = make(map[string]string)
			continue
		}

		// Skip options before the first section
		if currentSection == "" {
			continue
		}

		// Parse key: value or key = value
		kv := strings.SplitN(line, ":", 2)
		if len(kv) != 2 {
			kv = strings.SplitN(line, "=", 2)
		}
		if len(kv) != 2 {
			// Invalid line - skip it
			continue
		}
		key := strings.ToLower(strings.TrimSpace(kv[0]))
		currentOptions[key] = strings.TrimSpace(kv[1])
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("config: error reading %s: %w", path, err)
	}

	if currentSection != "" {
		c.addSection(currentSection, currentOptions)
	}
	return nil
}

func (c *Config) addSection(name string, options map[string]string) {
	if existing, ok := c.sections[name]; ok {
		// Later definitions override earlier ones option by option
		for k, v := range options {
			existing.options[k] = v
		}
		return
	}
	c.sections[name] = &Section{name: name, options: options}
	c.order = append(c.order, name)
}

// HasSection reports whether the named section exists.
func (c *Config) HasSection(name string) bool {
	_, ok := c.sections[name]
	return ok
}

// GetSection returns the named section.
func (c *Config) GetSection(name string) (*Section, error) {
	s, ok := c.sections[name]
	if !ok {
		return nil, errors.ConfigSectionError(name)
	}
	return s, nil
}

// SectionNames returns all section names in file order.
func (c *Config) SectionNames() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// GetName returns the section name.
func (s *Section) GetName() string {
	return s.name
}

// Has reports whether the option exists in this section.
func (s *Section) Has(option string) bool {
	_, ok := s.options[strings.ToLower(option)]
	return ok
}

// Get returns the raw string value of an option.
func (s *Section) Get(option string) (string, error) {
	v, ok := s.options[strings.ToLower(option)]
	if !ok {
		return "", errors.ConfigOptionError(s.name, option)
	}
	return v, nil
}

// GetFloat returns the option parsed as a float64.
func (s *Section) GetFloat(option string) (float64, error) {
	v, err := s.Get(option)
	if err != nil {
		return 0, err
	}
	f, perr := strconv.ParseFloat(v, 64)
	if perr != nil {
		return 0, errors.ConfigTypeError(s.name, option, v, "float", perr)
	}
	return f, nil
}

// GetFloatDefault returns the option parsed as a float64, or def if absent.
func (s *Section) GetFloatDefault(option string, def float64) (float64, error) {
	if !s.Has(option) {
		return def, nil
	}
	return s.GetFloat(option)
}

// GetInt returns the option parsed as an int.
func (s *Section) GetInt(option string) (int, error) {
	v, err := s.Get(option)
	if err != nil {
		return 0, err
	}
	i, perr := strconv.Atoi(v)
	if perr != nil {
		return 0, errors.ConfigTypeError(s.name, option, v, "int", perr)
	}
	return i, nil
}

// GetBool returns the option parsed as a bool.
// Accepts true/false, yes/no, on/off, 1/0 (case-insensitive).
func (s *Section) GetBool(option string) (bool, error) {
	v, err := s.Get(option)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(v) {
	case "true", "yes", "on", "1":
		return true, nil
	case "false", "no", "off", "0":
		return false, nil
	}
	return false, errors.ConfigTypeError(s.name, option, v, "bool", fmt.Errorf("unrecognized boolean"))
}

// GetBoolDefault returns the option parsed as a bool, or def if absent.
func (s *Section) GetBoolDefault(option string, def bool) (bool, error) {
	if !s.Has(option) {
		return def, nil
	}
	return s.GetBool(option)
}
