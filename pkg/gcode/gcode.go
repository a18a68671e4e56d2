// G-code parsing for the AVS host
//
// Parses machine-control instruction files into an ordered sequence of
// commands. Each command is a mapping from single-letter words to numeric
// values, plus the trailing comment. The first word of an instruction must
// be a G, M or T command word; G and M are not allowed as parameters of
// another command.
//
// Copyright (C) 2019-2026  Philipp Schaefer
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package gcode

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/theOehrly/ActiveVibrationSuppression/pkg/errors"
)

// Command holds one parsed instruction line.
type Command struct {
	words map[string]float64

	cmdLetter string // "G", "M" or "T"; empty for comment-only lines
	cmdNumber int

	valid bool

	// Comment is the trailing comment including the ';' marker.
	Comment string

	// Line is the position of the instruction in the input file.
	Line int

	// Raw is the unmodified input line. Only kept when the KeepRaw or
	// KeepInvalid option is set.
	Raw string
}

// HasWord reports whether the command carries the given word letter.
// Letters are case-insensitive.
func (c *Command) HasWord(letter string) bool {
	_, ok := c.words[strings.ToUpper(letter)]
	return ok
}

// Word returns the numeric value of the given word letter.
func (c *Command) Word(letter string) (float64, bool) {
	v, ok := c.words[strings.ToUpper(letter)]
	return v, ok
}

// Type returns the normalized command type, e.g. "G1" for "g01".
func (c *Command) Type() string {
	if c.cmdLetter == "" {
		return ""
	}
	return fmt.Sprintf("%s%d", c.cmdLetter, c.cmdNumber)
}

// Number returns the command number, e.g. 15 for G15.
func (c *Command) Number() int {
	return c.cmdNumber
}

// IsType reports whether the command matches the given type.
// "G1", "G01" and "G001" are treated as equal.
func (c *Command) IsType(cmdType string) bool {
	if cmdType == "" || c.cmdLetter == "" {
		return false
	}
	if !strings.EqualFold(cmdType[:1], c.cmdLetter) {
		return false
	}
	n, err := strconv.Atoi(cmdType[1:])
	if err != nil {
		return false
	}
	return n == c.cmdNumber
}

// IsG reports whether this is a G command with the given number.
func (c *Command) IsG(number int) bool {
	return c.cmdLetter == "G" && c.cmdNumber == number
}

// IsM reports whether this is an M command with the given number.
func (c *Command) IsM(number int) bool {
	return c.cmdLetter == "M" && c.cmdNumber == number
}

// IsT reports whether this is a T command with the given number.
func (c *Command) IsT(number int) bool {
	return c.cmdLetter == "T" && c.cmdNumber == number
}

// G reports whether this is a G command.
func (c *Command) G() bool { return c.cmdLetter == "G" }

// M reports whether this is an M command.
func (c *Command) M() bool { return c.cmdLetter == "M" }

// T reports whether this is a T command.
func (c *Command) T() bool { return c.cmdLetter == "T" }

// Valid reports whether the parser fully understood this line.
func (c *Command) Valid() bool {
	return c.valid
}

// CommentOnly reports whether the line carries no instruction.
func (c *Command) CommentOnly() bool {
	return len(c.words) == 0
}

// Options controls how invalid input lines are treated.
type Options struct {
	// KeepInvalid keeps invalid lines as raw data. Useful if the G-code
	// should be written back to a file later.
	KeepInvalid bool

	// IgnoreInvalid skips invalid lines instead of failing on them.
	IgnoreInvalid bool

	// KeepRaw keeps the unmodified original line on every command.
	KeepRaw bool
}

// File holds all commands parsed from one instruction stream.
type File struct {
	opts Options

	// Commands is the ordered sequence of parsed instructions.
	Commands []*Command
}

// NewFile creates an empty File with the given options.
func NewFile(opts Options) *File {
	return &File{opts: opts}
}

// Load reads the file at path and parses every line in it.
func (f *File) Load(path string) error {
	fobj, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("gcode: unable to open %s: %w", path, err)
	}
	defer fobj.Close()

	scanner := bufio.NewScanner(fobj)
	n := 1
	for scanner.Scan() {
		if err := f.ParseLine(scanner.Text(), n); err != nil {
			return err
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("gcode: error reading %s: %w", path, err)
	}
	return nil
}

// ParseLine parses a single instruction line and appends the resulting
// command to f.Commands if it is valid (or kept per the file options).
func (f *File) ParseLine(line string, lineNumber int) error {
	if line == "" {
		return nil
	}

	cmd := &Command{
		words: make(map[string]float64),
		Line:  lineNumber,
	}
	if f.opts.KeepInvalid || f.opts.KeepRaw {
		cmd.Raw = line
	}

	// Clean up: drop line breaks and normalize tabs to spaces.
	cleaned := strings.NewReplacer("\r", "", "\n", "", "\t", " ").Replace(line)
	cleaned = strings.TrimLeft(cleaned, " ")

	instruction, comment := splitInstructionComment(cleaned)
	cmd.Comment = comment

	if instruction != "" {
		if err := f.parseInstruction(cmd, instruction, line, lineNumber); err != nil {
			return f.invalidLine(cmd, line, err)
		}
	}

	cmd.valid = true
	f.Commands = append(f.Commands, cmd)
	return nil
}

// splitInstructionComment splits a line into its instruction and comment
// parts at the first ';'.
func splitInstructionComment(line string) (string, string) {
	idx := strings.IndexByte(line, ';')
	if idx < 0 {
		return line, ""
	}
	return line[:idx], line[idx:]
}

// segmentInstruction splits an instruction into per-word segments.
// Example: "G02 X6 Y70" -> ["G02 ", "X6 ", "Y70"]. Every word letter after
// the first must be preceded by a space.
func segmentInstruction(instruction string, raw string, lineNumber int) ([]string, error) {
	for i := 1; i < len(instruction); i++ {
		if isLetter(instruction[i]) && instruction[i-1] != ' ' {
			return nil, errors.GCodeFormatError(lineNumber, raw,
				fmt.Sprintf("missing space before word '%c' at position %d", instruction[i], i+1))
		}
	}

	var segmented []string
	start := 0
	for i := 1; i < len(instruction); i++ {
		if isLetter(instruction[i]) {
			segmented = append(segmented, instruction[start:i])
			start = i
		}
	}
	segmented = append(segmented, instruction[start:])
	return segmented, nil
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func (f *File) parseInstruction(cmd *Command, instruction string, raw string, lineNumber int) error {
	// Collapse repeated spaces so word segmentation sees single separators.
	for strings.Contains(instruction, "  ") {
		instruction = strings.ReplaceAll(instruction, "  ", " ")
	}
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return nil
	}

	segmented, err := segmentInstruction(instruction, raw, lineNumber)
	if err != nil {
		return err
	}

	// The first word is the command word and must be G, M or T.
	cmdWord := strings.TrimSpace(segmented[0])
	letter := strings.ToUpper(cmdWord[:1])
	if letter != "G" && letter != "M" && letter != "T" {
		return errors.GCodeCommandWordError(lineNumber, cmdWord)
	}
	number, err := parseWordValue(cmdWord[1:])
	if err != nil || number != math.Trunc(number) {
		// Command numbers are integral; "G1.5" is not a command.
		return errors.GCodeCommandWordError(lineNumber, cmdWord)
	}
	cmd.cmdLetter = letter
	cmd.cmdNumber = int(number)
	cmd.words[letter] = number

	for _, seg := range segmented[1:] {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		key := strings.ToUpper(seg[:1])

		// Multiple commands on one line are not allowed; T may occur as a
		// parameter of M and G commands.
		if key == "G" || key == "M" {
			return errors.GCodeParseError(lineNumber, raw,
				fmt.Sprintf("command '%s' is not allowed as a parameter", seg))
		}

		value, err := parseWordValue(seg[1:])
		if err != nil {
			return errors.GCodeParseError(lineNumber, raw,
				fmt.Sprintf("failed to separate word '%s' into letter and value", seg))
		}
		cmd.words[key] = value
	}
	return nil
}

// parseWordValue parses the numeric part of a word. Interior spaces are
// tolerated ("X 0.1234" is valid per the NIST examples).
func parseWordValue(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// invalidLine handles an invalid line depending on the file options: the
// line is either kept unparsed, silently discarded, or the parse error is
// returned.
func (f *File) invalidLine(cmd *Command, line string, err error) error {
	switch {
	case f.opts.IgnoreInvalid && f.opts.KeepInvalid:
		cmd.Raw = line
		cmd.words = make(map[string]float64)
		cmd.cmdLetter = ""
		cmd.cmdNumber = 0
		cmd.valid = false
		f.Commands = append(f.Commands, cmd)
		return nil
	case f.opts.IgnoreInvalid:
		return nil
	default:
		return err
	}
}
