// Copyright (C) 2019-2026  Philipp Schaefer
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func newTestLogger() (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := New("test")
	l.SetWriter(&buf)
	l.SetColorize(false)
	return l, &buf
}

func TestLevelFiltering(t *testing.T) {
	l, buf := newTestLogger()
	l.SetLevel(WARN)

	l.Debug("debug message")
	l.Info("info message")
	l.Warn("warn message")
	l.Error("error message")

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("messages below WARN were written:\n%s", out)
	}
	if !strings.Contains(out, "warn message") || !strings.Contains(out, "error message") {
		t.Errorf("WARN/ERROR messages missing:\n%s", out)
	}
}

func TestTextFormat(t *testing.T) {
	l, buf := newTestLogger()

	l.Info("planned %d segments", 42)

	out := buf.String()
	for _, want := range []string{"[INFO ]", "test: ", "planned 42 segments"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTextFormatFields(t *testing.T) {
	l, buf := newTestLogger()

	l.WithFields(INFO, "done", Fields{"b": 2, "a": 1})

	// Fields are rendered sorted by key.
	if !strings.Contains(buf.String(), "{a=1, b=2}") {
		t.Errorf("fields not rendered sorted:\n%s", buf.String())
	}
}

func TestJSONFormat(t *testing.T) {
	l, buf := newTestLogger()
	l.SetFormat(FormatJSON)

	l.WithFields(ERROR, "boom", Fields{"code": "X"})

	var entry struct {
		Level   string            `json:"level"`
		Logger  string            `json:"logger"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if entry.Level != "ERROR" || entry.Logger != "test" || entry.Message != "boom" {
		t.Errorf("entry = %+v", entry)
	}
	if entry.Fields["code"] != "X" {
		t.Errorf("fields = %v", entry.Fields)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   DEBUG,
		"INFO":    INFO,
		"Warning": WARN,
		"error":   ERROR,
		"bogus":   INFO,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestWithPrefix(t *testing.T) {
	l, buf := newTestLogger()
	l.SetLevel(DEBUG)

	sub := l.WithPrefix("sub")
	sub.Debug("hello")

	out := buf.String()
	if !strings.Contains(out, "sub: hello") {
		t.Errorf("derived logger lost writer or prefix:\n%s", out)
	}
}
