// avs plans the motion of a cartesian stage from a G-code file and
// simulates the torsional response of its z axis.
//
// Usage:
//
//	avs -gcode part.gcode [options]
//
// Options:
//
//	-gcode string    G-code file to plan (required)
//	-config string   Machine profile file (default "avs.cfg", created if missing)
//	-profile string  Profile name to use (default "Default")
//	-csv string      Write time-sampled coordinates to a CSV file
//	-layer int       Restrict CSV export to one layer (-1 = whole path)
//	-interval float  Sample interval in seconds (default 0.01)
//	-torsion         Simulate the z-axis torsional response
//	-tend float      Simulation end time (default: total motion duration)
//	-step float      Simulation step size (default 0.0001)
//	-serve string    Serve the plan over HTTP/websocket on this address
//
// Examples:
//
//	# Plan a file and print a summary
//	avs -gcode part.gcode
//
//	# Export sampled coordinates of layer 3
//	avs -gcode part.gcode -csv layer3.csv -layer 3
//
//	# Serve the plan for a plotting frontend
//	avs -gcode part.gcode -serve :8723
//
// Copyright (C) 2019-2026  Philipp Schaefer
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/theOehrly/ActiveVibrationSuppression/pkg/config"
	"github.com/theOehrly/ActiveVibrationSuppression/pkg/gcode"
	"github.com/theOehrly/ActiveVibrationSuppression/pkg/log"
	"github.com/theOehrly/ActiveVibrationSuppression/pkg/machine"
	"github.com/theOehrly/ActiveVibrationSuppression/pkg/torsion"
	"github.com/theOehrly/ActiveVibrationSuppression/pkg/vis"
)

func main() {
	gcodeFile := flag.String("gcode", "", "G-code file to plan (required)")
	configFile := flag.String("config", "avs.cfg", "Machine profile file")
	profileName := flag.String("profile", "Default", "Profile name to use")
	csvFile := flag.String("csv", "", "Write time-sampled coordinates to a CSV file")
	layer := flag.Int("layer", -1, "Restrict CSV export to one layer (-1 = whole path)")
	interval := flag.Float64("interval", machine.DefaultSampleInterval, "Sample interval in seconds")
	simulate := flag.Bool("torsion", false, "Simulate the z-axis torsional response")
	tEnd := flag.Float64("tend", 0, "Simulation end time (default: total motion duration)")
	step := flag.Float64("step", 0.0001, "Simulation step size")
	serveAddr := flag.String("serve", "", "Serve the plan over HTTP/websocket on this address")

	flag.Parse()

	if *gcodeFile == "" {
		fmt.Fprintf(os.Stderr, "Error: -gcode is required\n")
		flag.Usage()
		os.Exit(1)
	}

	logger := log.GetLogger("avs")

	cfg, err := config.LoadOrCreate(*configFile)
	if err != nil {
		logger.Error("loading config: %v", err)
		os.Exit(1)
	}
	profile, err := cfg.Profile(*profileName)
	if err != nil {
		logger.Error("loading profile: %v", err)
		os.Exit(1)
	}

	layerDetection := true
	if cfg.HasSection("settings") {
		s, _ := cfg.GetSection("settings")
		layerDetection, err = s.GetBoolDefault("layer_detection", true)
		if err != nil {
			logger.Error("reading settings: %v", err)
			os.Exit(1)
		}
	}

	file := gcode.NewFile(gcode.Options{IgnoreInvalid: true})
	if err := file.Load(*gcodeFile); err != nil {
		logger.Error("parsing %s: %v", *gcodeFile, err)
		os.Exit(1)
	}

	m, err := machine.New(file.Commands, machine.Limits{
		MinSpeed:          profile.MinSpeed,
		Acceleration:      profile.Acceleration,
		JunctionDeviation: profile.JunctionDeviation,
	})
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
	m.SetLayerDetection(layerDetection)

	start := time.Now()
	m.Plan()
	logger.Info("planned %s with profile %q in %s",
		*gcodeFile, profile.Name, time.Since(start).Round(time.Millisecond))
	logger.Info("segments: %d path, %d acceleration, %d layers",
		len(m.PathSegments()), len(m.AccelerationSegments()), m.LayerCount())
	logger.Info("motion: %.1f units in %.2f s", m.TotalDistance(), m.TotalDuration())

	if *csvFile != "" {
		if err := exportCSV(m, *csvFile, *layer, *interval); err != nil {
			logger.Error("CSV export: %v", err)
			os.Exit(1)
		}
		logger.Info("wrote %s", *csvFile)
	}

	if *simulate {
		if err := runTorsion(m, *tEnd, *step); err != nil {
			logger.Error("torsion simulation: %v", err)
			os.Exit(1)
		}
	}

	if *serveAddr != "" {
		serve(m, profile.Name, *serveAddr)
	}
}

// exportCSV writes time-sampled x/y coordinates of the selected layer.
func exportCSV(m *machine.Machine, path string, layer int, interval float64) error {
	xs, ys, err := m.SampledCoordinates(layer, interval)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"t", "x", "y"}); err != nil {
		return err
	}
	for i := range xs {
		t := float64(i) * interval
		rec := []string{
			strconv.FormatFloat(t, 'f', -1, 64),
			strconv.FormatFloat(xs[i], 'f', -1, 64),
			strconv.FormatFloat(ys[i], 'f', -1, 64),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// runTorsion simulates the z-axis response and reports the peak deflection.
func runTorsion(m *machine.Machine, tEnd, step float64) error {
	logger := log.GetLogger("avs")

	start := time.Now()
	ts, phi, err := torsion.Simulate(m, torsion.DefaultParams(), tEnd, step)
	if err != nil {
		return err
	}

	var peak, peakT float64
	for i, v := range phi {
		if v > peak || -v > peak {
			if v < 0 {
				peak = -v
			} else {
				peak = v
			}
			peakT = ts[i]
		}
	}
	logger.Info("torsion: %d steps in %s, peak deflection %.4g at t=%.3f s",
		len(ts), time.Since(start).Round(time.Millisecond), peak, peakT)
	return nil
}

// serve blocks serving the plan until SIGINT/SIGTERM.
func serve(m *machine.Machine, profile, addr string) {
	logger := log.GetLogger("avs")

	srv := vis.New(vis.Config{Addr: addr, Plan: m, Profile: profile})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		if err := srv.Stop(); err != nil {
			logger.Warn("shutdown: %v", err)
		}
	}()

	if err := srv.Start(); err != nil {
		logger.Error("server: %v", err)
		os.Exit(1)
	}
}
