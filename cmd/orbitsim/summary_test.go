package main

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/san-kum/orbitsim/internal/config"
	"github.com/san-kum/orbitsim/internal/experiment"
)

func TestRenderSummary(t *testing.T) {
	cfg := config.GetPreset("molniya")
	exp := experiment.New(cfg, experiment.WithLogger(slog.New(slog.DiscardHandler)))
	if err := exp.Setup(); err != nil {
		t.Fatal(err)
	}
	res, err := exp.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	out := renderSummary("molniya_test", cfg, res)
	for _, want := range []string{"molniya", "molniya_test", "apogee", "before target", "energy_drift"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary misses %q:\n%s", want, out)
		}
	}
}

func TestPresetEvents(t *testing.T) {
	if got := presetEvents(config.GetPreset("leo")); got != "-" {
		t.Errorf("expected no events, got %s", got)
	}
	if got := presetEvents(config.GetPreset("transfer")); got != "thrust, maneuver" {
		t.Errorf("unexpected events %s", got)
	}
}

func TestParseSweep(t *testing.T) {
	names, ranges, err := parseSweep([]string{"step=10, 30,60", "mass=500"})
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "step" || names[1] != "mass" {
		t.Errorf("unexpected names %v", names)
	}
	if len(ranges[0]) != 3 || ranges[0][1] != 30 || ranges[1][0] != 500 {
		t.Errorf("unexpected ranges %v", ranges)
	}

	for _, bad := range [][]string{nil, {"step"}, {"step="}, {"step=fast"}} {
		if _, _, err := parseSweep(bad); err == nil {
			t.Errorf("expected error for %v", bad)
		}
	}
}
