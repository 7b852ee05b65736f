package main

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/orbitsim/internal/config"
	"github.com/san-kum/orbitsim/internal/experiment"
)

var (
	cyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	white  = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	box    = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("238")).
		Padding(0, 1)
)

func renderSummary(runID string, cfg *config.Config, res *experiment.Result) string {
	var b strings.Builder
	b.WriteString(cyan.Render(res.Name))
	if runID != "" {
		b.WriteString(dim.Render("  " + runID))
	}
	b.WriteString("\n")

	row := func(label, value string) {
		fmt.Fprintf(&b, "%s %s\n", dim.Render(fmt.Sprintf("%-14s", label)), white.Render(value))
	}
	o := res.Final.Orbit()
	row("integrator", cfg.Integrator)
	row("elements", cfg.OrbitType+"/"+cfg.AngleType)
	row("final date", res.Final.Date().Format("2006-01-02 15:04:05.000"))
	row("a / e / i", fmt.Sprintf("%.3f km / %.6f / %.4f°", o.A()/1e3, o.E(), o.I()*180/math.Pi))
	row("mass", fmt.Sprintf("%.3f kg", res.Final.Mass()))
	row("samples", fmt.Sprint(len(res.Samples)))
	row("evaluations", fmt.Sprint(res.Calls))
	row("elapsed", res.Elapsed.String())
	if res.StoppedEarly {
		row("stopped", yellow.Render("before target"))
	}

	for _, ev := range res.Events {
		row("event", fmt.Sprintf("%s at +%.3fs (%s)", ev.Name, ev.Date.Sub(cfg.Epoch).Seconds(), ev.Action))
	}

	names := make([]string, 0, len(res.Metrics))
	for name := range res.Metrics {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		row(name, fmt.Sprintf("%.6g", res.Metrics[name]))
	}

	return box.Render(strings.TrimRight(b.String(), "\n"))
}
