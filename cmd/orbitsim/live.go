package main

import (
	"context"
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/orbitsim/internal/config"
	"github.com/san-kum/orbitsim/internal/experiment"
)

const historyLen = 60

var (
	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	dimmer = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
)

type sampleMsg experiment.Sample

type doneMsg struct {
	res *experiment.Result
	err error
}

// liveModel shows the samples of a running experiment as they arrive.
type liveModel struct {
	name     string
	span     float64
	mass0    float64
	last     experiment.Sample
	samples  int
	altitude []float64

	res    *experiment.Result
	err    error
	done   bool
	cancel context.CancelFunc
}

func newLiveModel(cfg *config.Config, cancel context.CancelFunc) liveModel {
	return liveModel{
		name:     cfg.Name,
		span:     cfg.Duration,
		mass0:    cfg.Mass,
		altitude: make([]float64, 0, historyLen),
		cancel:   cancel,
	}
}

func (m liveModel) Init() tea.Cmd { return nil }

func (m liveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.cancel()
			return m, tea.Quit
		}
	case sampleMsg:
		m.last = experiment.Sample(msg)
		m.samples++
		if alt, ok := m.last.State.Additional(experiment.AltitudeState); ok {
			m.altitude = append(m.altitude, alt[0]/1e3)
			if len(m.altitude) > historyLen {
				m.altitude = m.altitude[1:]
			}
		}
	case doneMsg:
		m.res, m.err, m.done = msg.res, msg.err, true
		return m, tea.Quit
	}
	return m, nil
}

func (m liveModel) View() string {
	var b strings.Builder
	b.WriteString(cyan.Render(m.name))
	b.WriteString("\n\n")

	row := func(label, value string) {
		fmt.Fprintf(&b, "%s %s\n", dim.Render(fmt.Sprintf("%-10s", label)), white.Render(value))
	}
	row("time", fmt.Sprintf("%+.0f / %+.0f s", m.last.Time, m.span))
	b.WriteString(progressBar(m.last.Time/m.span, 30))
	b.WriteString("\n")

	if m.samples > 0 {
		s := m.last.State
		if alt, ok := s.Additional(experiment.AltitudeState); ok {
			row("altitude", fmt.Sprintf("%.3f km", alt[0]/1e3))
		}
		row("mass", fmt.Sprintf("%.3f kg (-%.3f)", s.Mass(), m.mass0-s.Mass()))
		if dv, ok := s.Additional(experiment.DeltaVState); ok {
			row("delta-v", fmt.Sprintf("%.3f m/s", dv[0]))
		}
		o := s.Orbit()
		row("a / e", fmt.Sprintf("%.3f km / %.6f", o.A()/1e3, o.E()))
	}
	if len(m.altitude) > 1 {
		row("alt hist", green.Render(sparkline(m.altitude, historyLen)))
	}

	b.WriteString("\n")
	switch {
	case m.err != nil:
		b.WriteString(yellow.Render(m.err.Error()))
	case m.done:
		b.WriteString(green.Render(fmt.Sprintf("done, %d samples", m.samples)))
	default:
		b.WriteString(dimmer.Render("q to stop"))
	}
	b.WriteString("\n")
	return box.Render(b.String())
}

func progressBar(frac float64, width int) string {
	if math.IsNaN(frac) {
		frac = 0
	}
	frac = math.Max(0, math.Min(1, frac))
	n := int(frac * float64(width))
	return green.Render(strings.Repeat("█", n)) + dimmer.Render(strings.Repeat("░", width-n))
}

func sparkline(data []float64, width int) string {
	if len(data) == 0 {
		return ""
	}
	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	lo, hi := data[0], data[0]
	for _, v := range data {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	rang := hi - lo
	if rang == 0 {
		rang = 1
	}
	if len(data) > width {
		data = data[len(data)-width:]
	}
	var sb strings.Builder
	for _, v := range data {
		idx := int((v - lo) / rang * 7)
		sb.WriteRune(chars[max(0, min(7, idx))])
	}
	return sb.String()
}

// runLive runs one scenario while a terminal view follows its samples.
// Quitting the view cancels the run.
func runLive(ctx context.Context, cfg *config.Config, opts ...experiment.Option) (*experiment.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var prog *tea.Program
	exp := experiment.New(cfg, append(opts, experiment.WithObserver(func(s experiment.Sample) {
		prog.Send(sampleMsg(s))
	}))...)
	if err := exp.Setup(); err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Name, err)
	}
	prog = tea.NewProgram(newLiveModel(cfg, cancel))

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		res, err := exp.Run(ctx)
		prog.Send(doneMsg{res: res, err: err})
	}()

	final, err := prog.Run()
	cancel()
	<-finished
	if err != nil {
		return nil, err
	}
	m := final.(liveModel)
	if !m.done {
		return nil, context.Canceled
	}
	return m.res, m.err
}
