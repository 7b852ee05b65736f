package events

import (
	"time"

	"github.com/san-kum/orbitsim/internal/spacecraft"
)

// Occurrence is one event found during a propagation.
type Occurrence struct {
	Name       string
	Date       time.Time
	Increasing bool
	Action     Action
	State      spacecraft.State
}

// Log records the events of the detectors it monitors. It is not safe for
// concurrent use, like the propagator feeding it.
type Log struct {
	entries []Occurrence
}

// Monitor wraps d so that every event it reports is appended to the log.
func (l *Log) Monitor(d Detector) Detector {
	name := "event"
	if n, ok := d.(interface{ Name() string }); ok {
		name = n.Name()
	}
	return &monitored{Detector: d, log: l, name: name}
}

func (l *Log) Occurrences() []Occurrence {
	out := make([]Occurrence, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) Clear() { l.entries = nil }

type monitored struct {
	Detector
	log  *Log
	name string
}

func (m *monitored) EventOccurred(s spacecraft.State, increasing bool) (Action, error) {
	a, err := m.Detector.EventOccurred(s, increasing)
	if err != nil {
		return a, err
	}
	m.log.entries = append(m.log.entries, Occurrence{
		Name:       m.name,
		Date:       s.Date(),
		Increasing: increasing,
		Action:     a,
		State:      s,
	})
	return a, nil
}
