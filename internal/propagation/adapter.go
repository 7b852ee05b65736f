package propagation

import (
	"fmt"
	"log/slog"

	"github.com/san-kum/orbitsim/internal/dynamo"
	"github.com/san-kum/orbitsim/internal/events"
)

// eventAdapter presents a domain detector to the solver. Every callback
// sees the complete state rebuilt from the solver vector.
type eventAdapter struct {
	run      *run
	detector events.Detector
	logger   *slog.Logger
}

func newEventAdapter(r *run, d events.Detector, logger *slog.Logger) *eventAdapter {
	return &eventAdapter{run: r, detector: d, logger: logger}
}

func (a *eventAdapter) config() dynamo.EventConfig {
	return dynamo.EventConfig{
		MaxCheckInterval: a.detector.MaxCheckInterval(),
		Threshold:        a.detector.Threshold(),
		MaxIterations:    a.detector.MaxIterations(),
	}
}

func (a *eventAdapter) Init(t0 float64, y0 dynamo.State, t float64) error {
	s, err := a.run.completeState(t0, y0)
	if err != nil {
		return err
	}
	return a.detector.Init(s, a.run.mapper.TimeToEpoch(t))
}

func (a *eventAdapter) G(t float64, y dynamo.State) (float64, error) {
	s, err := a.run.completeState(t, y)
	if err != nil {
		return 0, err
	}
	return a.detector.G(s)
}

func (a *eventAdapter) EventOccurred(t float64, y dynamo.State, increasing bool) (dynamo.Action, error) {
	s, err := a.run.completeState(t, y)
	if err != nil {
		return dynamo.Continue, err
	}
	action, err := a.detector.EventOccurred(s, increasing)
	if err != nil {
		return dynamo.Continue, err
	}
	a.logger.Debug("event occurred",
		slog.Time("date", s.Date()),
		slog.Bool("increasing", increasing),
		slog.String("action", action.String()),
	)

	switch action {
	case events.Stop:
		return dynamo.Stop, nil
	case events.ResetState:
		return dynamo.ResetState, nil
	case events.ResetDerivatives:
		return dynamo.ResetDerivatives, nil
	case events.Continue:
		return dynamo.Continue, nil
	default:
		return dynamo.Continue, fmt.Errorf("unknown event action %v", action)
	}
}

// ResetState maps the state returned by the detector back into y: the
// primary block through the mapper, each additional block into its slot.
func (a *eventAdapter) ResetState(t float64, y dynamo.State) error {
	old, err := a.run.completeState(t, y)
	if err != nil {
		return err
	}
	s, err := a.detector.ResetState(old)
	if err != nil {
		return err
	}
	if !(s.Mass() > 0) {
		return &MassError{Mass: s.Mass()}
	}
	v, err := a.run.toVector(s)
	if err != nil {
		return err
	}
	copy(y, v)
	return nil
}
