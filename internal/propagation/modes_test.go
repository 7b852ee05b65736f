package propagation_test

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/orbitsim/internal/dynamo"
	"github.com/san-kum/orbitsim/internal/events"
	"github.com/san-kum/orbitsim/internal/integrators"
	"github.com/san-kum/orbitsim/internal/orbit"
	"github.com/san-kum/orbitsim/internal/propagation"
	"github.com/san-kum/orbitsim/internal/spacecraft"
)

// constantRate integrates each component at a fixed rate.
func constantRate(rates ...float64) propagation.AdditionalEquations {
	return propagation.AdditionalEquationsFunc(func(spacecraft.State, []float64) (propagation.Derivatives, error) {
		return propagation.Derivatives{Own: append([]float64(nil), rates...)}, nil
	})
}

type radiusProvider struct{}

func (radiusProvider) Name() string { return "radius" }

func (radiusProvider) AdditionalState(s spacecraft.State) ([]float64, error) {
	return []float64{s.Orbit().Radius()}, nil
}

var _ = Describe("Additional states", func() {
	var (
		p       *propagation.Propagator
		initial spacecraft.State
	)

	BeforeEach(func() {
		p = newPropagator(newIntegrator())
		initial, _ = p.InitialState()
	})

	It("integrates additional equations", func() {
		Expect(p.AddAdditionalEquations("linear", 2, constantRate(1, -2))).To(Succeed())
		Expect(p.SetInitialState(initial.WithAdditional("linear", 10, 0))).To(Succeed())

		final, err := p.Propagate(at(3200))
		Expect(err).NotTo(HaveOccurred())
		v, ok := final.Additional("linear")
		Expect(ok).To(BeTrue())
		Expect(v[0]).To(BeNumerically("~", 3210, 1e-6))
		Expect(v[1]).To(BeNumerically("~", -6400, 1e-6))
		expectKeplerian(initial, final, 3200, 1e-9)
	})

	It("passes the reconstructed state and own block", func() {
		var seen []float64
		Expect(p.AddAdditionalEquations("clock", 1, constantRate(1))).To(Succeed())
		Expect(p.AddAdditionalEquations("watch", 1, propagation.AdditionalEquationsFunc(
			func(s spacecraft.State, own []float64) (propagation.Derivatives, error) {
				clock, ok := s.Additional("clock")
				if !ok {
					return propagation.Derivatives{}, errors.New("clock missing")
				}
				seen = append(seen, clock[0]-s.Date().Sub(initDate).Seconds())
				own[0] = 42
				return propagation.Derivatives{Own: []float64{0}}, nil
			}))).To(Succeed())
		Expect(p.SetInitialState(initial.WithAdditional("clock", 0).WithAdditional("watch", 7))).To(Succeed())

		final, err := p.Propagate(at(1000))
		Expect(err).NotTo(HaveOccurred())
		Expect(seen).NotTo(BeEmpty())
		for _, d := range seen {
			Expect(d).To(BeNumerically("~", 0, 1e-6))
		}
		w, _ := final.Additional("watch")
		Expect(w).To(Equal([]float64{7}))
	})

	It("couples into the primary derivatives", func() {
		p = newCartesianPropagator()
		const boost = 1e-3
		Expect(p.AddAdditionalEquations("push", 1, propagation.AdditionalEquationsFunc(
			func(s spacecraft.State, _ []float64) (propagation.Derivatives, error) {
				u := s.Orbit().Velocity().Normalize()
				return propagation.Derivatives{
					Own:     []float64{0},
					Primary: []float64{0, 0, 0, boost * u[0], boost * u[1], boost * u[2], 0},
				}, nil
			}))).To(Succeed())
		Expect(p.SetInitialState(initial.WithAdditional("push", 0))).To(Succeed())

		final, err := p.Propagate(at(600))
		Expect(err).NotTo(HaveOccurred())
		Expect(final.Orbit().Energy()).To(BeNumerically(">", initial.Orbit().Energy()))
		Expect(final.Orbit().A()).To(BeNumerically(">", initial.Orbit().A()))
	})

	It("rejects duplicate and empty sets", func() {
		Expect(p.AddAdditionalEquations("linear", 1, constantRate(1))).To(Succeed())
		Expect(p.AddAdditionalEquations("linear", 1, constantRate(1))).
			To(MatchError(propagation.ErrDuplicateAdditionalName))
		Expect(p.AddAdditionalStateProvider(radiusProvider{})).To(Succeed())
		Expect(p.AddAdditionalEquations("radius", 1, constantRate(1))).
			To(MatchError(propagation.ErrDuplicateAdditionalName))
		Expect(p.AddAdditionalEquations("empty", 0, constantRate())).NotTo(Succeed())
	})

	It("rejects nil equations and providers", func() {
		Expect(p.AddAdditionalEquations("nothing", 1, nil)).To(MatchError(propagation.ErrNilAdditional))
		Expect(p.AddAdditionalStateProvider(nil)).To(MatchError(propagation.ErrNilAdditional))
		Expect(p.ManagedStates()).To(BeEmpty())
	})

	It("requires an initial value for every set", func() {
		Expect(p.AddAdditionalEquations("linear", 1, constantRate(1))).To(Succeed())
		_, err := p.Propagate(at(100))
		Expect(err).To(MatchError(propagation.ErrMissingAdditionalState))
		Expect(p.Calls()).To(BeZero())
	})

	It("checks initial value dimensions", func() {
		Expect(p.AddAdditionalEquations("linear", 2, constantRate(1, 1))).To(Succeed())
		Expect(p.SetInitialState(initial.WithAdditional("linear", 1))).To(Succeed())
		_, err := p.Propagate(at(100))
		Expect(err).To(MatchError(propagation.ErrAdditionalDimension))
	})

	It("checks derivative dimensions", func() {
		Expect(p.AddAdditionalEquations("linear", 2, constantRate(1))).To(Succeed())
		Expect(p.SetInitialState(initial.WithAdditional("linear", 0, 0))).To(Succeed())
		_, err := p.Propagate(at(100))
		Expect(err).To(MatchError(propagation.ErrAdditionalDimension))
	})

	It("forgets cleared sets", func() {
		Expect(p.AddAdditionalEquations("linear", 1, constantRate(1))).To(Succeed())
		Expect(p.IsAdditionalStateManaged("linear")).To(BeTrue())
		p.ClearAdditionalEquations()
		Expect(p.IsAdditionalStateManaged("linear")).To(BeFalse())
		_, err := p.Propagate(at(100))
		Expect(err).NotTo(HaveOccurred())
	})

	It("carries unmanaged states unchanged", func() {
		Expect(p.SetInitialState(initial.WithAdditional("tag", 3, 4))).To(Succeed())
		final, err := p.Propagate(at(1000))
		Expect(err).NotTo(HaveOccurred())
		v, ok := final.Additional("tag")
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal([]float64{3, 4}))
	})

	It("refreshes provided states", func() {
		Expect(p.AddAdditionalStateProvider(radiusProvider{})).To(Succeed())
		Expect(p.ManagedStates()).To(Equal([]string{"radius"}))

		var checked int
		p.SetMasterMode(propagation.StepHandlerFunc(func(v *propagation.StepView, _ bool) error {
			s, err := v.InterpolatedState()
			if err != nil {
				return err
			}
			r, ok := s.Additional("radius")
			Expect(ok).To(BeTrue())
			Expect(r[0]).To(Equal(s.Orbit().Radius()))
			checked++
			return nil
		}))
		final, err := p.Propagate(at(1000))
		Expect(err).NotTo(HaveOccurred())
		Expect(checked).To(BeNumerically(">", 0))
		r, _ := final.Additional("radius")
		Expect(r[0]).To(Equal(final.Orbit().Radius()))
	})

	It("lists providers before equations", func() {
		Expect(p.AddAdditionalEquations("linear", 1, constantRate(1))).To(Succeed())
		Expect(p.AddAdditionalStateProvider(radiusProvider{})).To(Succeed())
		Expect(p.ManagedStates()).To(Equal([]string{"radius", "linear"}))
	})
})

var _ = Describe("Modes", func() {
	var (
		p       *propagation.Propagator
		initial spacecraft.State
	)

	BeforeEach(func() {
		p = newPropagator(newIntegrator())
		initial, _ = p.InitialState()
	})

	Describe("master", func() {
		It("delivers contiguous steps up to the target", func() {
			var (
				prev  time.Time
				last  time.Time
				steps int
				final bool
			)
			p.SetMasterMode(propagation.StepHandlerFunc(func(v *propagation.StepView, isLast bool) error {
				if steps == 0 {
					Expect(v.PreviousDate()).To(BeTemporally("==", initDate))
				} else {
					Expect(v.PreviousDate()).To(BeTemporally("==", prev))
				}
				Expect(v.IsForward()).To(BeTrue())
				Expect(v.InterpolatedDate()).To(BeTemporally("==", v.CurrentDate()))
				prev, last, final = v.CurrentDate(), v.CurrentDate(), isLast
				steps++
				return nil
			}))
			_, err := p.Propagate(at(3200))
			Expect(err).NotTo(HaveOccurred())
			Expect(steps).To(BeNumerically(">", 1))
			Expect(final).To(BeTrue())
			Expect(last).To(BeTemporally("==", at(3200)))
		})

		It("interpolates inside a step", func() {
			p.SetMasterMode(propagation.StepHandlerFunc(func(v *propagation.StepView, _ bool) error {
				mid := v.PreviousDate().Add(v.CurrentDate().Sub(v.PreviousDate()) / 2)
				v.SetInterpolatedDate(mid)
				s, err := v.InterpolatedState()
				if err != nil {
					return err
				}
				Expect(s.Date()).To(BeTemporally("~", mid, time.Microsecond))
				want, err := initial.Orbit().ShiftedBy(mid.Sub(initDate).Seconds())
				Expect(err).NotTo(HaveOccurred())
				Expect(distance(s.Orbit().Position(), want.Position())).To(BeNumerically("<", 10))
				return nil
			}))
			_, err := p.Propagate(at(3200))
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns handler errors from a backward run", func() {
			var (
				steps int
				prev  time.Time
			)
			p.SetMasterMode(propagation.StepHandlerFunc(func(v *propagation.StepView, _ bool) error {
				Expect(v.IsForward()).To(BeFalse())
				if !prev.IsZero() {
					Expect(v.CurrentDate()).To(BeTemporally("<", prev))
				}
				prev = v.CurrentDate()
				steps++
				if steps == 3 {
					return errDummy
				}
				return nil
			}))
			_, err := p.Propagate(at(-3600))
			Expect(err).To(BeIdenticalTo(errDummy))
			Expect(steps).To(Equal(3))
		})

		It("initializes the handler with the run bounds", func() {
			var (
				start  spacecraft.State
				target time.Time
			)
			p.SetMasterMode(&recordingHandler{
				init: func(s spacecraft.State, t time.Time) { start, target = s, t },
				step: func(*propagation.StepView, bool) error { return nil },
			})
			_, err := p.Propagate(at(500))
			Expect(err).NotTo(HaveOccurred())
			Expect(start.Date()).To(BeTemporally("==", initDate))
			Expect(target).To(BeTemporally("==", at(500)))
		})

		It("falls back to slave mode without a handler", func() {
			p.SetMasterMode(nil)
			Expect(p.Mode()).To(Equal(propagation.SlaveMode{}))
		})
	})

	Describe("fixed step", func() {
		record := func(dates *[]time.Time, lasts *int) propagation.FixedStepHandler {
			return propagation.FixedStepHandlerFunc(func(s spacecraft.State, isLast bool) error {
				*dates = append(*dates, s.Date())
				if isLast {
					*lasts++
				}
				return nil
			})
		}

		It("reports every grid point including both ends", func() {
			var (
				dates []time.Time
				lasts int
			)
			Expect(p.SetMasterModeFixedStep(100*time.Second, record(&dates, &lasts))).To(Succeed())
			_, err := p.Propagate(at(1000))
			Expect(err).NotTo(HaveOccurred())
			Expect(dates).To(HaveLen(11))
			Expect(lasts).To(Equal(1))
			for i, d := range dates {
				Expect(d).To(BeTemporally("~", at(float64(100*i)), time.Microsecond))
			}
		})

		It("adds the final state off the grid", func() {
			var (
				dates []time.Time
				lasts int
			)
			Expect(p.SetMasterModeFixedStep(100*time.Second, record(&dates, &lasts))).To(Succeed())
			_, err := p.Propagate(at(1050))
			Expect(err).NotTo(HaveOccurred())
			Expect(dates).To(HaveLen(12))
			Expect(dates[11]).To(BeTemporally("==", at(1050)))
		})

		It("walks backward", func() {
			var (
				dates []time.Time
				lasts int
			)
			Expect(p.SetMasterModeFixedStep(100*time.Second, record(&dates, &lasts))).To(Succeed())
			_, err := p.Propagate(at(-1000))
			Expect(err).NotTo(HaveOccurred())
			Expect(dates).To(HaveLen(11))
			Expect(dates[10]).To(BeTemporally("~", at(-1000), time.Microsecond))
		})

		It("rejects non-positive steps", func() {
			var dates []time.Time
			var lasts int
			Expect(p.SetMasterModeFixedStep(0, record(&dates, &lasts))).NotTo(Succeed())
		})
	})

	Describe("ephemeris", func() {
		It("covers the run forward", func() {
			p.SetEphemerisMode()
			_, err := p.GeneratedEphemeris()
			Expect(err).To(MatchError(propagation.ErrNoEphemeris))

			final, err := p.Propagate(at(3200))
			Expect(err).NotTo(HaveOccurred())
			eph, err := p.GeneratedEphemeris()
			Expect(err).NotTo(HaveOccurred())
			Expect(eph.StartDate()).To(BeTemporally("==", initDate))
			Expect(eph.MinDate()).To(BeTemporally("==", initDate))
			Expect(eph.MaxDate()).To(BeTemporally("==", at(3200)))

			end, err := eph.Propagate(at(3200))
			Expect(err).NotTo(HaveOccurred())
			Expect(distance(end.Orbit().Position(), final.Orbit().Position())).To(BeNumerically("<", 1e-3))

			for _, dt := range []float64{0, 700, 1600, 2900, 3210} {
				s, err := eph.Propagate(at(dt))
				Expect(err).NotTo(HaveOccurred())
				Expect(s.Date()).To(BeTemporally("~", at(dt), time.Microsecond))
				expectKeplerian(initial, s, dt, 1e-6)
			}
		})

		It("covers the run backward", func() {
			p.SetEphemerisMode()
			_, err := p.Propagate(at(-3200))
			Expect(err).NotTo(HaveOccurred())
			eph, err := p.GeneratedEphemeris()
			Expect(err).NotTo(HaveOccurred())
			Expect(eph.StartDate()).To(BeTemporally("==", initDate))
			Expect(eph.MinDate()).To(BeTemporally("==", at(-3200)))
			Expect(eph.MaxDate()).To(BeTemporally("==", initDate))
		})

		It("stays valid after the propagator moves on", func() {
			p.SetEphemerisMode()
			Expect(p.AddAdditionalEquations("clock", 1, constantRate(1))).To(Succeed())
			Expect(p.SetInitialState(initial.WithAdditional("clock", 0))).To(Succeed())
			_, err := p.Propagate(at(1000))
			Expect(err).NotTo(HaveOccurred())
			eph, err := p.GeneratedEphemeris()
			Expect(err).NotTo(HaveOccurred())
			before, err := eph.Propagate(at(500))
			Expect(err).NotTo(HaveOccurred())

			p.ClearAdditionalEquations()
			Expect(p.SetOrbitType(orbit.Cartesian)).To(Succeed())
			_, err = p.Propagate(at(2000))
			Expect(err).NotTo(HaveOccurred())

			after, err := eph.Propagate(at(500))
			Expect(err).NotTo(HaveOccurred())
			Expect(after.Orbit().Position()).To(Equal(before.Orbit().Position()))
			Expect(eph.AdditionalNames()).To(Equal([]string{"clock"}))
			clock, ok := after.Additional("clock")
			Expect(ok).To(BeTrue())
			Expect(clock[0]).To(BeNumerically("~", 500, 1e-6))
		})

		It("ends at the stopping event", func() {
			p.SetEphemerisMode()
			p.AddEventDetector(events.NewDateDetector(at(1000)))
			_, err := p.Propagate(at(3200))
			Expect(err).NotTo(HaveOccurred())
			eph, err := p.GeneratedEphemeris()
			Expect(err).NotTo(HaveOccurred())
			Expect(eph.MaxDate().Sub(at(1000))).To(BeNumerically("<", time.Millisecond))
		})
	})

	Describe("switching", func() {
		It("keeps a single step handler on the solver", func() {
			spy := &spyIntegrator{Integrator: newIntegrator()}
			p = newPropagator(spy)
			Expect(spy.stepHandlers).To(BeZero())

			p.SetEphemerisMode()
			Expect(spy.stepHandlers).To(Equal(1))
			p.SetMasterMode(propagation.StepHandlerFunc(func(*propagation.StepView, bool) error { return nil }))
			Expect(spy.stepHandlers).To(Equal(1))
			_, err := p.GeneratedEphemeris()
			Expect(err).To(MatchError(propagation.ErrNotEphemerisMode))

			p.SetSlaveMode()
			Expect(spy.stepHandlers).To(BeZero())
			Expect(p.Mode()).To(Equal(propagation.SlaveMode{}))
		})

		It("discards the ephemeris when leaving ephemeris mode", func() {
			p.SetEphemerisMode()
			_, err := p.Propagate(at(100))
			Expect(err).NotTo(HaveOccurred())
			_, err = p.GeneratedEphemeris()
			Expect(err).NotTo(HaveOccurred())

			p.SetSlaveMode()
			p.SetEphemerisMode()
			_, err = p.GeneratedEphemeris()
			Expect(err).To(MatchError(propagation.ErrNoEphemeris))
		})

		It("runs on any solver", func() {
			for _, integ := range []dynamo.Integrator{newIntegrator(), integrators.NewRK4(10)} {
				q := newPropagator(integ)
				final, err := q.Propagate(at(600))
				Expect(err).NotTo(HaveOccurred(), integ.Name())
				expectKeplerian(initial, final, 600, 1e-6)
			}
		})
	})
})
