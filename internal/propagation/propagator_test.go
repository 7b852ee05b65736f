package propagation_test

import (
	"context"
	"errors"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/orbitsim/internal/dynamo"
	"github.com/san-kum/orbitsim/internal/events"
	"github.com/san-kum/orbitsim/internal/forces"
	"github.com/san-kum/orbitsim/internal/integrators"
	"github.com/san-kum/orbitsim/internal/orbit"
	"github.com/san-kum/orbitsim/internal/propagation"
	"github.com/san-kum/orbitsim/internal/spacecraft"
)

var errDummy = errors.New("dummy error")

var _ = Describe("Propagator", func() {
	var (
		p       *propagation.Propagator
		initial spacecraft.State
		gotHere bool
	)

	BeforeEach(func() {
		p = newPropagator(newIntegrator())
		initial, _ = p.InitialState()
		gotHere = false
	})

	Describe("initial state", func() {
		It("fails without an initial state", func() {
			empty, err := propagation.New(integrators.NewRK4(10), keplerFactory())
			Expect(err).NotTo(HaveOccurred())
			_, err = empty.Propagate(initDate)
			Expect(err).To(MatchError(propagation.ErrMissingInitialState))
			_, err = empty.PropagateBetween(initDate, at(10))
			Expect(err).To(MatchError(propagation.ErrMissingInitialState))
		})

		It("returns the initial state unchanged at the initial date", func() {
			final, err := p.Propagate(initDate)
			Expect(err).NotTo(HaveOccurred())
			Expect(final.Orbit().Position()).To(Equal(initial.Orbit().Position()))
			Expect(final.Orbit().Velocity()).To(Equal(initial.Orbit().Velocity()))
			Expect(final.Mass()).To(Equal(initial.Mass()))
			Expect(p.Calls()).To(Equal(0))
		})

		It("rejects a non-positive mass before integrating", func() {
			Expect(p.SetInitialState(initial.WithMass(0))).To(Succeed())
			_, err := p.Propagate(at(100))
			Expect(err).To(MatchError(propagation.ErrNonPositiveMass))
			var me *propagation.MassError
			Expect(errors.As(err, &me)).To(BeTrue())
			Expect(me.Mass).To(BeZero())
			Expect(p.Calls()).To(Equal(0))
		})

		It("rejects a NaN mass before integrating", func() {
			Expect(p.SetInitialState(initial.WithMass(math.NaN()))).To(Succeed())
			_, err := p.Propagate(at(100))
			Expect(err).To(MatchError(propagation.ErrNonPositiveMass))
			Expect(p.Calls()).To(Equal(0))
		})
	})

	Describe("two-body motion", func() {
		It("keeps the shape and advances the mean longitude", func() {
			const dt = 3200.0
			final, err := p.Propagate(at(dt))
			Expect(err).NotTo(HaveOccurred())
			Expect(final.Date()).To(BeTemporally("==", at(dt)))
			expectKeplerian(initial, final, dt, 1e-9)
			Expect(p.Calls()).To(BeNumerically(">", 0))
		})

		It("propagates backward", func() {
			const dt = -3200.0
			final, err := p.Propagate(at(dt))
			Expect(err).NotTo(HaveOccurred())
			expectKeplerian(initial, final, dt, 1e-9)
		})

		It("matches the analytical orbit in cartesian coordinates", func() {
			p = newCartesianPropagator()
			for _, dt := range []float64{3200, -3200} {
				Expect(p.SetInitialState(initial)).To(Succeed())
				final, err := p.Propagate(at(dt))
				Expect(err).NotTo(HaveOccurred())
				want, err := initial.Orbit().ShiftedBy(dt)
				Expect(err).NotTo(HaveOccurred())
				Expect(distance(final.Orbit().Position(), want.Position())).To(BeNumerically("<", 1.0))
			}
		})

		It("commits the final state and continues from it", func() {
			_, err := p.Propagate(at(1000))
			Expect(err).NotTo(HaveOccurred())
			committed, ok := p.InitialState()
			Expect(ok).To(BeTrue())
			Expect(committed.Date()).To(BeTemporally("==", at(1000)))

			final, err := p.Propagate(at(3200))
			Expect(err).NotTo(HaveOccurred())
			expectKeplerian(initial, final, 3200, 1e-9)
		})

		It("resets the call counter on every run", func() {
			_, err := p.Propagate(at(3200))
			Expect(err).NotTo(HaveOccurred())
			first := p.Calls()

			_, err = p.Propagate(at(3300))
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Calls()).To(BeNumerically("<", first))
			Expect(p.Calls()).To(BeNumerically(">", 0))
		})
	})

	Describe("events", func() {
		dateEvent := func(seconds float64, action events.Action) *events.FuncDetector {
			return events.NewDateDetector(at(seconds),
				events.WithHandler(func(spacecraft.State, bool) (events.Action, error) {
					gotHere = true
					return action, nil
				}),
				events.WithReset(func(s spacecraft.State) (spacecraft.State, error) {
					return s.WithMass(s.Mass() - 200), nil
				}),
			)
		}

		It("stops at the event date", func() {
			d := dateEvent(1000, events.Stop)
			p.AddEventDetector(d)
			Expect(gotHere).To(BeFalse())

			final, err := p.Propagate(at(3200))
			Expect(err).NotTo(HaveOccurred())
			Expect(gotHere).To(BeTrue())
			Expect(final.Date().Sub(at(1000)).Seconds()).To(BeNumerically("~", 0, d.Threshold()))
			Expect(final.Mass()).To(Equal(initial.Mass()))

			committed, _ := p.InitialState()
			Expect(committed.Date()).To(BeTemporally("==", final.Date()))
		})

		It("resets the state and continues", func() {
			p.AddEventDetector(dateEvent(1000, events.ResetState))
			final, err := p.Propagate(at(3200))
			Expect(err).NotTo(HaveOccurred())
			Expect(gotHere).To(BeTrue())
			Expect(final.Date()).To(BeTemporally("==", at(3200)))
			Expect(final.Mass()).To(BeNumerically("~", initial.Mass()-200, 1e-10))
			expectKeplerian(initial, final, 3200, 1e-9)
		})

		It("fires a reset only once", func() {
			resets := 0
			p.AddEventDetector(events.NewDateDetector(at(1000),
				events.WithHandler(events.ResetOnEvent),
				events.WithReset(func(s spacecraft.State) (spacecraft.State, error) {
					resets++
					return s.WithMass(s.Mass() - 1), nil
				}),
			))
			final, err := p.Propagate(at(3200))
			Expect(err).NotTo(HaveOccurred())
			Expect(resets).To(Equal(1))
			Expect(final.Mass()).To(BeNumerically("~", initial.Mass()-1, 1e-10))
		})

		It("re-evaluates derivatives without changing the state", func() {
			p.AddEventDetector(dateEvent(1000, events.ResetDerivatives))
			final, err := p.Propagate(at(3200))
			Expect(err).NotTo(HaveOccurred())
			Expect(gotHere).To(BeTrue())
			Expect(final.Mass()).To(Equal(initial.Mass()))
			expectKeplerian(initial, final, 3200, 1e-9)
		})

		It("passes through continue events", func() {
			p.AddEventDetector(dateEvent(1000, events.Continue))
			final, err := p.Propagate(at(3200))
			Expect(err).NotTo(HaveOccurred())
			Expect(gotHere).To(BeTrue())
			Expect(final.Mass()).To(Equal(initial.Mass()))
			expectKeplerian(initial, final, 3200, 1e-9)
		})

		It("restarts at force switches bounded by date events", func() {
			thrust := &forces.ConstantThrust{Start: at(600), Duration: 900 * time.Second, Thrust: 400, Isp: 310}
			tol := integrators.Tolerances{AbsTol: 1e-9, RelTol: 1e-11, MinStep: 1e-3, MaxStep: 300}
			p, err := propagation.New(integrators.NewDormandPrince(tol), keplerFactory(thrust),
				propagation.WithLogger(testLogger()))
			Expect(err).NotTo(HaveOccurred())
			Expect(p.SetOrbitType(orbit.Cartesian)).To(Succeed())
			Expect(p.SetInitialState(initial)).To(Succeed())

			switches := 0
			for _, d := range thrust.Boundaries() {
				p.AddEventDetector(events.NewDateDetector(d,
					events.WithHandler(func(spacecraft.State, bool) (events.Action, error) {
						switches++
						return events.ResetDerivatives, nil
					}),
				))
			}

			final, err := p.Propagate(at(2000))
			Expect(err).NotTo(HaveOccurred())
			Expect(switches).To(Equal(2))
			Expect(final.Date()).To(BeTemporally("==", at(2000)))
			burned := thrust.Thrust * 900 / (forces.StandardGravity * thrust.Isp)
			Expect(final.Mass()).To(BeNumerically("~", initial.Mass()-burned, 1e-6))
		})

		It("initializes detectors with the run bounds", func() {
			var start, target time.Time
			p.AddEventDetector(events.New(
				func(spacecraft.State) (float64, error) { return 1, nil },
				events.WithInit(func(s spacecraft.State, t time.Time) error {
					start, target = s.Date(), t
					return nil
				}),
			))
			_, err := p.Propagate(at(1200))
			Expect(err).NotTo(HaveOccurred())
			Expect(start).To(BeTemporally("==", initDate))
			Expect(target).To(BeTemporally("==", at(1200)))
		})

		It("finds events in backward runs", func() {
			d := dateEvent(-1000, events.Stop)
			p.AddEventDetector(d)
			final, err := p.Propagate(at(-3200))
			Expect(err).NotTo(HaveOccurred())
			Expect(final.Date().Sub(at(-1000)).Seconds()).To(BeNumerically("~", 0, d.Threshold()))
		})

		It("sees the integrated additional states", func() {
			Expect(p.AddAdditionalEquations("clock", 1, propagation.AdditionalEquationsFunc(
				func(spacecraft.State, []float64) (propagation.Derivatives, error) {
					return propagation.Derivatives{Own: []float64{1}}, nil
				}))).To(Succeed())
			Expect(p.SetInitialState(initial.WithAdditional("clock", 0))).To(Succeed())

			p.AddEventDetector(events.New(func(s spacecraft.State) (float64, error) {
				v, ok := s.Additional("clock")
				if !ok {
					return 0, errDummy
				}
				return v[0] - 500, nil
			}))
			final, err := p.Propagate(at(3200))
			Expect(err).NotTo(HaveOccurred())
			Expect(final.Date().Sub(at(500)).Seconds()).To(BeNumerically("~", 0, events.DefaultThreshold))
		})

		It("returns detector errors unwrapped and keeps the previous state", func() {
			p.AddEventDetector(events.New(func(s spacecraft.State) (float64, error) {
				if s.Date().After(at(500)) {
					return 0, errDummy
				}
				return 1, nil
			}))
			_, err := p.Propagate(at(3200))
			Expect(err).To(BeIdenticalTo(errDummy))

			committed, _ := p.InitialState()
			Expect(committed.Date()).To(BeTemporally("==", initDate))
			Expect(committed.Orbit().Position()).To(Equal(initial.Orbit().Position()))
		})

		It("rejects resets that leave no mass", func() {
			p.AddEventDetector(events.NewDateDetector(at(100),
				events.WithHandler(events.ResetOnEvent),
				events.WithReset(func(s spacecraft.State) (spacecraft.State, error) {
					return s.WithMass(0), nil
				}),
			))
			_, err := p.Propagate(at(1000))
			Expect(err).To(MatchError(propagation.ErrNonPositiveMass))
		})

		It("fails when a reset leaves a NaN mass", func() {
			p.AddEventDetector(events.NewDateDetector(at(500),
				events.WithHandler(events.ResetOnEvent),
				events.WithReset(func(s spacecraft.State) (spacecraft.State, error) {
					return s.WithMass(math.NaN()), nil
				}),
			))
			_, err := p.Propagate(at(1000))
			Expect(err).To(MatchError(propagation.ErrNonPositiveMass))
			committed, _ := p.InitialState()
			Expect(committed.Date()).To(BeTemporally("==", initDate))
		})

		It("clears detectors", func() {
			p.AddEventDetector(dateEvent(1000, events.Stop))
			Expect(p.EventDetectors()).To(HaveLen(1))
			p.ClearEventDetectors()
			final, err := p.Propagate(at(3200))
			Expect(err).NotTo(HaveOccurred())
			Expect(gotHere).To(BeFalse())
			Expect(final.Date()).To(BeTemporally("==", at(3200)))
		})
	})

	Describe("pre-roll", func() {
		It("moves to the start date without events or step handling", func() {
			p.AddEventDetector(events.NewDateDetector(at(200)))
			var first time.Time
			inits := 0
			p.SetMasterMode(&recordingHandler{
				init: func(spacecraft.State, time.Time) { inits++ },
				step: func(v *propagation.StepView, _ bool) error {
					if first.IsZero() {
						first = v.PreviousDate()
					}
					return nil
				},
			})

			final, err := p.PropagateBetween(at(500), at(1000))
			Expect(err).NotTo(HaveOccurred())
			Expect(final.Date()).To(BeTemporally("==", at(1000)))
			Expect(first).To(BeTemporally("==", at(500)))
			Expect(inits).To(Equal(1))
			expectKeplerian(initial, final, 1000, 1e-9)
		})

		It("uses the committed start date", func() {
			_, err := p.Propagate(at(100))
			Expect(err).NotTo(HaveOccurred())
			final, err := p.Propagate(at(200))
			Expect(err).NotTo(HaveOccurred())
			expectKeplerian(initial, final, 200, 1e-9)
		})
	})

	Describe("hooks", func() {
		It("calls each hook once per run", func() {
			before, after := 0, 0
			p = newPropagator(newIntegrator(), propagation.WithHooks(propagation.Hooks{
				BeforeIntegration: func(s spacecraft.State, target time.Time) error {
					before++
					Expect(target).To(BeTemporally("==", at(1000)))
					return nil
				},
				AfterIntegration: func() error {
					after++
					return nil
				},
			}))

			_, err := p.Propagate(initDate)
			Expect(err).NotTo(HaveOccurred())
			Expect(before).To(BeZero())

			_, err = p.Propagate(at(1000))
			Expect(err).NotTo(HaveOccurred())
			Expect(before).To(Equal(1))
			Expect(after).To(Equal(1))
		})

		It("aborts on hook errors", func() {
			p = newPropagator(newIntegrator(), propagation.WithHooks(propagation.Hooks{
				AfterIntegration: func() error { return errDummy },
			}))
			_, err := p.Propagate(at(1000))
			Expect(err).To(MatchError(errDummy))
			committed, _ := p.InitialState()
			Expect(committed.Date()).To(BeTemporally("==", initDate))
		})
	})

	Describe("solver failures", func() {
		It("wraps evaluation limits", func() {
			integ := newIntegrator()
			integ.MaxEvaluations = 5
			p = newPropagator(integ)
			_, err := p.Propagate(at(3200))
			Expect(err).To(MatchError(propagation.ErrNumericSolverFailure))
			Expect(errors.Is(err, dynamo.ErrTooManyEvaluations)).To(BeTrue())
			var se *propagation.SolverError
			Expect(errors.As(err, &se)).To(BeTrue())
		})

		It("wraps invalid states", func() {
			p = newPropagator(integrators.NewRK4(60))
			Expect(p.AddAdditionalEquations("bad", 1, propagation.AdditionalEquationsFunc(
				func(spacecraft.State, []float64) (propagation.Derivatives, error) {
					return propagation.Derivatives{Own: []float64{math.NaN()}}, nil
				}))).To(Succeed())
			Expect(p.SetInitialState(initial.WithAdditional("bad", 0))).To(Succeed())

			_, err := p.Propagate(at(600))
			Expect(err).To(MatchError(propagation.ErrNumericSolverFailure))
			Expect(errors.Is(err, dynamo.ErrInvalidState)).To(BeTrue())
			committed, _ := p.InitialState()
			Expect(committed.Date()).To(BeTemporally("==", initDate))
		})
	})

	Describe("mapper configuration", func() {
		It("resolves mu from the initial orbit", func() {
			Expect(math.IsNaN(p.Mu())).To(BeTrue())
			_, err := p.Propagate(at(10))
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Mu()).To(Equal(mu))
		})

		It("replaces the mapper on every setter", func() {
			old := p.Mapper()
			Expect(p.SetMu(mu)).To(Succeed())
			Expect(math.IsNaN(old.Config().Mu)).To(BeTrue())
			Expect(p.Mapper().Config().Mu).To(Equal(mu))

			Expect(p.SetOrbitType(orbit.Keplerian)).To(Succeed())
			Expect(p.Mapper().Config().OrbitType).To(Equal(orbit.Keplerian))
			Expect(p.Mapper().Config().AngleType).To(Equal(orbit.Mean))
			Expect(p.SetFrame(orbit.GCRF)).To(Succeed())
			Expect(p.Mapper().Config().Frame).To(Equal(orbit.GCRF))
		})

		It("keeps the mapper when a setter fails", func() {
			before := p.Mapper().Config()
			Expect(math.IsNaN(before.Mu)).To(BeTrue())
			Expect(p.SetMu(-1)).NotTo(Succeed())
			Expect(p.SetFrame(orbit.ITRF)).NotTo(Succeed())
			after := p.Mapper().Config()
			Expect(math.IsNaN(after.Mu)).To(BeTrue())
			Expect(after.OrbitType).To(Equal(before.OrbitType))
			Expect(after.AngleType).To(Equal(before.AngleType))
			Expect(after.Frame).To(Equal(before.Frame))
			Expect(after.ReferenceDate).To(BeTemporally("==", before.ReferenceDate))

			Expect(p.SetMu(mu)).To(Succeed())
			resolved := p.Mapper()
			Expect(p.SetMu(-1)).NotTo(Succeed())
			Expect(p.SetFrame(orbit.ITRF)).NotTo(Succeed())
			Expect(p.Mapper()).To(Equal(resolved))
		})

		It("uses injected mapper factories", func() {
			built := 0
			p = newPropagator(newIntegrator(), propagation.WithMapperFactory(
				func(cfg propagation.MapperConfig) (propagation.StateMapper, error) {
					built++
					return propagation.NewMapper(cfg)
				}))
			before := built
			_, err := p.Propagate(at(100))
			Expect(err).NotTo(HaveOccurred())
			Expect(built).To(BeNumerically(">", before))
		})

		It("propagates in every representation", func() {
			for _, typ := range []orbit.Type{orbit.Keplerian, orbit.Equinoctial} {
				for _, angle := range []orbit.PositionAngle{orbit.Mean, orbit.Eccentric, orbit.True} {
					q := newPropagator(newIntegrator())
					Expect(q.SetOrbitType(typ)).To(Succeed())
					Expect(q.SetPositionAngle(angle)).To(Succeed())
					final, err := q.Propagate(at(1000))
					Expect(err).NotTo(HaveOccurred())
					want, _ := initial.Orbit().ShiftedBy(1000)
					Expect(distance(final.Orbit().Position(), want.Position())).To(BeNumerically("<", 1.0),
						"%s/%s", typ, angle)
				}
			}
		})
	})

	Describe("batch", func() {
		It("matches sequential propagation", func() {
			targets := []float64{600, -1200, 3000}
			jobs := make([]propagation.Job, len(targets))
			for i, dt := range targets {
				jobs[i] = propagation.Job{Propagator: newCartesianPropagator(), Target: at(dt)}
			}
			results, err := propagation.Batch(context.Background(), jobs, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(len(targets)))

			for i, dt := range targets {
				want, err := newCartesianPropagator().Propagate(at(dt))
				Expect(err).NotTo(HaveOccurred())
				Expect(results[i].Orbit().Position()).To(Equal(want.Orbit().Position()))
			}
		})

		It("rejects shared propagators", func() {
			jobs := []propagation.Job{{Propagator: p, Target: at(1)}, {Propagator: p, Target: at(2)}}
			_, err := propagation.Batch(context.Background(), jobs, 0)
			Expect(err).To(MatchError(propagation.ErrSharedPropagator))
		})

		It("reports the first failure", func() {
			bad := newPropagator(newIntegrator())
			bad.AddEventDetector(events.New(func(spacecraft.State) (float64, error) { return 0, errDummy }))
			jobs := []propagation.Job{{Propagator: p, Target: at(100)}, {Propagator: bad, Target: at(100)}}
			_, err := propagation.Batch(context.Background(), jobs, 0)
			Expect(err).To(MatchError(errDummy))
		})
	})
})

// recordingHandler is a StepHandler built from functions.
type recordingHandler struct {
	init func(s spacecraft.State, target time.Time)
	step func(v *propagation.StepView, isLast bool) error
}

func (r *recordingHandler) Init(s spacecraft.State, target time.Time) error {
	if r.init != nil {
		r.init(s, target)
	}
	return nil
}

func (r *recordingHandler) HandleStep(v *propagation.StepView, isLast bool) error {
	return r.step(v, isLast)
}
