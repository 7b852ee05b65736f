// Package dynamo provides the numerical integration primitives used by the
// propagation layer.
//
// The package knows nothing about spacecraft: it works on flat state
// vectors and elapsed time only.
//
//   - [State]: vector representing the integrated state
//   - [ODE]: first order differential equations dY/dt = f(t, Y)
//   - [Integrator]: numerical solver with event and step handler support
//   - [EventHandler]: switching function monitored by the solver
//   - [StepHandler]: observer of accepted steps
//   - [StepInterpolator]: dense output over one accepted step
//   - [ContinuousOutput]: dense model accumulated over a whole run
//
// # Example
//
//	integ := integrators.NewDormandPrince(integrators.DefaultTolerances())
//	integ.AddEventHandler(handler, dynamo.EventConfig{MaxCheckInterval: 60, Threshold: 1e-6, MaxIterations: 100})
//	t, y, err := integ.Integrate(ode, 0, y0, 3600)
//
// # Error reporting
//
// Callbacks return errors explicitly. The solver stops at the first
// failure and returns it wrapped in a [CallbackError], while its own
// failures (step size underflow, NaN, root finding divergence) are
// reported as [IntegrationError] values wrapping one of the sentinel
// errors of this package.
//
// # Thread Safety
//
// Integrator instances are NOT thread-safe. A finalized [ContinuousOutput]
// is read-only and may be queried concurrently.
package dynamo
