// Package propagation integrates spacecraft states with a numeric solver.
//
// A Propagator maps its initial state into a solver vector through a
// StateMapper, integrates the primary equations together with any
// registered AdditionalEquations, watches event detectors and delivers the
// trajectory according to its Mode:
//
//	SlaveMode      only the final state is returned
//	MasterMode     a StepHandler sees every accepted step
//	EphemerisMode  an Ephemeris covering the whole run is built
//
// The final state of a run becomes the initial state of the next one. A
// failed run leaves the previous initial state in place.
//
// Callback errors (from primary or additional equations, detectors, step
// handlers and providers) are returned as they were raised. Failures of
// the solver itself match ErrNumericSolverFailure.
package propagation
