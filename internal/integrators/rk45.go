package integrators

import (
	"math"

	"github.com/san-kum/orbitsim/internal/dynamo"
)

// Dormand-Prince coefficients (RK45)
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0

	// dense output
	d1 = -12715105075.0 / 11282082432.0
	d3 = 87487479700.0 / 32700410799.0
	d4 = -10690763975.0 / 1880347072.0
	d5 = 701980252875.0 / 199316789632.0
	d6 = -1453857185.0 / 822651844.0
	d7 = 69997945.0 / 29380423.0
)

// Tolerances configures adaptive step size control.
type Tolerances struct {
	AbsTol      float64
	RelTol      float64
	MinStep     float64
	MaxStep     float64
	InitialStep float64
}

func DefaultTolerances() Tolerances {
	return Tolerances{
		AbsTol:  1e-9,
		RelTol:  1e-12,
		MinStep: 1e-6,
		MaxStep: 1000,
	}
}

// DormandPrince is an adaptive embedded Runge-Kutta 5(4) integrator with
// dense output.
type DormandPrince struct {
	base
	tol      Tolerances
	safety   float64
	minScale float64
	maxScale float64
}

func NewDormandPrince(tol Tolerances) *DormandPrince {
	def := DefaultTolerances()
	if tol.AbsTol <= 0 {
		tol.AbsTol = def.AbsTol
	}
	if tol.RelTol <= 0 {
		tol.RelTol = def.RelTol
	}
	if tol.MinStep <= 0 {
		tol.MinStep = def.MinStep
	}
	if tol.MaxStep <= 0 {
		tol.MaxStep = def.MaxStep
	}
	r := &DormandPrince{
		tol:      tol,
		safety:   0.9,
		minScale: 0.2,
		maxScale: 10.0,
	}
	r.base.name = "dormand_prince"
	r.base.stepper = r
	return r
}

func (r *DormandPrince) minStep() float64 { return r.tol.MinStep }

func (r *DormandPrince) scale(y0, y1 dynamo.State, i int) float64 {
	return r.tol.AbsTol + r.tol.RelTol*math.Max(math.Abs(y0[i]), math.Abs(y1[i]))
}

func (r *DormandPrince) clamp(h float64) float64 {
	return math.Min(r.tol.MaxStep, math.Max(r.tol.MinStep, h))
}

func (r *DormandPrince) initialStep(f derivFunc, t0 float64, y0, yDot0 dynamo.State, span float64) (float64, error) {
	if r.tol.InitialStep > 0 {
		return math.Min(r.clamp(r.tol.InitialStep), math.Abs(span)), nil
	}

	d0, d1 := 0.0, 0.0
	for i := range y0 {
		sc := r.scale(y0, y0, i)
		d0 += (y0[i] / sc) * (y0[i] / sc)
		d1 += (yDot0[i] / sc) * (yDot0[i] / sc)
	}
	d0 = math.Sqrt(d0 / float64(len(y0)))
	d1 = math.Sqrt(d1 / float64(len(y0)))

	h := 1e-6
	if d0 > 1e-5 && d1 > 1e-5 {
		h = 0.01 * d0 / d1
	}
	return math.Min(r.clamp(h), math.Abs(span)), nil
}

func (r *DormandPrince) attempt(f derivFunc, t float64, x, k1 dynamo.State, dt float64) (trial, error) {
	n := len(x)

	x2 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		x2[i] = x[i] + dt*b21*k1[i]
	}
	k2, err := f(t+a2*dt, x2)
	if err != nil {
		return trial{}, err
	}

	x3 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		x3[i] = x[i] + dt*(b31*k1[i]+b32*k2[i])
	}
	k3, err := f(t+a3*dt, x3)
	if err != nil {
		return trial{}, err
	}

	x4 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		x4[i] = x[i] + dt*(b41*k1[i]+b42*k2[i]+b43*k3[i])
	}
	k4, err := f(t+a4*dt, x4)
	if err != nil {
		return trial{}, err
	}

	x5 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		x5[i] = x[i] + dt*(b51*k1[i]+b52*k2[i]+b53*k3[i]+b54*k4[i])
	}
	k5, err := f(t+a5*dt, x5)
	if err != nil {
		return trial{}, err
	}

	x6 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		x6[i] = x[i] + dt*(b61*k1[i]+b62*k2[i]+b63*k3[i]+b64*k4[i]+b65*k5[i])
	}
	k6, err := f(t+dt, x6)
	if err != nil {
		return trial{}, err
	}

	xNew := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		xNew[i] = x[i] + dt*(c1*k1[i]+c3*k3[i]+c4*k4[i]+c5*k5[i]+c6*k6[i])
	}

	k7, err := f(t+dt, xNew)
	if err != nil {
		return trial{}, err
	}

	errSum := 0.0
	for i := 0; i < n; i++ {
		errEst := dt * (dc1*k1[i] + dc3*k3[i] + dc4*k4[i] + dc5*k5[i] + dc6*k6[i] + dc7*k7[i])
		ratio := errEst / r.scale(x, xNew, i)
		errSum += ratio * ratio
	}
	errRatio := math.Sqrt(errSum / float64(n))

	var scale float64
	if errRatio > 1 {
		scale = math.Max(r.minScale, r.safety*math.Pow(errRatio, -0.25))
	} else if errRatio > 0 {
		scale = math.Min(r.maxScale, r.safety*math.Pow(errRatio, -0.2))
	} else {
		scale = r.maxScale
	}

	poly := &dopri{
		y0:    x,
		ydiff: make(dynamo.State, n),
		bspl:  make(dynamo.State, n),
		r4:    make(dynamo.State, n),
		r5:    make(dynamo.State, n),
	}
	for i := 0; i < n; i++ {
		poly.ydiff[i] = xNew[i] - x[i]
		poly.bspl[i] = dt*k1[i] - poly.ydiff[i]
		poly.r4[i] = poly.ydiff[i] - dt*k7[i] - poly.bspl[i]
		poly.r5[i] = dt * (d1*k1[i] + d3*k3[i] + d4*k4[i] + d5*k5[i] + d6*k6[i] + d7*k7[i])
	}

	return trial{
		y:     xNew,
		yDot:  k7,
		ratio: errRatio,
		next:  r.clamp(math.Abs(dt) * scale),
		poly:  poly,
	}, nil
}
