package matrixgame

import (
	"math"
)

// DefaultTimeStep is the Euler step used by ReplicatorDynamics.
const DefaultTimeStep = 0.01

// ReplicatorDynamics integrates the replicator equation
//
//	dp_i/dt = p_i * ((M·p)_i - p·M·p)
//
// from the uniform distribution with a fixed number of Euler steps of size
// dt. The result is always a probability vector: negative entries are
// clipped after each step, and a distribution whose mass collapses (or stops
// being finite) is reset to uniform.
func ReplicatorDynamics(m Matrix, steps int, dt float64) []float64 {
	n := len(m)
	if n == 0 {
		return []float64{}
	}

	p := uniform(n)
	payoffs := allocFloatSlice(n)
	defer freeFloatSlice(payoffs)
	for i := 0; i < steps; i++ {
		payoffs = replicatorStep(m, p, dt, payoffs)
	}

	return p
}

// ReplicatorStep applies one Euler step of the replicator equation to p and
// returns the result in a new slice.
func ReplicatorStep(m Matrix, p []float64, dt float64) []float64 {
	result := append([]float64(nil), p...)
	replicatorStep(m, result, dt, nil)
	return result
}

// replicatorStep updates p in place, using payoffs as scratch space.
func replicatorStep(m Matrix, p []float64, dt float64, payoffs []float64) []float64 {
	payoffs = m.MulVec(p, payoffs)
	avg := dot(p, payoffs)

	var total float64
	for i := range p {
		p[i] += dt * p[i] * (payoffs[i] - avg)
		if p[i] < 0 {
			p[i] = 0
		}
		total += p[i]
	}

	if !(total > 0) || math.IsInf(total, 0) {
		for i := range p {
			p[i] = 1.0 / float64(len(p))
		}
		return payoffs
	}

	for i := range p {
		p[i] /= total
	}

	return payoffs
}
