package generate

import (
	"math"
	"math/rand"
)

// #region distributions

// distEntry is one row of a cumulative prior.
type distEntry struct {
	limit float64
	value float64
}

// cumulative is a hand-tuned discrete prior sampled by threshold scan.
type cumulative []distEntry

func (d cumulative) sample(rng *rand.Rand) float64 {
	s := rng.Float64()
	for _, e := range d {
		if s < e.limit {
			return e.value
		}
	}
	return d[len(d)-1].value
}

// #endregion distributions

// #region gamma

// gammaDraw samples Gamma(shape, 1) by Marsaglia-Tsang squeeze, with the
// standard boost for shape < 1.
func gammaDraw(rng *rand.Rand, shape float64) float64 {
	if shape <= 0 {
		return 0
	}
	if shape < 1 {
		u := rng.Float64()
		for u == 0 {
			u = rng.Float64()
		}
		return gammaDraw(rng, shape+1) * math.Pow(u, 1/shape)
	}

	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9*d)
	for {
		x := rng.NormFloat64()
		v := 1 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1-0.0331*x*x*x*x {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}

// betaDraw samples Beta(a, b) from two gamma draws.
func betaDraw(rng *rand.Rand, a, b float64) float64 {
	x := gammaDraw(rng, a)
	y := gammaDraw(rng, b)
	if x+y == 0 {
		return 0.5
	}
	return x / (x + y)
}

// dirichletDraw samples a weight vector from Dirichlet(alphas). A
// degenerate draw (all zero) falls back to uniform weights.
func dirichletDraw(rng *rand.Rand, alphas []float64) []float64 {
	weights := make([]float64, len(alphas))
	sum := 0.0
	for i, a := range alphas {
		weights[i] = gammaDraw(rng, a)
		sum += weights[i]
	}
	if sum == 0 {
		for i := range weights {
			weights[i] = 1 / float64(len(weights))
		}
		return weights
	}
	for i := range weights {
		weights[i] /= sum
	}
	return weights
}

// #endregion gamma
