package analysis

import "math"

// initialComponent biases the power iteration toward weekly distance.
var initialComponent = Vector{1.0, 0.5, 0.5, 0.5}

// FirstPrincipalComponent approximates the leading eigenvector of XᵗX/n by power
// iteration over the standardized rows. The result has unit length and a
// non-negative weekly-distance weight.
func FirstPrincipalComponent(z []Vector, maxIter int, tol float64) Vector {
	w := normalize(initialComponent)
	if len(z) == 0 {
		return w
	}
	n := float64(len(z))

	for iter := 0; iter < maxIter; iter++ {
		var next Vector
		for _, row := range z {
			proj := row.Dot(w)
			for j := range next {
				next[j] += row[j] * proj
			}
		}
		for j := range next {
			next[j] /= n
		}
		if next.norm() == 0 {
			// all rows are zero; no direction is preferred
			break
		}
		next = normalize(next)

		var delta float64
		for j := range next {
			delta = math.Max(delta, math.Abs(next[j]-w[j]))
		}
		w = next
		if delta < tol {
			break
		}
	}

	if w[FeatureWeeklyDistance] < 0 {
		for j := range w {
			w[j] = -w[j]
		}
	}
	return w
}

func normalize(v Vector) Vector {
	n := v.norm()
	if n == 0 {
		return v
	}
	for j := range v {
		v[j] /= n
	}
	return v
}
