package core

import "math"

// Dot returns the dot product of a and b over their common length. For unit
// vectors it is the cosine similarity.
func Dot(a, b []float32) float32 {
	n := min(len(a), len(b))
	var sum float32
	for i := range n {
		sum += a[i] * b[i]
	}
	return sum
}

// Magnitude returns the Euclidean length of v.
func Magnitude(v []float32) float32 {
	return float32(math.Sqrt(float64(Dot(v, v))))
}

// NormalizeVector returns a unit-length copy of v. A zero vector yields a
// zero vector of the same length and an empty input is returned as is.
func NormalizeVector(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}
	out := make([]float32, len(v))
	mag := Magnitude(v)
	if mag == 0 {
		return out
	}
	for i, x := range v {
		out[i] = x / mag
	}
	return out
}
