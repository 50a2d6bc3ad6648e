package geometry

import (
	"encoding/json"
	"math"
)

// EuclideanDistance returns the L2 distance between two embeddings, accumulated in float64.
// Empty embeddings and embeddings of different length are infinitely far apart.
func EuclideanDistance(a, b Embedding) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Mean returns the element-wise mean of the embeddings, or nil if there are none.
func Mean(embeddings []Embedding) Embedding {
	if len(embeddings) == 0 {
		return nil
	}
	dim := len(embeddings[0])
	sum := make([]float64, dim)
	count := 0
	for _, e := range embeddings {
		if len(e) != dim {
			continue
		}
		for i, v := range e {
			sum[i] += float64(v)
		}
		count++
	}
	out := make(Embedding, dim)
	for i := range sum {
		out[i] = float32(sum[i] / float64(count))
	}
	return out
}

// MarshalJSON encodes the point as [x, y], the same shape the geometry service uses.
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{p.X, p.Y})
}
