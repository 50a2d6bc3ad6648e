package geometry

import (
	"encoding/json"
	"math"
	"testing"
)

func TestEuclideanDistance(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Embedding
		expected float64
	}{
		{"identical", Embedding{1, 2, 3}, Embedding{1, 2, 3}, 0},
		{"unit apart", Embedding{0, 0}, Embedding{1, 0}, 1},
		{"3-4-5", Embedding{0, 0}, Embedding{3, 4}, 5},
		{"empty", Embedding{}, Embedding{}, math.Inf(1)},
		{"empty query", Embedding{}, Embedding{1, 2}, math.Inf(1)},
		{"different length", Embedding{3, 4, 9}, Embedding{3, 4}, math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := EuclideanDistance(tt.a, tt.b)
			if math.IsInf(tt.expected, 1) {
				if !math.IsInf(result, 1) {
					t.Errorf("EuclideanDistance(%v, %v) = %v, want +Inf", tt.a, tt.b, result)
				}
				return
			}
			if math.Abs(result-tt.expected) > 0.0001 {
				t.Errorf("EuclideanDistance(%v, %v) = %v, want %v", tt.a, tt.b, result, tt.expected)
			}
		})
	}
}

func TestMean(t *testing.T) {
	if Mean(nil) != nil {
		t.Error("Mean(nil) should be nil")
	}

	result := Mean([]Embedding{{0, 2}, {2, 4}, {1, 2, 3}})
	if len(result) != 2 || result[0] != 1 || result[1] != 3 {
		t.Errorf("Mean() = %v, want [1 3] (mismatched dims skipped)", result)
	}
}

func TestPointMarshalJSON(t *testing.T) {
	data, err := json.Marshal(LandmarkSet{"chin": {{X: 1, Y: 2}, {X: 3, Y: 4}}})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"chin":[[1,2],[3,4]]}` {
		t.Errorf("unexpected JSON %s", data)
	}
}
