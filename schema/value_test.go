package schema

import (
	"math"
	"testing"
)

func TestMatches(t *testing.T) {
	cases := []struct {
		dtype DType
		v     Value
		want  bool
	}{
		{Int32, int32(1), true},
		{Int32, int64(1), false},
		{Int64, int64(1), true},
		{Timestamp, int64(1), true},
		{Float32, float32(1), true},
		{Float64, float64(1), true},
		{String, "s", true},
		{String, 1, false},
	}
	for _, c := range cases {
		if got := Matches(c.dtype, c.v); got != c.want {
			t.Errorf("Matches(%v, %v) = %v, want %v", c.dtype, c.v, got, c.want)
		}
	}
}

func TestCompareEachDType(t *testing.T) {
	cases := []struct {
		dtype DType
		a, b  Value
		want  int
	}{
		{Int32, int32(1), int32(2), -1},
		{Int64, int64(5), int64(5), 0},
		{Float32, float32(2), float32(1), 1},
		{Float64, float64(1), float64(1), 0},
		{String, "a", "b", -1},
		{Timestamp, int64(100), int64(50), 1},
	}
	for _, c := range cases {
		got, err := Compare(c.dtype, c.a, c.b)
		if err != nil {
			t.Fatalf("Compare: %v", err)
		}
		if got != c.want {
			t.Errorf("Compare(%v, %v, %v) = %d, want %d", c.dtype, c.a, c.b, got, c.want)
		}
	}
}

func TestCompareRejectsNaN(t *testing.T) {
	cases := []struct {
		dtype DType
		a, b  Value
	}{
		{Float64, math.NaN(), 1.0},
		{Float64, 1.0, math.NaN()},
		{Float32, float32(math.NaN()), float32(1)},
		{Float32, float32(1), float32(math.NaN())},
	}
	for _, c := range cases {
		if _, err := Compare(c.dtype, c.a, c.b); err == nil {
			t.Errorf("Compare(%v, %v, %v) accepted NaN", c.dtype, c.a, c.b)
		}
	}
}

func TestIsNaN(t *testing.T) {
	if !IsNaN(Float64, math.NaN()) || !IsNaN(Float32, float32(math.NaN())) {
		t.Fatalf("IsNaN missed a NaN")
	}
	if IsNaN(Float64, 1.0) || IsNaN(Int64, int64(1)) || IsNaN(String, "NaN") {
		t.Fatalf("IsNaN flagged a non-NaN value")
	}
}
