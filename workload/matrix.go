package workload

import (
	"errors"
	"fmt"
	"math/rand"
)

var ErrDimension = errors.New("workload: matrix dimensions do not match")

// Matrix is a square matrix stored row-major.
type Matrix struct {
	N    int
	Data []float64
}

// NewMatrix returns an n×n zero matrix.
func NewMatrix(n int) *Matrix {
	return &Matrix{N: n, Data: make([]float64, n*n)}
}

// Identity returns the n×n identity matrix.
func Identity(n int) *Matrix {
	m := NewMatrix(n)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// Random fills an n×n matrix with values in [0, 10) drawn from rng.
func Random(n int, rng *rand.Rand) *Matrix {
	m := NewMatrix(n)
	for i := range m.Data {
		m.Data[i] = rng.Float64() * 10
	}
	return m
}

// At returns the element at row i, column j.
func (m *Matrix) At(i, j int) float64 {
	return m.Data[i*m.N+j]
}

// Set stores v at row i, column j.
func (m *Matrix) Set(i, j int, v float64) {
	m.Data[i*m.N+j] = v
}

// Range is a half-open interval of row indexes.
type Range struct {
	Start, End int
}

func (r Range) Len() int {
	return r.End - r.Start
}

// SplitRows divides n rows into parts contiguous ranges. The first n%parts
// ranges get one extra row. parts is clamped to [1, n].
func SplitRows(n, parts int) []Range {
	if parts > n {
		parts = n
	}
	if parts < 1 {
		parts = 1
	}
	per, extra := n/parts, n%parts
	out := make([]Range, 0, parts)
	start := 0
	for i := 0; i < parts; i++ {
		end := start + per
		if i < extra {
			end++
		}
		out = append(out, Range{Start: start, End: end})
		start = end
	}
	return out
}

func check(a, b *Matrix) error {
	if a == nil || b == nil || a.N != b.N {
		return ErrDimension
	}
	if len(a.Data) != a.N*a.N || len(b.Data) != b.N*b.N {
		return fmt.Errorf("%w: backing slice length", ErrDimension)
	}
	return nil
}

// MultiplyRow computes row i of c = a×b.
func MultiplyRow(a, b, c *Matrix, i int) {
	n := a.N
	for j := 0; j < n; j++ {
		sum := 0.0
		for k := 0; k < n; k++ {
			sum += a.Data[i*n+k] * b.Data[k*n+j]
		}
		c.Data[i*n+j] = sum
	}
}

// MultiplyRows computes rows r of c = a×b.
func MultiplyRows(a, b, c *Matrix, r Range) {
	for i := r.Start; i < r.End; i++ {
		MultiplyRow(a, b, c, i)
	}
}

// Multiply is the serial reference product.
func Multiply(a, b *Matrix) (*Matrix, error) {
	if err := check(a, b); err != nil {
		return nil, err
	}
	c := NewMatrix(a.N)
	MultiplyRows(a, b, c, Range{Start: 0, End: a.N})
	return c, nil
}
