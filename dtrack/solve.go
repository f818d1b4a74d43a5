package dtrack

import (
	"gonum.org/v1/gonum/mat"
)

// svdRankTol scales the largest singular value into the rank cutoff.
const svdRankTol = 1e-12

// solveNormalEquations solves the n×n system A·x = b through an SVD,
// returning the minimum-norm least-squares solution and the numerical
// rank. A rank-deficient system still yields a usable solution; the
// caller decides whether to warn.
func solveNormalEquations(a []float64, b []float64, n int) ([]float64, int) {
	x := make([]float64, n)

	var svd mat.SVD
	if ok := svd.Factorize(mat.NewDense(n, n, a), mat.SVDFull); !ok {
		return x, 0
	}
	vals := svd.Values(nil)
	tol := float64(n) * vals[0] * svdRankTol
	rank := 0
	for _, s := range vals {
		if s > tol {
			rank++
		}
	}
	if rank == 0 {
		return x, 0
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	// x = V·Σ⁺·Uᵀ·b over the significant singular values only.
	for k := 0; k < rank; k++ {
		var utb float64
		for i := 0; i < n; i++ {
			utb += u.At(i, k) * b[i]
		}
		utb /= vals[k]
		for j := 0; j < n; j++ {
			x[j] += v.At(j, k) * utb
		}
	}
	return x, rank
}
