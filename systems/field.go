package systems

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// NewField allocates a zeroed rows x cols field.
func NewField(rows, cols int) *mat.Dense {
	return mat.NewDense(rows, cols, nil)
}

// DriftPoissonStep solves -Laplace(psi) = omega with a fixed number of Jacobi
// sweeps on a periodic 5-point stencil, starting from psi = 0.
// There is no convergence check; maxIter <= 0 returns a zero field.
func DriftPoissonStep(omega mat.Matrix, maxIter int) *mat.Dense {
	rows, cols := omega.Dims()
	w := mat.DenseCopyOf(omega)
	psi := mat.NewDense(rows, cols, nil)
	if maxIter <= 0 {
		return psi
	}
	next := mat.NewDense(rows, cols, nil)

	src := w.RawMatrix()
	for it := 0; it < maxIter; it++ {
		cur := psi.RawMatrix()
		out := next.RawMatrix()
		for i := 0; i < rows; i++ {
			up := wrap(i-1, rows) * cur.Stride
			down := wrap(i+1, rows) * cur.Stride
			row := i * cur.Stride
			for j := 0; j < cols; j++ {
				left := wrap(j-1, cols)
				right := wrap(j+1, cols)
				sum := cur.Data[up+j] + cur.Data[down+j] + cur.Data[row+left] + cur.Data[row+right]
				out.Data[i*out.Stride+j] = 0.25 * (sum + src.Data[i*src.Stride+j])
			}
		}
		psi, next = next, psi
	}
	return psi
}

// VorticityEvolution performs one explicit Euler update of the vorticity field.
//
// Velocity comes from centered differences of the stream function
// (u = d(psi)/dy, v = -d(psi)/dx), advection uses centered differences of
// omega, and diffusion is the 5-point Laplacian scaled by nu. forcing may be
// nil. No CFL check is made; the caller picks a stable dt.
func VorticityEvolution(omega, psi mat.Matrix, nu, dt float64, forcing mat.Matrix) *mat.Dense {
	rows, cols := omega.Dims()
	if pr, pc := psi.Dims(); pr != rows || pc != cols {
		panic(mat.ErrShape)
	}
	if forcing != nil {
		if fr, fc := forcing.Dims(); fr != rows || fc != cols {
			panic(mat.ErrShape)
		}
	}

	w := mat.DenseCopyOf(omega)
	p := mat.DenseCopyOf(psi)
	var f *mat.Dense
	if forcing != nil {
		f = mat.DenseCopyOf(forcing)
	}

	out := mat.NewDense(rows, cols, nil)
	wr, pr, or := w.RawMatrix(), p.RawMatrix(), out.RawMatrix()
	for i := 0; i < rows; i++ {
		up := wrap(i-1, rows)
		down := wrap(i+1, rows)
		for j := 0; j < cols; j++ {
			left := wrap(j-1, cols)
			right := wrap(j+1, cols)

			dpsiDx := pr.Data[i*pr.Stride+right] - pr.Data[i*pr.Stride+left]
			dpsiDy := pr.Data[down*pr.Stride+j] - pr.Data[up*pr.Stride+j]
			ux := 0.5 * dpsiDy
			uy := -0.5 * dpsiDx

			c := wr.Data[i*wr.Stride+j]
			wl := wr.Data[i*wr.Stride+left]
			wrt := wr.Data[i*wr.Stride+right]
			wu := wr.Data[up*wr.Stride+j]
			wd := wr.Data[down*wr.Stride+j]

			adv := ux*0.5*(wrt-wl) + uy*0.5*(wd-wu)
			lap := wu + wd + wl + wrt - 4*c

			rhs := -adv + nu*lap
			if f != nil {
				rhs += f.At(i, j)
			}
			or.Data[i*or.Stride+j] = c + dt*rhs
		}
	}
	return out
}

// MaxAbs returns max|m_ij|, or 0 for an empty field.
func MaxAbs(m *mat.Dense) float64 {
	if m == nil {
		return 0
	}
	raw := m.RawMatrix()
	if raw.Rows == 0 || raw.Cols == 0 {
		return 0
	}
	var best float64
	for i := 0; i < raw.Rows; i++ {
		row := raw.Data[i*raw.Stride : i*raw.Stride+raw.Cols]
		best = math.Max(best, floats.Norm(row, math.Inf(1)))
	}
	return best
}

// wrap maps an index onto [0, n) with periodic boundaries.
func wrap(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}
