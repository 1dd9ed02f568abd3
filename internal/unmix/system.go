// Package unmix solves the fully constrained three-endmember mixture of a
// pixel in (NDVI, SWIR32) space.
//
// The sum-to-one constraint is enforced by substitution: f_BS = 1 - f_PV -
// f_NPV, which leaves a 2x2 system A x = m - BS with A = [PV-BS, NPV-BS].
// The feasible set is the triangle spanned by the three endmembers, so the
// bounded least-squares optimum is either the exact solution (observation
// inside the triangle) or the closest point on one of its edges.
package unmix

import (
	"math"

	"github.com/forest-guardian/fractional-cover/internal/endmember"
	"gonum.org/v1/gonum/mat"
)

// MaxCondition is the 2-norm condition number above which a triplet is
// treated as collinear.
const MaxCondition = 1e10

// System is the precomputed solver for one endmember triplet. It is
// immutable and safe for concurrent use.
type System struct {
	triplet    endmember.Triplet
	inv        [2][2]float64
	cond       float64
	degenerate bool
}

// NewSystem precomputes the inverse of the substitution matrix. Collinear or
// coincident endmembers produce a degenerate system that answers with the
// nearest-endmember fallback.
func NewSystem(t endmember.Triplet) *System {
	pv, npv, bs := t[endmember.PV], t[endmember.NPV], t[endmember.BS]
	a := mat.NewDense(2, 2, []float64{
		pv.NDVI - bs.NDVI, npv.NDVI - bs.NDVI,
		pv.SWIR32 - bs.SWIR32, npv.SWIR32 - bs.SWIR32,
	})

	s := &System{triplet: t, cond: math.Inf(1)}
	if mat.Norm(a, 1) == 0 {
		s.degenerate = true
		return s
	}

	s.cond = mat.Cond(a, 2)
	if math.IsNaN(s.cond) || s.cond > MaxCondition {
		s.degenerate = true
		return s
	}

	var inv mat.Dense
	if err := inv.Inverse(a); err != nil {
		s.degenerate = true
		return s
	}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			s.inv[i][j] = inv.At(i, j)
		}
	}
	return s
}

func (s *System) Triplet() endmember.Triplet { return s.triplet }

// Degenerate reports whether the endmembers are collinear or coincident.
func (s *System) Degenerate() bool { return s.degenerate }

// Condition is the 2-norm condition number of the substitution matrix.
func (s *System) Condition() float64 { return s.cond }
