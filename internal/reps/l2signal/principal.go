package l2signal

import (
	"github.com/willGauntletAi/tiktok-sub000/internal/reps/l1pose"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// minAxisVariance is the smallest dominant eigenvalue treated as motion.
// Below it the joint is effectively static and the vertical axis is used.
const minAxisVariance = 1e-12

// PrincipalAxis returns the mean of the points and the unit dominant
// eigenvector of their covariance. Fewer than two points, or points with no
// spread, yield the vertical axis.
func PrincipalAxis(points []l1pose.Point) (mean, axis l1pose.Point) {
	axis = l1pose.Point{X: 0, Y: 1}
	if len(points) == 0 {
		return mean, axis
	}

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	data := make([]float64, 0, 2*len(points))
	for i, p := range points {
		xs[i], ys[i] = p.X, p.Y
		data = append(data, p.X, p.Y)
	}
	mean = l1pose.Point{X: stat.Mean(xs, nil), Y: stat.Mean(ys, nil)}
	if len(points) < 2 {
		return mean, axis
	}

	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, mat.NewDense(len(points), 2, data), nil)

	var eig mat.EigenSym
	if ok := eig.Factorize(&cov, true); !ok {
		return mean, axis
	}
	values := eig.Values(nil) // ascending
	if values[1] <= minAxisVariance {
		return mean, axis
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	axis = l1pose.Point{X: vecs.At(0, 1), Y: vecs.At(1, 1)}
	return mean, axis
}

func projectPrincipalAxis(positions []l1pose.Point, kinds []SampleKind) []float64 {
	fresh := make([]l1pose.Point, 0, len(positions))
	for i, k := range kinds {
		if k == SampleFresh {
			fresh = append(fresh, positions[i])
		}
	}
	mean, axis := PrincipalAxis(fresh)

	// Orient the axis so the first usable frame sits at or below the mean.
	// The eigenvector sign is arbitrary and the rest pose should read low.
	if d := fresh[0].Sub(mean); d.X*axis.X+d.Y*axis.Y > 0 {
		axis = l1pose.Point{X: -axis.X, Y: -axis.Y}
	}

	out := make([]float64, len(positions))
	for i, k := range kinds {
		if k == SampleNeutral {
			continue
		}
		d := positions[i].Sub(mean)
		out[i] = d.X*axis.X + d.Y*axis.Y
	}
	return out
}
