// Package homography estimates planar projective transforms from point
// correspondences and reduces them to the scale/translate parameters a CSS
// transform can express.
package homography

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrTooFewPoints is returned when fewer than four correspondences are given.
	ErrTooFewPoints = errors.New("homography needs at least 4 point pairs")
	// ErrDegenerate is returned when the points do not constrain a homography,
	// for example when they are collinear or coincident.
	ErrDegenerate = errors.New("degenerate point configuration")
)

// Point is a 2-D image coordinate in pixels.
type Point struct {
	X, Y float64
}

// Matrix is a row-major 3x3 homography, normalized so that M[8] == 1 when
// possible.
type Matrix [9]float64

// Identity returns the identity transform.
func Identity() Matrix {
	return Matrix{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// Apply maps p through m. ok is false when p maps to infinity.
func (m Matrix) Apply(p Point) (Point, bool) {
	d := m[6]*p.X + m[7]*p.Y + m[8]
	if math.Abs(d) < 1e-12 {
		return Point{}, false
	}
	return Point{
		X: (m[0]*p.X + m[1]*p.Y + m[2]) / d,
		Y: (m[3]*p.X + m[4]*p.Y + m[5]) / d,
	}, true
}

// Rows returns the matrix as three rows, the layout used in reports.
func (m Matrix) Rows() [][]float64 {
	return [][]float64{
		{m[0], m[1], m[2]},
		{m[3], m[4], m[5]},
		{m[6], m[7], m[8]},
	}
}

// String renders the matrix one row per line.
func (m Matrix) String() string {
	return fmt.Sprintf("[%10.5f %10.5f %10.3f]\n[%10.5f %10.5f %10.3f]\n[%10.7f %10.7f %10.5f]",
		m[0], m[1], m[2], m[3], m[4], m[5], m[6], m[7], m[8])
}

// Dense returns m as a gonum matrix.
func (m Matrix) Dense() *mat.Dense {
	return mat.NewDense(3, 3, m[:])
}

func fromDense(d mat.Matrix) Matrix {
	var m Matrix
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m[r*3+c] = d.At(r, c)
		}
	}
	return m.normalized()
}

func (m Matrix) normalized() Matrix {
	if math.Abs(m[8]) < 1e-12 {
		return m
	}
	s := m[8]
	for i := range m {
		m[i] /= s
	}
	return m
}

// Estimate computes the homography mapping from[i] onto to[i] by the
// normalized direct linear transform. With more than four pairs the result
// is the algebraic least-squares fit.
func Estimate(from, to []Point) (Matrix, error) {
	if len(from) != len(to) {
		return Matrix{}, fmt.Errorf("point count mismatch: %d vs %d", len(from), len(to))
	}
	if len(from) < 4 {
		return Matrix{}, ErrTooFewPoints
	}

	tFrom, nFrom, err := normalize(from)
	if err != nil {
		return Matrix{}, err
	}
	tTo, nTo, err := normalize(to)
	if err != nil {
		return Matrix{}, err
	}

	// Two equations per pair; pad to at least nine rows so the full SVD
	// always yields a 9x9 V.
	rows := max(2*len(from), 9)
	a := mat.NewDense(rows, 9, nil)
	for i := range nFrom {
		x, y := nFrom[i].X, nFrom[i].Y
		u, v := nTo[i].X, nTo[i].Y
		a.SetRow(2*i, []float64{-x, -y, -1, 0, 0, 0, u * x, u * y, u})
		a.SetRow(2*i+1, []float64{0, 0, 0, -x, -y, -1, v * x, v * y, v})
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFull); !ok {
		return Matrix{}, ErrDegenerate
	}
	values := svd.Values(nil)
	if values[0] == 0 || values[7]/values[0] < 1e-10 {
		return Matrix{}, ErrDegenerate
	}
	var v mat.Dense
	svd.VTo(&v)

	hn := mat.NewDense(3, 3, nil)
	for i := 0; i < 9; i++ {
		hn.Set(i/3, i%3, v.At(i, 8))
	}

	var toInv mat.Dense
	if err := toInv.Inverse(tTo); err != nil {
		return Matrix{}, ErrDegenerate
	}
	var tmp, h mat.Dense
	tmp.Mul(&toInv, hn)
	h.Mul(&tmp, tFrom)

	m := fromDense(&h)
	if math.Abs(m[8]) < 1e-12 {
		return Matrix{}, ErrDegenerate
	}
	return m, nil
}

// normalize translates points to their centroid and scales them so the mean
// distance from the origin is sqrt(2). It returns the similarity used.
func normalize(pts []Point) (*mat.Dense, []Point, error) {
	var cx, cy float64
	for _, p := range pts {
		cx += p.X
		cy += p.Y
	}
	n := float64(len(pts))
	cx /= n
	cy /= n

	var dist float64
	for _, p := range pts {
		dist += math.Hypot(p.X-cx, p.Y-cy)
	}
	dist /= n
	if dist < 1e-12 {
		return nil, nil, ErrDegenerate
	}
	s := math.Sqrt2 / dist

	out := make([]Point, len(pts))
	for i, p := range pts {
		out[i] = Point{X: (p.X - cx) * s, Y: (p.Y - cy) * s}
	}
	t := mat.NewDense(3, 3, []float64{
		s, 0, -s * cx,
		0, s, -s * cy,
		0, 0, 1,
	})
	return t, out, nil
}

// ReprojectionError returns the distance between m(from) and to, or +Inf
// when from maps to infinity.
func (m Matrix) ReprojectionError(from, to Point) float64 {
	p, ok := m.Apply(from)
	if !ok {
		return math.Inf(1)
	}
	return math.Hypot(p.X-to.X, p.Y-to.Y)
}

// Approx is the scale and translation read off a homography, ignoring
// rotation, shear and perspective.
type Approx struct {
	ScaleX     float64 `json:"scale_x" yaml:"scale_x"`
	ScaleY     float64 `json:"scale_y" yaml:"scale_y"`
	Scale      float64 `json:"scale" yaml:"scale"`
	TranslateX float64 `json:"translate_x" yaml:"translate_x"`
	TranslateY float64 `json:"translate_y" yaml:"translate_y"`
	// Rotation is the angle of the first column in degrees. Reported only.
	Rotation float64 `json:"rotation_deg" yaml:"rotation_deg"`
}

// Approximate decomposes m into per-axis scale (row norms of the linear
// part), their average, and the translation column.
func Approximate(m Matrix) Approx {
	sx := math.Hypot(m[0], m[1])
	sy := math.Hypot(m[3], m[4])
	return Approx{
		ScaleX:     sx,
		ScaleY:     sy,
		Scale:      (sx + sy) / 2,
		TranslateX: m[2],
		TranslateY: m[5],
		Rotation:   math.Atan2(m[3], m[0]) * 180 / math.Pi,
	}
}
