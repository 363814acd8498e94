package cosdata

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// OutOfSupportEnergy is what FreeEnergy assigns outside (min_x, max_x).
// Large enough to be "impossible" for an optimizer, still finite.
const OutOfSupportEnergy = 1e30

// Differentiable is implemented by evaluators that expose gradients of the
// free energy, for gradient-based consumers.
type Differentiable interface {
	FreeEnergy(m mat.Matrix) []float64
	FreeEnergyGrad(m mat.Matrix) Batch
	PDF(m mat.Matrix) []float64
}

var _ Differentiable = (*Dataset)(nil)

// energyAt is the one place the model formula lives.
func (d *Dataset) energyAt(x, y float64) float64 {
	r := y - math.Cos(x)
	return r * r / (2 * d.params.Std * d.params.Std)
}

// inSupport uses strict bounds: the interval edges carry zero density.
func (d *Dataset) inSupport(x float64) bool {
	return x < d.params.MaxX && x > d.params.MinX
}

func (d *Dataset) densityAt(x, y float64) float64 {
	if !d.inSupport(x) {
		return 0
	}
	s2 := d.params.Std * d.params.Std
	return math.Exp(-d.energyAt(x, y)) / math.Sqrt(2*math.Pi*s2) / (d.params.MaxX - d.params.MinX)
}

// Energy returns (y - cos x)^2 / (2 std^2) for every row, with no bounds check.
// m must have two columns.
func (d *Dataset) Energy(m mat.Matrix) []float64 {
	b := BatchOf(m)
	out := make([]float64, len(b))
	for i, p := range b {
		out[i] = d.energyAt(p.X, p.Y)
	}
	return out
}

// PDFFunc returns the joint density: a gaussian around cos(x) normalised by
// sqrt(2 pi std^2), times the uniform marginal 1/(max_x - min_x), zero
// outside the support.
func (d *Dataset) PDFFunc(m mat.Matrix) []float64 {
	b := BatchOf(m)
	out := make([]float64, len(b))
	for i, p := range b {
		out[i] = d.densityAt(p.X, p.Y)
	}
	return out
}

// PDF is the differentiable counterpart of PDFFunc. Both share one path.
func (d *Dataset) PDF(m mat.Matrix) []float64 { return d.PDFFunc(m) }

// FreeEnergy equals Energy inside the support and OutOfSupportEnergy outside.
func (d *Dataset) FreeEnergy(m mat.Matrix) []float64 {
	b := BatchOf(m)
	out := make([]float64, len(b))
	for i, p := range b {
		if d.inSupport(p.X) {
			out[i] = d.energyAt(p.X, p.Y)
		} else {
			out[i] = OutOfSupportEnergy
		}
	}
	return out
}

// FreeEnergyGrad returns dFreeEnergy/dx and dFreeEnergy/dy per row. The
// out-of-support branch is constant so its gradient is zero.
func (d *Dataset) FreeEnergyGrad(m mat.Matrix) Batch {
	b := BatchOf(m)
	out := make(Batch, len(b))
	s2 := d.params.Std * d.params.Std
	for i, p := range b {
		if !d.inSupport(p.X) {
			continue
		}
		r := p.Y - math.Cos(p.X)
		out[i] = Point{
			X: r * math.Sin(p.X) / s2,
			Y: r / s2,
		}
	}
	return out
}
