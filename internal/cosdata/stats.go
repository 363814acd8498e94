package cosdata

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Stats summarizes one column of samples.
type Stats struct {
	Mean   float64 `json:"mean"`
	Var    float64 `json:"var"`
	StdDev float64 `json:"std_dev"`
	P50    float64 `json:"p50"`
	P90    float64 `json:"p90"`
	P99    float64 `json:"p99"`
}

// Summary describes a batch: both columns plus the residual y - cos(x),
// whose standard deviation should track Params.Std.
type Summary struct {
	N        int   `json:"n"`
	X        Stats `json:"x"`
	Y        Stats `json:"y"`
	Residual Stats `json:"residual"`
}

// calcStats computes population mean/variance and linearly interpolated percentiles.
func calcStats(xs []float64) Stats {
	if len(xs) == 0 {
		return Stats{}
	}
	mean, variance := stat.PopMeanVariance(xs, nil)
	cp := append([]float64(nil), xs...)
	sort.Float64s(cp)
	return Stats{
		Mean:   mean,
		Var:    variance,
		StdDev: math.Sqrt(variance),
		P50:    stat.Quantile(0.50, stat.LinInterp, cp, nil),
		P90:    stat.Quantile(0.90, stat.LinInterp, cp, nil),
		P99:    stat.Quantile(0.99, stat.LinInterp, cp, nil),
	}
}

// Summarize computes per-column statistics of b.
func Summarize(b Batch) Summary {
	xs := make([]float64, len(b))
	ys := make([]float64, len(b))
	rs := make([]float64, len(b))
	for i, p := range b {
		xs[i], ys[i] = p.X, p.Y
		rs[i] = p.Y - math.Cos(p.X)
	}
	return Summary{
		N:        len(b),
		X:        calcStats(xs),
		Y:        calcStats(ys),
		Residual: calcStats(rs),
	}
}

// EstimateMass integrates PDF by uniform Monte Carlo over the box
// [min_x, max_x] x [-1 - 8 std, 1 + 8 std]. A well-formed dataset gives ~1.
// src is separate from the dataset generator so the stream is not advanced.
func EstimateMass(d *Dataset, n int, src rand.Source) float64 {
	if n <= 0 {
		return 0
	}
	p := d.Params()
	pad := 8 * math.Abs(p.Std)
	xs := distuv.Uniform{Min: p.MinX, Max: p.MaxX, Src: src}
	ys := distuv.Uniform{Min: -1 - pad, Max: 1 + pad, Src: src}

	box := make(Batch, n)
	for i := range box {
		box[i] = Point{X: xs.Rand(), Y: ys.Rand()}
	}
	area := (p.MaxX - p.MinX) * (2 + 2*pad)
	return stat.Mean(d.PDF(box), nil) * area
}
