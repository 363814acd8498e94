package cosdata

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func TestEnergy(t *testing.T) {
	d := newDefault(t)
	b := Batch{{X: 0, Y: 1}, {X: 0, Y: 1.05}, {X: math.Pi, Y: 0}, {X: 100, Y: 0}}
	got := d.Energy(b)
	want := []float64{
		0,
		0.05 * 0.05 / (2 * 0.05 * 0.05),
		1 / (2 * 0.05 * 0.05),
		math.Pow(math.Cos(100), 2) / (2 * 0.05 * 0.05),
	}
	require.True(t, floats.EqualApprox(want, got, 1e-9), "got %v want %v", got, want)
}

func TestPDFMatchesEnergyInsideSupport(t *testing.T) {
	d := newDefault(t)
	b, err := d.Batch(500)
	require.NoError(t, err)

	energy := d.Energy(b)
	pdf := d.PDFFunc(b)
	sym := d.PDF(b)
	norm := math.Sqrt(2*math.Pi*0.05*0.05) * (6.28 - -6.28)
	for i, p := range b {
		if p.X <= -6.28 || p.X >= 6.28 {
			continue
		}
		require.InEpsilon(t, math.Exp(-energy[i])/norm, pdf[i], 1e-12, "row %d", i)
		require.Equal(t, pdf[i], sym[i])
	}
	require.Equal(t, energy, d.FreeEnergy(b))
}

func TestOutOfSupport(t *testing.T) {
	d := newDefault(t)
	outside := Batch{{X: -7, Y: math.Cos(-7)}, {X: 6.29, Y: 1}, {X: 1e9, Y: 0}}
	for _, v := range d.PDFFunc(outside) {
		require.Zero(t, v)
	}
	for _, v := range d.PDF(outside) {
		require.Zero(t, v)
	}
	for _, v := range d.FreeEnergy(outside) {
		require.Equal(t, OutOfSupportEnergy, v)
	}
	// Energy has no bounds check
	for _, v := range d.Energy(outside) {
		require.Less(t, v, OutOfSupportEnergy)
	}
}

func TestSupportBoundaryIsExcluded(t *testing.T) {
	d := newDefault(t)
	edges := Batch{{X: -6.28, Y: math.Cos(-6.28)}, {X: 6.28, Y: math.Cos(6.28)}}
	require.Equal(t, []float64{0, 0}, d.PDFFunc(edges))
	require.Equal(t, []float64{OutOfSupportEnergy, OutOfSupportEnergy}, d.FreeEnergy(edges))
}

func TestEvaluatorsAcceptDense(t *testing.T) {
	d := newDefault(t)
	dense := mat.NewDense(3, 2, []float64{
		0, 1,
		0.5, 0.8,
		-8, 0,
	})
	b := BatchOf(dense)
	require.Equal(t, d.Energy(b), d.Energy(dense))
	require.Equal(t, d.PDFFunc(b), d.PDFFunc(dense))
	require.Equal(t, d.FreeEnergy(b), d.FreeEnergy(dense))
	require.Empty(t, d.Energy(Batch{}))
}

func TestFreeEnergyGrad(t *testing.T) {
	d := newDefault(t)
	pts := Batch{{X: 0.3, Y: 0.9}, {X: -2, Y: -0.3}, {X: 4, Y: -0.7}}
	grad := d.FreeEnergyGrad(pts)
	const h = 1e-6
	for i, p := range pts {
		dx := (d.FreeEnergy(Batch{{X: p.X + h, Y: p.Y}})[0] - d.FreeEnergy(Batch{{X: p.X - h, Y: p.Y}})[0]) / (2 * h)
		dy := (d.FreeEnergy(Batch{{X: p.X, Y: p.Y + h}})[0] - d.FreeEnergy(Batch{{X: p.X, Y: p.Y - h}})[0]) / (2 * h)
		require.InEpsilon(t, dx, grad[i].X, 1e-5, "row %d", i)
		require.InEpsilon(t, dy, grad[i].Y, 1e-5, "row %d", i)
	}

	out := d.FreeEnergyGrad(Batch{{X: 10, Y: 3}})
	require.Equal(t, Point{}, out[0])
}

func TestValidate(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())

	cases := map[string]Params{
		"inverted":  {MinX: 1, MaxX: -1, Std: 0.1},
		"empty":     {MinX: 1, MaxX: 1, Std: 0.1},
		"zero std":  {MinX: -1, MaxX: 1, Std: 0},
		"nan":       {MinX: math.NaN(), MaxX: 1, Std: 0.1},
		"bad float": {MinX: -1, MaxX: 1, Std: 0.1, FloatX: "float16"},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			require.ErrorIs(t, p.Validate(), ErrInvalidParams)
		})
	}
}

func TestParseFloatX(t *testing.T) {
	for in, want := range map[string]FloatX{"": Float64, "float64": Float64, "FLOAT32": Float32, " float32 ": Float32} {
		got, err := ParseFloatX(in)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err := ParseFloatX("half")
	require.Error(t, err)
}
