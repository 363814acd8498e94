package cosdata

import "gonum.org/v1/gonum/mat"

// Point is one sample row: column 0 is x, column 1 is y.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Batch is a design matrix of shape (len(b), 2). Unlike mat.Dense it can be
// empty and still report two columns.
type Batch []Point

var _ mat.Matrix = Batch(nil)

func (b Batch) Dims() (r, c int) { return len(b), 2 }

func (b Batch) At(i, j int) float64 {
	switch j {
	case 0:
		return b[i].X
	case 1:
		return b[i].Y
	}
	panic(mat.ErrColAccess)
}

func (b Batch) T() mat.Matrix { return mat.Transpose{Matrix: b} }

// Rows returns the batch as [][]float64, the layout used on the wire.
func (b Batch) Rows() [][]float64 {
	out := make([][]float64, len(b))
	for i, p := range b {
		out[i] = []float64{p.X, p.Y}
	}
	return out
}

// BatchFromRows is the inverse of Rows. Every row must have two columns.
func BatchFromRows(rows [][]float64) (Batch, error) {
	out := make(Batch, len(rows))
	for i, r := range rows {
		if len(r) != 2 {
			return nil, mat.ErrShape
		}
		out[i] = Point{X: r[0], Y: r[1]}
	}
	return out, nil
}

// BatchOf copies any (n, 2) matrix into a Batch. It panics with mat.ErrShape
// when m does not have two columns, as gonum does on dimension mismatch.
func BatchOf(m mat.Matrix) Batch {
	if b, ok := m.(Batch); ok {
		return b
	}
	r, c := m.Dims()
	if c != 2 {
		panic(mat.ErrShape)
	}
	out := make(Batch, r)
	for i := range out {
		out[i] = Point{X: m.At(i, 0), Y: m.At(i, 1)}
	}
	return out
}
