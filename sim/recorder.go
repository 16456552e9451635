package sim

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/pkg/errors"
	"github.com/westphae/goukf/ukf"
)

// Recorder writes a CSV log of vectors over time, one column per stored
// component, for plotting a run against its truth.
type Recorder struct {
	w       *csv.Writer
	layouts []*ukf.Layout
	header  []string
	row     []string
}

// NewRecorder writes the header line for vectors on layouts. Columns are named
// schema.field, with a component suffix for vectors and rotations.
func NewRecorder(w io.Writer, layouts ...*ukf.Layout) (*Recorder, error) {
	r := &Recorder{w: csv.NewWriter(w), layouts: layouts, header: []string{"T"}}
	for _, l := range layouts {
		prefix := l.Schema().Name() + "."
		for _, f := range l.Fields() {
			switch f := f.(type) {
			case ukf.VectorField:
				for k := 1; k <= f.Len(); k++ {
					r.header = append(r.header, prefix+f.Label()+strconv.Itoa(k))
				}
			case ukf.RotationField:
				for _, c := range []string{"0", "1", "2", "3"} {
					r.header = append(r.header, prefix+f.Label()+c)
				}
			default:
				r.header = append(r.header, prefix+f.Label())
			}
		}
	}
	r.row = make([]string, len(r.header))
	if err := r.w.Write(r.header); err != nil {
		return nil, errors.Wrap(err, "sim: writing header")
	}
	return r, nil
}

// Header returns the column names.
func (r *Recorder) Header() []string { return r.header }

// Record writes one line: the time and the vectors, on the layouts given at
// construction, in order.
func (r *Recorder) Record(t float64, vs ...*ukf.Vector) error {
	if len(vs) != len(r.layouts) {
		return errors.Wrapf(ukf.ErrDimensionMismatch, "sim: %d vectors for %d layouts", len(vs), len(r.layouts))
	}
	r.row = r.row[:0]
	r.row = append(r.row, format(t))
	for i, v := range vs {
		if !v.Layout().Equal(r.layouts[i]) {
			return errors.Wrapf(ukf.ErrDimensionMismatch, "sim: vector %d is on the wrong layout", i)
		}
		for _, f := range v.Layout().Fields() {
			switch f := f.(type) {
			case ukf.VectorField:
				for _, x := range v.Vec(f) {
					r.row = append(r.row, format(x))
				}
			case ukf.RotationField:
				q := v.Rotation(f)
				r.row = append(r.row, format(q.W), format(q.X), format(q.Y), format(q.Z))
			case ukf.ScalarField:
				r.row = append(r.row, format(v.Scalar(f)))
			}
		}
	}
	return errors.Wrap(r.w.Write(r.row), "sim: writing record")
}

// Flush writes any buffered lines.
func (r *Recorder) Flush() error {
	r.w.Flush()
	return r.w.Error()
}

func format(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
