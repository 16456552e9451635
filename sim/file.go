package sim

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/westphae/goukf/ahrs"
)

// ReadSituation reads knots from CSV with a header line. Recognized columns
// are T, U1, U2, U3, Roll, Pitch, Heading and Alt; T is required and others
// default to zero. Unknown columns are ignored.
func ReadSituation(st *ahrs.StateFields, r io.Reader) (*Situation, error) {
	cr := csv.NewReader(bufio.NewReader(r))

	// Read header line
	rec, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, "sim: reading csv header")
	}
	fields := make(map[int]string, len(rec))
	hasT := false
	for i, k := range rec {
		fields[i] = k
		hasT = hasT || k == "T"
	}
	if !hasT {
		return nil, errors.New("sim: csv has no T column")
	}

	var knots []Knot
	for line := 2; ; line++ {
		rec, err = cr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.Wrapf(err, "sim: csv line %d", line)
		}

		var k Knot
		for i, s := range rec {
			var dst *float64
			switch fields[i] {
			case "T":
				dst = &k.T
			case "U1":
				dst = &k.U[0]
			case "U2":
				dst = &k.U[1]
			case "U3":
				dst = &k.U[2]
			case "Roll":
				dst = &k.Roll
			case "Pitch":
				dst = &k.Pitch
			case "Heading":
				dst = &k.Heading
			case "Alt":
				dst = &k.Alt
			default:
				continue
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "sim: csv line %d, %s", line, fields[i])
			}
			*dst = v
		}
		knots = append(knots, k)
	}
	return NewSituation(st, knots...)
}

// LoadSituation reads a situation from a CSV file.
func LoadSituation(st *ahrs.StateFields, fn string) (*Situation, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, errors.Wrap(err, "sim")
	}
	defer f.Close()
	return ReadSituation(st, f)
}
