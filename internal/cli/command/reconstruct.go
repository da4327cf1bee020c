package command

import (
	"errors"
	"fmt"
	"math"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/amrsnap/internal/cli/output"
	"github.com/yndnr/amrsnap/internal/core/domain"
	"github.com/yndnr/amrsnap/internal/storage/h5"
	"github.com/yndnr/amrsnap/pkg/ndarray"
)

// arraySummary describes one reconstructed array.
type arraySummary struct {
	Name   string   `json:"name"`
	Shape  []int    `json:"shape"`
	Dtype  string   `json:"dtype"`
	NaN    int      `json:"nan"`
	Min    *float64 `json:"min,omitempty"`
	Max    *float64 `json:"max,omitempty"`
	Mean   *float64 `json:"mean,omitempty" table:"wide"`
	Digest string   `json:"digest"`
}

// result is what reconstruction and record commands print.
type result struct {
	Kind   string         `json:"kind"`
	Index  int            `json:"index"`
	T      float64        `json:"t"`
	Axis   string         `json:"axis,omitempty"`
	Arrays []arraySummary `json:"arrays"`
	Saved  string         `json:"saved,omitempty"`
}

func finite(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func summarize(names []string, arrays map[string]*ndarray.Array) []arraySummary {
	out := make([]arraySummary, 0, len(names))
	for _, name := range names {
		a := arrays[name]
		st := a.Stats()
		out = append(out, arraySummary{
			Name:   name,
			Shape:  a.Shape(),
			Dtype:  a.Dtype().String(),
			NaN:    st.Missing,
			Min:    finite(st.Min),
			Max:    finite(st.Max),
			Mean:   finite(st.Mean),
			Digest: a.Digest(),
		})
	}
	return out
}

// printResult renders res. Tables get a one-line snapshot banner above the
// per-array rows; machine formats get the whole document.
func (e *env) printResult(res *result) error {
	if e.format != output.FormatTable {
		return e.print(res)
	}
	banner := fmt.Sprintf("%s[%d] t=%s", res.Kind, res.Index, output.FormatFloat(res.T))
	if res.Saved != "" {
		banner += " saved=" + res.Saved
	}
	fmt.Fprintln(e.stdout, banner)
	return e.print(res.Arrays)
}

// save writes arrays to path: each array flat under its name, its shape under
// <name>_shape, the snapshot time under "t" and, for records, the k axis
// under its own name.
func save(sink h5.Sink, path string, t float64, axis string, k []float64, names []string, arrays map[string]*ndarray.Array) (err error) {
	w, err := sink.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, w.Close())
	}()

	if err := w.WriteFloat64("t", []float64{t}); err != nil {
		return err
	}
	if axis != "" {
		if err := w.WriteFloat64(axis, k); err != nil {
			return err
		}
	}
	for _, name := range names {
		a := arrays[name]
		shape := a.Shape()
		dims := make([]float64, len(shape))
		for i, d := range shape {
			dims[i] = float64(d)
		}
		if err := w.WriteFloat64(name+"_shape", dims); err != nil {
			return err
		}
		if a.Dtype() == ndarray.Float32 {
			err = w.WriteFloat32(name, a.Float32())
		} else {
			err = w.WriteFloat64(name, a.Float64())
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *env) finishFieldSet(c *cli.Context, fs *domain.FieldSet) error {
	names := fs.Names()
	res := &result{
		Kind:   fs.Kind.String(),
		Index:  fs.Index,
		T:      fs.T,
		Arrays: summarize(names, fs.Fields),
	}
	if path := c.String("save"); path != "" {
		if err := save(e.sink, path, fs.T, "", nil, names, fs.Fields); err != nil {
			return fmt.Errorf("save %s: %w", path, err)
		}
		res.Saved = path
		e.log.Info("saved arrays", "path", path, "arrays", len(names))
	}
	return e.printResult(res)
}

func queryFlags(extra ...cli.Flag) []cli.Flag {
	flags := []cli.Flag{
		&cli.IntFlag{
			Name:     "index",
			Aliases:  []string{"i"},
			Usage:    "Snapshot index",
			Required: true,
		},
		&cli.StringSliceFlag{
			Name:     "field",
			Aliases:  []string{"f"},
			Usage:    "Field to reconstruct (repeatable)",
			Required: true,
		},
		&cli.BoolFlag{
			Name:  "te",
			Usage: "Use the truncation-error series and add <field>_truncation_error estimates",
		},
		&cli.StringFlag{
			Name:  "save",
			Usage: "Write the arrays to this HDF5 file",
		},
	}
	return append(flags, extra...)
}

// SliceCommand reconstructs a 2-D slice.
func SliceCommand() *cli.Command {
	return &cli.Command{
		Name:  "slice",
		Usage: "Reconstruct a 2-D slice",
		Flags: queryFlags(
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Usage:   "Slice direction: x, y or z",
				Value:   "x",
			},
			&cli.IntFlag{
				Name:    "level",
				Aliases: []string{"l"},
				Usage:   "AMR level",
			},
		),
		Action: withEnv(func(c *cli.Context, e *env) error {
			q := domain.Query{
				Kind:      domain.KindSlice,
				Index:     c.Int("index"),
				Direction: c.String("dir"),
				Level:     c.Int("level"),
				Fields:    c.StringSlice("field"),
			}
			if c.Bool("te") {
				q.Kind = domain.KindSliceTruncationError
			}
			fs, err := e.rec.Reconstruct(c.Context, q)
			if err != nil {
				return err
			}
			return e.finishFieldSet(c, fs)
		}),
	}
}

// BoxCommand reconstructs a 3-D box, full resolution by default.
func BoxCommand() *cli.Command {
	return &cli.Command{
		Name:  "box",
		Usage: "Reconstruct a 3-D box",
		Flags: queryFlags(
			&cli.BoolFlag{
				Name:  "coarse",
				Usage: "Read the coarse (level 0) box series",
			},
			&cli.IntFlag{
				Name:    "level",
				Aliases: []string{"l"},
				Usage:   "AMR level (full box only)",
			},
		),
		Action: withEnv(func(c *cli.Context, e *env) error {
			q := domain.Query{
				Kind:   domain.KindFullBox,
				Index:  c.Int("index"),
				Level:  c.Int("level"),
				Fields: c.StringSlice("field"),
			}
			switch {
			case c.Bool("coarse") && c.Bool("te"):
				q.Kind = domain.KindCoarseBoxTruncationError
			case c.Bool("coarse"):
				q.Kind = domain.KindCoarseBox
			case c.Bool("te"):
				q.Kind = domain.KindFullBoxTruncationError
			}
			fs, err := e.rec.Reconstruct(c.Context, q)
			if err != nil {
				return err
			}
			return e.finishFieldSet(c, fs)
		}),
	}
}
