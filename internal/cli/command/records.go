package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/amrsnap/internal/core/domain"
)

func (e *env) finishRecords(c *cli.Context, rec *domain.Records) error {
	names := rec.Names()
	res := &result{
		Kind:   rec.Kind.String(),
		Index:  rec.Index,
		T:      rec.T,
		Axis:   rec.Axis,
		Arrays: summarize(names, rec.Values),
	}
	if path := c.String("save"); path != "" {
		if err := save(e.sink, path, rec.T, rec.Axis, rec.K, names, rec.Values); err != nil {
			return fmt.Errorf("save %s: %w", path, err)
		}
		res.Saved = path
	}
	return e.printResult(res)
}

func recordFlags(extra ...cli.Flag) []cli.Flag {
	flags := []cli.Flag{
		&cli.IntFlag{
			Name:     "index",
			Aliases:  []string{"i"},
			Usage:    "Snapshot index",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "save",
			Usage: "Write the records to this HDF5 file",
		},
	}
	return append(flags, extra...)
}

// ProjectionCommand reads projections or their sample counts.
func ProjectionCommand() *cli.Command {
	return &cli.Command{
		Name:    "projection",
		Aliases: []string{"proj"},
		Usage:   "Read 2-D projections",
		Flags: recordFlags(
			&cli.StringSliceFlag{
				Name:     "name",
				Aliases:  []string{"n"},
				Usage:    "Projection name (repeatable)",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "counts",
				Usage: "Read per-pixel sample counts instead of values",
			},
		),
		Action: withEnv(func(c *cli.Context, e *env) error {
			read := e.rec.Projection
			if c.Bool("counts") {
				read = e.rec.ProjectionCounts
			}
			rec, err := read(c.Context, c.Int("index"), c.StringSlice("name"))
			if err != nil {
				return err
			}
			return e.finishRecords(c, rec)
		}),
	}
}

// SpectrumCommand reads field spectra or the gravitational wave spectrum.
func SpectrumCommand() *cli.Command {
	return &cli.Command{
		Name:  "spectrum",
		Usage: "Read power spectra",
		Flags: recordFlags(
			&cli.StringSliceFlag{
				Name:    "name",
				Aliases: []string{"n"},
				Usage:   "Spectrum name (repeatable, not used with --gw)",
			},
			&cli.BoolFlag{
				Name:  "gw",
				Usage: "Read the gravitational wave spectrum",
			},
			&cli.StringFlag{
				Name:  "gw-folder",
				Usage: "Spectrum folder under the output root, for runs with several GW spectrum types (implies --gw)",
			},
		),
		Action: withEnv(func(c *cli.Context, e *env) error {
			var (
				rec *domain.Records
				err error
			)
			switch folder := c.String("gw-folder"); {
			case (c.Bool("gw") || folder != "") && len(c.StringSlice("name")) > 0:
				return fmt.Errorf("spectrum: --name cannot be combined with --gw")
			case folder != "":
				rec, err = e.rec.GWSpectrumFrom(c.Context, c.Int("index"), folder)
			case c.Bool("gw"):
				rec, err = e.rec.GWSpectrum(c.Context, c.Int("index"))
			default:
				rec, err = e.rec.Spectrum(c.Context, c.Int("index"), c.StringSlice("name"))
			}
			if err != nil {
				return err
			}
			return e.finishRecords(c, rec)
		}),
	}
}
