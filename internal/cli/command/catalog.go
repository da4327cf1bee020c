package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/amrsnap/internal/core/domain"
)

// CatalogCommand lists the snapshot count and time span of every kind.
func CatalogCommand() *cli.Command {
	return &cli.Command{
		Name:    "catalog",
		Aliases: []string{"ls"},
		Usage:   "List snapshot kinds found under the output root",
		Action: withEnv(func(c *cli.Context, e *env) error {
			return e.print(e.cat.Summary())
		}),
	}
}

// timeRow is one snapshot in the times listing.
type timeRow struct {
	Index       int     `json:"index"`
	T           float64 `json:"t"`
	RankCount   int     `json:"rank_count,omitempty" table:"wide"`
	FinestLevel int     `json:"finest_level,omitempty" table:"wide"`
	BaseDim     int     `json:"base_dim,omitempty" table:"wide"`
	Downsample  int     `json:"downsample,omitempty" table:"wide"`
}

// TimesCommand lists the snapshot times of one kind.
func TimesCommand() *cli.Command {
	return &cli.Command{
		Name:      "times",
		Usage:     "List snapshot times of a kind",
		ArgsUsage: "<kind>",
		Description: "Kinds: slices, slices_truncation_error, coarse_box, coarse_box_truncation_error,\n" +
			"full_box, full_box_truncation_error, projections, spectra, gw_spectra.",
		Action: withEnv(func(c *cli.Context, e *env) error {
			if c.NArg() != 1 {
				return fmt.Errorf("times: expected exactly one kind, got %d arguments", c.NArg())
			}
			k, err := domain.ParseKind(c.Args().First())
			if err != nil {
				return err
			}
			headers := e.cat.Headers(k)
			rows := make([]timeRow, len(headers))
			for i, h := range headers {
				rows[i] = timeRow{
					Index:       i,
					T:           h.T,
					RankCount:   h.RankCount,
					FinestLevel: h.FinestLevel,
					BaseDim:     h.BaseDim,
				}
				if k.Layout().HasDownsample {
					rows[i].Downsample = h.Downsample
				}
			}
			return e.print(rows)
		}),
	}
}
