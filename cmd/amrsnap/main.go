// Package main provides the entry point for amrsnap.
//
// amrsnap reads the per-rank HDF5 output of an AMR lattice simulation and
// reconstructs slices, boxes, projections and spectra from it.
package main

import (
	"os"

	"github.com/yndnr/amrsnap/internal/cli/command"
)

func main() {
	app := command.App()

	if err := app.Run(os.Args); err != nil {
		command.PrintError(os.Stderr, err)
		os.Exit(1)
	}
}
