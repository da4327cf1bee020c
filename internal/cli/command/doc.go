// Package command defines the amrsnap command line with urfave/cli/v2.
//
// Every data command follows the same path: load configuration, open the
// catalog over the output root, run one query and hand the result to an
// output formatter. Reconstruction commands print a per-array summary and
// can save the arrays to an HDF5 file with --save.
package command
