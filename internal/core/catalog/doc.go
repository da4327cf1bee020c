// Package catalog discovers which snapshots exist under an output root.
//
// Each of the nine snapshot kinds is probed independently: index i exists
// when its probe file (Level_0/0.hdf5 for sharded kinds, the single record
// file otherwise) exists. Discovery stops at the first missing index, so a
// series is always contiguous from 0. The header of every discovered
// snapshot is decoded once and kept for the catalog's lifetime; Refresh
// appends snapshots written since.
package catalog
