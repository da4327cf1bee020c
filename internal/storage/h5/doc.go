// Package h5 provides access to the HDF5 containers an AMR run writes.
//
// The solver stores every quantity as a flat, root-level dataset: headers,
// bounding-box coordinate arrays and box payloads alike. This package
// narrows HDF5 down to exactly that view:
//
//   - Container: Has / ReadFloat64 / Names on one opened file
//   - Source: Stat + Open, implemented by FileSource (github.com/scigolib/hdf5)
//     and MemSource (in-memory, for tests and dry runs)
//   - Sink / Writer: create files with flat float32/float64 datasets
//
// Has is the capability check used to tell a coverage gap (absent
// coordinate datasets) from a read failure.
package h5
