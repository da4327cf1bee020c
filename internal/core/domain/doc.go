// Package domain defines the core domain models for amrsnap.
//
// Domain models are pure value objects without IO dependencies. This
// package contains:
//
//   - Kind: the nine snapshot series and their on-disk Layout
//   - Header: decoded per-snapshot header rows
//   - BoundingBox, Query: the inputs of box stitching
//   - FieldSet, Records: reconstruction results
//   - Errors: the error taxonomy shared by catalog and reconstructor
//
// Per-kind parameters (element width, header layout, dataset identifiers)
// live in an explicit table so that no component has to infer them.
package domain
