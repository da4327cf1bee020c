// Package reconstruct stitches per-rank box payloads into dense arrays.
//
// A query names a catalogued snapshot, the fields to rebuild and, where the
// kind needs them, a slice direction and an AMR level. The target extent is
//
//	dim = base_dim * 2^level / downsample   (truncating division)
//
// and every array starts NaN-filled, so cells no rank wrote stay NaN. Each
// rank file is opened once; a rank without coordinate datasets for the
// requested orientation is a coverage gap, not an error.
//
// Truncation-error kinds run a second pass over the same files with half the
// extent, twice the downsample and the te-prefixed dataset names, returning
// the estimate under <field>_truncation_error next to the plain field.
//
// Projections and spectra are single-file records and are read by
// Projection, ProjectionCounts, Spectrum, GWSpectrum and GWSpectrumFrom.
package reconstruct
