package reconstruct

import (
	"context"
	"path/filepath"
	"strconv"
	"time"

	"github.com/yndnr/amrsnap/internal/core/domain"
	"github.com/yndnr/amrsnap/internal/telemetry/logger"
	"github.com/yndnr/amrsnap/pkg/ndarray"
)

// Fixed dataset names of record kinds.
const (
	SpectrumAxis   = "k_sq"
	GWSpectrumAxis = "k"
	gwDataset      = "Spectrum"
	GWSpectrumKey  = "spectrum"

	projectionData   = "_data"
	projectionCounts = "_n"
)

// Projection reads the named projections of snapshot i, each reshaped to
// (base_dim, base_dim).
func (r *Reconstructor) Projection(ctx context.Context, i int, names []string) (*domain.Records, error) {
	return r.records(ctx, domain.KindProjection, i, names, projectionData, "")
}

// ProjectionCounts reads the per-pixel sample counts of the named
// projections.
func (r *Reconstructor) ProjectionCounts(ctx context.Context, i int, names []string) (*domain.Records, error) {
	return r.records(ctx, domain.KindProjection, i, names, projectionCounts, "")
}

// Spectrum reads the named spectra of snapshot i together with the k_sq axis.
func (r *Reconstructor) Spectrum(ctx context.Context, i int, names []string) (*domain.Records, error) {
	return r.records(ctx, domain.KindSpectrum, i, names, "", "")
}

// GWSpectrum reads the gravitational wave spectrum of snapshot i together
// with its k axis. The result holds a single entry keyed "spectrum".
func (r *Reconstructor) GWSpectrum(ctx context.Context, i int) (*domain.Records, error) {
	return r.records(ctx, domain.KindGWSpectrum, i, []string{GWSpectrumKey}, "", "")
}

// GWSpectrumFrom reads the gravitational wave spectrum of snapshot i from
// <root>/<folder>/<i>/spectra.hdf5, for runs that write more than one
// spectrum type. Snapshot times still come from the gw_spectra headers.
// folder must be a single directory name.
func (r *Reconstructor) GWSpectrumFrom(ctx context.Context, i int, folder string) (*domain.Records, error) {
	if folder == "" {
		return nil, domain.ErrInvalidArgument.WithDetails("empty spectrum folder")
	}
	return r.records(ctx, domain.KindGWSpectrum, i, []string{GWSpectrumKey}, "", folder)
}

func (r *Reconstructor) records(ctx context.Context, k domain.Kind, i int, names []string, suffix, folder string) (*domain.Records, error) {
	start := time.Now()
	ctx = r.begin(ctx)
	log := logger.L(ctx)

	rec, err := r.readRecords(ctx, k, i, names, suffix, folder)

	code := domain.GetErrorCode(err)
	if err != nil && code == "" {
		code = "internal"
	}
	r.metrics.ObserveQuery(k.String(), time.Since(start), code)
	if err != nil {
		log.Debug("query failed", "kind", k.String(), "index", i, "error", err)
		return nil, err
	}
	log.Debug("query complete", "kind", k.String(), "index", i, "names", len(names), "elapsed", time.Since(start))
	return rec, nil
}

func (r *Reconstructor) readRecords(ctx context.Context, k domain.Kind, i int, names []string, suffix, folder string) (*domain.Records, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h, err := r.cat.Header(k, i)
	if err != nil {
		return nil, err
	}
	if err := validateNames(names); err != nil {
		return nil, err
	}

	path := k.RecordPath(r.cat.Root(), i)
	if folder != "" {
		if err := validateFolder(folder); err != nil {
			return nil, err
		}
		path = filepath.Join(r.cat.Root(), folder, strconv.Itoa(i), k.Layout().File)
	}
	f, err := r.src.Open(path)
	if err != nil {
		// A record file that vanished after discovery is an I/O failure too.
		logger.L(ctx).Debug("record open failed", "path", path, "error", err)
		return nil, domain.ErrFileOpenFailure.WithDetails(path).Wrap(err)
	}
	defer f.Close()

	read := func(name string) ([]float64, error) {
		if !f.Has(name) {
			return nil, domain.ErrPayloadMissing.WithDetailsf("%s: %s", path, name)
		}
		v, err := f.ReadFloat64(name)
		if err != nil {
			return nil, domain.ErrFileOpenFailure.WithDetailsf("%s: %s", path, name).Wrap(err)
		}
		return v, nil
	}

	out := &domain.Records{
		Kind:   k,
		Index:  i,
		T:      h.T,
		Values: make(map[string]*ndarray.Array, len(names)),
	}
	dtype := k.Layout().Dtype

	switch k {
	case domain.KindProjection:
		dim := h.BaseDim
		for _, name := range names {
			v, err := read(name + suffix)
			if err != nil {
				return nil, err
			}
			arr, err := ndarray.FromFloat64(dtype, v, dim, dim)
			if err != nil {
				return nil, domain.ErrPayloadShapeMismatch.WithDetailsf("%s: %s%s has %d values, want %dx%d", path, name, suffix, len(v), dim, dim).Wrap(err)
			}
			out.Values[name] = arr
		}
		return out, nil

	case domain.KindSpectrum, domain.KindGWSpectrum:
		out.Axis = SpectrumAxis
		if k == domain.KindGWSpectrum {
			out.Axis = GWSpectrumAxis
		}
		if out.K, err = read(out.Axis); err != nil {
			return nil, err
		}
		for _, name := range names {
			dataset := name
			if k == domain.KindGWSpectrum {
				dataset = gwDataset
			}
			v, err := read(dataset)
			if err != nil {
				return nil, err
			}
			if len(v) != len(out.K) {
				return nil, domain.ErrPayloadShapeMismatch.WithDetailsf("%s: %s has %d values, %s has %d", path, dataset, len(v), out.Axis, len(out.K))
			}
			arr, err := ndarray.FromFloat64(dtype, v, len(v))
			if err != nil {
				return nil, domain.ErrPayloadShapeMismatch.WithDetailsf("%s: %s", path, dataset).Wrap(err)
			}
			out.Values[name] = arr
		}
		return out, nil
	}

	return nil, domain.ErrInvalidArgument.WithDetailsf("%s is a field kind", k)
}

func validateFolder(folder string) error {
	if folder == "." || folder == ".." || filepath.Base(folder) != folder || filepath.IsAbs(folder) {
		return domain.ErrInvalidArgument.WithDetailsf("spectrum folder %q is not a directory name", folder)
	}
	return nil
}

func validateNames(names []string) error {
	if len(names) == 0 {
		return domain.ErrInvalidArgument.WithDetails("no names requested")
	}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if n == "" {
			return domain.ErrInvalidArgument.WithDetails("empty name")
		}
		if seen[n] {
			return domain.ErrInvalidArgument.WithDetailsf("name %q requested twice", n)
		}
		seen[n] = true
	}
	return nil
}
