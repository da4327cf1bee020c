package command

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/amrsnap/internal/core/catalog"
	"github.com/yndnr/amrsnap/internal/core/domain"
	"github.com/yndnr/amrsnap/internal/infra/buildinfo"
	"github.com/yndnr/amrsnap/internal/storage/h5/h5test"
)

// runApp runs amrsnap against run with the header cache disabled.
func runApp(t *testing.T, run *h5test.Run, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := App(WithSource(run.Src), WithSink(run.Src), WithOutput(&stdout, &stderr))
	full := append([]string{"amrsnap", "--root", run.Root, "--no-cache"}, args...)
	err := app.Run(full)
	return stdout.String(), err
}

func decode[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	return v
}

// sliceRun holds two slices along x and one coarse box of 4^3.
func sliceRun() *h5test.Run {
	run := h5test.NewRun()
	for i, tm := range []float64{1.25, 2.5} {
		run.PutShard(h5test.Shard{
			Kind: domain.KindSlice, Index: i,
			Header: []float64{tm, 1, 0, 4},
			Orientation: map[string][]h5test.Box{"x": {{
				Lo: []int{0, 0}, Hi: []int{4, 4},
				Fields: map[string][]float64{"phi": h5test.Ramp(16, 0)},
			}}},
		})
	}
	run.PutShard(h5test.Shard{
		Kind:   domain.KindCoarseBox,
		Header: []float64{0.5, 1, 0, 4, 1, 1},
		Orientation: map[string][]h5test.Box{"data": {{
			Lo: []int{0, 0, 0}, Hi: []int{4, 4, 4},
			Fields: map[string][]float64{"phi": h5test.Ramp(64, 0)},
		}}},
	})
	return run
}

func TestApp_Commands(t *testing.T) {
	app := App()
	names := make(map[string]bool)
	for _, cmd := range app.Commands {
		names[cmd.Name] = true
	}
	for _, want := range []string{"catalog", "times", "slice", "box", "projection", "spectrum", "watch", "version"} {
		if !names[want] {
			t.Errorf("missing command %q", want)
		}
	}
}

func TestCatalog_JSON(t *testing.T) {
	run := sliceRun()
	run.PutRecord(domain.KindSpectrum, 0, []float64{3}, map[string][]float64{"k_sq": {0}})

	out, err := runApp(t, run, "-o", "json", "catalog")
	if err != nil {
		t.Fatalf("catalog error = %v", err)
	}
	rows := decode[[]catalog.KindSummary](t, out)
	counts := make(map[string]int)
	for _, r := range rows {
		counts[r.Kind] = r.Count
	}
	if counts["slices"] != 2 || counts["coarse_box"] != 1 || counts["spectra"] != 1 || counts["full_box"] != 0 {
		t.Errorf("counts = %v", counts)
	}
}

func TestTimes(t *testing.T) {
	run := sliceRun()

	out, err := runApp(t, run, "times", "slices")
	if err != nil {
		t.Fatalf("times error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), out)
	}
	if f := strings.Fields(lines[2]); len(f) != 2 || f[0] != "1" || f[1] != "2.5" {
		t.Errorf("row = %v", f)
	}

	if _, err := runApp(t, run, "times", "nope"); !errors.Is(err, domain.ErrUnknownKind) {
		t.Errorf("unknown kind error = %v", err)
	}
	if _, err := runApp(t, run, "times"); err == nil {
		t.Error("times without a kind should fail")
	}
}

func TestSlice_Table(t *testing.T) {
	out, err := runApp(t, sliceRun(), "slice", "-i", "1", "-f", "phi")
	if err != nil {
		t.Fatalf("slice error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if lines[0] != "slices[1] t=2.5" {
		t.Errorf("banner = %q", lines[0])
	}
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), out)
	}
	f := strings.Fields(lines[2])
	if len(f) != 7 || f[0] != "phi" || f[1] != "4x4" || f[2] != "float32" || f[3] != "0" || f[4] != "0" || f[5] != "15" {
		t.Errorf("row = %v", f)
	}
}

func TestSlice_Errors(t *testing.T) {
	run := sliceRun()
	tests := []struct {
		name string
		args []string
		want error
	}{
		{"bad direction", []string{"slice", "-i", "0", "-f", "phi", "-d", "w"}, domain.ErrInvalidArgument},
		{"index out of range", []string{"slice", "-i", "5", "-f", "phi"}, domain.ErrIndexOutOfRange},
		{"level above finest", []string{"slice", "-i", "0", "-f", "phi", "-l", "1"}, domain.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runApp(t, run, tt.args...); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := runApp(t, run, "slice", "-i", "0"); err == nil {
		t.Error("missing --field should fail")
	}
}

func TestBox_CoarseSave(t *testing.T) {
	run := sliceRun()

	out, err := runApp(t, run, "-o", "json", "box", "--coarse", "-i", "0", "-f", "phi", "--save", "/out/box.h5")
	if err != nil {
		t.Fatalf("box error = %v", err)
	}
	res := decode[result](t, out)
	if res.Kind != "coarse_box" || res.T != 0.5 || res.Saved != "/out/box.h5" || len(res.Arrays) != 1 {
		t.Fatalf("result = %+v", res)
	}
	a := res.Arrays[0]
	if a.Dtype != "float64" || a.NaN != 0 || a.Min == nil || *a.Min != 0 || *a.Max != 63 || a.Digest == "" {
		t.Errorf("summary = %+v", a)
	}
	if len(a.Shape) != 3 || a.Shape[0] != 4 {
		t.Errorf("shape = %v", a.Shape)
	}

	phi, ok := run.Src.Dataset("/out/box.h5", "phi")
	if !ok || len(phi) != 64 || phi[63] != 63 {
		t.Errorf("saved phi = %v, %v", len(phi), ok)
	}
	shape, _ := run.Src.Dataset("/out/box.h5", "phi_shape")
	if len(shape) != 3 || shape[0] != 4 || shape[1] != 4 || shape[2] != 4 {
		t.Errorf("saved shape = %v", shape)
	}
	if tm, _ := run.Src.Dataset("/out/box.h5", "t"); len(tm) != 1 || tm[0] != 0.5 {
		t.Errorf("saved t = %v", tm)
	}
}

func TestBox_FullMissingSeries(t *testing.T) {
	if _, err := runApp(t, sliceRun(), "box", "-i", "0", "-f", "phi"); !errors.Is(err, domain.ErrIndexOutOfRange) {
		t.Errorf("error = %v, want ErrIndexOutOfRange", err)
	}
}

func TestProjection_CountsYAML(t *testing.T) {
	run := h5test.NewRun()
	run.PutRecord(domain.KindProjection, 0, []float64{4, 2}, map[string][]float64{
		"rho_data": {1, 2, 3, 4},
		"rho_n":    {7, 7, 7, 7},
	})

	out, err := runApp(t, run, "-o", "yaml", "projection", "-i", "0", "-n", "rho", "--counts")
	if err != nil {
		t.Fatalf("projection error = %v", err)
	}
	for _, want := range []string{"kind: projections", "name: rho", "min: 7", "max: 7"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSpectrum(t *testing.T) {
	run := h5test.NewRun()
	run.PutRecord(domain.KindSpectrum, 0, []float64{1}, map[string][]float64{"k_sq": {0, 1}, "phi": {5, 6}})
	run.PutRecord(domain.KindGWSpectrum, 0, []float64{1}, map[string][]float64{"k": {0.5}, "Spectrum": {9}})

	out, err := runApp(t, run, "-o", "json", "spectrum", "-i", "0", "-n", "phi", "--save", "/out/spectrum.h5")
	if err != nil {
		t.Fatalf("spectrum error = %v", err)
	}
	if res := decode[result](t, out); res.Axis != "k_sq" || len(res.Arrays) != 1 {
		t.Errorf("result = %+v", res)
	}
	if k, ok := run.Src.Dataset("/out/spectrum.h5", "k_sq"); !ok || len(k) != 2 {
		t.Errorf("saved axis = %v, %v", k, ok)
	}

	out, err = runApp(t, run, "-o", "json", "spectrum", "-i", "0", "--gw")
	if err != nil {
		t.Fatalf("gw spectrum error = %v", err)
	}
	if res := decode[result](t, out); res.Axis != "k" || res.Arrays[0].Name != "spectrum" {
		t.Errorf("result = %+v", res)
	}

	if _, err := runApp(t, run, "spectrum", "-i", "0", "--gw", "-n", "phi"); err == nil {
		t.Error("--gw with --name should fail")
	}

	run.Src.Put(filepath.Join(run.Root, "gw_spectra_tensor", "0", "spectra.hdf5"), map[string][]float64{"k": {0.5, 1}, "Spectrum": {3, 4}})
	out, err = runApp(t, run, "-o", "json", "spectrum", "-i", "0", "--gw-folder", "gw_spectra_tensor")
	if err != nil {
		t.Fatalf("gw folder spectrum error = %v", err)
	}
	if res := decode[result](t, out); res.Axis != "k" || len(res.Arrays) != 1 || res.Arrays[0].Shape[0] != 2 {
		t.Errorf("result = %+v", res)
	}
	if _, err := runApp(t, run, "spectrum", "-i", "0", "--gw-folder", "../x"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("--gw-folder ../x error = %v, want ErrInvalidArgument", err)
	}
}

func TestConfigErrors(t *testing.T) {
	run := h5test.NewRun()
	if _, err := runApp(t, run, "--workers", "-1", "catalog"); err == nil || !strings.Contains(err.Error(), "engine.workers") {
		t.Errorf("error = %v", err)
	}
	if _, err := runApp(t, run, "-o", "xml", "catalog"); err == nil {
		t.Error("unknown output format should fail")
	}

	var stdout bytes.Buffer
	app := App(WithSource(run.Src), WithOutput(&stdout, &bytes.Buffer{}))
	if err := app.Run([]string{"amrsnap", "--no-cache", "catalog"}); err == nil || !strings.Contains(err.Error(), "output.root") {
		t.Errorf("missing root error = %v", err)
	}
}

func TestConfigFile(t *testing.T) {
	run := sliceRun()
	path := filepath.Join(t.TempDir(), "amrsnap.yaml")
	content := "output:\n  root: " + run.Root + "\ncache:\n  enabled: false\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	var stdout bytes.Buffer
	app := App(WithSource(run.Src), WithOutput(&stdout, &bytes.Buffer{}))
	if err := app.Run([]string{"amrsnap", "--config", path, "-o", "json", "times", "coarse_box"}); err != nil {
		t.Fatalf("times error = %v", err)
	}
	rows := decode[[]timeRow](t, stdout.String())
	if len(rows) != 1 || rows[0].T != 0.5 || rows[0].Downsample != 1 {
		t.Errorf("rows = %+v", rows)
	}
}

func TestVersion(t *testing.T) {
	var stdout bytes.Buffer
	app := App(WithOutput(&stdout, &bytes.Buffer{}))
	if err := app.Run([]string{"amrsnap", "-o", "json", "version"}); err != nil {
		t.Fatalf("version error = %v", err)
	}
	info := decode[buildinfo.Info](t, stdout.String())
	if info.Version != buildinfo.Version {
		t.Errorf("Version = %q, want %q", info.Version, buildinfo.Version)
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatch_ReportsNewSnapshots(t *testing.T) {
	run := h5test.NewRun()
	run.Root = t.TempDir()

	var stdout, stderr lockedBuffer
	app := App(WithSource(run.Src), WithOutput(&stdout, &stderr))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- app.RunContext(ctx, []string{"amrsnap", "--root", run.Root, "--no-cache", "--log-level", "info",
			"watch", "--debounce", "20ms"})
	}()

	// Write the snapshot only after the initial scan so Refresh finds it.
	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(stderr.String(), "directory watcher started") && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	run.PutRecord(domain.KindSpectrum, 0, []float64{2.5}, map[string][]float64{"k_sq": {0}})

	// The record lives in memory; touching the real root produces the
	// filesystem event that triggers a refresh.
	deadline = time.Now().Add(5 * time.Second)
	for !strings.Contains(stdout.String(), "spectra") && time.Now().Before(deadline) {
		os.WriteFile(filepath.Join(run.Root, "touch"), []byte(time.Now().String()), 0o644)
		time.Sleep(100 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("watch error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}

	f := strings.Fields(stdout.String())
	if len(f) != 3 || f[0] != "spectra" || f[1] != "0" || f[2] != "2.5" {
		t.Errorf("output = %q", stdout.String())
	}
}
