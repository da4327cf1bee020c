package command

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/yndnr/amrsnap/internal/cli/output"
	"github.com/yndnr/amrsnap/internal/core/domain"
	"github.com/yndnr/amrsnap/internal/infra/dirwatch"
	"github.com/yndnr/amrsnap/internal/infra/shutdown"
)

const shutdownTimeout = 5 * time.Second

// snapshotRow announces one newly discovered snapshot.
type snapshotRow struct {
	Kind  string  `json:"kind"`
	Index int     `json:"index"`
	T     float64 `json:"t"`
}

// WatchCommand follows a running simulation: it refreshes the catalog when
// new files settle and prints every snapshot that appears.
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Report new snapshots as the simulation writes them",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve Prometheus metrics on this address (e.g. 127.0.0.1:9464)",
			},
			&cli.DurationFlag{
				Name:  "debounce",
				Usage: "Quiet period before re-scanning",
			},
		},
		Action: withEnv(runWatch),
	}
}

func runWatch(c *cli.Context, e *env) error {
	w, err := dirwatch.New(
		dirwatch.WithDebounce(e.cfg.Watch.Debounce),
		dirwatch.WithLogger(e.log),
	)
	if err != nil {
		return err
	}
	if err := w.Add(e.cat.Root()); err != nil {
		w.Close()
		return err
	}

	w.OnChange(func(ctx context.Context, _ string) {
		e.refresh(ctx)
	})

	h := shutdown.NewHandler(shutdownTimeout)
	ctx, stop := h.NotifyContext(c.Context)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	h.OnShutdown(func(context.Context) error { return w.Close() })

	if addr := e.cfg.Metrics.Addr; addr != "" {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			w.Close()
			return err
		}
		e.metrics.WithRuntimeCollectors()
		mux := http.NewServeMux()
		mux.Handle("/metrics", e.metrics.Handler())
		srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		h.OnShutdown(srv.Shutdown)
		e.log.Info("serving metrics", "addr", ln.Addr().String())

		g.Go(func() error {
			if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error { return w.Run(gctx) })
	g.Go(func() error { return h.Wait(gctx) })

	e.log.Info("watching output tree", "root", e.cat.Root())
	return g.Wait()
}

// refresh appends new snapshots to the catalog and prints them.
func (e *env) refresh(ctx context.Context) {
	added, err := e.cat.Refresh(ctx)
	if err != nil {
		e.log.Error("catalog refresh failed", "error", err)
	}

	var rows []snapshotRow
	for _, k := range domain.Kinds {
		n := added[k]
		if n == 0 {
			continue
		}
		headers := e.cat.Headers(k)
		for i := len(headers) - n; i < len(headers); i++ {
			rows = append(rows, snapshotRow{Kind: k.String(), Index: i, T: headers[i].T})
		}
	}
	if len(rows) == 0 {
		return
	}

	if e.format == output.FormatTable {
		(&output.TableFormatter{NoHeaders: true}).Format(e.stdout, rows)
		return
	}
	e.print(rows)
}
