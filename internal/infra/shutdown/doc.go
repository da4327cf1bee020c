// Package shutdown coordinates graceful termination of long-running
// commands such as watch.
//
//	h := shutdown.NewHandler(5 * time.Second)
//	ctx, stop := h.NotifyContext(context.Background())
//	defer stop()
//	h.OnShutdown(server.Shutdown)
//	return h.Wait(ctx)
package shutdown
