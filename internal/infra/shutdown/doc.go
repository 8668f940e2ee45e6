// Package shutdown coordinates graceful termination of apanic-server.
//
// Shutdown starts on SIGINT or SIGTERM, or when Trigger is called by the
// local socket's shutdown command. Registered hooks then run in reverse
// order of registration under a shared timeout.
//
//	h := shutdown.NewHandler(10 * time.Second)
//	h.OnShutdown("http", srv.Shutdown)
//	err := h.Wait(ctx)
package shutdown
