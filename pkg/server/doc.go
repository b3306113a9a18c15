/*
Package server runs keeper's operational HTTP endpoint.

The server wraps an http.Handler (usually a mux carrying /metrics and the
health endpoints) with request ID, access logging and panic recovery
middleware, then serves it until the context is cancelled:

	srv := server.New(server.Config{
		Address:         cfg.Telemetry.Metrics.ListenAddress,
		ShutdownTimeout: 10 * time.Second,
	}, mux)

	if err := srv.Start(ctx); err != nil {
		return err
	}

Start blocks. It returns nil after a graceful shutdown triggered by ctx or
Shutdown, and the listener error if the server fails to start.

Middleware order, outermost first:

	Recovery -> Logging -> RequestID -> handler

Every response carries an X-Request-ID header. A client-supplied value is
echoed back unchanged.
*/
package server
