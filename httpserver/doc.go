/*
Package httpserver runs the provisioning API.

# Endpoints

  - POST /new/node/{name} - Issue a bundle for a node (see api/provisioner)
  - GET /hello - Liveness counter, returns the incremented count
  - GET /livez - Liveness check
  - GET /readyz - Readiness check
  - GET /drain - Mark server as not ready
  - GET /undrain - Mark server as ready
  - /debug/pprof/* - Profiling, when enabled

Requests are logged with the flashbots httplogger slog middleware. Metrics
are served by a separate metrics.MetricsServer on the configured metrics
address.

# Lifecycle

	srv, err := httpserver.New(cfg, handler, metricsSrv)
	srv.RunInBackground()
	<-exit
	srv.Shutdown()

Shutdown flips readiness off, waits the configured drain duration so load
balancers stop routing new requests, then shuts both servers down within the
graceful shutdown duration.
*/
package httpserver
