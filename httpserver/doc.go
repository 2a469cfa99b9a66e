/*
Package httpserver exposes batch conversion over HTTP.

Submitted items are converted in chunks of the configured pull size, each
chunk being one batch for the converter. Every item comes back with its route.

# Endpoints

  - POST /api/v1/encrypt/{format} - encrypt items into ztdf or nanotdf
  - POST /api/v1/decrypt/{format} - decrypt ztdf or nanotdf items
  - PUT /api/admin/platform - replace the platform settings
  - POST /api/admin/invalidate - drop the shared SDK client
  - GET /livez - Liveness check
  - GET /readyz - Readiness check
  - GET /drain - Mark server as not ready
  - GET /undrain - Mark server as ready

# Status codes

A request fails as a whole only when a batch could not start:

  - 400 Bad Request: unknown format or malformed body
  - 503 Service Unavailable: the SDK client could not be built
  - 500 Internal Server Error: operator configuration needed by the batch is unusable

Per-item failures never fail the request; they are reported as outcomes
routed to failure or exceeds_size_limit.
*/
package httpserver
