// Package api exposes scrape runs over HTTP.
//
// Routes:
//
//	POST /scrape   run a scrape; body {"cookies": {...}, "max_profiles": n}
//	GET  /health   liveness
//	GET  /metrics  Prometheus metrics
//
// Failed runs answer with {"error": {"type", "message", "trace"}}. The type
// is one of the error kinds in pkg/errors; validation errors map to 422,
// auth_bootstrap to 502 and everything else to 500. A body that is not JSON
// gets 400.
package api
