// Package api implements the exporter's HTTP endpoints.
//
// New(collector) returns an http.Handler that serves:
//
//	GET /metrics        — Prometheus text exposition (format version 0.0.4)
//	GET /healthz        — liveness probe; never triggers a collection
//	GET /api/v1/status  — cache, collection and circuit breaker state
//
// /metrics runs a collection through the collector, or serves its cached
// snapshot within the cache TTL. When every configured volume fails it
// returns 500 with a comment body so Prometheus marks the target down. The
// JSON endpoints respond with Content-Type: application/json and return 405
// for non-GET methods.
package api
