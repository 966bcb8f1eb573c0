// Package http provides the HTTP REST API implementation.
//
// The HTTP server exposes endpoints for:
//   - Stateless pipeline validation, single, batched and asynchronous
//   - Editing sessions backed by a graph store
//   - Saved pipelines
//   - Health checks and Prometheus metrics
//
// Domain errors are mapped to status codes in one place (classify) and
// rendered as {"error": {"code", "message", "details"}}.
package http
