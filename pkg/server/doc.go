// Package server exposes the analysis pipeline over HTTP: POST /api/analyze
// plus health and metrics endpoints, with graceful shutdown on SIGTERM.
//
// Error responses are deliberately terse. Validation failures echo the
// user-safe message; everything else returns an opaque body with a short
// correlation id that links the response to the server log.
package server
