// Package server exposes the recipe catalog over HTTP using Gin, served
// over HTTP/1.1 and h2c on one port.
//
// # Routes
//
//   - GET  /health                     aggregated health, 503 when a component is down
//   - GET  /version                    build information
//   - GET  /v1/recipes                 catalog summaries
//   - POST /v1/recipes/:name/invoke    {"input": ..., "params": {...}}
//   - POST /v1/recipes/:name/batch     {"inputs": [...], "max_concurrency": n, "continue_on_error": bool}
//   - POST /v1/recipes/:name/stream    server-sent events: chunk*, then result or error
//
// Errors use the errors package envelope, with the HTTP status taken from
// the AppError found in the chain.
//
// # Middleware
//
// Server-level middleware (server/middleware) wraps every route: Recovery,
// RequestID, CORS, BodySizeLimit, RequestLogger and RequestMetrics.
package server
