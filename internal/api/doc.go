// Package api implements the HTTP REST API and WebSocket server for Hearth.
//
// This package provides:
//   - The command endpoints used by the browser UI (/api/command, /api/status,
//     /api/device/toggle, /api/scene/activate)
//   - Read-only v1 endpoints for devices, scenes, history, command log and
//     automation runs
//   - A WebSocket hub that relays state changes and accepts commands
//   - Prometheus metrics on /metrics
//   - Middleware stack (request ID, logging, recovery, CORS, body limit, JWT)
//
// # Error mapping
//
// Pipeline errors become HTTP statuses: an empty command is 400, an unknown
// device or scene is 404, an ambiguous command is 422 and an unreachable
// language backend is 503. A batch where some devices failed is still 200;
// the report carries the per-device outcome.
//
// # Security
//
// When security.jwt.secret is set every route except /api/v1/health and
// /metrics requires a bearer token minted by "hearth token". Viewers can
// read status; operators can also send commands. WebSocket clients pass the
// token as the token query parameter. With no secret the API is open.
package api
