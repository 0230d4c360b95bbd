// Package main hosts the audit relay service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, the PageSpeed
//     relay, report dispatch, and quota status endpoints behind CORS, per-IP
//     rate limiting, and the usual request-ID/logging/recover middleware.
//   - PageSpeed relay: internal/pagespeed validates input and drives the
//     generic bounded-retry caller in internal/relay against the upstream
//     analysis API. 403/400 abort immediately; other failures retry with
//     exponential backoff and surface as 503 once attempts are exhausted.
//   - Report dispatch: internal/dispatch formats the report once, attempts
//     one delivery per recipient concurrently via the internal/whatsapp
//     client, isolates per-recipient failures in the result list, and
//     charges the per-IP quota exactly once per accepted request.
//   - Quota: internal/quota keeps in-memory per-key counters cleared by a
//     recurring full-table reset goroutine; state does not survive restarts,
//     which is an accepted limitation of the design.
//   - Configuration & plumbing: Viper populates config from env/files (RELAY_
//     prefix); zap provides structured logging; Prometheus metrics are
//     exported via middleware and the /metrics handler.
//
// Run locally: go run ./cmd/auditrelay -config config.yaml (or rely solely
// on env overrides such as RELAY_PAGESPEED_API_KEY and RELAY_WHATSAPP_*).
// The process reacts to SIGTERM for graceful shutdown.
package main
