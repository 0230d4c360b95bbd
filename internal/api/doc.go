// Package api hosts the HTTP server, middleware, and REST handlers consumed
// by the audit front end. Notable routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /api/pagespeed/run to relay an analysis request upstream.
//   - POST /api/send-whatsapp-report to dispatch a report to recipients.
//   - GET /api/audit-status for the configured quota limits.
package api
