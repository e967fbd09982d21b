// Package api hosts the HTTP server, middleware, and REST handlers. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /search and GET /scrape/{location} for salvage-yard inventory.
//   - GET /scrape_ebay/{vehicle} for a sold-parts market analysis.
//   - GET /v1/reports/{id} to reload a stored analysis.
package api
