/*
Package server wires the icon subsystem into one HTTP service.

NewServer builds, in order: logger, Prometheus metrics, tracer, icon
storage (disk under ICON_DATA_DIR or memory, behind an ARC read cache),
the outbound fetch client, the probe chain, the WebSocket event hub, the
handle cache observed by the hub, the coordinator, and the optional app
catalog. The gin router carries recovery, tracing, metrics, CORS and rate
limiting middleware in that order.

Routes:

	GET    /                     service info
	GET    /health               status, live handles, breaker states
	GET    /metrics              Prometheus exposition
	GET    /stream               WebSocket icon events
	GET    /icons                app ids with a live handle
	GET    /icons/:id            display handle
	GET    /icons/:id/raw        icon bytes
	POST   /icons/:id/ensure     ensure an icon exists
	POST   /icons/:id/refresh    resolve again and replace
	PUT    /icons/:id            upload a user supplied image
	DELETE /icons/:id            release, ?purge=true also deletes stored bytes
	POST   /icons/warm           ensure every app in the catalog

Close stops the warm-up, disconnects stream clients, drains HTTP requests,
closes the coordinator and flushes the logger.
*/
package server
