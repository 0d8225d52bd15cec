// Package probe implements the remote icon sources.
//
// A probe inspects one conventional location on a site and answers with a
// candidate icon address or a negative result. Probes never return errors:
// network failures, bad status codes, malformed documents and missing
// entries are all negatives, logged at debug level.
//
//	WellKnownPath  HEAD <origin>/favicon.ico
//	Manifest       GET  <origin>/manifest.json, largest icons[] entry
//	MarkupLink     GET  <base>, apple-touch-icon over icon link elements
package probe
