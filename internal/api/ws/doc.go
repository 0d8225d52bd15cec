// Package ws streams icon cache events to desktop clients over WebSocket.
//
// The Hub is installed as the handle cache observer. Every install or
// eviction is encoded once and queued to each connected client; a client
// whose queue is full is disconnected rather than slowing the cache down.
//
// Message Types (Client → Server):
//   - ping: Keep-alive ping
//
// Message Types (Server → Client):
//   - system: Welcome message on connect
//   - icon_installed: A new handle replaced any previous one for app_id
//   - icon_evicted: The handle for app_id was revoked
//   - pong: Reply to ping
//   - error: Unknown message type
//
// Example Usage:
//
//	hub := ws.NewHub(ws.Options{Metrics: metrics, Logger: logger})
//	cache := handle.New(handle.Options{Observer: hub.Publish})
//	router.GET("/stream", hub.HandleConnection)
package ws
