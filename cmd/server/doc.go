// Package main is the entry point for the icon server.
//
// The server resolves website icons for desktop shortcuts, keeps them on
// disk and serves display handles to the desktop shell.
//
// Configuration:
//   - Environment variables (see internal/infrastructure/config)
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Store icons under ~/.local/share/kyvyrn/icons, warm from the app catalog
//	./server -data ~/.local/share/kyvyrn -apps ~/.local/share/kyvyrn/Apps
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
