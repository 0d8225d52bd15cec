/*
Package monitoring provides metrics collection for the icon service.

# Overview

This package implements Prometheus-based metrics for the HTTP API and the
icon subsystem: which sources win resolutions, how probes fare, how often
fetched candidates fall back to the rasterizer, and how many display handles
are live.

# Usage

	// Create metrics collector on its own registry
	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	// Add middleware to Gin router and expose the registry
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Record icon metrics
	timer := monitoring.NewTimer(metrics)
	timer.Stop("manifest")

A nil *Metrics records nothing.
*/
package monitoring
