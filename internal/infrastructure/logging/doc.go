// Package logging provides structured logging using uber/zap.
//
// This package offers two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Components receive a named child logger and never build their own:
//
//	logger := logging.NewDefault()
//	coord := coordinator.New(chain, cache, store, fetcher, coordinator.Options{
//		Logger: logger.Component("coordinator"),
//	})
//
// A nil *zap.Logger is accepted everywhere and replaced by OrNop.
package logging
