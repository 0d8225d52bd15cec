// Package paths defines the on-disk layout shared by icon storage and the
// app catalog.
//
// # Directory Structure
//
//	<data>/
//	  └── icons/
//	      └── <appId>.png     (normalized icon, one per app)
//	<apps>/
//	  └── <folder>/
//	      └── config.json     (app record, see package catalog)
//
// App ids become file names, so ValidateAppID restricts them to a safe
// character set before any path is built.
package paths
