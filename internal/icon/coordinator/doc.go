// Package coordinator is the façade of the icon subsystem.
//
// It connects the resolution chain, the network fetcher, the normalizer,
// persistent storage and the handle cache:
//
//	EnsureIcon   cached handle, else stored bytes, else resolve and fetch
//	RefreshIcon  always resolve, replace stored bytes and handle
//	UploadIcon   user supplied bytes, no resolution
//	ReleaseIcon  evict the handle (app deleted)
//	PurgeIcon    evict and delete stored bytes
//	EnsureAll    bounded-concurrency batch of EnsureIcon
//
// Operations for the same app id are serialized; different ids run in
// parallel. Every failure is reported as an error wrapping
// icon.ErrUnavailable, icon.ErrInvalidBinding or icon.ErrInvalidImage.
// Storage failures never change the cache.
package coordinator
