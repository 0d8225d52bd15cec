// Package imaging turns arbitrary icon bytes into a bounded PNG.
//
// Sites serve favicons as ICO, PNG, JPEG, GIF, BMP, WebP or SVG. Normalize sniffs
// the content (never trusting the server's Content-Type), decodes it, scales
// it down to fit the configured edge length and re-encodes it as PNG. PNG
// input that already fits is returned unchanged.
//
// SVG and other vector formats are reported as ErrUnsupported.
package imaging
