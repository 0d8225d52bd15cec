// Package icon defines the shared vocabulary of the icon subsystem.
//
// The subsystem turns a website URL into a displayable icon for a desktop
// shortcut. It is organized into specialized packages:
//   - raster: deterministic single-letter fallback icons
//   - probe: icon sources (well-known path, web manifest, link markup)
//   - chain: ordered resolution with a guaranteed rasterized fallback
//   - imaging: content sniffing, decoding and PNG normalization
//   - handle: the per-app cache of live display handles
//   - coordinator: the façade used by the API and the app catalog
//
// This package only holds the types and sentinel errors the others share.
package icon
