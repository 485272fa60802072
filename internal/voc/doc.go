// Package voc reads and writes annotation files in a Pascal VOC derived XML
// schema extended with rotated boxes.
//
// # Schema
//
// One <annotation> document describes one image:
//   - image identity: folder, filename, path, size (width/height/depth) and an
//     optional <checksum> carrying the byte length and SHA-256 of the image
//   - a verified attribute on the root element (human review flag)
//   - one <object> per shape, in in-memory order
//
// Each object carries a label (<name>), a <difficult> flag and exactly one
// geometry:
//   - <bndbox> with xmin/ymin/xmax/ymax for axis-aligned boxes
//   - <robndbox> with cx/cy/w/h/angle and four explicit <point> corners for
//     rotated boxes
//
// Optional <line_color>/<fill_color> elements record per-shape colors that
// differ from the project defaults.
//
// # Compatibility
//
// Rotated boxes written without <point> elements are expanded from w/h/angle,
// bndbox coordinates may be integers or floats, and the checksum element is
// optional.
//
// # Error Handling
//
// Every decode failure is a *FormatError and no partial result is returned.
// Encoding fails with a *FormatError when a shape does not have exactly four
// vertices.
package voc
