// Package imaging loads the images being annotated and cuts annotated regions
// out of them.
//
// All pixel coordinates use (0,0) at the top-left corner, X increasing
// rightward and Y increasing downward, the same frame annotation shapes use.
//
// # Image Identity
//
// When an image is loaded its file is read once. The bytes feed both the
// decoder and the identity recorded in annotation files: width, height, channel
// depth, byte length and a SHA-256 checksum. A later mismatch between a stored
// identity and the current file means the annotation may describe a different
// image.
//
// # Shape Crops
//
// CropShape returns a PNG chip of the region under a shape. Rotated boxes are
// deskewed with bild's rotation about the box center before cutting, so the
// chip has the box's own width and height.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Crop functions are stateless.
package imaging
