// Package imaging provides the image I/O and pixel transforms shared by the
// aligners.
//
// Images are decoded once through ImageCache and handed around as standard
// image.Image values. Geometry uses the usual Go convention: (0,0) is the
// top-left corner, X grows rightward, Y grows downward, and rectangles are
// half-open (Min inclusive, Max exclusive).
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. The remaining functions are
// stateless and never modify their inputs.
//
// # Pixel Formats
//
// Resampling, cropping and saving go through github.com/disintegration/imaging
// and always return *image.NRGBA. Correlation works on grayscale float
// matrices (see GrayMatrix) rather than on images, so that zoom and shift
// can be evaluated without re-quantizing to 8 bits.
//
// # Error Handling
//
// Functions return errors for invalid inputs such as:
//   - Crop rectangles outside the image or empty
//   - Target sizes that are not positive
//   - Mismatched image sizes where a comparison needs equal sizes
//   - File I/O and encoding errors
package imaging
