// Package ocr finds text in photos using Tesseract.
//
// Before/after photos often carry burned-in date stamps, camera overlays or
// watermarks. These sit at the same place in the frame regardless of how
// the scene moved, so they pull a correlation search towards "no shift".
// The boxes found here are neutralized before scoring.
//
// # Prerequisites
//
// Tesseract and its English language data must be installed on the system:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng
//   - macOS: brew install tesseract
//
// # Error Handling
//
// Functions return errors for unencodable images and Tesseract failures.
// Callers treat a failure as "no text found" and continue without a mask.
package ocr
