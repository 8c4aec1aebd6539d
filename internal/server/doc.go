// Package server exposes the aligners as MCP (Model Context Protocol) tools.
//
// The server speaks JSON-RPC 2.0 over stdio, one request per line:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
//   - image_info: dimensions, format and file size of an image
//   - align_crop: fixed scale and offset crop of a pair
//   - align_search: exhaustive correlation search
//   - align_quick: coarse correlation search
//   - align_features: keypoint matching and homography warp
//   - image_compare: correlation and color difference of two images
//
// Alignment tools accept either a configured pair name or explicit before
// and after paths. Their result carries the outcome, the CSS transform
// where one applies, and the same text the CLI prints.
//
// # Image Caching
//
// Images are cached by path for the lifetime of the server process.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with
// code -32000 and the Go error string as data. Malformed arguments give
// -32602 and unparseable lines -32700.
package server
