package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/slider-align/internal/align"
	"github.com/ironsheep/slider-align/internal/config"
	"github.com/ironsheep/slider-align/internal/correlate"
	imgutil "github.com/ironsheep/slider-align/internal/imaging"
	"github.com/ironsheep/slider-align/internal/report"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "align_quick").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// errInvalidArgs marks argument errors so they map to -32602.
var errInvalidArgs = errors.New("invalid arguments")

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		if errors.Is(err, errInvalidArgs) {
			return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
		}
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "image_info":
		return s.handleImageInfo(args)
	case "align_crop":
		return s.handleAlign(ctx, args, align.MethodCrop)
	case "align_search":
		return s.handleAlign(ctx, args, align.MethodSearch)
	case "align_quick":
		return s.handleAlign(ctx, args, align.MethodQuick)
	case "align_features":
		return s.handleAlign(ctx, args, align.MethodFeatures)
	case "image_compare":
		return s.handleImageCompare(args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		args = []byte("{}")
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidArgs, err)
	}
	return nil
}

// === Image Information ===

type imageInfoArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageInfo(args json.RawMessage) (interface{}, error) {
	var a imageInfoArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, fmt.Errorf("%w: path is required", errInvalidArgs)
	}
	return imgutil.LoadImageInfo(s.cache, a.Path)
}

// === Alignment ===

type alignArgs struct {
	Pair      string `json:"pair"`
	Before    string `json:"before"`
	After     string `json:"after"`
	Name      string `json:"name"`
	OutputDir string `json:"output_dir"`
	Preview   *bool  `json:"preview"`

	// crop
	Scale *float64 `json:"scale"`
	Left  *int     `json:"left"`
	Top   *int     `json:"top"`

	// search, quick
	Write    *bool    `json:"write"`
	Refine   *bool    `json:"refine"`
	Gradient *bool    `json:"gradient"`
	Blur     *float64 `json:"blur"`
	MaskText *bool    `json:"mask_text"`

	// features
	Detector string   `json:"detector"`
	Ratio    *float64 `json:"ratio"`
}

// alignResult is returned by every alignment tool.
type alignResult struct {
	*align.Outcome
	CSS    string `json:"css,omitempty"`
	Report string `json:"report"`
}

func (s *Server) handleAlign(ctx context.Context, args json.RawMessage, method align.Method) (interface{}, error) {
	var a alignArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	cfg, pair, err := s.callConfig(a)
	if err != nil {
		return nil, err
	}

	runner := align.NewRunner(cfg, s.cache, s.log)
	out, err := runner.Align(ctx, pair, method)
	if err != nil {
		return nil, err
	}

	res := alignResult{Outcome: out}
	if out.Search != nil {
		res.CSS = report.CSS(method, out.Search.Candidate)
	}
	var buf bytes.Buffer
	if err := report.WriteOutcome(&buf, out); err != nil {
		return nil, err
	}
	res.Report = buf.String()
	return res, nil
}

// callConfig derives the configuration and pair for one tool call from the
// server's configuration and the call's overrides.
func (s *Server) callConfig(a alignArgs) (*config.Config, config.Pair, error) {
	cfg := *s.cfg
	var pair config.Pair

	switch {
	case a.Pair != "":
		pairs, err := cfg.Select([]string{a.Pair})
		if err != nil {
			return nil, pair, fmt.Errorf("%w: %v", errInvalidArgs, err)
		}
		pair = pairs[0]
	case a.Before != "" && a.After != "":
		pair = config.Pair{
			Name:   a.Name,
			Before: a.Before,
			After:  a.After,
			Crop:   config.CropPreset{Scale: 1.0},
		}
		if pair.Name == "" {
			pair.Name = "pair"
		}
	default:
		return nil, pair, fmt.Errorf("%w: give a pair name or both before and after", errInvalidArgs)
	}

	if a.OutputDir != "" {
		cfg.OutputDir = a.OutputDir
	}
	if a.Preview != nil {
		cfg.Preview = *a.Preview
	}
	if a.Scale != nil {
		if *a.Scale <= 0 {
			return nil, pair, fmt.Errorf("%w: scale must be positive", errInvalidArgs)
		}
		pair.Crop.Scale = *a.Scale
	}
	if a.Left != nil {
		pair.Crop.Left = *a.Left
	}
	if a.Top != nil {
		pair.Crop.Top = *a.Top
	}
	if a.Write != nil {
		cfg.Search.Write = *a.Write
	}
	if a.Refine != nil {
		cfg.Search.Refine = *a.Refine
	}
	if a.Gradient != nil {
		cfg.Search.Gradient = *a.Gradient
	}
	if a.Blur != nil {
		cfg.Search.Blur = *a.Blur
	}
	if a.MaskText != nil {
		cfg.Search.MaskText = *a.MaskText
	}
	if a.Detector != "" {
		cfg.Features.Detector = a.Detector
	}
	if a.Ratio != nil {
		cfg.Features.Ratio = *a.Ratio
	}
	return &cfg, pair, nil
}

// === Comparison ===

type imageCompareArgs struct {
	Path1     string `json:"path1"`
	Path2     string `json:"path2"`
	MaxWidth  int    `json:"max_width"`
	MaxHeight int    `json:"max_height"`
	Overlay   bool   `json:"overlay"`
	Diff      bool   `json:"difference"`
}

// CompareResult describes how similar two images are.
type CompareResult struct {
	Width     int             `json:"width"`
	Height    int             `json:"height"`
	Resized   bool            `json:"resized"`
	NCC       *float64        `json:"ncc"`
	CenterNCC float64         `json:"center_ncc"`
	DeltaE    *imgutil.DeltaE `json:"delta_e"`

	Overlay    *imgutil.EncodedImage `json:"overlay,omitempty"`
	Difference *imgutil.EncodedImage `json:"difference,omitempty"`
}

func (s *Server) handleImageCompare(args json.RawMessage) (interface{}, error) {
	var a imageCompareArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path1 == "" || a.Path2 == "" {
		return nil, fmt.Errorf("%w: path1 and path2 are required", errInvalidArgs)
	}
	if a.MaxWidth <= 0 {
		a.MaxWidth = 600
	}
	if a.MaxHeight <= 0 {
		a.MaxHeight = 400
	}

	img1, err := s.cache.Load(a.Path1)
	if err != nil {
		return nil, err
	}
	img2, err := s.cache.Load(a.Path2)
	if err != nil {
		return nil, err
	}

	t1 := imgutil.Thumbnail(img1, a.MaxWidth, a.MaxHeight)
	t2 := imgutil.Thumbnail(img2, a.MaxWidth, a.MaxHeight)
	res := &CompareResult{Width: t1.Bounds().Dx(), Height: t1.Bounds().Dy()}
	if t2.Bounds().Size() != t1.Bounds().Size() {
		t2 = imaging.Resize(t2, res.Width, res.Height, imaging.Lanczos)
		res.Resized = true
	}

	m1, m2 := imgutil.GrayMatrix(t1), imgutil.GrayMatrix(t2)
	// A flat image has no defined full-frame correlation; report null.
	if ncc, err := correlate.NCC(m1, m2); err == nil {
		res.NCC = &ncc
	}
	if res.CenterNCC, err = correlate.CenterNCC(m1, m2); err != nil {
		return nil, err
	}
	if res.DeltaE, err = imgutil.ColorDelta(t1, t2, 1); err != nil {
		return nil, err
	}

	if a.Overlay {
		if res.Overlay, err = imgutil.EncodePNG(imgutil.Overlay(t1, t2, 0.5)); err != nil {
			return nil, err
		}
	}
	if a.Diff {
		if res.Difference, err = imgutil.EncodePNG(imgutil.MatrixImage(absDiff(m1, m2))); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// absDiff returns |a-b| per pixel; a and b have the same shape.
func absDiff(a, b *correlate.Matrix) *correlate.Matrix {
	out := correlate.New(a.W, a.H)
	for i := range out.Data {
		out.Data[i] = math.Abs(a.Data[i] - b.Data[i])
	}
	return out
}
