package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// pairProperties are the arguments shared by every alignment tool.
func pairProperties() map[string]interface{} {
	return map[string]interface{}{
		"pair": map[string]interface{}{
			"type":        "string",
			"description": "Name of a configured pair (e.g. lawn, garden). Overrides before/after.",
		},
		"before": map[string]interface{}{
			"type":        "string",
			"description": "Absolute path to the before image",
		},
		"after": map[string]interface{}{
			"type":        "string",
			"description": "Absolute path to the after image",
		},
		"name": map[string]interface{}{
			"type":        "string",
			"description": "Output file prefix when before/after are given. Default \"pair\"",
		},
		"output_dir": map[string]interface{}{
			"type":        "string",
			"description": "Directory for aligned images. Defaults to the configured output directory",
		},
		"preview": map[string]interface{}{
			"type":        "boolean",
			"description": "Also write a 50% overlay preview",
		},
	}
}

func withProperties(base map[string]interface{}, extra map[string]interface{}) map[string]interface{} {
	for k, v := range extra {
		base[k] = v
	}
	return base
}

func searchProperties() map[string]interface{} {
	return withProperties(pairProperties(), map[string]interface{}{
		"write": map[string]interface{}{
			"type":        "boolean",
			"description": "Write full-resolution aligned images",
		},
		"refine": map[string]interface{}{
			"type":        "boolean",
			"description": "Run a finer second pass around the best candidate",
		},
		"gradient": map[string]interface{}{
			"type":        "boolean",
			"description": "Correlate gradient magnitude instead of brightness (robust to lighting changes)",
		},
		"blur": map[string]interface{}{
			"type":        "number",
			"description": "Gaussian blur radius applied before scoring. Default 0",
		},
		"mask_text": map[string]interface{}{
			"type":        "boolean",
			"description": "Exclude OCR-detected text such as date stamps from scoring",
		},
	})
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name:        "image_info",
			Description: "Get the width, height, format and file size of an image file.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "align_crop",
			Description: "Align a before/after pair with a fixed scale and offset: the after image is resized by scale and a before-sized window is cut at (left, top).",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withProperties(pairProperties(), map[string]interface{}{
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Scale applied to the after image. Defaults to the pair's preset",
					},
					"left": map[string]interface{}{
						"type":        "integer",
						"description": "Left edge of the crop window in the scaled after image",
					},
					"top": map[string]interface{}{
						"type":        "integer",
						"description": "Top edge of the crop window in the scaled after image",
					},
				}),
			},
		},
		{
			Name:        "align_search",
			Description: "Find the scale and offset that best overlay the after image onto the before image by exhaustive normalized cross-correlation (18000 candidates at 600x400). Returns the CSS transform for the slider.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": searchProperties(),
			},
		},
		{
			Name:        "align_quick",
			Description: "Coarse version of align_search: 125 candidates at 400x300 scored on the center of the frame.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": searchProperties(),
			},
		},
		{
			Name:        "align_features",
			Description: "Align a pair by SIFT/ORB keypoint matching and a RANSAC homography, then warp the after image into the before frame.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withProperties(pairProperties(), map[string]interface{}{
					"detector": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"sift", "orb", "auto"},
						"description": "Keypoint detector. Default sift",
					},
					"ratio": map[string]interface{}{
						"type":        "number",
						"description": "Lowe ratio test bound. Default 0.7",
					},
				}),
			},
		},
		{
			Name:        "image_compare",
			Description: "Compare two images: normalized cross-correlation of their brightness (full frame and center window) and mean/max CIE Lab color difference. Use it to judge an aligned pair.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path1": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the first image",
					},
					"path2": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the second image; resized to the first if sizes differ",
					},
					"max_width": map[string]interface{}{
						"type":        "integer",
						"description": "Images are compared at most this wide. Default 600",
						"default":     600,
					},
					"max_height": map[string]interface{}{
						"type":        "integer",
						"description": "Images are compared at most this tall. Default 400",
						"default":     400,
					},
					"overlay": map[string]interface{}{
						"type":        "boolean",
						"description": "Include a 50% blend of the two images as base64 PNG",
						"default":     false,
					},
					"difference": map[string]interface{}{
						"type":        "boolean",
						"description": "Include the per-pixel brightness difference as base64 grayscale PNG; dark means aligned",
						"default":     false,
					},
				},
				"required": []string{"path1", "path2"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
