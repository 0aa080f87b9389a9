package server

import (
	"github.com/ironsheep/frameview/internal/annotation"
	"github.com/ironsheep/frameview/internal/viewer"
)

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func emptySchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

func screenPointProperties() map[string]interface{} {
	return map[string]interface{}{
		"x": map[string]interface{}{
			"type":        "number",
			"description": "Screen X coordinate in viewport pixels",
		},
		"y": map[string]interface{}{
			"type":        "number",
			"description": "Screen Y coordinate in viewport pixels",
		},
	}
}

func waitProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "boolean",
		"description": "Respond only once the frame is displayed or has failed. By default the frame loads in the background and a notifications/viewer/changed message reports its arrival",
		"default":     false,
	}
}

func toolNames() []string {
	names := []string{"none"}
	for _, t := range annotation.Types {
		names = append(names, string(t))
	}
	return names
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Series and navigation
		{
			Name:        "viewer_open_series",
			Description: "Open an imaging series. Clears all annotations and history, disposes the previous frame cache, and displays the requested frame.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"instances": map[string]interface{}{
						"type":        "array",
						"description": "Instance metadata: id, rows, columns, pixel_spacing, rescale_slope, rescale_intercept, window_center, window_width, pixel_representation, transfer_syntax, sort_key",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"id":                   map[string]interface{}{"type": "string"},
								"rows":                 map[string]interface{}{"type": "integer"},
								"columns":              map[string]interface{}{"type": "integer"},
								"pixel_spacing":        map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "number"}},
								"slice_thickness":      map[string]interface{}{"type": "number"},
								"rescale_slope":        map[string]interface{}{"type": "number"},
								"rescale_intercept":    map[string]interface{}{"type": "number"},
								"window_center":        map[string]interface{}{"type": "number"},
								"window_width":         map[string]interface{}{"type": "number"},
								"pixel_representation": map[string]interface{}{"type": "integer"},
								"transfer_syntax":      map[string]interface{}{"type": "string"},
								"sort_key":             map[string]interface{}{"type": "number"},
							},
							"required": []string{"id"},
						},
					},
					"index": map[string]interface{}{
						"type":        "integer",
						"description": "Frame to display first. Default 0",
						"default":     0,
					},
					"wait": waitProperty(),
				},
				"required": []string{"instances"},
			},
		},
		{
			Name:        "viewer_navigate",
			Description: "Display another frame of the series. The first move away from frame 0 starts background prefetching of the whole series. Returns before the frame has loaded unless wait is set.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"index": map[string]interface{}{
						"type":        "integer",
						"description": "Absolute frame index (0-based)",
					},
					"delta": map[string]interface{}{
						"type":        "integer",
						"description": "Relative move when index is omitted (e.g., 1 for next, -1 for previous)",
					},
					"wait": waitProperty(),
				},
			},
		},
		{
			Name:        "viewer_state",
			Description: "Get the session state: current frame, view transform, annotations with their measurements, selection, undo/redo availability and prefetch progress.",
			InputSchema: emptySchema(),
		},

		// Annotation input
		{
			Name:        "viewer_set_tool",
			Description: "Select the drawing tool used by subsequent pointer events. 'none' only selects and edits existing annotations.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"tool": map[string]interface{}{
						"type":        "string",
						"enum":        toolNames(),
						"description": "Annotation tool",
					},
				},
				"required": []string{"tool"},
			},
		},
		{
			Name:        "viewer_pointer",
			Description: "Send a pointer event at a screen position. Drives drawing with the active tool, and selecting, dragging handles or moving existing annotations.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": func() map[string]interface{} {
					p := screenPointProperties()
					p["event"] = map[string]interface{}{
						"type":        "string",
						"enum":        []string{string(viewer.PointerDown), string(viewer.PointerMove), string(viewer.PointerUp)},
						"description": "Pointer phase",
					}
					return p
				}(),
				"required": []string{"event", "x", "y"},
			},
		},
		{
			Name:        "viewer_cancel",
			Description: "Abandon the annotation currently being drawn or edited.",
			InputSchema: emptySchema(),
		},

		// View transform
		{
			Name:        "viewer_view",
			Description: "Change the view: pan, zoom around a point, rotate, flip, invert, set or reset the window, apply a window preset, reset the view, or report the viewport size.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"action": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"pan", "zoom", "rotate", "flip_h", "flip_v", "invert", "window", "preset", "reset_window", "reset", "viewport"},
						"description": "View command",
					},
					"dx":      map[string]interface{}{"type": "number", "description": "Pan delta X in screen pixels"},
					"dy":      map[string]interface{}{"type": "number", "description": "Pan delta Y in screen pixels"},
					"factor":  map[string]interface{}{"type": "number", "description": "Zoom multiplier. Default 2.0", "default": 2.0},
					"x":       map[string]interface{}{"type": "number", "description": "Zoom anchor X in screen pixels"},
					"y":       map[string]interface{}{"type": "number", "description": "Zoom anchor Y in screen pixels"},
					"degrees": map[string]interface{}{"type": "number", "description": "Clockwise rotation. Default 90", "default": 90},
					"center":  map[string]interface{}{"type": "number", "description": "Window center in HU"},
					"width":   map[string]interface{}{"type": "number", "description": "Window width in HU (minimum 1)"},
					"preset": map[string]interface{}{
						"type":        "string",
						"enum":        viewer.PresetNames(),
						"description": "Window preset",
					},
					"viewport_width":  map[string]interface{}{"type": "integer", "description": "Viewport width in pixels"},
					"viewport_height": map[string]interface{}{"type": "integer", "description": "Viewport height in pixels"},
				},
				"required": []string{"action"},
			},
		},
		{
			Name:        "viewer_undo",
			Description: "Undo the last committed annotation or view change.",
			InputSchema: emptySchema(),
		},
		{
			Name:        "viewer_redo",
			Description: "Redo the last undone change.",
			InputSchema: emptySchema(),
		},

		// Annotation commands
		{
			Name:        "viewer_select",
			Description: "Select an annotation by id. An empty id clears the selection.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"id": map[string]interface{}{
						"type":        "string",
						"description": "Annotation id",
					},
				},
			},
		},
		{
			Name:        "viewer_delete_annotation",
			Description: "Delete an annotation. Remaining annotations are renumbered and the selection moves to the neighbor. An empty id deletes the selected annotation.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"id": map[string]interface{}{
						"type":        "string",
						"description": "Annotation id",
					},
				},
			},
		},
		{
			Name:        "viewer_set_text",
			Description: "Change the text or rotation of a text annotation.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"id": map[string]interface{}{
						"type":        "string",
						"description": "Annotation id",
					},
					"text": map[string]interface{}{
						"type":        "string",
						"description": "New label text",
					},
					"rotation": map[string]interface{}{
						"type":        "number",
						"description": "Rotation in degrees",
					},
				},
				"required": []string{"id"},
			},
		},

		// Queries and output
		{
			Name:        "viewer_hu_at",
			Description: "Read the calibrated value (HU) of the pixel under a screen position on the current frame.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": screenPointProperties(),
				"required":   []string{"x", "y"},
			},
		},
		{
			Name:        "viewer_render",
			Description: "Render the current frame with its annotations through the view transform and window, returned as a PNG image.",
			InputSchema: emptySchema(),
		},
		{
			Name:        "viewer_thumbnail",
			Description: "Render a small preview of a fetched frame with the current window and orientation.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"index": map[string]interface{}{
						"type":        "integer",
						"description": "Frame index (0-based)",
					},
					"size": map[string]interface{}{
						"type":        "integer",
						"description": "Longest edge in pixels. Default 128",
						"default":     128,
					},
				},
				"required": []string{"index"},
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
