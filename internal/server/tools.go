package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func objectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

var (
	discardChangesProp = map[string]interface{}{
		"type":        "boolean",
		"description": "Switch even if the current image has unsaved changes, dropping them. Default false",
		"default":     false,
	}
	entryIDProp = map[string]interface{}{
		"type":        "string",
		"description": "Annotation id as returned by annotation_list or the add tools",
	}
	labelProp = map[string]interface{}{
		"type":        "string",
		"description": "Class label of the object",
	}
	difficultProp = map[string]interface{}{
		"type":        "boolean",
		"description": "Mark the object as difficult to recognize. Default false",
		"default":     false,
	}
)

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Project
		{
			Name:        "project_open",
			Description: "Open a directory of images for annotation. Images are found recursively and ordered by path. Annotation files are written next to each image unless save_dir is given.",
			InputSchema: objectSchema(map[string]interface{}{
				"dir": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the image directory",
				},
				"save_dir": map[string]interface{}{
					"type":        "string",
					"description": "Optional directory receiving annotation files. Defaults to the configured save_dir",
				},
				"extensions": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Optional image extensions to include, e.g. [\".jpg\", \".png\"]",
				},
				"discard_changes": discardChangesProp,
			}, "dir"),
		},
		{
			Name:        "project_images",
			Description: "List the images of the open project in navigation order, with whether each already has an annotation file.",
			InputSchema: objectSchema(map[string]interface{}{}),
		},
		{
			Name:        "project_statistics",
			Description: "Count images in the open project and how many already have an annotation file.",
			InputSchema: objectSchema(map[string]interface{}{}),
		},

		// Image navigation
		{
			Name:        "image_open",
			Description: "Make an image the active one and load its annotation file if it exists. Returns the image identity and whether the stored annotation was recorded against a different file.",
			InputSchema: objectSchema(map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the image file",
				},
				"discard_changes": discardChangesProp,
			}, "path"),
		},
		{
			Name:        "image_next",
			Description: "Open the next image of the project. With no active image the first image is opened.",
			InputSchema: objectSchema(map[string]interface{}{
				"discard_changes": discardChangesProp,
			}),
		},
		{
			Name:        "image_prev",
			Description: "Open the previous image of the project.",
			InputSchema: objectSchema(map[string]interface{}{
				"discard_changes": discardChangesProp,
			}),
		},
		{
			Name:        "image_info",
			Description: "Describe an image file: dimensions, depth, format, byte length and SHA-256 checksum. Defaults to the active image.",
			InputSchema: objectSchema(map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Optional absolute path to the image file",
				},
			}),
		},

		{
			Name:        "image_crop",
			Description: "Return a rectangular region of an image as base64-encoded PNG. The region is clamped to the image. Defaults to the active image.",
			InputSchema: objectSchema(map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Optional absolute path to the image file",
				},
				"x1": map[string]interface{}{"type": "number", "description": "Left edge X coordinate in pixels"},
				"y1": map[string]interface{}{"type": "number", "description": "Top edge Y coordinate in pixels"},
				"x2": map[string]interface{}{"type": "number", "description": "Right edge X coordinate in pixels"},
				"y2": map[string]interface{}{"type": "number", "description": "Bottom edge Y coordinate in pixels"},
				"scale": map[string]interface{}{
					"type":        "number",
					"description": "Optional scale factor (e.g., 2.0 to double size). Default 1.0",
					"default":     1.0,
				},
			}, "x1", "y1", "x2", "y2"),
		},

		// Annotation files
		{
			Name:        "annotation_load",
			Description: "Decode an annotation file and return its contents without changing the active image.",
			InputSchema: objectSchema(map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the annotation .xml file",
				},
			}, "path"),
		},
		{
			Name:        "annotation_save",
			Description: "Write all annotations of the active image. The whole set is written atomically.",
			InputSchema: objectSchema(map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Optional target path. Defaults to the image's annotation path",
				},
			}),
		},
		{
			Name:        "annotation_list",
			Description: "List the annotations of the active image in order, with ids, corner points and effective colors.",
			InputSchema: objectSchema(map[string]interface{}{}),
		},

		// Annotation edits
		{
			Name:        "annotation_add_box",
			Description: "Add an axis-aligned box to the active image.",
			InputSchema: objectSchema(map[string]interface{}{
				"label": labelProp,
				"xmin": map[string]interface{}{
					"type":        "number",
					"description": "Left edge X coordinate in pixels",
				},
				"ymin": map[string]interface{}{
					"type":        "number",
					"description": "Top edge Y coordinate in pixels",
				},
				"xmax": map[string]interface{}{
					"type":        "number",
					"description": "Right edge X coordinate in pixels",
				},
				"ymax": map[string]interface{}{
					"type":        "number",
					"description": "Bottom edge Y coordinate in pixels",
				},
				"difficult": difficultProp,
			}, "label", "xmin", "ymin", "xmax", "ymax"),
		},
		{
			Name:        "annotation_add_rotated_box",
			Description: "Add a rotated box to the active image, either from center, size and angle or from four explicit corner points.",
			InputSchema: objectSchema(map[string]interface{}{
				"label": labelProp,
				"cx": map[string]interface{}{
					"type":        "number",
					"description": "Center X coordinate",
				},
				"cy": map[string]interface{}{
					"type":        "number",
					"description": "Center Y coordinate",
				},
				"width": map[string]interface{}{
					"type":        "number",
					"description": "Box width before rotation",
				},
				"height": map[string]interface{}{
					"type":        "number",
					"description": "Box height before rotation",
				},
				"angle": map[string]interface{}{
					"type":        "number",
					"description": "Rotation in radians, clockwise on screen",
				},
				"points": map[string]interface{}{
					"type": "array",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"x": map[string]interface{}{"type": "number"},
							"y": map[string]interface{}{"type": "number"},
						},
					},
					"description": "Optional four corner points in winding order; overrides cx/cy/width/height",
				},
				"difficult": difficultProp,
			}, "label"),
		},
		{
			Name:        "annotation_update",
			Description: "Change the label, difficult flag or colors of an annotation. Omitted fields are left unchanged; an empty color string restores the project default.",
			InputSchema: objectSchema(map[string]interface{}{
				"id":        entryIDProp,
				"label":     labelProp,
				"difficult": map[string]interface{}{"type": "boolean"},
				"line_color": map[string]interface{}{
					"type":        "string",
					"description": "Outline color as #RRGGBB or #RRGGBBAA",
				},
				"fill_color": map[string]interface{}{
					"type":        "string",
					"description": "Fill color as #RRGGBB or #RRGGBBAA",
				},
			}, "id"),
		},
		{
			Name:        "annotation_move",
			Description: "Translate an annotation by a pixel offset.",
			InputSchema: objectSchema(map[string]interface{}{
				"id": entryIDProp,
				"dx": map[string]interface{}{"type": "number", "description": "Offset along X"},
				"dy": map[string]interface{}{"type": "number", "description": "Offset along Y"},
			}, "id", "dx", "dy"),
		},
		{
			Name:        "annotation_rotate",
			Description: "Rotate an annotation about its centroid. The box becomes a rotated box.",
			InputSchema: objectSchema(map[string]interface{}{
				"id": entryIDProp,
				"angle": map[string]interface{}{
					"type":        "number",
					"description": "Rotation in radians, clockwise on screen",
				},
			}, "id", "angle"),
		},
		{
			Name:        "annotation_remove",
			Description: "Remove one annotation by id, or several at once by ids. Unknown ids are ignored.",
			InputSchema: objectSchema(map[string]interface{}{
				"id": entryIDProp,
				"ids": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Annotation ids to remove together",
				},
			}),
		},
		{
			Name:        "annotation_duplicate",
			Description: "Append an independent copy of an annotation to the active image and return the copy.",
			InputSchema: objectSchema(map[string]interface{}{
				"id": entryIDProp,
			}, "id"),
		},
		{
			Name:        "annotation_verify",
			Description: "Mark the active image's annotations as reviewed and save them. Pass verified=false to clear the mark.",
			InputSchema: objectSchema(map[string]interface{}{
				"verified": map[string]interface{}{
					"type":        "boolean",
					"description": "Reviewed state to record. Default true",
					"default":     true,
				},
			}),
		},

		// Analysis
		{
			Name:        "annotation_overlaps",
			Description: "List pairs of annotations on the active image that cover the same area. Plain boxes must share more than 10% of the smaller box; rotated boxes overlap on any intersection.",
			InputSchema: objectSchema(map[string]interface{}{}),
		},
		{
			Name:        "annotation_statistics",
			Description: "Count annotations on the active image by rotation, difficulty and label, plus project-wide annotated image counts when a project is open.",
			InputSchema: objectSchema(map[string]interface{}{}),
		},
		{
			Name:        "annotation_copy_to_next",
			Description: "Copy annotations to the next image of the project and switch to it. Unsaved changes are saved first, and the next image is saved after the copies are added.",
			InputSchema: objectSchema(map[string]interface{}{
				"ids": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Optional annotation ids to copy. Defaults to all",
				},
			}),
		},
		{
			Name:        "annotation_crop",
			Description: "Return the image region under an annotation as base64-encoded PNG. Rotated boxes are straightened first.",
			InputSchema: objectSchema(map[string]interface{}{
				"id": entryIDProp,
				"scale": map[string]interface{}{
					"type":        "number",
					"description": "Optional scale factor (e.g., 2.0 to double size). Default 1.0",
					"default":     1.0,
				},
			}, "id"),
		},
		{
			Name:        "labels_list",
			Description: "List the predefined classes and the labels in use on the active image, each with its label-derived color.",
			InputSchema: objectSchema(map[string]interface{}{}),
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
