package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// boxSchema describes a normalized [startY, startX, endY, endX] box.
func boxSchema(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"items":       map[string]interface{}{"type": "number"},
		"minItems":    4,
		"maxItems":    4,
		"description": description,
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Plate Assembly
		{
			Name:        "plate_assemble",
			Description: "Assemble license plate text from object detector output. Characters are matched to plate boxes, ordered left to right and de-duplicated. Returns one string per plate.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"boxes": map[string]interface{}{
						"type":        "array",
						"items":       boxSchema("Normalized box"),
						"description": "Detection boxes as [startY, startX, endY, endX] in [0,1]",
					},
					"scores": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "number"},
						"description": "Confidence score per box",
					},
					"label_ids": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "integer"},
						"description": "Class id per box",
					},
					"num_detections": map[string]interface{}{
						"type":        "integer",
						"description": "Number of valid leading detections when arrays are padded",
					},
					"min_confidence": map[string]interface{}{
						"type":        "number",
						"description": "Discard detections scoring below this (default from server config, 0.5)",
					},
					"label_map": map[string]interface{}{
						"type":        "string",
						"description": "Path to a text-format label map (.pbtxt). Defaults to the configured label map.",
					},
					"num_classes": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum class id accepted from the label map",
					},
					"use_display_name": map[string]interface{}{
						"type":        "boolean",
						"description": "Prefer display_name over name in the label map",
					},
					"categories": map[string]interface{}{
						"type": "array",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"id":   map[string]interface{}{"type": "integer"},
								"name": map[string]interface{}{"type": "string"},
							},
							"required": []string{"id", "name"},
						},
						"description": "Inline category index; overrides label_map",
					},
					"source": map[string]interface{}{
						"type":        "string",
						"description": "Optional image identifier stored with the reading",
					},
				},
				"required": []string{"boxes", "scores", "label_ids"},
			},
		},

		// Label Maps
		{
			Name:        "plate_labelmap_load",
			Description: "Load a text-format label map and return its categories sorted by id.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the label map file",
					},
					"num_classes": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum class id accepted (default from server config)",
					},
					"use_display_name": map[string]interface{}{
						"type":        "boolean",
						"description": "Prefer display_name over name",
					},
				},
				"required": []string{"path"},
			},
		},

		// Geometry
		{
			Name:        "plate_box_overlap",
			Description: "Compute intersection over union of two boxes and the intersection over box_a's own area.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"box_a": boxSchema("First box, [startY, startX, endY, endX]"),
					"box_b": boxSchema("Second box, [startY, startX, endY, endX]"),
				},
				"required": []string{"box_a", "box_b"},
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
