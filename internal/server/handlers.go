package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ironsheep/plate-text-mcp/internal/config"
	"github.com/ironsheep/plate-text-mcp/internal/detection"
)

// sinkTimeout bounds one write to the readings sink.
const sinkTimeout = 10 * time.Second

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "plate_assemble").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		s.log.Warn("server", "%s failed: %v", params.Name, err)
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
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "plate_assemble":
		return s.handlePlateAssemble(args)
	case "plate_labelmap_load":
		return s.handleLabelMapLoad(args)
	case "plate_box_overlap":
		return s.handleBoxOverlap(args)
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

// === Plate Assembly ===

type plateAssembleArgs struct {
	Boxes          []detection.Box      `json:"boxes"`
	Scores         []float64            `json:"scores"`
	LabelIDs       []int                `json:"label_ids"`
	NumDetections  *int                 `json:"num_detections"`
	MinConfidence  *float64             `json:"min_confidence"`
	LabelMap       string               `json:"label_map"`
	NumClasses     int                  `json:"num_classes"`
	UseDisplayName *bool                `json:"use_display_name"`
	Categories     []detection.Category `json:"categories"`
	Source         string               `json:"source"`
}

// plateAssembleResult adds the stored reading id to the assembly result.
type plateAssembleResult struct {
	*detection.Result
	ReadingID string `json:"reading_id,omitempty"`
}

// categoryIndex resolves the index for a call: inline categories first, then
// the requested or configured label map.
func (s *Server) categoryIndex(a *plateAssembleArgs) (detection.CategoryIndex, error) {
	if len(a.Categories) > 0 {
		idx := make(detection.CategoryIndex, len(a.Categories))
		for _, c := range a.Categories {
			idx[c.ID] = c
		}
		return idx, nil
	}

	path := a.LabelMap
	if path == "" {
		path = s.cfg.LabelMap
	}
	if path == "" {
		return nil, errors.New("no categories given and no label map configured")
	}

	numClasses := a.NumClasses
	if numClasses == 0 {
		numClasses = s.cfg.NumClasses
	}
	useDisplayName := s.cfg.UseDisplayName
	if a.UseDisplayName != nil {
		useDisplayName = *a.UseDisplayName
	}
	return s.labels.Load(path, numClasses, useDisplayName)
}

func (s *Server) handlePlateAssemble(args json.RawMessage) (interface{}, error) {
	var a plateAssembleArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	minConfidence := s.cfg.MinConfidence
	if a.MinConfidence != nil {
		minConfidence = *a.MinConfidence
	}
	if err := config.CheckMinConfidence(minConfidence); err != nil {
		return nil, err
	}

	idx, err := s.categoryIndex(&a)
	if err != nil {
		return nil, err
	}

	frame := detection.Frame{
		Source:        a.Source,
		Boxes:         a.Boxes,
		Scores:        a.Scores,
		LabelIDs:      a.LabelIDs,
		NumDetections: a.NumDetections,
	}

	start := time.Now()
	res, err := frame.Assemble(idx, minConfidence)
	if err != nil {
		if s.metrics != nil {
			s.metrics.ObserveFailure(err)
		}
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ObserveResult(res, time.Since(start))
	}
	s.log.Debug("assemble", "source=%q plates=%q stats=%+v", a.Source, res.Texts, res.Stats)

	out := plateAssembleResult{Result: res}
	if s.sink != nil {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		defer cancel()
		id, err := s.sink.SaveReading(ctx, a.Source, res)
		if err != nil {
			return nil, fmt.Errorf("failed to store reading: %w", err)
		}
		if id != uuid.Nil {
			out.ReadingID = id.String()
		}
	}

	return out, nil
}

// === Label Maps ===

type labelMapLoadArgs struct {
	Path           string `json:"path"`
	NumClasses     int    `json:"num_classes"`
	UseDisplayName *bool  `json:"use_display_name"`
}

type labelMapLoadResult struct {
	Path       string               `json:"path"`
	Categories []detection.Category `json:"categories"`
	Count      int                  `json:"count"`
}

func (s *Server) handleLabelMapLoad(args json.RawMessage) (interface{}, error) {
	var a labelMapLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errors.New("path is required")
	}
	if a.NumClasses == 0 {
		a.NumClasses = s.cfg.NumClasses
	}
	useDisplayName := s.cfg.UseDisplayName
	if a.UseDisplayName != nil {
		useDisplayName = *a.UseDisplayName
	}

	idx, err := s.labels.Load(a.Path, a.NumClasses, useDisplayName)
	if err != nil {
		return nil, err
	}
	cats := idx.Sorted()
	return &labelMapLoadResult{Path: a.Path, Categories: cats, Count: len(cats)}, nil
}

// === Geometry ===

type boxOverlapArgs struct {
	BoxA *detection.Box `json:"box_a"`
	BoxB *detection.Box `json:"box_b"`
}

type boxOverlapResult struct {
	IoU float64 `json:"iou"`
	IoA float64 `json:"ioa"`
}

func (s *Server) handleBoxOverlap(args json.RawMessage) (interface{}, error) {
	var a boxOverlapArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.BoxA == nil || a.BoxB == nil {
		return nil, errors.New("box_a and box_b are required")
	}

	iou, err := detection.IntersectionOverUnion(*a.BoxA, *a.BoxB)
	if err != nil {
		return nil, err
	}
	ioa, err := detection.IntersectionOverArea(*a.BoxA, *a.BoxB)
	if err != nil {
		return nil, err
	}
	return &boxOverlapResult{IoU: iou, IoA: ioa}, nil
}
