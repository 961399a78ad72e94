// Package server implements the MCP (Model Context Protocol) server for plate text assembly.
//
// This package provides a JSON-RPC 2.0 server that exposes the plate assembler
// through the MCP protocol. A client that already ran a license plate detector
// sends the raw boxes, scores and class ids for one image and receives one text
// string per plate.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
//   - plate_assemble: Assemble plate text from detector output
//   - plate_labelmap_load: Load a label map and list its categories
//   - plate_box_overlap: IoU and IoA of two boxes
//
// # Label Maps
//
// plate_assemble resolves class ids through inline categories or a label map
// file. Parsed label maps are cached by path for the lifetime of the process.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// An image whose detections are misaligned, reference an unknown class id or
// contain a zero-area box fails as a whole; no partial plate list is returned.
//
// # Usage
//
//	srv := server.New(server.WithConfig(cfg))
//	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
//	    log.Fatal(err)
//	}
package server
