// Package server implements the MCP (Model Context Protocol) server for image annotation.
//
// This package provides a JSON-RPC 2.0 server that exposes an annotation session
// through the MCP protocol. A client opens a directory of images, steps through
// them, and draws axis-aligned or rotated boxes that are persisted as Pascal-VOC
// XML files with a rotation extension.
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
// Project:
//   - project_open: Scan a directory for images
//   - project_images: Images in order with their annotated status
//   - project_statistics: Count annotated images
//
// Image Navigation:
//   - image_open: Make an image active and load its annotation file
//   - image_next, image_prev: Step through the project
//   - image_info: Dimensions, depth, format and checksum
//   - image_crop: PNG of a pixel region
//
// Annotation Files:
//   - annotation_load: Decode a file without touching the session
//   - annotation_save: Write the active image's annotations
//   - annotation_list: List annotations with ids and colors
//
// Annotation Edits:
//   - annotation_add_box, annotation_add_rotated_box
//   - annotation_update: Label, difficult flag and colors
//   - annotation_move, annotation_rotate
//   - annotation_remove: One id or a batch of ids
//   - annotation_duplicate: Copy an annotation in place
//   - annotation_verify: Mark or clear reviewed and save
//
// Analysis:
//   - annotation_overlaps: Pairs of boxes covering the same area
//   - annotation_statistics: Per-image and project counts
//   - annotation_copy_to_next: Carry boxes to the next image
//   - annotation_crop: Straightened PNG of a box
//   - labels_list: Predefined and in-use labels with colors
//
// # Session State
//
// One annotation set is active at a time. Switching images while the set has
// unsaved changes fails with ErrUnsaved unless the call passes
// discard_changes. Tool calls are serialized by a mutex, so CallTool may be used
// from another transport alongside Serve.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32602 for undecodable arguments, -32000 for other tool failures
//   - message: Human-readable error description
//   - data: The Go error string
//
// # Usage
//
//	srv, err := server.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
