// Package server implements the MCP (Model Context Protocol) server that
// exposes a frameview viewing session.
//
// This package provides a JSON-RPC 2.0 server that turns tool calls into
// viewer session commands and queries. A shell, or any MCP-compatible client,
// opens a series, scrolls through frames, places measurements with pointer
// events and reads back state and rendered images.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses and notifications on stdout
//
// Once the client has sent initialize, every change to what the shell
// displays is announced with a notifications/viewer/changed message holding
// the current index, instance, frame readiness and prefetch progress. Rapid
// changes are collapsed into one message with the latest values.
//
// viewer_open_series and viewer_navigate return as soon as the frame has
// been requested; the frame itself arrives in the background and the
// request loop keeps serving pointer, view and state calls meanwhile. Pass
// "wait": true to hold the response until the frame is displayed.
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Series and navigation:
//   - viewer_open_series: Open a series from instance metadata
//   - viewer_navigate: Show another frame (absolute or relative)
//   - viewer_state: Read the session snapshot
//
// Annotation input:
//   - viewer_set_tool: Choose length, ellipse, rectangle, freehand, text,
//     angle, cobbsAngle, hu or none
//   - viewer_pointer: Pointer down/move/up at a screen position
//   - viewer_cancel: Abandon the draft or edit in progress
//
// View:
//   - viewer_view: Pan, zoom, rotate, flip, invert, window, presets, reset
//   - viewer_undo / viewer_redo: Step through committed changes
//
// Annotation commands:
//   - viewer_select: Select an annotation
//   - viewer_delete_annotation: Delete and renumber
//   - viewer_set_text: Edit a text annotation
//
// Queries and output:
//   - viewer_hu_at: HU under a screen position
//   - viewer_render: Current frame with overlay as PNG
//   - viewer_thumbnail: Small preview of a fetched frame
//
// # Error Handling
//
// Errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure), -32602 (invalid arguments),
//     -32601 (unknown method) or -32700 (unparseable request)
//   - message: Human-readable error description
//   - data: The Go error string
//
// A frame that fails to fetch or decode is reported in the session state as
// well; other frames remain usable and a failed fetch is retried on the next
// navigation.
//
// # Usage
//
//	session := viewer.New(viewer.Options{Fetcher: fetcher})
//	srv := server.New(session, version, logger)
//	if err := srv.Run(ctx, os.Stdin, os.Stdout); err != nil {
//	    log.Fatal(err)
//	}
package server
