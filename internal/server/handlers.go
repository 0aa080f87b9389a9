package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ironsheep/frameview/internal/annotation"
	"github.com/ironsheep/frameview/internal/geometry"
	"github.com/ironsheep/frameview/internal/render"
	"github.com/ironsheep/frameview/internal/series"
	"github.com/ironsheep/frameview/internal/viewer"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "viewer_navigate", "viewer_render").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// argsError marks a failure to decode or validate tool arguments.
type argsError struct {
	err error
}

func (e *argsError) Error() string { return e.err.Error() }
func (e *argsError) Unwrap() error { return e.err }

// decodeArgs unmarshals tool arguments. Missing arguments decode as an
// empty object.
func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 || string(args) == "null" {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return &argsError{err: fmt.Errorf("invalid arguments: %w", err)}
	}
	return nil
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Rendered surfaces are additionally returned as an image content item.
// Argument errors return code -32602; tool execution errors return a
// JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		var ae *argsError
		if errors.As(err, &ae) {
			return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
		}
		s.log.Debug("tool failed", "tool", params.Name, "error", err)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	content := []map[string]interface{}{
		{
			"type": "text",
			"text": mustMarshalJSON(result),
		},
	}
	if sr, ok := result.(*surfaceResult); ok {
		content = append(content, map[string]interface{}{
			"type":     "image",
			"data":     sr.surface.ImageBase64,
			"mimeType": sr.surface.MimeType,
		})
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": content,
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
//
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Applies default values for optional parameters
//  3. Calls the matching viewer session command or query
//  4. Returns the result or error
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Series and navigation
	case "viewer_open_series":
		return s.handleOpenSeries(ctx, args)
	case "viewer_navigate":
		return s.handleNavigate(ctx, args)
	case "viewer_state":
		return s.session.State(), nil

	// Annotation input
	case "viewer_set_tool":
		return s.handleSetTool(args)
	case "viewer_pointer":
		return s.handlePointer(args)
	case "viewer_cancel":
		return changeResult{Change: s.session.Cancel().String()}, nil

	// View transform
	case "viewer_view":
		return s.handleView(args)
	case "viewer_undo":
		return undoResult{Applied: s.session.Undo(), State: s.session.State()}, nil
	case "viewer_redo":
		return undoResult{Applied: s.session.Redo(), State: s.session.State()}, nil

	// Annotation commands
	case "viewer_select":
		return s.handleSelect(args)
	case "viewer_delete_annotation":
		return s.handleDelete(args)
	case "viewer_set_text":
		return s.handleSetText(args)

	// Queries and output
	case "viewer_hu_at":
		return s.handleHUAt(args)
	case "viewer_render":
		return s.handleRender()
	case "viewer_thumbnail":
		return s.handleThumbnail(args)

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
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Series Handlers ===

type openSeriesArgs struct {
	Instances []series.Instance `json:"instances"`

	// Index is the frame to show first. Default 0.
	Index int `json:"index"`

	// Wait holds the response until the frame is displayed or has failed.
	// By default the frame loads in the background and the client learns
	// of it from a change notification.
	Wait bool `json:"wait"`
}

// show makes frame i current. Unless wait is set it returns as soon as the
// load has started; a failure is then reported through the session state.
func (s *Server) show(ctx context.Context, i int, wait bool) error {
	if wait {
		return s.session.Navigate(ctx, i)
	}
	done, err := s.session.Show(ctx, i)
	if err != nil {
		return err
	}
	go func() {
		if err := <-done; err != nil {
			s.log.Warn("frame load failed", "index", i, "error", err)
		}
	}()
	return nil
}

func (s *Server) handleOpenSeries(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a openSeriesArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if len(a.Instances) == 0 {
		return nil, &argsError{err: errors.New("instances is required")}
	}
	if err := s.session.OpenSeries(a.Instances); err != nil {
		return nil, err
	}
	if err := s.show(ctx, a.Index, a.Wait); err != nil {
		return nil, err
	}
	return s.session.State(), nil
}

type navigateArgs struct {
	Index *int `json:"index"`

	// Delta moves relative to the current frame when Index is absent.
	Delta int `json:"delta"`

	Wait bool `json:"wait"`
}

func (s *Server) handleNavigate(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a navigateArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	i := s.session.Index() + a.Delta
	if a.Index != nil {
		i = *a.Index
	}
	if err := s.show(ctx, i, a.Wait); err != nil {
		return nil, err
	}
	return s.session.State(), nil
}

// === Annotation Input Handlers ===

type setToolArgs struct {
	Tool string `json:"tool"`
}

func (s *Server) handleSetTool(args json.RawMessage) (interface{}, error) {
	var a setToolArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	t, err := annotation.ParseType(a.Tool)
	if err != nil {
		return nil, &argsError{err: err}
	}
	s.session.SetTool(t)
	return map[string]interface{}{"tool": t}, nil
}

type pointerArgs struct {
	Event string  `json:"event"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

type changeResult struct {
	Change string `json:"change"`
}

type pointerResult struct {
	Change string       `json:"change"`
	State  viewer.State `json:"state"`
}

func (s *Server) handlePointer(args json.RawMessage) (interface{}, error) {
	var a pointerArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	c, err := s.session.Pointer(viewer.PointerKind(a.Event), geometry.Pt(a.X, a.Y))
	if err != nil {
		return nil, err
	}
	return pointerResult{Change: c.String(), State: s.session.State()}, nil
}

// === View Handlers ===

type viewArgs struct {
	// Action selects the view command.
	Action  string  `json:"action"`
	DX      float64 `json:"dx"`
	DY      float64 `json:"dy"`
	Factor  float64 `json:"factor"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Degrees float64 `json:"degrees"`
	Center  float64 `json:"center"`
	Width   float64 `json:"width"`
	Preset  string  `json:"preset"`

	// ViewportWidth and ViewportHeight are used by the viewport action.
	ViewportWidth  int `json:"viewport_width"`
	ViewportHeight int `json:"viewport_height"`
}

func (s *Server) handleView(args json.RawMessage) (interface{}, error) {
	var a viewArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}

	var err error
	switch a.Action {
	case "pan":
		err = s.session.Pan(a.DX, a.DY)
	case "zoom":
		if a.Factor == 0 {
			a.Factor = 2
		}
		err = s.session.ZoomAt(a.Factor, geometry.Pt(a.X, a.Y))
	case "rotate":
		if a.Degrees == 0 {
			a.Degrees = 90
		}
		err = s.session.Rotate(a.Degrees)
	case "flip_h":
		err = s.session.FlipH()
	case "flip_v":
		err = s.session.FlipV()
	case "invert":
		err = s.session.Invert()
	case "window":
		err = s.session.SetWindow(a.Center, a.Width)
	case "preset":
		err = s.session.ApplyPreset(a.Preset)
	case "reset_window":
		err = s.session.ResetWindow()
	case "reset":
		err = s.session.ResetView()
	case "viewport":
		err = s.session.SetViewportSize(a.ViewportWidth, a.ViewportHeight)
	default:
		return nil, &argsError{err: fmt.Errorf("unknown view action %q", a.Action)}
	}
	if err != nil {
		return nil, err
	}
	return s.session.State(), nil
}

type undoResult struct {
	Applied bool         `json:"applied"`
	State   viewer.State `json:"state"`
}

// === Annotation Command Handlers ===

type idArgs struct {
	ID string `json:"id"`
}

func (s *Server) handleSelect(args json.RawMessage) (interface{}, error) {
	var a idArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := s.session.Select(a.ID); err != nil {
		return nil, err
	}
	return s.session.State(), nil
}

func (s *Server) handleDelete(args json.RawMessage) (interface{}, error) {
	var a idArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := s.session.Delete(a.ID); err != nil {
		return nil, err
	}
	return s.session.State(), nil
}

type setTextArgs struct {
	ID       string   `json:"id"`
	Text     *string  `json:"text"`
	Rotation *float64 `json:"rotation"`
}

func (s *Server) handleSetText(args json.RawMessage) (interface{}, error) {
	var a setTextArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Text == nil && a.Rotation == nil {
		return nil, &argsError{err: errors.New("text or rotation is required")}
	}
	if a.Text != nil {
		if err := s.session.SetText(a.ID, *a.Text); err != nil {
			return nil, err
		}
	}
	if a.Rotation != nil {
		if err := s.session.SetTextRotation(a.ID, *a.Rotation); err != nil {
			return nil, err
		}
	}
	return s.session.State(), nil
}

// === Query and Output Handlers ===

type pointArgs struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type huResult struct {
	HU     *float64 `json:"hu,omitempty"`
	X      int      `json:"x"`
	Y      int      `json:"y"`
	Inside bool     `json:"inside"`
}

func (s *Server) handleHUAt(args json.RawMessage) (interface{}, error) {
	var a pointArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	hu, px, ok, err := s.session.HUAt(geometry.Pt(a.X, a.Y))
	if err != nil {
		return nil, err
	}
	r := huResult{X: px.X, Y: px.Y, Inside: ok}
	if ok {
		r.HU = &hu
	}
	return r, nil
}

// surfaceResult describes a rendered surface. The pixels travel as a
// separate image content item.
type surfaceResult struct {
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	MimeType string `json:"mime_type"`

	surface *render.Surface
}

func newSurfaceResult(surf *render.Surface) *surfaceResult {
	return &surfaceResult{Width: surf.Width, Height: surf.Height, MimeType: surf.MimeType, surface: surf}
}

func (s *Server) handleRender() (interface{}, error) {
	surf, err := s.session.Render()
	if err != nil {
		return nil, err
	}
	return newSurfaceResult(surf), nil
}

type thumbnailArgs struct {
	Index int `json:"index"`

	// Size is the longest edge in pixels. Default 128.
	Size int `json:"size"`
}

func (s *Server) handleThumbnail(args json.RawMessage) (interface{}, error) {
	var a thumbnailArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	surf, err := s.session.Thumbnail(a.Index, a.Size)
	if err != nil {
		return nil, err
	}
	return newSurfaceResult(surf), nil
}
