package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/ironsheep/frameview/internal/framecache"
	"github.com/ironsheep/frameview/internal/viewer"
)

// Name is reported in serverInfo.
const Name = "frameview"

// ChangedMethod is the notification sent when what the shell displays has
// changed: a frame arrived or failed, prefetch progressed, or a command
// altered the view or the annotations.
const ChangedMethod = "notifications/viewer/changed"

// Server handles MCP protocol communication for one viewer session
type Server struct {
	session *viewer.Session
	version string
	log     *slog.Logger

	// initialized is set once the client has sent initialize; no
	// notifications are sent before that.
	initialized atomic.Bool
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPNotification represents an outgoing JSON-RPC notification
type MCPNotification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// New creates a server driving session. A nil logger uses slog.Default.
func New(session *viewer.Session, version string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if version == "" {
		version = "dev"
	}
	return &Server{session: session, version: version, log: log}
}

// output serializes messages written by the request loop and the
// notification goroutine.
type output struct {
	mu  sync.Mutex
	enc *json.Encoder
	log *slog.Logger
}

func (o *output) send(v interface{}) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.enc.Encode(v); err != nil {
		o.log.Error("failed to encode message", "error", err)
	}
}

// changedParams is the compact state carried by a change notification.
// Clients call viewer_state for the rest.
type changedParams struct {
	Index      int                 `json:"index"`
	InstanceID string              `json:"instance_id,omitempty"`
	FrameReady bool                `json:"frame_ready"`
	FrameError string              `json:"frame_error,omitempty"`
	Progress   framecache.Progress `json:"progress"`
}

func (s *Server) changedNotification() *MCPNotification {
	st := s.session.State()
	return &MCPNotification{
		JSONRPC: "2.0",
		Method:  ChangedMethod,
		Params: changedParams{
			Index:      st.Index,
			InstanceID: st.InstanceID,
			FrameReady: st.FrameReady,
			FrameError: st.FrameError,
			Progress:   st.Progress,
		},
	}
}

// notify sends a change notification whenever the session reports one,
// until quit is closed. Bursts of changes collapse into one notification
// carrying the latest state.
func (s *Server) notify(out *output, pending <-chan struct{}, quit <-chan struct{}) {
	for {
		select {
		case <-pending:
			if s.initialized.Load() {
				out.send(s.changedNotification())
			}
		case <-quit:
			return
		}
	}
}

// Run reads requests from r, one per line, and writes responses and change
// notifications to w until r is exhausted or ctx is cancelled. Frame loads
// started by a request continue in the background under ctx.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	// Series descriptions can be large
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 16*1024*1024)

	out := &output{enc: json.NewEncoder(w), log: s.log}

	pending := make(chan struct{}, 1)
	stopWatch := s.session.Watch(func() {
		select {
		case pending <- struct{}{}:
		default:
		}
	})
	quit := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.notify(out, pending, quit)
	}()
	defer func() {
		stopWatch()
		close(quit)
		wg.Wait()
	}()

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.log.Warn("failed to parse request", "error", err)
			out.send(s.errorResponse(nil, -32700, "Parse error", err.Error()))
			continue
		}

		if resp := s.handleRequest(ctx, &req); resp != nil {
			out.send(resp)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	return nil
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(ctx context.Context, req *MCPRequest) *MCPResponse {
	s.log.Debug("request", "method", req.Method, "id", req.ID)
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32601,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	s.initialized.Store(true)
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    Name,
				"version": s.version,
			},
		},
	}
}
