package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/ironsheep/rolabel-mcp/internal/annotation"
	"github.com/ironsheep/rolabel-mcp/internal/config"
	"github.com/ironsheep/rolabel-mcp/internal/imaging"
	"github.com/ironsheep/rolabel-mcp/internal/logger"
	"github.com/ironsheep/rolabel-mcp/internal/project"
	"github.com/ironsheep/rolabel-mcp/internal/shape"
)

// Version is reported in the initialize handshake. The command overrides it
// at startup.
var Version = "dev"

// Server handles MCP protocol communication
type Server struct {
	// mu serializes tool calls so the annotation set sees one caller at a time,
	// whichever transport the call arrives on.
	mu sync.Mutex

	cfg       *config.Config
	defaults  shape.Defaults
	cache     *imaging.ImageCache
	set       *annotation.Set
	workspace *project.Workspace
	classes   []string
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

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// New creates a server from cfg. The predefined class list, when configured,
// is read here.
func New(cfg *config.Config) (*Server, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	defaults, err := cfg.Colors()
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		defaults: defaults,
		cache:    imaging.NewImageCache(),
	}
	if path := cfg.Annotation.PredefinedClasses; path != "" {
		classes, err := project.LoadClasses(path)
		if err != nil {
			return nil, err
		}
		s.classes = classes
	}
	s.set = s.newSet(project.Resolver{SaveDir: cfg.Annotation.SaveDir})
	return s, nil
}

func (s *Server) newSet(r annotation.PathResolver) *annotation.Set {
	return annotation.NewSet(annotation.Options{
		Resolver:    r,
		Images:      s.cache,
		Defaults:    s.defaults,
		LabelColors: s.cfg.Annotation.LabelColors,
	})
}

// Run starts the MCP server, reading from stdin and writing to stdout
func (s *Server) Run() error {
	return s.Serve(os.Stdin, os.Stdout)
}

// Serve processes line-delimited JSON-RPC requests from r until EOF and writes
// responses to w.
func (s *Server) Serve(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	// Increase buffer size for large requests
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	encoder := json.NewEncoder(w)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			logger.S().Warnw("failed to parse request", "error", err)
			continue
		}

		resp := s.handleRequest(&req)
		if resp != nil {
			if err := encoder.Encode(resp); err != nil {
				logger.S().Errorw("failed to encode response", "error", err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	return nil
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(req *MCPRequest) *MCPResponse {
	logger.S().Debugw("request", "method", req.Method, "id", req.ID)

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(req)
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
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "rolabel-mcp",
				"version": Version,
			},
		},
	}
}
