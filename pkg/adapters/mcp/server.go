package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aretw0/scribe"
	"github.com/aretw0/scribe/internal/logging"
	"github.com/aretw0/scribe/pkg/document"
	"github.com/aretw0/scribe/pkg/domain"
	"github.com/aretw0/scribe/pkg/highlight"
	"github.com/aretw0/scribe/pkg/session"
)

// Notebook is the part of scribe.Notebook exposed as MCP tools.
type Notebook interface {
	Load(source []byte) []document.ChangeEvent
	Fragments() []domain.Fragment
	Highlight(ctx context.Context) ([]highlight.Result, error)
	Evaluate(index int) error
	EvaluateAll() (int, error)
	Reset() error
	State() domain.SessionState
	Results() <-chan scribe.Result
}

// EvaluateResponse is the structured output of the evaluate tool.
type EvaluateResponse struct {
	Results []EvaluationResult `json:"results" jsonschema_description:"One entry per evaluated fragment, in document order"`
	Error   string             `json:"error,omitempty" jsonschema_description:"Set when some fragments could not be submitted"`
}

// EvaluationResult is the outcome of one fragment.
type EvaluationResult struct {
	Index  int    `json:"index" jsonschema_description:"Fragment index in the document"`
	Code   string `json:"code" jsonschema_description:"Evaluated source text"`
	Stdout string `json:"stdout" jsonschema_description:"Standard output of the evaluation"`
	Stderr string `json:"stderr,omitempty" jsonschema_description:"Error output of the evaluation"`
	Error  string `json:"error,omitempty" jsonschema_description:"Set when the interpreter dropped the request"`
}

// HighlightResponse is the structured output of the highlight tool.
type HighlightResponse struct {
	Fragments []HighlightedFragment `json:"fragments" jsonschema_description:"Tokens per fragment"`
}

// HighlightedFragment carries tokens relative to Text, in byte offsets.
type HighlightedFragment struct {
	Index    int            `json:"index"`
	Language string         `json:"language,omitempty"`
	Text     string         `json:"text"`
	Tokens   []domain.Token `json:"tokens"`
	Error    string         `json:"error,omitempty"`
}

// ResetResponse is the structured output of the reset tool.
type ResetResponse struct {
	Session string `json:"session" jsonschema_description:"Interpreter session state after the reset"`
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. It must not write to stdout when serving stdio.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server exposes a Notebook as an MCP server.
type Server struct {
	nb         Notebook
	dispatcher *session.Dispatcher
	logger     *slog.Logger
	mcpServer  *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(nb Notebook, opts ...Option) *Server {
	s := &Server{
		nb:        nb,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("scribe-mcp", strings.TrimSpace(scribe.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.dispatcher = session.NewDispatcher(nb, session.WithLogger(s.logger))
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the MCP protocol over Server-Sent Events on addr until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	baseURL := "http://localhost" + addr
	if !strings.HasPrefix(addr, ":") {
		baseURL = "http://" + addr
	}
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// MCPServer returns the underlying server, e.g. to mount it on another transport.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	// TOOL: evaluate
	evaluateTool := mcp.NewTool("evaluate",
		mcp.WithDescription("Evaluate notebook code blocks in the interpreter session and return their output. Pass index for one block or all=true for every executable block."),
		mcp.WithNumber("index", mcp.Description("Index of the code block to evaluate")),
		mcp.WithBoolean("all", mcp.Description("Evaluate every executable block in order")),
		mcp.WithString("source", mcp.Description("Markdown to load before evaluating (optional)")),
		mcp.WithOutputSchema[EvaluateResponse](),
	)
	s.mcpServer.AddTool(evaluateTool, mcp.NewStructuredToolHandler(s.handleEvaluate))

	// TOOL: highlight
	highlightTool := mcp.NewTool("highlight",
		mcp.WithDescription("Tokenize the notebook code blocks (strings, numbers, keywords, comments)."),
		mcp.WithString("source", mcp.Description("Markdown to load before highlighting (optional)")),
		mcp.WithOutputSchema[HighlightResponse](),
	)
	s.mcpServer.AddTool(highlightTool, mcp.NewStructuredToolHandler(s.handleHighlight))

	// TOOL: reset
	resetTool := mcp.NewTool("reset",
		mcp.WithDescription("Restart the interpreter session and clear recorded errors. Pending evaluations are cancelled."),
		mcp.WithOutputSchema[ResetResponse](),
	)
	s.mcpServer.AddTool(resetTool, mcp.NewStructuredToolHandler(s.handleReset))
}

func (s *Server) handleEvaluate(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (EvaluateResponse, error) {
	if src, ok := args["source"].(string); ok {
		s.nb.Load([]byte(src))
	}

	var (
		pending session.Pending
		err     error
	)
	all, _ := args["all"].(bool)
	switch index, ok := args["index"].(float64); {
	case all:
		pending, err = s.dispatcher.SubmitAll()
	case ok:
		pending, err = s.dispatcher.Submit(int(index))
	default:
		return EvaluateResponse{}, fmt.Errorf("either index or all is required")
	}
	if err != nil && len(pending) == 0 {
		return EvaluateResponse{}, fmt.Errorf("evaluate failed: %w", err)
	}

	resp := EvaluateResponse{}
	if err != nil {
		s.logger.Warn("MCP Evaluate: partial submission", "err", err, "submitted", len(pending))
		resp.Error = err.Error()
	}

	results, werr := pending.Wait(ctx)
	if werr != nil {
		return EvaluateResponse{}, fmt.Errorf("waiting for results: %w", werr)
	}
	resp.Results = make([]EvaluationResult, len(results))
	for i, res := range results {
		out := EvaluationResult{
			Index:  res.Index,
			Code:   res.Fragment.Text,
			Stdout: res.Stdout,
			Stderr: res.Stderr,
		}
		if res.Err != nil {
			out.Error = res.Err.Error()
		}
		resp.Results[i] = out
	}
	return resp, nil
}

func (s *Server) handleHighlight(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (HighlightResponse, error) {
	if src, ok := args["source"].(string); ok {
		s.nb.Load([]byte(src))
	}

	results, err := s.nb.Highlight(ctx)
	if err != nil {
		s.logger.Warn("MCP Highlight: tokenizer failed", "err", err)
	}

	resp := HighlightResponse{Fragments: make([]HighlightedFragment, len(results))}
	for i, res := range results {
		f := HighlightedFragment{
			Index:    i,
			Language: res.Fragment.Language,
			Text:     res.Fragment.Text,
			Tokens:   res.Tokens,
		}
		if res.Tokens == nil {
			f.Error = domain.ErrTokenizerFailure.Error()
		}
		resp.Fragments[i] = f
	}
	return resp, nil
}

func (s *Server) handleReset(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (ResetResponse, error) {
	if err := s.nb.Reset(); err != nil {
		return ResetResponse{}, fmt.Errorf("reset failed: %w", err)
	}
	return ResetResponse{Session: string(s.nb.State())}, nil
}

func (s *Server) registerResources() {
	// EXPOSE: scribe://fragments
	s.mcpServer.AddResource(mcp.NewResource("scribe://fragments", "Notebook code blocks",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(s.nb.Fragments())
		if err != nil {
			return nil, fmt.Errorf("failed to encode fragments: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "scribe://fragments",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
