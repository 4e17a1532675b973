package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aretw0/scribe"
	"github.com/aretw0/scribe/internal/logging"
	"github.com/aretw0/scribe/pkg/document"
	"github.com/aretw0/scribe/pkg/domain"
	"github.com/aretw0/scribe/pkg/domain/textpos"
	"github.com/aretw0/scribe/pkg/highlight"
	"github.com/aretw0/scribe/pkg/observability"
	"github.com/aretw0/scribe/pkg/session"
)

// Notebook is the part of scribe.Notebook exposed over HTTP.
type Notebook interface {
	Load(source []byte) []document.ChangeEvent
	Source() []byte
	Fragments() []domain.Fragment
	Highlight(ctx context.Context) ([]highlight.Result, error)
	Evaluate(index int) error
	EvaluateAll() (int, error)
	Reset() error
	State() domain.SessionState
	Results() <-chan scribe.Result
	Changes() <-chan document.ChangeEvent
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics mounts GET /metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// Server exposes a Notebook as a JSON API.
//
// The Server is the only reader of the notebook's Results and Changes
// channels: results are matched to waiting /evaluate calls in submission order
// and every result and change is broadcast on GET /events.
type Server struct {
	nb         Notebook
	logger     *slog.Logger
	metrics    *observability.Metrics
	dispatcher *session.Dispatcher
	Streams    *StreamManager
}

// NewServer creates a Server and starts forwarding notebook events. The
// forwarding stops when the notebook's channels are closed.
func NewServer(nb Notebook, opts ...Option) *Server {
	s := &Server{
		nb:     nb,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams = NewStreamManager(s.logger)
	s.dispatcher = session.NewDispatcher(nb,
		session.WithLogger(s.logger),
		session.WithObserver(s.broadcastResult),
	)

	go s.pumpChanges()
	return s
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/fragments", s.GetFragments)
	r.Get("/events", s.SubscribeEvents)
	r.Post("/load", s.Load)
	r.Post("/highlight", s.Highlight)
	r.Post("/evaluate", s.Evaluate)
	r.Post("/reset", s.Reset)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	return r
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "address", addr)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// -- Wire types --

type fragmentResponse struct {
	Index    int          `json:"index"`
	Text     string       `json:"text"`
	Language string       `json:"language,omitempty"`
	Range    domain.Range `json:"range"`
	Error    string       `json:"error,omitempty"`
}

type highlightResponse struct {
	Fragment fragmentResponse `json:"fragment"`
	Tokens   []domain.Token   `json:"tokens"`
	Cached   bool             `json:"cached"`
	Error    string           `json:"error,omitempty"`
}

type resultResponse struct {
	Fragment   fragmentResponse `json:"fragment"`
	Stdout     string           `json:"stdout"`
	Stderr     string           `json:"stderr,omitempty"`
	Generation uint64           `json:"generation"`
	Error      string           `json:"error,omitempty"`
}

type loadRequest struct {
	Source string `json:"source"`
}

type highlightRequest struct {
	Source *string `json:"source,omitempty"`
}

type evaluateRequest struct {
	Index *int  `json:"index,omitempty"`
	All   bool  `json:"all,omitempty"`
	Wait  *bool `json:"wait,omitempty"`
}

// -- Handlers --

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"session": string(s.nb.State()),
	})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":     "scribe-http",
		"version": strings.TrimSpace(scribe.Version),
	})
}

// GetFragments handles GET /fragments[?unit=utf16].
func (s *Server) GetFragments(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.converter(w, r)
	if !ok {
		return
	}
	frags := s.nb.Fragments()
	out := make([]fragmentResponse, len(frags))
	for i, f := range frags {
		out[i] = conv.fragment(i, f)
	}
	writeJSON(w, http.StatusOK, out)
}

// Load handles POST /load.
func (s *Server) Load(w http.ResponseWriter, r *http.Request) {
	var body loadRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("Load: invalid request body", "err", err)
		return
	}
	writeJSON(w, http.StatusOK, s.nb.Load([]byte(body.Source)))
}

// Highlight handles POST /highlight. An optional source replaces the document first.
func (s *Server) Highlight(w http.ResponseWriter, r *http.Request) {
	var body highlightRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			s.logger.Warn("Highlight: invalid request body", "err", err)
			return
		}
	}
	if body.Source != nil {
		s.nb.Load([]byte(*body.Source))
	}
	conv, ok := s.converter(w, r)
	if !ok {
		return
	}

	results, err := s.nb.Highlight(r.Context())
	if err != nil {
		s.logger.Warn("Highlight: tokenizer failed", "err", err)
	}

	out := make([]highlightResponse, len(results))
	for i, res := range results {
		item := highlightResponse{
			Fragment: conv.fragment(i, res.Fragment),
			Tokens:   textpos.TokensFromBytes(res.Fragment.Text, conv.unit, res.Tokens),
			Cached:   res.Cached,
		}
		if res.Tokens == nil {
			item.Error = domain.ErrTokenizerFailure.Error()
		}
		out[i] = item
	}
	writeJSON(w, http.StatusOK, out)
}

// Evaluate handles POST /evaluate. By default it waits for the results.
func (s *Server) Evaluate(w http.ResponseWriter, r *http.Request) {
	var body evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("Evaluate: invalid request body", "err", err)
		return
	}
	if body.Index == nil && !body.All {
		http.Error(w, "Either index or all is required", http.StatusBadRequest)
		return
	}
	conv, ok := s.converter(w, r)
	if !ok {
		return
	}

	var (
		pending session.Pending
		err     error
	)
	if body.All {
		pending, err = s.dispatcher.SubmitAll()
	} else {
		pending, err = s.dispatcher.Submit(*body.Index)
	}
	if err != nil {
		s.logger.Warn("Evaluate failed", "err", err, "submitted", len(pending))
		if len(pending) == 0 {
			http.Error(w, err.Error(), statusOf(err))
			return
		}
	}

	if body.Wait != nil && !*body.Wait {
		writeJSON(w, http.StatusAccepted, map[string]int{"submitted": len(pending)})
		return
	}

	results, err := pending.Wait(r.Context())
	if err != nil {
		if r.Context().Err() == nil {
			http.Error(w, err.Error(), statusOf(err))
		}
		return
	}
	out := make([]resultResponse, len(results))
	for i, res := range results {
		out[i] = conv.result(res)
	}
	writeJSON(w, http.StatusOK, out)
}

// Reset handles POST /reset.
func (s *Server) Reset(w http.ResponseWriter, r *http.Request) {
	if err := s.nb.Reset(); err != nil {
		http.Error(w, err.Error(), statusOf(err))
		s.logger.Error("Reset failed", "err", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session": string(s.nb.State())})
}

// SubscribeEvents handles GET /events (SSE). ?watch=result,change filters event names.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	watch := map[string]bool{}
	if v := r.URL.Query().Get("watch"); v != "" {
		for _, name := range strings.Split(v, ",") {
			watch[strings.TrimSpace(name)] = true
		}
	}

	ch, cancel := s.Streams.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if len(watch) > 0 && !watch[ev.Name] {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, ev.Data)
			flusher.Flush()
		}
	}
}

func (s *Server) broadcastResult(res scribe.Result) {
	if data, err := json.Marshal(resultWire(res, res.Fragment.Range)); err == nil {
		s.Streams.Broadcast(Event{Name: "result", Data: string(data)})
	}
}

func (s *Server) pumpChanges() {
	for ev := range s.nb.Changes() {
		if data, err := json.Marshal(ev); err == nil {
			s.Streams.Broadcast(Event{Name: "change", Data: string(data)})
		}
	}
}

// -- Helpers --

// converter maps byte offsets to the unit requested with ?unit=.
type converter struct {
	unit  textpos.Unit
	index *textpos.Index
}

func (s *Server) converter(w http.ResponseWriter, r *http.Request) (converter, bool) {
	unit, err := textpos.ParseUnit(r.URL.Query().Get("unit"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return converter{}, false
	}
	return converter{unit: unit, index: textpos.NewIndex(string(s.nb.Source()), unit)}, true
}

func (c converter) fragment(i int, f domain.Fragment) fragmentResponse {
	return fragmentResponse{
		Index:    i,
		Text:     f.Text,
		Language: f.Language,
		Range:    c.index.RangeFromBytes(f.Range),
		Error:    f.Error,
	}
}

func (c converter) result(res scribe.Result) resultResponse {
	return resultWire(res, c.index.RangeFromBytes(res.Fragment.Range))
}

func resultWire(res scribe.Result, rng domain.Range) resultResponse {
	out := resultResponse{
		Fragment: fragmentResponse{
			Index:    res.Index,
			Text:     res.Fragment.Text,
			Language: res.Fragment.Language,
			Range:    rng,
			Error:    res.Fragment.Error,
		},
		Stdout:     res.Stdout,
		Stderr:     res.Stderr,
		Generation: res.Generation,
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, scribe.ErrNoFragment):
		return http.StatusNotFound
	case errors.Is(err, scribe.ErrNotExecutable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInterpreterTerminated):
		return http.StatusConflict
	case errors.Is(err, scribe.ErrClosed), errors.Is(err, domain.ErrDriverClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
