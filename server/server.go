// Package server exposes the search pipeline over HTTP. The transport
// stays thin: it validates and clamps the request, gates it through
// the rate limiter and the response cache, and hands the rest to the
// retriever and summarizer.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"

	"github.com/detra/semsearch/internal/models"
	"github.com/detra/semsearch/internal/types"
	"github.com/detra/semsearch/pkg/cache"
	"github.com/detra/semsearch/pkg/llm"
	"github.com/detra/semsearch/pkg/ratelimit"
	"github.com/detra/semsearch/pkg/retriever"
)

const (
	minQueryLen       = 2
	maxQueryLen       = 500
	defaultMaxResults = 5
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Searcher is the piece of the retriever the server depends on.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) (models.SearchResult, error)
}

type Config struct {
	Addr          string
	MaxResultsCap int
}

// SearchRequest is the validated boundary object handed to the core.
type SearchRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type Server struct {
	config     Config
	retriever  Searcher
	summarizer types.Summarizer
	store      types.VectorStore
	cache      *cache.TTLCache
	limiter    *ratelimit.Limiter
	mux        *http.ServeMux
}

func New(config Config, r Searcher, s types.Summarizer, store types.VectorStore, c *cache.TTLCache, l *ratelimit.Limiter) *Server {
	if config.MaxResultsCap == 0 {
		config.MaxResultsCap = 10
	}

	srv := &Server{
		config:     config,
		retriever:  r,
		summarizer: s,
		store:      store,
		cache:      c,
		limiter:    l,
		mux:        http.NewServeMux(),
	}
	srv.mux.HandleFunc("/search", srv.handleSearch)
	srv.mux.HandleFunc("/ws", srv.handleWebSocket)
	srv.mux.HandleFunc("/healthz", srv.handleHealthz)
	srv.mux.HandleFunc("/", srv.handleRoot)
	return srv
}

// ServeHTTP implements http.Handler with request logging around the mux.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)
	log.Printf("%s %s -> %d in %.2fms", r.Method, r.URL.Path, rec.status,
		float64(time.Since(start).Microseconds())/1000.0)
}

// ListenAndServe starts the server and shuts it down gracefully when
// ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.config.Addr,
		Handler: s,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("semsearch listening on %s", s.config.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if !s.limiter.Allow(clientIP(r)) {
		writeJSONError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
		return
	}

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := validateQuery(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.MaxResults = clamp(req.MaxResults, s.config.MaxResultsCap)

	resp, status, err := s.search(r.Context(), req)
	if err != nil {
		writeJSONError(w, status, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// search runs the cache/retrieve/summarize pipeline for an already
// validated request.
func (s *Server) search(ctx context.Context, req SearchRequest) (models.SearchResponse, int, error) {
	start := time.Now()

	if cached, ok := s.cache.Get(req.Query, req.MaxResults); ok {
		cached.Metadata.CacheHit = true
		cached.Metadata.ExecutionTimeMs = elapsedMs(start)
		if size, err := s.store.Size(ctx); err == nil {
			cached.Metadata.TotalIndexSize = size
		}
		return cached, http.StatusOK, nil
	}

	result, err := s.retriever.Search(ctx, req.Query, req.MaxResults)
	if err != nil {
		if errors.Is(err, retriever.ErrTimeout) {
			return models.SearchResponse{}, http.StatusServiceUnavailable,
				fmt.Errorf("search timed out, please retry")
		}
		log.Printf("search error: %v", err)
		return models.SearchResponse{}, http.StatusInternalServerError,
			fmt.Errorf("search failed")
	}

	summary, err := s.summarizer.Summarize(ctx, req.Query, result.Products)
	if err != nil {
		// The configured summarizer already falls back internally;
		// this is the last resort for custom implementations.
		summary, _ = llm.TemplateSummarizer{}.Summarize(ctx, req.Query, result.Products)
	}

	resp := models.SearchResponse{
		Products: result.Products,
		Summary:  summary,
		Metadata: models.SearchMetadata{
			ExecutionTimeMs: elapsedMs(start),
			CacheHit:        false,
			TotalIndexSize:  result.TotalIndexSize,
			K:               req.MaxResults,
			ResultsCount:    len(result.Products),
		},
	}

	// A canceled request must not leave a cache entry behind.
	if ctx.Err() == nil {
		s.cache.Put(req.Query, req.MaxResults, resp)
	}

	return resp, http.StatusOK, nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	client := clientIP(r)
	for {
		var req SearchRequest
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("websocket read error: %v", err)
			}
			return
		}

		if !s.limiter.Allow(client) {
			s.writeWSError(conn, "Rate limit exceeded. Please try again later.")
			continue
		}
		if err := validateQuery(&req); err != nil {
			s.writeWSError(conn, err.Error())
			continue
		}
		req.MaxResults = clamp(req.MaxResults, s.config.MaxResultsCap)

		resp, _, err := s.search(r.Context(), req)
		if err != nil {
			s.writeWSError(conn, err.Error())
			continue
		}
		if err := conn.WriteJSON(resp); err != nil {
			log.Printf("websocket write error: %v", err)
			return
		}
	}
}

func (s *Server) writeWSError(conn *websocket.Conn, message string) {
	if err := conn.WriteJSON(map[string]string{"error": message}); err != nil {
		log.Printf("websocket write error: %v", err)
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}
	size, err := s.store.Size(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "index unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"status": "ok", "items_indexed": size})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

func validateQuery(req *SearchRequest) error {
	req.Query = strings.TrimSpace(req.Query)
	// Bounds are in characters, not bytes.
	n := utf8.RuneCountInString(req.Query)
	if n < minQueryLen {
		return fmt.Errorf("query must be at least %d characters", minQueryLen)
	}
	if n > maxQueryLen {
		return fmt.Errorf("query must be at most %d characters", maxQueryLen)
	}
	return nil
}

func clamp(maxResults, limit int) int {
	if maxResults == 0 {
		maxResults = defaultMaxResults
	}
	if maxResults < 1 {
		return 1
	}
	if maxResults > limit {
		return limit
	}
	return maxResults
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack delegates to the wrapped writer so websocket upgrades work
// through the logging wrapper.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return h.Hijack()
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":%q}`, message)
}
