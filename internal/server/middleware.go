package server

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/matzehuels/depmap/pkg/cache"
	"github.com/matzehuels/depmap/pkg/observability"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

type ctxKey int

const (
	requestIDKey ctxKey = iota
	stateKey
)

// requestID propagates a client supplied request ID or assigns a new one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// RequestIDFrom returns the request ID stored in ctx.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).Round(time.Microsecond),
			"id", RequestIDFrom(r.Context()))
	})
}

// observe reports each API request to the query hooks under its route
// pattern, so /api/deps/{name} is one series regardless of the name.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		observability.Query().OnQuery(r.Context(), route, status, time.Since(start))
	})
}

// cached pins the current graph for the request and serves repeated GETs
// from the response cache. Only 200 responses are stored.
func (s *Server) cached(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st := s.cur.Load()
		r = r.WithContext(context.WithValue(r.Context(), stateKey, st))
		if r.Method != http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		key := s.keyer.ResponseKey(st.generation, r.URL.Path, r.URL.Query().Encode())
		if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			if ct, body, ok := decodeEntry(data); ok {
				observability.Cache().OnCacheHit(ctx, cache.PrefixResponse)
				w.Header().Set("Content-Type", ct)
				w.Header().Set("X-Cache", "HIT")
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write(body)
				return
			}
		}
		observability.Cache().OnCacheMiss(ctx, cache.PrefixResponse)

		rec := &recorder{ResponseWriter: w, status: http.StatusOK}
		w.Header().Set("X-Cache", "MISS")
		next.ServeHTTP(rec, r)
		if rec.status != http.StatusOK {
			return
		}
		entry := encodeEntry(w.Header().Get("Content-Type"), rec.body.Bytes())
		if err := s.cache.Set(ctx, key, entry, s.ttl); err == nil {
			observability.Cache().OnCacheSet(ctx, cache.PrefixResponse, len(entry))
		}
	})
}

// state returns the graph pinned for this request.
func (s *Server) state(r *http.Request) *state {
	if st, ok := r.Context().Value(stateKey).(*state); ok {
		return st
	}
	return s.cur.Load()
}

// recorder tees the response body so it can be cached.
type recorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *recorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func encodeEntry(contentType string, body []byte) []byte {
	out := make([]byte, 0, len(contentType)+1+len(body))
	out = append(out, contentType...)
	out = append(out, '\n')
	return append(out, body...)
}

func decodeEntry(data []byte) (contentType string, body []byte, ok bool) {
	ct, rest, found := bytes.Cut(data, []byte{'\n'})
	if !found || strings.ContainsAny(string(ct), "\r") {
		return "", nil, false
	}
	return string(ct), rest, true
}
