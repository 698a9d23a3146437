// Package fredtest provides a fake FRED API for tests.
package fredtest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type response struct {
	status int
	body   string
}

// Server answers /fred/series with a canned response and records every
// query it receives.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	queries  []url.Values
	response response
}

func New(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		response: response{
			status: http.StatusOK,
			body:   `{"seriess": []}`,
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/fred/series", s.series)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// Respond sets the status and body returned for subsequent requests.
func (s *Server) Respond(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.response = response{status: status, body: body}
}

// Queries returns the query strings of all requests received so far.
func (s *Server) Queries() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]url.Values, len(s.queries))
	copy(out, s.queries)
	return out
}

func (s *Server) series(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.queries = append(s.queries, r.URL.Query())
	resp := s.response
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.status)
	io.WriteString(w, resp.body)
}
