// Package debugserver exposes a build's emitted tables over HTTP for
// local inspection during development: GET /tables dumps the three
// emitted tables as JSON, GET /healthz reports liveness. It is entirely
// optional and never starts unless a caller constructs and runs it.
package debugserver

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/dc-lift/dcsema/internal/semtable"
)

// Server serves a fixed snapshot of Tables taken at construction time; a
// build that produces new tables constructs a new Server rather than
// mutating one in place, keeping every in-flight request consistent.
type Server struct {
	tables semtable.Tables
	router *mux.Router
}

// New builds a Server for tables, wiring /tables and /healthz.
func New(tables semtable.Tables) *Server {
	s := &Server{tables: tables, router: mux.NewRouter()}
	s.router.HandleFunc("/tables", s.handleTables).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	return s
}

// Handler returns the server's http.Handler, for use with http.Server or
// httptest.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.tables); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
