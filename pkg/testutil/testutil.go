// Package testutil provides test helpers shared by pitchline packages.
package testutil

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/pitchline/pkg/logger"
)

// TestLogger creates a logger that writes to the test output and installs
// it as the global logger until the test completes.
func TestLogger(t *testing.T) *zap.Logger {
	l := zaptest.NewLogger(t)
	prev := logger.Get()
	logger.Set(l)
	t.Cleanup(func() { logger.Set(prev) })
	return l
}

// TestContext creates a test context with a 30-second timeout.
// The caller must call the returned cancel function to avoid leaks.
func TestContext(_ *testing.T) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// BootstrapBody is a trimmed bootstrap-static response: four row arrays plus
// scalar and object members that are not tables.
const BootstrapBody = `{
  "events": [
    {"id": 1, "name": "Gameweek 1", "deadline_time": "2024-08-16T17:30:00Z", "finished": true, "chip_plays": [{"chip_name": "bboost", "num_played": 1}]},
    {"id": 2, "name": "Gameweek 2", "deadline_time": "2024-08-24T10:00:00Z", "finished": false, "chip_plays": []}
  ],
  "game_settings": {"league_join_private_max": 20},
  "phases": [{"id": 1, "name": "Overall", "start_event": 1, "stop_event": 38}],
  "teams": [
    {"id": 1, "code": 3, "name": "Arsenal", "short_name": "ARS", "unavailable": false, "strength": 4},
    {"id": 2, "code": 7, "name": "Aston Villa", "short_name": "AVL", "unavailable": false, "strength": 3},
    {"id": 3, "code": 91, "name": "Bournemouth", "short_name": "BOU", "unavailable": true, "strength": 3}
  ],
  "total_players": 11000000,
  "elements": [
    {"id": 1, "web_name": "Raya", "team": 1, "now_cost": 55, "form": "4.5", "in_dreamteam": false, "news": ""}
  ]
}`

// FixturesBody is a fixtures response; the body itself is the row array.
const FixturesBody = `[
  {"id": 1, "event": 1, "finished": true, "team_h": 1, "team_a": 2, "team_h_score": 2, "team_a_score": 0, "stats": [{"identifier": "goals_scored"}]},
  {"id": 2, "event": null, "finished": false, "team_h": 3, "team_a": 1, "team_h_score": null, "team_a_score": null, "stats": []}
]`

// FPLServer is an httptest server answering the FPL endpoints under /api/.
type FPLServer struct {
	*httptest.Server

	mu    sync.Mutex
	hits  map[string]int
	fails map[string]int
}

// NewFPLServer starts a server serving BootstrapBody and FixturesBody. It is
// closed when the test completes.
func NewFPLServer(t *testing.T) *FPLServer {
	s := &FPLServer{hits: map[string]int{}, fails: map[string]int{}}
	mux := http.NewServeMux()
	s.handle(mux, "bootstrap-static", BootstrapBody)
	s.handle(mux, "fixtures", FixturesBody)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *FPLServer) handle(mux *http.ServeMux, endpoint, body string) {
	for _, path := range []string{"/api/" + endpoint, "/api/" + endpoint + "/"} {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			s.mu.Lock()
			s.hits[endpoint]++
			status := s.fails[endpoint]
			s.mu.Unlock()

			if status != 0 {
				http.Error(w, http.StatusText(status), status)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, body)
		})
	}
}

// BaseURL returns the API root to configure a source with.
func (s *FPLServer) BaseURL() string {
	return s.URL + "/api/"
}

// Hits returns how often endpoint was requested.
func (s *FPLServer) Hits(endpoint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[endpoint]
}

// FailWith makes endpoint answer with status until reset with 0.
func (s *FPLServer) FailWith(endpoint string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fails[endpoint] = status
}
