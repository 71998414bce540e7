// Package mockjobs runs a fake job system for trying statusbar locally.
//
// It serves a job page at /jobs and a status endpoint per job at
// /progress/{id}/. Each job runs for 20-60 seconds; once it has reported
// 100 it drops off the page and a new job takes its place.
package mockjobs

import (
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// linger keeps a finished job listed long enough for pollers to see 100.
const linger = 5 * time.Second

var stages = []string{"Queued", "Downloading", "Processing", "Uploading"}

type mockJob struct {
	id       int
	started  time.Time
	duration time.Duration
}

func (j *mockJob) percentage(now time.Time) int {
	elapsed := now.Sub(j.started)
	if elapsed >= j.duration {
		return 100
	}
	if elapsed < 0 {
		return 0
	}
	return int(elapsed * 100 / j.duration)
}

func (j *mockJob) status(pct int) string {
	if pct >= 100 {
		return "Done"
	}
	return stages[pct*len(stages)/100]
}

// Server is the fake job system.
type Server struct {
	mu     sync.Mutex
	jobs   []*mockJob
	nextID int
	size   int
	logger *slog.Logger
}

// New creates a Server keeping size jobs running.
func New(size int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{nextID: 100, size: size, logger: logger}
	s.mu.Lock()
	s.refill(time.Now())
	s.mu.Unlock()
	return s
}

// refill replaces jobs that finished more than linger ago. Caller holds mu.
func (s *Server) refill(now time.Time) {
	kept := s.jobs[:0]
	for _, j := range s.jobs {
		if now.Sub(j.started) < j.duration+linger {
			kept = append(kept, j)
		} else {
			s.logger.Info("job retired", "job", j.id)
		}
	}
	s.jobs = kept

	for len(s.jobs) < s.size {
		j := &mockJob{
			id: s.nextID,
			// a short queue wait keeps the first polls at 0
			started:  now.Add(time.Duration(rand.Intn(3)) * time.Second),
			duration: time.Duration(20+rand.Intn(41)) * time.Second,
		}
		s.nextID++
		s.jobs = append(s.jobs, j)
		s.logger.Info("job started", "job", j.id, "duration", j.duration.String())
	}
}

// Handler returns the routes of the fake job system.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/jobs", s.handlePage)
	r.Get("/progress/{id}/", s.handleProgress)
	return r
}

// ListenAndServe serves the fake job system on addr.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

var pageTemplate = template.Must(template.New("jobs").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Running jobs</title>
<style>
  body { font-family: sans-serif; max-width: 40rem; margin: 2rem auto; }
  .job { margin-bottom: 1.5rem; }
  .track { background: #eee; height: 1rem; border-radius: 4px; overflow: hidden; }
  .progressbar { background: #3b82f6; height: 100%; transition: width 0.5s; }
</style>
</head>
<body>
<h1>Running jobs</h1>
{{range .}}<div class="job">
  <span class="starting" data-job="{{.ID}}">Job #{{.ID}}</span>
  <div class="track"><div class="progressbar" style="width: {{.Width}}"></div></div>
  <span class="progressbar-indicator">{{.Label}}</span>
  <span class="statuslabel">{{.Status}}</span>
</div>
{{else}}<p>No jobs running.</p>
{{end}}</body>
</html>
`))

type pageJob struct {
	ID     int
	Width  string
	Label  string
	Status string
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	now := time.Now()

	s.mu.Lock()
	s.refill(now)
	var jobs []pageJob
	for _, j := range s.jobs {
		pct := j.percentage(now)
		// completed jobs wait for the linger period off the page
		if pct >= 100 {
			continue
		}
		jobs = append(jobs, pageJob{
			ID:     j.id,
			Width:  fmt.Sprintf("%d%%", pct),
			Label:  fmt.Sprintf("%d%%", pct),
			Status: j.status(pct),
		})
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, jobs); err != nil {
		s.logger.Error("failed to render page", "error", err)
	}
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}

	// simulate small latency variance
	time.Sleep(time.Duration(20+rand.Intn(80)) * time.Millisecond)

	now := time.Now()
	s.mu.Lock()
	var found *mockJob
	for _, j := range s.jobs {
		if j.id == id {
			found = j
			break
		}
	}
	s.mu.Unlock()

	if found == nil {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}

	pct := found.percentage(now)
	resp := map[string]any{
		"percentage": pct,
		"status":     found.status(pct),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("failed to write response", "error", err)
	}
}
