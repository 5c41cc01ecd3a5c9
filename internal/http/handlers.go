package http

import (
	"context"
	"net/http"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arsenis-cmd/BudgetBot/internal/log"
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady runs every readiness check concurrently.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	names := make([]string, 0, len(s.deps.Checks))
	for name := range s.deps.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]string, len(names))
	var g errgroup.Group
	for i, name := range names {
		check := s.deps.Checks[name]
		g.Go(func() error {
			if err := check(ctx); err != nil {
				results[i] = err.Error()
				return err
			}
			results[i] = "ok"
			return nil
		})
	}
	err := g.Wait()

	body := readyResponse{Status: "ready", Checks: make(map[string]string, len(names))}
	for i, name := range names {
		body.Checks[name] = results[i]
	}
	if err != nil {
		body.Status = "not ready"
		log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
		writeJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.deps.Transactions.Categories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]categoryDTO, len(cats))
	for i, c := range cats {
		out[i] = categoryDTO{ID: c.ID, Name: c.Name}
	}
	writeJSON(w, http.StatusOK, listResponse[categoryDTO]{Items: out})
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query(), 50, 500)
	if err != nil {
		writeError(w, r, err)
		return
	}
	alerts, err := s.deps.Transactions.Alerts(r.Context(), userIDFrom(r), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]alertDTO, len(alerts))
	for i, a := range alerts {
		out[i] = newAlertDTO(a)
	}
	writeJSON(w, http.StatusOK, listResponse[alertDTO]{Items: out})
}
