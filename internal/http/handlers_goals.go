package http

import (
	"net/http"

	"github.com/arsenis-cmd/BudgetBot/internal/services"
)

func (s *Server) handleSetGoal(w http.ResponseWriter, r *http.Request) {
	var req setGoalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := req.toInput(userIDFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	g, err := s.deps.Goals.Set(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newGoalDTO(g))
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := s.deps.Goals.List(r.Context(), userIDFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	activeOnly := r.URL.Query().Get("active") == "true"
	out := make([]goalDTO, 0, len(goals))
	for _, g := range goals {
		if activeOnly && !g.Active {
			continue
		}
		out = append(out, newGoalDTO(g))
	}
	writeJSON(w, http.StatusOK, listResponse[goalDTO]{Items: out})
}

func (s *Server) handleDeactivateGoal(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Goals.Deactivate(r.Context(), userIDFrom(r), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

var _ GoalService = (*services.GoalService)(nil)
