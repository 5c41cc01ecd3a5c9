package http

import (
	"errors"
	"net/http"

	"github.com/arsenis-cmd/BudgetBot/internal/analytics"
	"github.com/arsenis-cmd/BudgetBot/internal/forecast"
	"github.com/arsenis-cmd/BudgetBot/internal/log"
)

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	g, err := parseGranularity(q.Get("granularity"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	at, err := parseDateParam(q.Get("date"), s.now(), s.loc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sum, err := s.deps.Summaries.SummarizeAt(r.Context(), userIDFrom(r), at, g)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSummaryDTO(sum))
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Insights.Forecast(r.Context(), userIDFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Insights.Recommend(r.Context(), userIDFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleInsights returns whichever half succeeded, with the other half's
// failure described in place.
func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Insights.Insights(r.Context(), userIDFrom(r))
	if err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Insights unavailable", log.FieldError, err)
		writeError(w, r, firstCollaboratorError(res, err))
		return
	}

	out := insightsResponse{Forecast: res.Forecast, Recommendations: res.Recommendations}
	if res.ForecastErr != nil {
		e := newErrorBody(res.ForecastErr)
		out.ForecastError = &e
	}
	if res.RecommendErr != nil {
		e := newErrorBody(res.RecommendErr)
		out.RecommendationsError = &e
	}
	writeJSON(w, http.StatusOK, out)
}

// firstCollaboratorError keeps the status of the forecast failure so a joined
// error does not mix 502 and 503.
func firstCollaboratorError(res forecast.Insights, joined error) error {
	if res.ForecastErr != nil {
		return res.ForecastErr
	}
	if joined != nil {
		return joined
	}
	return errors.New("insights unavailable")
}

var _ SummaryService = (*analytics.Summarizer)(nil)
var _ InsightService = (*forecast.Orchestrator)(nil)
