package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"ledgerly/internal/core"
	applog "ledgerly/internal/log"
)

type goalRequest struct {
	MinGoalAmount any `json:"minGoalAmount"`
	MaxGoalAmount any `json:"maxGoalAmount"`
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	g, err := s.svc.Goals.Get(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err, applog.OpRead)
		return
	}
	NewResponse().JSON(g).Write(w)
}

func (s *Server) handleSetGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, applog.OpUpdate)
		return
	}
	minGoal, err := parseNonNegative(req.MinGoalAmount)
	if err != nil {
		writeError(w, r, err, applog.OpUpdate)
		return
	}
	maxGoal, err := parseNonNegative(req.MaxGoalAmount)
	if err != nil {
		writeError(w, r, err, applog.OpUpdate)
		return
	}
	g, err := s.svc.Goals.Set(r.Context(), userID(r), core.MonthlyGoal{MinGoalAmount: minGoal, MaxGoalAmount: maxGoal})
	if err != nil {
		writeError(w, r, err, applog.OpUpdate)
		return
	}
	NewResponse().JSON(g).Write(w)
}

func (s *Server) handleBudget(w http.ResponseWriter, r *http.Request) {
	p, err := ParseMonthParams(r.URL.Query())
	if err != nil {
		writeError(w, r, err, applog.OpRead)
		return
	}
	b, err := s.svc.Budgets.Snapshot(r.Context(), userID(r), p.Year, p.Month)
	if err != nil {
		writeError(w, r, err, applog.OpRead)
		return
	}
	NewResponse().JSON(b).Write(w)
}

// handleBudgetStream pushes the month's budget as server-sent events, once
// when every source has loaded and again after each change.
func (s *Server) handleBudgetStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := ParseMonthParams(r.URL.Query())
	if err != nil {
		writeError(w, r, err, applog.OpWatch)
		return
	}
	watch, err := s.svc.Budgets.Watch(ctx, userID(r), p.Year, p.Month)
	if err != nil {
		writeError(w, r, err, applog.OpWatch)
		return
	}
	defer watch.Cancel()

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		applog.FromContext(ctx).WarnContext(ctx, "Streaming unsupported", "error", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-watch.C:
			if !ok {
				return
			}
			event, payload := "budget", any(u.Budget)
			if u.Err != nil {
				applog.FromContext(ctx).WarnContext(ctx, "Budget recomputation failed",
					applog.NewFields().WithError(u.Err).WithPeriod(p.Year, p.Month).ToSlice()...)
				event, payload = "error", errorBody{Error: "budget unavailable"}
			}
			if err := writeEvent(w, event, payload); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

// handleStatistics reports over ?from&to, or the current month without them.
func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	rng, err := ParseRangeParams(r.URL.Query())
	if err != nil {
		writeError(w, r, err, applog.OpRead)
		return
	}
	if rng == nil {
		p, err := ParseMonthParams(r.URL.Query())
		if err != nil {
			writeError(w, r, err, applog.OpRead)
			return
		}
		month := core.MonthRange(p.Year, p.Month)
		rng = &month
	}
	stats, err := s.svc.Budgets.Statistics(r.Context(), userID(r), *rng)
	if err != nil {
		writeError(w, r, err, applog.OpRead)
		return
	}
	NewResponse().JSON(stats).Write(w)
}
