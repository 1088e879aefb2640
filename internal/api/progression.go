package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ritim-app/ritim/internal/app/engagement"
	"github.com/ritim-app/ritim/internal/domain"
)

// ─── Progression API (/api/users/{userID}/*) ────────────────────────────────

// service resolves the aggregate for the userID path parameter. It writes
// the error response and returns false on failure.
func (s *Server) service(w http.ResponseWriter, r *http.Request) (*engagement.Service, bool) {
	svc, err := s.users.Get(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeFailure(w, r, err)
		return nil, false
	}
	return svc, true
}

// decodeBody decodes an optional JSON body into v. An empty body is fine.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// respond writes a mutation result.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, out domain.Outcome, err error) {
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleProgression(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.service(w, r)
	if !ok {
		return
	}
	view, err := svc.View(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// --- completions ---

type completionRequest struct {
	Completed *bool `json:"completed"`
	domain.DayTally
}

func (c completionRequest) completed() bool {
	return c.Completed == nil || *c.Completed
}

func (s *Server) handleTaskComplete(w http.ResponseWriter, r *http.Request) {
	var req completionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	svc, ok := s.service(w, r)
	if !ok {
		return
	}
	out, err := svc.TrackTaskCompletion(r.Context(), req.completed(), req.DayTally)
	s.respond(w, r, out, err)
}

func (s *Server) handleHabitComplete(w http.ResponseWriter, r *http.Request) {
	var req completionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	svc, ok := s.service(w, r)
	if !ok {
		return
	}
	out, err := svc.TrackHabitCompletion(r.Context(), chi.URLParam(r, "habitID"), req.completed(), req.DayTally)
	s.respond(w, r, out, err)
}

func (s *Server) handlePomodoro(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.service(w, r)
	if !ok {
		return
	}
	out, err := svc.TrackPomodoroSession(r.Context())
	s.respond(w, r, out, err)
}

// --- xp ---

type xpRequest struct {
	Amount int64  `json:"amount"`
	Source string `json:"source"`
}

func (s *Server) handleAwardXP(w http.ResponseWriter, r *http.Request) {
	var req xpRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	svc, ok := s.service(w, r)
	if !ok {
		return
	}
	out, err := svc.AwardXP(r.Context(), req.Amount, req.Source)
	s.respond(w, r, out, err)
}

func (s *Server) handleSpendXP(w http.ResponseWriter, r *http.Request) {
	var req xpRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	svc, ok := s.service(w, r)
	if !ok {
		return
	}
	out, err := svc.SpendXP(r.Context(), req.Amount)
	s.respond(w, r, out, err)
}

type weeklySummaryRequest struct {
	CompletionPct float64 `json:"completion_pct"`
}

func (s *Server) handleWeeklySummary(w http.ResponseWriter, r *http.Request) {
	var req weeklySummaryRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	svc, ok := s.service(w, r)
	if !ok {
		return
	}
	out, err := svc.TrackWeeklySummary(r.Context(), req.CompletionPct)
	s.respond(w, r, out, err)
}

// --- weekly pass ---

type passStatus struct {
	WeekKey string             `json:"week_key"`
	Pass    domain.WeeklyPass  `json:"pass"`
	Use     domain.Eligibility `json:"use"`
	Undo    domain.Eligibility `json:"undo"`
}

func (s *Server) handlePassStatus(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.service(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	p, err := svc.Snapshot(ctx)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	use, err := svc.CanUseWeeklyPass(ctx)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	undo, err := svc.CanUndoWeeklyPass(ctx)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	view, err := svc.View(ctx)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, passStatus{WeekKey: view.WeekKey, Pass: p.WeeklyPass, Use: use, Undo: undo})
}

func (s *Server) handlePassUse(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.service(w, r)
	if !ok {
		return
	}
	out, err := svc.UseWeeklyPass(r.Context())
	s.respond(w, r, out, err)
}

func (s *Server) handlePassUndo(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.service(w, r)
	if !ok {
		return
	}
	out, err := svc.UndoWeeklyPass(r.Context())
	s.respond(w, r, out, err)
}

// --- achievements ---

type achievementView struct {
	domain.AchievementDef
	Unlocked bool                       `json:"unlocked"`
	Progress domain.AchievementProgress `json:"progress"`
}

func (s *Server) handleAchievements(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.service(w, r)
	if !ok {
		return
	}
	p, err := svc.Snapshot(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	facts, err := svc.Facts(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	catalog := engagement.Catalog()
	out := make([]achievementView, 0, len(catalog))
	for _, def := range catalog {
		unlocked := p.HasAchievement(def.ID)
		progress, _ := engagement.Progress(def.ID, facts, unlocked)
		out = append(out, achievementView{AchievementDef: def, Unlocked: unlocked, Progress: progress})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"achievements": out,
		"unlocked":     len(p.Achievements),
		"total":        len(catalog),
	})
}

// --- notifications ---

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		s.writeFailure(w, r, domain.ErrInvalidUserID)
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("limit must be 1..100, got %q", v))
			return
		}
		limit = n
	}
	pending, err := s.notifier.Pending(r.Context(), userID, limit)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if pending == nil {
		pending = []domain.Notification{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": pending})
}

func (s *Server) handleNotificationShown(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid notification id")
		return
	}
	if err := s.notifier.MarkShown(r.Context(), id); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
