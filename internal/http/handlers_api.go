package http

import (
	"fmt"
	"net/http"
	"time"

	"waterlog/internal/core"
	"waterlog/internal/locale"
)

type loginRequest struct {
	Code        string `json:"code" validate:"required"`
	RedirectURI string `json:"redirectUri"`
}

type loginResponse struct {
	Token string   `json:"token"`
	User  userView `json:"user"`
}

type userView struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	PictureURL  string `json:"pictureUrl,omitempty"`
	Language    string `json:"language"`
	Timezone    string `json:"timezone"`
	WaterTarget int64  `json:"waterTarget"`
}

func newUserView(u core.User) userView {
	return userView{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		PictureURL:  u.PictureURL,
		Language:    u.Language,
		Timezone:    u.Timezone,
		WaterTarget: u.WaterTarget,
	}
}

// handleLogin exchanges a platform authorization code for an API token,
// registering the account on first login.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	profile, err := s.login.ExchangeLogin(r.Context(), req.Code, req.RedirectURI)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "login exchange failed")
		return
	}

	user, err := s.bot.RegisterProfile(r.Context(), *profile, s.now())
	if err != nil {
		respondDomainError(w, err)
		return
	}

	token, err := s.auth.Issue(user)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, loginResponse{Token: token, User: newUserView(user)})
}

type statusResponse struct {
	DayKey        string `json:"dayKey"`
	TotalDrank    int64  `json:"totalDrank"`
	Target        int64  `json:"target"`
	Remaining     int64  `json:"remaining"`
	TargetReached bool   `json:"targetReached"`
}

func newStatusResponse(st core.DayStatus) statusResponse {
	return statusResponse{
		DayKey:        st.DayKey,
		TotalDrank:    st.TotalDrank,
		Target:        st.Target,
		Remaining:     st.Remaining,
		TargetReached: st.TargetReached(),
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.ledger.TodayStatus(r.Context(), userID(r.Context()), s.now())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newStatusResponse(status))
}

type intakeRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

func (s *Server) handleIntake(w http.ResponseWriter, r *http.Request) {
	var req intakeRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	id := userID(r.Context())
	if _, err := s.ledger.RecordIntake(r.Context(), id, req.Amount, s.now()); err != nil {
		respondDomainError(w, err)
		return
	}

	status, err := s.ledger.TodayStatus(r.Context(), id, s.now())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, newStatusResponse(status))
}

type targetRequest struct {
	Target int64 `json:"target" validate:"required,gt=0"`
}

func (s *Server) handleTarget(w http.ResponseWriter, r *http.Request) {
	var req targetRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	id := userID(r.Context())
	if err := s.ledger.SetTarget(r.Context(), id, req.Target); err != nil {
		respondDomainError(w, err)
		return
	}

	status, err := s.ledger.TodayStatus(r.Context(), id, s.now())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newStatusResponse(status))
}

type languageRequest struct {
	Language string `json:"language" validate:"required,oneof=zh-TW ja"`
}

func (s *Server) handleLanguage(w http.ResponseWriter, r *http.Request) {
	var req languageRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	table := locale.Resolve(req.Language)
	id := userID(r.Context())
	if err := s.users.SetLanguage(r.Context(), id, string(table.Code), table.Timezone); err != nil {
		respondDomainError(w, err)
		return
	}

	user, err := s.users.GetUser(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newUserView(user))
}

type dayView struct {
	DayKey     string `json:"dayKey"`
	TotalDrank int64  `json:"totalDrank"`
	HasRecord  bool   `json:"hasRecord"`
}

type summaryResponse struct {
	Days []dayView `json:"days"`
}

func newSummaryResponse(days []core.DaySummary) summaryResponse {
	out := summaryResponse{Days: make([]dayView, 0, len(days))}
	for _, d := range days {
		v := dayView{DayKey: d.DayKey}
		if d.Record != nil {
			v.TotalDrank = d.Record.TotalDrank
			v.HasRecord = true
		}
		out.Days = append(out.Days, v)
	}
	return out
}

// handleWeekSummary returns the week containing the date parameter,
// Sunday first. whole=true includes days after the reference.
func (s *Server) handleWeekSummary(w http.ResponseWriter, r *http.Request) {
	reference, ok := s.parseDateParam(r, "date")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid date parameter")
		return
	}
	wholeWeek := r.URL.Query().Get("whole") == "true"

	days, err := s.projector.WeekSummary(r.Context(), userID(r.Context()), reference, wholeWeek)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newSummaryResponse(days))
}

func (s *Server) handleMonthSummary(w http.ResponseWriter, r *http.Request) {
	year, month, ok := s.parseYearMonth(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid year or month parameter")
		return
	}

	id := userID(r.Context())
	cacheable := monthClosed(year, month, s.now())
	cacheKey := fmt.Sprintf("%s|%d-%02d", id, year, int(month))
	if cacheable {
		if cached, hit := s.monthCache.Get(cacheKey); hit {
			respondJSON(w, http.StatusOK, cached)
			return
		}
	}

	days, err := s.projector.MonthSummary(r.Context(), id, year, month, s.now())
	if err != nil {
		respondDomainError(w, err)
		return
	}

	resp := newSummaryResponse(days)
	if cacheable {
		s.monthCache.Set(cacheKey, resp)
	}
	respondJSON(w, http.StatusOK, resp)
}

// monthClosed reports whether the month ended long enough ago that no
// timezone can still be inside it.
func monthClosed(year int, month time.Month, now time.Time) bool {
	end := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return now.Sub(end) > 48*time.Hour
}
