package server

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"roastline-hq/roastline/pkg/limits/budget"
	"roastline-hq/roastline/pkg/settings"
)

// AdminLogLimit is how many roast log rows the admin view shows.
const AdminLogLimit = 50

// settingsFormPrefix marks setting fields in the admin form.
const settingsFormPrefix = "config_"

// requireAdmin enforces HTTP basic auth against the admin password. The
// username is ignored.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, password, ok := r.BasicAuth()
		expected := s.currentAdminPassword()
		if !ok || subtle.ConstantTimeCompare([]byte(password), []byte(expected)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="Admin"`)
			writeError(w, http.StatusUnauthorized, "Admin access required.", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type adminSetting struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Description string    `json:"description"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type adminMonth struct {
	Month      string  `json:"month"`
	SpentCents float64 `json:"spent_cents"`
	RoastCount int64   `json:"roast_count"`
}

type adminLog struct {
	ID           int64     `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	InputChars   int       `json:"input_chars"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	CostCents    float64   `json:"cost_cents"`
	Model        string    `json:"model"`
	Mode         string    `json:"mode"`
	Severity     string    `json:"severity"`
	Language     string    `json:"language"`
	Score        *int      `json:"score"`
	ShareID      string    `json:"share_id"`
	IsPublic     bool      `json:"is_public"`
}

type adminBudget struct {
	Month          string  `json:"month"`
	SpentCents     float64 `json:"spent_cents"`
	LimitCents     float64 `json:"limit_cents"`
	RemainingCents float64 `json:"remaining_cents"`
	UsagePercent   float64 `json:"usage_percent"`
	ProjectedCents float64 `json:"projected_cents"`
	RoastCount     int64   `json:"roast_count"`
}

func newAdminBudget(st *budget.Status) adminBudget {
	return adminBudget{
		Month:          st.Month,
		SpentCents:     st.SpentCents,
		LimitCents:     st.LimitCents,
		RemainingCents: st.RemainingCents,
		UsagePercent:   st.UsagePercent,
		ProjectedCents: st.ProjectedCents,
		RoastCount:     st.RoastCount,
	}
}

type adminView struct {
	Settings []adminSetting `json:"settings"`
	Budget   adminBudget    `json:"budget"`
	History  []adminMonth   `json:"history"`
	Logs     []adminLog     `json:"logs"`
}

func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stored, err := s.deps.Settings.All(ctx)
	if err != nil {
		s.adminFailure(w, r, "settings", err)
		return
	}
	status, err := s.deps.Budget.Status(ctx)
	if err != nil {
		s.adminFailure(w, r, "budget", err)
		return
	}
	history, err := s.deps.Budget.MonthlyHistory(ctx)
	if err != nil {
		s.adminFailure(w, r, "history", err)
		return
	}
	logs, err := s.deps.Roasts.Latest(ctx, AdminLogLimit)
	if err != nil {
		s.adminFailure(w, r, "roast log", err)
		return
	}

	view := adminView{
		Settings: make([]adminSetting, 0, len(stored)),
		Budget:   newAdminBudget(status),
		History:  make([]adminMonth, 0, len(history)),
		Logs:     make([]adminLog, 0, len(logs)),
	}
	for _, st := range stored {
		view.Settings = append(view.Settings, adminSetting(st))
	}
	for _, m := range history {
		view.History = append(view.History, adminMonth{Month: m.Month, SpentCents: m.SpentCents, RoastCount: m.RoastCount})
	}
	for _, rec := range logs {
		view.Logs = append(view.Logs, adminLog{
			ID:           rec.ID,
			CreatedAt:    rec.CreatedAt,
			InputChars:   rec.InputChars,
			InputTokens:  rec.InputTokens,
			OutputTokens: rec.OutputTokens,
			CostCents:    rec.CostCents,
			Model:        rec.Model,
			Mode:         rec.Mode,
			Severity:     rec.Severity,
			Language:     rec.Language,
			Score:        rec.Score,
			ShareID:      rec.ShareID,
			IsPublic:     rec.IsPublic,
		})
	}

	writeJSON(w, http.StatusOK, view)
}

func (s *Server) adminFailure(w http.ResponseWriter, r *http.Request, what string, err error) {
	s.logger.ErrorContext(r.Context(), "failed to load admin view", "section", what, "error", err)
	writeError(w, http.StatusInternalServerError, messageInternal, "")
}

type settingsResult struct {
	Updated []string          `json:"updated"`
	Ignored []string          `json:"ignored,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// handleAdminSettings applies every config_<key> form field whose key is a
// known setting. Unknown keys are reported and skipped.
func (s *Server) handleAdminSettings(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid form.", "")
		return
	}

	result := settingsResult{Updated: []string{}}
	for field, values := range r.PostForm {
		key, ok := strings.CutPrefix(field, settingsFormPrefix)
		if !ok || len(values) == 0 {
			continue
		}
		if _, known := settings.Lookup(key); !known {
			result.Ignored = append(result.Ignored, key)
			continue
		}

		err := s.deps.Settings.Set(r.Context(), key, values[0])
		switch {
		case err == nil:
			result.Updated = append(result.Updated, key)
		case errors.Is(err, settings.ErrUnknownKey):
			result.Ignored = append(result.Ignored, key)
		default:
			if result.Errors == nil {
				result.Errors = make(map[string]string)
			}
			result.Errors[key] = err.Error()
		}
	}

	code := http.StatusOK
	if len(result.Errors) > 0 {
		code = http.StatusUnprocessableEntity
	}
	s.logger.InfoContext(r.Context(), "admin settings updated",
		"updated", result.Updated,
		"ignored", result.Ignored,
		"failed", len(result.Errors),
	)
	writeJSON(w, code, result)
}
