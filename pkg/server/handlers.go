package server

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"time"

	"roastline-hq/roastline/pkg/identity"
	"roastline-hq/roastline/pkg/limits"
	"roastline-hq/roastline/pkg/roast"
	"roastline-hq/roastline/pkg/roastlog"
)

// RemainingHeader reports the caller's remaining roasts for today.
const RemainingHeader = "X-RateLimit-Remaining"

// RecentLimit is the size of the public feed.
const RecentLimit = 10

const (
	messageInternal   = "Something went wrong."
	messageNotFound   = "Roast not found."
	messageBadRequest = "Request body must be JSON with a code field."

	messageBookkeeping = "Your roast is ready, but we could not record it."
)

// roastRequest is the POST /api/roast body.
type roastRequest struct {
	Code     string `json:"code"`
	Mode     string `json:"mode"`
	Severity string `json:"severity"`
	IsPublic bool   `json:"is_public"`
}

type roastResponse struct {
	ShareID   string  `json:"share_id,omitempty"`
	Roast     string  `json:"roast"`
	Score     *int    `json:"score"`
	Model     string  `json:"model"`
	Mode      string  `json:"mode"`
	Severity  string  `json:"severity"`
	Language  string  `json:"language"`
	CostCents float64 `json:"cost_cents"`
	Remaining int     `json:"remaining"`
	Error     string  `json:"error,omitempty"`
}

type sharedRoast struct {
	ShareID   string    `json:"share_id"`
	CreatedAt time.Time `json:"created_at"`
	Roast     string    `json:"roast"`
	Preview   string    `json:"preview"`
	Score     *int      `json:"score"`
	Mode      string    `json:"mode"`
	Severity  string    `json:"severity"`
	Language  string    `json:"language"`
	Code      string    `json:"code,omitempty"`
}

type feedItem struct {
	ShareID   string    `json:"share_id"`
	CreatedAt time.Time `json:"created_at"`
	Preview   string    `json:"preview"`
	Score     *int      `json:"score"`
	Mode      string    `json:"mode"`
	Language  string    `json:"language"`
}

type errorResponse struct {
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
}

// handleRoast runs one roast through the gate. JSON bodies are the API
// form; url-encoded forms (is_public=on) are accepted for plain HTML posts.
func (s *Server) handleRoast(w http.ResponseWriter, r *http.Request) {
	body, err := decodeRoastRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, messageBadRequest, "")
		return
	}

	mode, _ := roast.ParseMode(body.Mode)
	severity, _ := roast.ParseSeverity(body.Severity)
	id := s.deps.Resolver.FromRequest(r)

	outcome, err := s.deps.Gate.Roast(r.Context(), limits.Request{
		Code:     body.Code,
		Mode:     mode,
		Severity: severity,
		IsPublic: body.IsPublic,
		Identity: id,
	})

	var denied *limits.PolicyDenied
	var reviewErr *limits.ReviewError
	switch {
	case errors.As(err, &denied):
		s.setRemaining(w, r, id)
		writeError(w, denialStatus(denied.Stage), denied.Reason, string(denied.Stage))
		return

	case errors.As(err, &reviewErr):
		writeError(w, http.StatusBadGateway, reviewErr.Error(), string(limits.StageReview))
		return

	case err != nil && outcome == nil:
		s.logger.ErrorContext(r.Context(), "roast failed", "error", err)
		writeError(w, http.StatusInternalServerError, messageInternal, "")
		return
	}

	code := http.StatusOK
	var bookkeeping string
	if err != nil {
		// The review succeeded but a write behind it did not; the gate has
		// logged the loss. The caller still gets the text.
		code = http.StatusInternalServerError
		bookkeeping = messageBookkeeping
		if remaining, rerr := s.deps.Gate.RemainingRoasts(r.Context(), id); rerr == nil {
			outcome.Remaining = remaining
		}
	}

	rec := outcome.Record
	w.Header().Set(RemainingHeader, strconv.Itoa(outcome.Remaining))
	writeJSON(w, code, roastResponse{
		ShareID:   rec.ShareID,
		Roast:     rec.RoastContent,
		Score:     rec.Score,
		Model:     rec.Model,
		Mode:      rec.Mode,
		Severity:  rec.Severity,
		Language:  rec.Language,
		CostCents: rec.CostCents,
		Remaining: outcome.Remaining,
		Error:     bookkeeping,
	})
}

func decodeRoastRequest(r *http.Request) (*roastRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" || mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(1 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return nil, err
		}
		return &roastRequest{
			Code:     r.FormValue("code"),
			Mode:     r.FormValue("mode"),
			Severity: r.FormValue("severity"),
			IsPublic: r.FormValue("is_public") == "on" || r.FormValue("is_public") == "true",
		}, nil
	}

	var body roastRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, err
	}
	return &body, nil
}

func (s *Server) setRemaining(w http.ResponseWriter, r *http.Request, id identity.Identity) {
	remaining, err := s.deps.Gate.RemainingRoasts(r.Context(), id)
	if err != nil {
		return
	}
	w.Header().Set(RemainingHeader, strconv.Itoa(remaining))
}

// denialStatus maps the refusing stage to an HTTP status.
func denialStatus(stage limits.Stage) int {
	switch stage {
	case limits.StageKillSwitch:
		return http.StatusForbidden
	case limits.StageValidation:
		return http.StatusUnprocessableEntity
	case limits.StageBudget:
		return http.StatusPaymentRequired
	case limits.StageRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusForbidden
	}
}

func (s *Server) handleGetRoast(w http.ResponseWriter, r *http.Request) {
	rec, err := s.deps.Roasts.GetByShareID(r.Context(), r.PathValue("share_id"))
	if errors.Is(err, roastlog.ErrNotFound) {
		writeError(w, http.StatusNotFound, messageNotFound, "")
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "failed to load roast", "error", err)
		writeError(w, http.StatusInternalServerError, messageInternal, "")
		return
	}

	id := s.deps.Resolver.FromRequest(r)
	s.setRemaining(w, r, id)
	writeJSON(w, http.StatusOK, sharedRoast{
		ShareID:   rec.ShareID,
		CreatedAt: rec.CreatedAt,
		Roast:     rec.RoastContent,
		Preview:   roast.Preview(rec.RoastContent, roast.DefaultPreviewLength),
		Score:     rec.Score,
		Mode:      rec.Mode,
		Severity:  rec.Severity,
		Language:  rec.Language,
		Code:      rec.CodeContent,
	})
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	records, err := s.deps.Roasts.Recent(r.Context(), RecentLimit)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "failed to load recent roasts", "error", err)
		writeError(w, http.StatusInternalServerError, messageInternal, "")
		return
	}

	items := make([]feedItem, 0, len(records))
	for _, rec := range records {
		items = append(items, feedItem{
			ShareID:   rec.ShareID,
			CreatedAt: rec.CreatedAt,
			Preview:   roast.Preview(rec.RoastContent, roast.DefaultPreviewLength),
			Score:     rec.Score,
			Mode:      rec.Mode,
			Language:  rec.Language,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"roasts": items})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, message, stage string) {
	writeJSON(w, code, errorResponse{Error: message, Stage: stage})
}
