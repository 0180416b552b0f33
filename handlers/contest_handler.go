package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/Dosada05/contest-system/models"
	"github.com/Dosada05/contest-system/services"
)

type ContestHandler struct {
	contestService services.ContestService
	now            func() time.Time
}

// NewContestHandler takes the clock the driver endpoints read "today" from.
func NewContestHandler(cs services.ContestService, now func() time.Time) *ContestHandler {
	if now == nil {
		now = time.Now
	}
	return &ContestHandler{
		contestService: cs,
		now:            now,
	}
}

// ListHandler handles GET /contests?state=started
func (h *ContestHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	var state *models.State
	if raw := r.URL.Query().Get("state"); raw != "" {
		s := models.State(raw)
		if !s.Valid() {
			failedValidationResponse(w, r, map[string]string{"state": "must be one of created, started, finished"})
			return
		}
		state = &s
	}

	contests, err := h.contestService.ListContests(r.Context(), state)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"contests": contests}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetHandler handles GET /contests/{contestID}: the full bracket view.
func (h *ContestHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "contestID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	view, err := h.contestService.GetBracketView(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeRawJSON(w, http.StatusOK, view, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// CurrentRoundHandler handles GET /contests/{contestID}/rounds/current
func (h *ContestHandler) CurrentRoundHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "contestID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	round, err := h.contestService.CurrentRound(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if round == nil {
		notFoundResponse(w, r)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"round": round}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// StartHandler handles POST /contests/{contestID}/start
func (h *ContestHandler) StartHandler(w http.ResponseWriter, r *http.Request) {
	h.drive(w, r, h.contestService.StartContest)
}

// AdvanceHandler handles POST /contests/{contestID}/advance
func (h *ContestHandler) AdvanceHandler(w http.ResponseWriter, r *http.Request) {
	h.drive(w, r, h.contestService.AdvanceContest)
}

func (h *ContestHandler) drive(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id int, today time.Time) (bool, error)) {
	id, err := getIDFromURL(r, "contestID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	moved, err := op(r.Context(), id, h.now())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"transitioned": moved}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
