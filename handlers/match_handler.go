package handlers

import (
	"net/http"

	"github.com/Dosada05/contest-system/models"
	"github.com/Dosada05/contest-system/services"
)

type MatchHandler struct {
	matchService services.MatchService
}

func NewMatchHandler(ms services.MatchService) *MatchHandler {
	return &MatchHandler{matchService: ms}
}

type recordWinnerInput struct {
	// Winner uses the kind:id form, e.g. "anime:42".
	Winner string `json:"winner"`
}

// RecordWinnerHandler handles POST /matches/{matchID}/winner
func (h *MatchHandler) RecordWinnerHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input recordWinnerInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	winner, err := models.ParseParticipantRef(input.Winner)
	if err != nil {
		failedValidationResponse(w, r, map[string]string{"winner": err.Error()})
		return
	}

	match, err := h.matchService.RecordWinner(r.Context(), matchID, *winner)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
