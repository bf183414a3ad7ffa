package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Dosada05/debate-tournament/models"
	"github.com/Dosada05/debate-tournament/services"
)

type MatchHandler struct {
	matchService services.MatchService
}

func NewMatchHandler(matchService services.MatchService) *MatchHandler {
	return &MatchHandler{matchService: matchService}
}

func (h *MatchHandler) AppendRecord(w http.ResponseWriter, r *http.Request) {
	team, err := getTeamFromURL(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input models.RecordData
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	id, err := h.matchService.AppendRecord(r.Context(), team, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"id": id, "record": input}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	team, err := getTeamFromURL(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	records, err := h.matchService.TeamRecords(r.Context(), team)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"records": records}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) ValidPlayers(w http.ResponseWriter, r *http.Request) {
	team, err := getTeamFromURL(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	round, err := getIntFromQuery(r, "round")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	players, err := h.matchService.ValidPlayers(r.Context(), team, round)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"players": players}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) Weight(w http.ResponseWriter, r *http.Request) {
	team, err := getTeamFromURL(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	query := r.URL.Query()
	side, err := models.ParseSide(query.Get("side"))
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	isRefuse := false
	if raw := query.Get("refuse"); raw != "" {
		if isRefuse, err = strconv.ParseBool(raw); err != nil {
			badRequestResponse(w, r, errors.New("refuse must be a boolean"))
			return
		}
	}

	weight, err := h.matchService.Weight(r.Context(), team, side, isRefuse)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"weight": weight}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type optionalQuestionsInput struct {
	Reporter string `json:"reporter"`
	Opponent string `json:"opponent"`
	Round    int    `json:"round"`
}

func (h *MatchHandler) OptionalQuestions(w http.ResponseWriter, r *http.Request) {
	var input optionalQuestionsInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.Reporter == "" || input.Opponent == "" {
		badRequestResponse(w, r, errors.New("reporter and opponent are required"))
		return
	}

	ids, err := h.matchService.OptionalQuestions(r.Context(), input.Reporter, input.Opponent, input.Round)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"question_ids": ids}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type scoreInput struct {
	Scores []float64 `json:"scores"`
}

func (h *MatchHandler) Score(w http.ResponseWriter, r *http.Request) {
	var input scoreInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if len(input.Scores) == 0 {
		badRequestResponse(w, r, errors.New("scores must not be empty"))
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"score": h.matchService.Score(input.Scores)}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
