package handlers

import (
	"net/http"

	"github.com/Dosada05/debate-tournament/services"
)

type ScheduleHandler struct {
	scheduleService services.ScheduleService
}

func NewScheduleHandler(scheduleService services.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{scheduleService: scheduleService}
}

func (h *ScheduleHandler) GetPairings(w http.ResponseWriter, r *http.Request) {
	schedule, err := h.scheduleService.Current(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	resp := jsonResponse{
		"pairings":     schedule.Pairings,
		"generated_at": schedule.GeneratedAt,
	}
	if err := writeJSON(w, http.StatusOK, resp, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ScheduleHandler) GetJudges(w http.ResponseWriter, r *http.Request) {
	schedule, err := h.scheduleService.Current(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	resp := jsonResponse{
		"judges":       schedule.Judges,
		"judge_tier":   schedule.JudgeTier,
		"generated_at": schedule.GeneratedAt,
	}
	if err := writeJSON(w, http.StatusOK, resp, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ScheduleHandler) GetRoomData(w http.ResponseWriter, r *http.Request) {
	round, err := getIntFromURL(r, "round")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	room, err := getIntFromURL(r, "room")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	data, err := h.scheduleService.RoomData(r.Context(), round, room)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, data, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ScheduleHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	schedule, err := h.scheduleService.Regenerate(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	resp := jsonResponse{
		"rounds":       schedule.Pairings.Rounds(),
		"rooms":        schedule.Pairings.Rooms(),
		"judge_tier":   schedule.JudgeTier,
		"generated_at": schedule.GeneratedAt,
	}
	if err := writeJSON(w, http.StatusCreated, resp, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
