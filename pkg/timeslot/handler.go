package timeslot

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/slotbook/slotbook/internal/rest"
)

type Handler struct {
	slots Service
}

func NewHandler(slots Service) *Handler {
	return &Handler{slots: slots}
}

type TimeSlotDTO struct {
	Id                int64     `json:"id"`
	UserId            int64     `json:"userId"`
	UserEmail         string    `json:"userEmail"`
	StartTime         time.Time `json:"startTime"`
	EndTime           time.Time `json:"endTime"`
	Status            string    `json:"status"`
	DurationInMinutes int64     `json:"durationInMinutes"`
	MeetingId         *int64    `json:"meetingId,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

type CreateTimeSlotDTO struct {
	UserId    int64     `json:"userId"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

type UpdateTimeSlotDTO struct {
	StartTime *time.Time `json:"startTime"`
	EndTime   *time.Time `json:"endTime"`
	Status    *string    `json:"status"`
}

type AvailabilityDTO struct {
	UserId              int64         `json:"userId"`
	UserEmail           string        `json:"userEmail"`
	QueryStart          time.Time     `json:"queryStart"`
	QueryEnd            time.Time     `json:"queryEnd"`
	AvailableSlots      []TimeSlotDTO `json:"availableSlots"`
	BusySlots           []TimeSlotDTO `json:"busySlots"`
	TotalAvailableSlots int           `json:"totalAvailableSlots"`
	TotalBusySlots      int           `json:"totalBusySlots"`
}

// CreateTimeSlot godoc
// @Summary Create a time slot
// @Description Create an available slot on the user's calendar; the range must lie in the future and not overlap any existing slot
// @Tags TimeSlot
// @Accept json
// @Produce json
// @Param slot body CreateTimeSlotDTO true "Time slot"
// @Success 201 {object} TimeSlotDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid range or overlap"
// @Failure 404 {object} rest.ErrorResponse "User not found"
// @Router /api/time-slots [post]
func (h *Handler) CreateTimeSlot(w http.ResponseWriter, r *http.Request) {
	var dto CreateTimeSlotDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteBadRequest(w, "Invalid request body format", "")
		return
	}

	created, err := h.slots.CreateSlot(r.Context(), dto.UserId, dto.StartTime, dto.EndTime)
	if err != nil {
		rest.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(slotToDTO(created)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

// GetTimeSlotById godoc
// @Summary Get a time slot by id
// @Tags TimeSlot
// @Produce json
// @Param id path int true "Slot id"
// @Success 200 {object} TimeSlotDTO
// @Failure 404 {object} rest.ErrorResponse "Slot not found"
// @Router /api/time-slots/{id} [get]
func (h *Handler) GetTimeSlotById(w http.ResponseWriter, r *http.Request) {
	id, ok := pathId(w, r, "id")
	if !ok {
		return
	}

	slot, err := h.slots.GetSlot(r.Context(), id)
	if err != nil {
		rest.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(slotToDTO(slot)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

// GetTimeSlotsByUser godoc
// @Summary List a user's time slots
// @Description Lists all slots of the user's calendar, optionally filtered by status and/or a containing time range
// @Tags TimeSlot
// @Produce json
// @Param userId path int true "User id"
// @Param status query string false "AVAILABLE or BUSY"
// @Param start query string false "Range start (RFC3339)"
// @Param end query string false "Range end (RFC3339)"
// @Success 200 {array} TimeSlotDTO
// @Failure 404 {object} rest.ErrorResponse "User not found"
// @Router /api/time-slots/user/{userId} [get]
func (h *Handler) GetTimeSlotsByUser(w http.ResponseWriter, r *http.Request) {
	userId, ok := pathId(w, r, "userId")
	if !ok {
		return
	}

	var filter Filter
	if statusString := r.URL.Query().Get("status"); statusString != "" {
		status, ok := ParseStatus(statusString)
		if !ok {
			rest.WriteBadRequest(w, "Invalid status", "'status' must be AVAILABLE or BUSY")
			return
		}
		filter.Status = &status
	}
	if fromString := r.URL.Query().Get("start"); fromString != "" {
		from, ok := parseTime(w, fromString, "start")
		if !ok {
			return
		}
		filter.From = &from
	}
	if toString := r.URL.Query().Get("end"); toString != "" {
		to, ok := parseTime(w, toString, "end")
		if !ok {
			return
		}
		filter.To = &to
	}

	slots, err := h.slots.GetSlotsByUser(r.Context(), userId, filter)
	if err != nil {
		rest.WriteError(w, err)
		return
	}

	dtos := make([]TimeSlotDTO, 0, len(slots))
	for _, slot := range slots {
		dtos = append(dtos, slotToDTO(slot))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(dtos); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

// GetUserAvailability godoc
// @Summary Availability summary for a user
// @Description Available and busy slots fully contained in the queried range
// @Tags TimeSlot
// @Produce json
// @Param userId path int true "User id"
// @Param start query string true "Range start (RFC3339)"
// @Param end query string true "Range end (RFC3339)"
// @Success 200 {object} AvailabilityDTO
// @Failure 404 {object} rest.ErrorResponse "User not found"
// @Router /api/time-slots/user/{userId}/availability [get]
func (h *Handler) GetUserAvailability(w http.ResponseWriter, r *http.Request) {
	userId, ok := pathId(w, r, "userId")
	if !ok {
		return
	}
	from, ok := parseTime(w, r.URL.Query().Get("start"), "start")
	if !ok {
		return
	}
	to, ok := parseTime(w, r.URL.Query().Get("end"), "end")
	if !ok {
		return
	}

	availability, err := h.slots.GetAvailability(r.Context(), userId, from, to)
	if err != nil {
		rest.WriteError(w, err)
		return
	}

	dto := AvailabilityDTO{
		UserId:              availability.UserId,
		UserEmail:           availability.UserEmail,
		QueryStart:          availability.QueryStart,
		QueryEnd:            availability.QueryEnd,
		AvailableSlots:      make([]TimeSlotDTO, 0, len(availability.AvailableSlots)),
		BusySlots:           make([]TimeSlotDTO, 0, len(availability.BusySlots)),
		TotalAvailableSlots: len(availability.AvailableSlots),
		TotalBusySlots:      len(availability.BusySlots),
	}
	for _, slot := range availability.AvailableSlots {
		dto.AvailableSlots = append(dto.AvailableSlots, slotToDTO(slot))
	}
	for _, slot := range availability.BusySlots {
		dto.BusySlots = append(dto.BusySlots, slotToDTO(slot))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(dto); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

// UpdateTimeSlot godoc
// @Summary Update a time slot
// @Description Change the slot's range (both times required) and/or status; a slot with a bound meeting cannot be made available
// @Tags TimeSlot
// @Accept json
// @Produce json
// @Param id path int true "Slot id"
// @Param slot body UpdateTimeSlotDTO true "Changes"
// @Success 200 {object} TimeSlotDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid request"
// @Failure 404 {object} rest.ErrorResponse "Slot not found"
// @Router /api/time-slots/{id} [put]
func (h *Handler) UpdateTimeSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathId(w, r, "id")
	if !ok {
		return
	}

	var dto UpdateTimeSlotDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteBadRequest(w, "Invalid request body format", "")
		return
	}

	update := SlotUpdate{StartTime: dto.StartTime, EndTime: dto.EndTime}
	if dto.Status != nil {
		status, ok := ParseStatus(*dto.Status)
		if !ok {
			rest.WriteBadRequest(w, "Invalid status", "'status' must be AVAILABLE or BUSY")
			return
		}
		update.Status = &status
	}

	updated, err := h.slots.UpdateSlot(r.Context(), id, update)
	if err != nil {
		rest.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(slotToDTO(updated)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

// MarkAsBusy godoc
// @Summary Mark a slot busy
// @Description Administrative override, does not create a meeting
// @Tags TimeSlot
// @Produce json
// @Param id path int true "Slot id"
// @Success 200 {object} TimeSlotDTO
// @Failure 404 {object} rest.ErrorResponse "Slot not found"
// @Router /api/time-slots/{id}/busy [patch]
func (h *Handler) MarkAsBusy(w http.ResponseWriter, r *http.Request) {
	id, ok := pathId(w, r, "id")
	if !ok {
		return
	}

	updated, err := h.slots.MarkBusy(r.Context(), id)
	if err != nil {
		rest.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(slotToDTO(updated)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

// MarkAsAvailable godoc
// @Summary Mark a slot available
// @Description Fails while a meeting is bound to the slot
// @Tags TimeSlot
// @Produce json
// @Param id path int true "Slot id"
// @Success 200 {object} TimeSlotDTO
// @Failure 400 {object} rest.ErrorResponse "Slot has a meeting"
// @Failure 404 {object} rest.ErrorResponse "Slot not found"
// @Router /api/time-slots/{id}/available [patch]
func (h *Handler) MarkAsAvailable(w http.ResponseWriter, r *http.Request) {
	id, ok := pathId(w, r, "id")
	if !ok {
		return
	}

	updated, err := h.slots.MarkAvailable(r.Context(), id)
	if err != nil {
		rest.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(slotToDTO(updated)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

// DeleteTimeSlot godoc
// @Summary Delete a time slot
// @Description Fails while a meeting is bound to the slot
// @Tags TimeSlot
// @Param id path int true "Slot id"
// @Success 204
// @Failure 400 {object} rest.ErrorResponse "Slot has a meeting"
// @Failure 404 {object} rest.ErrorResponse "Slot not found"
// @Router /api/time-slots/{id} [delete]
func (h *Handler) DeleteTimeSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathId(w, r, "id")
	if !ok {
		return
	}

	if err := h.slots.DeleteSlot(r.Context(), id); err != nil {
		rest.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathId(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil {
		rest.WriteBadRequest(w, "Invalid "+name, "'"+name+"' must be an integer")
		return 0, false
	}
	return id, true
}

func parseTime(w http.ResponseWriter, value, name string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		rest.WriteBadRequest(w, "Invalid "+name+" (date) format", "'"+name+"' must be in RFC3339 format")
		return time.Time{}, false
	}
	return t, true
}

func slotToDTO(s TimeSlot) TimeSlotDTO {
	dto := TimeSlotDTO{
		Id:                s.Id,
		UserId:            s.UserId,
		UserEmail:         s.UserEmail,
		StartTime:         s.StartTime,
		EndTime:           s.EndTime,
		Status:            string(s.Status),
		DurationInMinutes: s.DurationInMinutes(),
		CreatedAt:         s.CreatedAt,
	}
	if s.MeetingId != 0 {
		meetingId := s.MeetingId
		dto.MeetingId = &meetingId
	}
	return dto
}
