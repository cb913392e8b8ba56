package meeting

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/slotbook/slotbook/internal/rest"
)

type Handler struct {
	meetings Service
}

func NewHandler(meetings Service) *Handler {
	return &Handler{meetings: meetings}
}

type MeetingDTO struct {
	Id                int64            `json:"id"`
	Title             string           `json:"title"`
	Description       string           `json:"description"`
	TimeSlotId        int64            `json:"timeSlotId"`
	StartTime         time.Time        `json:"startTime"`
	EndTime           time.Time        `json:"endTime"`
	DurationInMinutes int64            `json:"durationInMinutes"`
	OrganizerId       int64            `json:"organizerId"`
	OrganizerEmail    string           `json:"organizerEmail"`
	Participants      []ParticipantDTO `json:"participants"`
	CreatedAt         time.Time        `json:"createdAt"`
}

type ParticipantDTO struct {
	Id        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type CreateMeetingDTO struct {
	TimeSlotId     int64   `json:"timeSlotId"`
	OrganizerId    int64   `json:"organizerId"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	ParticipantIds []int64 `json:"participantIds"`
}

type UpdateMeetingDTO struct {
	Title          string   `json:"title"`
	Description    *string  `json:"description"`
	ParticipantIds *[]int64 `json:"participantIds"`
}

// CreateMeeting godoc
// @Summary Book a meeting on an available slot
// @Description The organizer must own the slot; the slot flips to BUSY atomically with the booking
// @Tags Meeting
// @Accept json
// @Produce json
// @Param meeting body CreateMeetingDTO true "Meeting"
// @Success 201 {object} MeetingDTO
// @Failure 400 {object} rest.ErrorResponse "Slot unavailable or invalid request"
// @Failure 404 {object} rest.ErrorResponse "Slot, organizer or participant not found"
// @Router /api/meetings [post]
func (h *Handler) CreateMeeting(w http.ResponseWriter, r *http.Request) {
	var dto CreateMeetingDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteBadRequest(w, "Invalid request body format", "")
		return
	}

	created, err := h.meetings.Create(r.Context(), CreateMeeting{
		TimeSlotId:     dto.TimeSlotId,
		OrganizerId:    dto.OrganizerId,
		Title:          dto.Title,
		Description:    dto.Description,
		ParticipantIds: dto.ParticipantIds,
	})
	if err != nil {
		rest.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(meetingToDTO(created)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

// GetMeetingById godoc
// @Summary Get a meeting by id
// @Tags Meeting
// @Produce json
// @Param id path int true "Meeting id"
// @Success 200 {object} MeetingDTO
// @Failure 404 {object} rest.ErrorResponse "Meeting not found"
// @Router /api/meetings/{id} [get]
func (h *Handler) GetMeetingById(w http.ResponseWriter, r *http.Request) {
	id, ok := pathId(w, r, "id")
	if !ok {
		return
	}

	m, err := h.meetings.GetMeeting(r.Context(), id)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	h.writeMeeting(w, http.StatusOK, m)
}

// GetMeetingsByOrganizer godoc
// @Summary List meetings organized by a user
// @Tags Meeting
// @Produce json
// @Param userId path int true "User id"
// @Success 200 {array} MeetingDTO
// @Router /api/meetings/organizer/{userId} [get]
func (h *Handler) GetMeetingsByOrganizer(w http.ResponseWriter, r *http.Request) {
	userId, ok := pathId(w, r, "userId")
	if !ok {
		return
	}
	meetings, err := h.meetings.GetByOrganizer(r.Context(), userId)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	h.writeMeetings(w, meetings)
}

// GetMeetingsByParticipant godoc
// @Summary List meetings a user attends
// @Tags Meeting
// @Produce json
// @Param userId path int true "User id"
// @Success 200 {array} MeetingDTO
// @Router /api/meetings/participant/{userId} [get]
func (h *Handler) GetMeetingsByParticipant(w http.ResponseWriter, r *http.Request) {
	userId, ok := pathId(w, r, "userId")
	if !ok {
		return
	}
	meetings, err := h.meetings.GetByParticipant(r.Context(), userId)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	h.writeMeetings(w, meetings)
}

// GetAllMeetingsForUser godoc
// @Summary List all meetings for a user, organized or attended
// @Tags Meeting
// @Produce json
// @Param userId path int true "User id"
// @Success 200 {array} MeetingDTO
// @Router /api/meetings/user/{userId} [get]
func (h *Handler) GetAllMeetingsForUser(w http.ResponseWriter, r *http.Request) {
	userId, ok := pathId(w, r, "userId")
	if !ok {
		return
	}
	meetings, err := h.meetings.GetForUser(r.Context(), userId)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	h.writeMeetings(w, meetings)
}

// GetMeetingsInRange godoc
// @Summary List meetings whose slot lies fully inside a time range
// @Tags Meeting
// @Produce json
// @Param start query string true "Range start (RFC3339)"
// @Param end query string true "Range end (RFC3339)"
// @Param organizerId query int false "Restrict to one organizer"
// @Success 200 {array} MeetingDTO
// @Router /api/meetings/range [get]
func (h *Handler) GetMeetingsInRange(w http.ResponseWriter, r *http.Request) {
	from, ok := parseTime(w, r.URL.Query().Get("start"), "start")
	if !ok {
		return
	}
	to, ok := parseTime(w, r.URL.Query().Get("end"), "end")
	if !ok {
		return
	}
	var organizerId int64
	if organizerString := r.URL.Query().Get("organizerId"); organizerString != "" {
		parsed, err := strconv.ParseInt(organizerString, 10, 64)
		if err != nil {
			rest.WriteBadRequest(w, "Invalid organizerId", "'organizerId' must be an integer")
			return
		}
		organizerId = parsed
	}

	meetings, err := h.meetings.GetInRange(r.Context(), from, to, organizerId)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	h.writeMeetings(w, meetings)
}

// UpdateMeeting godoc
// @Summary Update a meeting
// @Description Blank title is ignored; a provided participant list replaces the whole set
// @Tags Meeting
// @Accept json
// @Produce json
// @Param id path int true "Meeting id"
// @Param meeting body UpdateMeetingDTO true "Changes"
// @Success 200 {object} MeetingDTO
// @Failure 404 {object} rest.ErrorResponse "Meeting or participant not found"
// @Router /api/meetings/{id} [put]
func (h *Handler) UpdateMeeting(w http.ResponseWriter, r *http.Request) {
	id, ok := pathId(w, r, "id")
	if !ok {
		return
	}

	var dto UpdateMeetingDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteBadRequest(w, "Invalid request body format", "")
		return
	}

	updated, err := h.meetings.Update(r.Context(), id, MeetingUpdate{
		Title:          dto.Title,
		Description:    dto.Description,
		ParticipantIds: dto.ParticipantIds,
	})
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	h.writeMeeting(w, http.StatusOK, updated)
}

// AddParticipant godoc
// @Summary Add a participant to a meeting
// @Description Adding an existing participant is a no-op; the organizer cannot be added
// @Tags Meeting
// @Produce json
// @Param meetingId path int true "Meeting id"
// @Param userId path int true "User id"
// @Success 200 {object} MeetingDTO
// @Failure 400 {object} rest.ErrorResponse "User is the organizer"
// @Failure 404 {object} rest.ErrorResponse "Meeting or user not found"
// @Router /api/meetings/{meetingId}/participants/{userId} [post]
func (h *Handler) AddParticipant(w http.ResponseWriter, r *http.Request) {
	meetingId, ok := pathId(w, r, "meetingId")
	if !ok {
		return
	}
	userId, ok := pathId(w, r, "userId")
	if !ok {
		return
	}

	updated, err := h.meetings.AddParticipant(r.Context(), meetingId, userId)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	h.writeMeeting(w, http.StatusOK, updated)
}

// RemoveParticipant godoc
// @Summary Remove a participant from a meeting
// @Description Removing a non-participant is a no-op
// @Tags Meeting
// @Produce json
// @Param meetingId path int true "Meeting id"
// @Param userId path int true "User id"
// @Success 200 {object} MeetingDTO
// @Failure 404 {object} rest.ErrorResponse "Meeting or user not found"
// @Router /api/meetings/{meetingId}/participants/{userId} [delete]
func (h *Handler) RemoveParticipant(w http.ResponseWriter, r *http.Request) {
	meetingId, ok := pathId(w, r, "meetingId")
	if !ok {
		return
	}
	userId, ok := pathId(w, r, "userId")
	if !ok {
		return
	}

	updated, err := h.meetings.RemoveParticipant(r.Context(), meetingId, userId)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	h.writeMeeting(w, http.StatusOK, updated)
}

// CancelMeeting godoc
// @Summary Cancel a meeting
// @Description Frees the bound slot back to AVAILABLE and deletes the meeting
// @Tags Meeting
// @Param id path int true "Meeting id"
// @Success 204
// @Failure 404 {object} rest.ErrorResponse "Meeting not found"
// @Router /api/meetings/{id} [delete]
func (h *Handler) CancelMeeting(w http.ResponseWriter, r *http.Request) {
	id, ok := pathId(w, r, "id")
	if !ok {
		return
	}

	if err := h.meetings.Cancel(r.Context(), id); err != nil {
		rest.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeMeeting(w http.ResponseWriter, status int, m Meeting) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(meetingToDTO(m)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handler) writeMeetings(w http.ResponseWriter, meetings []Meeting) {
	dtos := make([]MeetingDTO, 0, len(meetings))
	for _, m := range meetings {
		dtos = append(dtos, meetingToDTO(m))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(dtos); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
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

func meetingToDTO(m Meeting) MeetingDTO {
	participants := make([]ParticipantDTO, 0, len(m.Participants))
	for _, p := range m.Participants {
		participants = append(participants, ParticipantDTO{
			Id:        p.Id,
			Email:     p.Email,
			FirstName: p.FirstName,
			LastName:  p.LastName,
		})
	}
	return MeetingDTO{
		Id:                m.Id,
		Title:             m.Title,
		Description:       m.Description,
		TimeSlotId:        m.TimeSlotId,
		StartTime:         m.StartTime,
		EndTime:           m.EndTime,
		DurationInMinutes: m.DurationInMinutes(),
		OrganizerId:       m.OrganizerId,
		OrganizerEmail:    m.OrganizerEmail,
		Participants:      participants,
		CreatedAt:         m.CreatedAt,
	}
}
