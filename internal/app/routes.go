package app

import (
	"github.com/gorilla/mux"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies) {

	// User management
	r.HandleFunc("/api/users", deps.UserHandler.CreateUser).Methods("POST")
	r.HandleFunc("/api/users", deps.UserHandler.GetAllUsers).Methods("GET")
	r.HandleFunc("/api/users/email/{email}", deps.UserHandler.GetUserByEmail).Methods("GET")
	r.HandleFunc("/api/users/{id}", deps.UserHandler.GetUserById).Methods("GET")
	r.HandleFunc("/api/users/{id}", deps.UserHandler.UpdateUser).Methods("PUT")
	r.HandleFunc("/api/users/{id}", deps.UserHandler.DeleteUser).Methods("DELETE")

	// Time slots
	r.HandleFunc("/api/time-slots", deps.TimeSlotHandler.CreateTimeSlot).Methods("POST")
	r.HandleFunc("/api/time-slots/user/{userId}/availability", deps.TimeSlotHandler.GetUserAvailability).Queries("start", "{start}", "end", "{end}").Methods("GET")
	r.HandleFunc("/api/time-slots/user/{userId}", deps.TimeSlotHandler.GetTimeSlotsByUser).Methods("GET")
	r.HandleFunc("/api/time-slots/{id}", deps.TimeSlotHandler.GetTimeSlotById).Methods("GET")
	r.HandleFunc("/api/time-slots/{id}", deps.TimeSlotHandler.UpdateTimeSlot).Methods("PUT")
	r.HandleFunc("/api/time-slots/{id}/busy", deps.TimeSlotHandler.MarkAsBusy).Methods("PATCH")
	r.HandleFunc("/api/time-slots/{id}/available", deps.TimeSlotHandler.MarkAsAvailable).Methods("PATCH")
	r.HandleFunc("/api/time-slots/{id}", deps.TimeSlotHandler.DeleteTimeSlot).Methods("DELETE")

	// Meetings
	r.HandleFunc("/api/meetings", deps.MeetingHandler.CreateMeeting).Methods("POST")
	r.HandleFunc("/api/meetings/range", deps.MeetingHandler.GetMeetingsInRange).Queries("start", "{start}", "end", "{end}").Methods("GET")
	r.HandleFunc("/api/meetings/organizer/{userId}", deps.MeetingHandler.GetMeetingsByOrganizer).Methods("GET")
	r.HandleFunc("/api/meetings/participant/{userId}", deps.MeetingHandler.GetMeetingsByParticipant).Methods("GET")
	r.HandleFunc("/api/meetings/user/{userId}", deps.MeetingHandler.GetAllMeetingsForUser).Methods("GET")
	r.HandleFunc("/api/meetings/{meetingId}/participants/{userId}", deps.MeetingHandler.AddParticipant).Methods("POST")
	r.HandleFunc("/api/meetings/{meetingId}/participants/{userId}", deps.MeetingHandler.RemoveParticipant).Methods("DELETE")
	r.HandleFunc("/api/meetings/{id}", deps.MeetingHandler.GetMeetingById).Methods("GET")
	r.HandleFunc("/api/meetings/{id}", deps.MeetingHandler.UpdateMeeting).Methods("PUT")
	r.HandleFunc("/api/meetings/{id}", deps.MeetingHandler.CancelMeeting).Methods("DELETE")
}
