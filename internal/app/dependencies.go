package app

import (
	"database/sql"

	"github.com/slotbook/slotbook/internal/utils"
	"github.com/slotbook/slotbook/pkg/meeting"
	"github.com/slotbook/slotbook/pkg/timeslot"
	"github.com/slotbook/slotbook/pkg/user"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	UserRepo    user.Repo
	UserService user.Service
	UserHandler *user.Handler

	TimeSlotRepo    timeslot.Repository
	TimeSlotService timeslot.Service
	TimeSlotHandler *timeslot.Handler

	MeetingRepo    meeting.Repository
	MeetingService meeting.Service
	MeetingHandler *meeting.Handler

	Clock utils.Clock
}

// BuildDependencies initializes and wires all application services and handlers.
func BuildDependencies(db *sql.DB) *Dependencies {
	deps := &Dependencies{}

	deps.Clock = &utils.SystemClock{}

	deps.UserRepo = user.NewUserRepo(db)
	deps.UserService = user.NewUserService(deps.UserRepo, deps.Clock)
	deps.UserHandler = user.NewHandler(deps.UserService)

	deps.TimeSlotRepo = timeslot.NewRepository(db)
	deps.TimeSlotService = timeslot.NewService(deps.TimeSlotRepo, deps.Clock)
	deps.TimeSlotHandler = timeslot.NewHandler(deps.TimeSlotService)

	deps.MeetingRepo = meeting.NewRepository(db)
	deps.MeetingService = meeting.NewService(deps.MeetingRepo, deps.Clock)
	deps.MeetingHandler = meeting.NewHandler(deps.MeetingService)

	return deps
}
